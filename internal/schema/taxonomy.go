package schema

import (
	"strconv"
	"strings"
)

// TaxonomyList loads a list of taxonomy references. Each item is a mapping with
// links.self (or the link string itself). Items flagged is_ancestor are
// dropped and regenerated from the resolver, so reloading an already
// dereferenced document is stable.
type TaxonomyList struct {
	MinItems int
}

// Load implements Field.
func (f TaxonomyList) Load(lc *LoadContext, path string, value any, errs *ValidationError) (any, bool) {
	items, ok := asList(value)
	if !ok {
		errs.Add(path, ConstraintType, "Not a valid list.")
		return nil, false
	}
	if len(items) < f.MinItems {
		errs.Add(path, ConstraintMinItems, "Must contain at least one term.")
		return nil, false
	}
	resolver := lc.Resolver()
	var out []any
	index := make(map[string]int)
	valid := true
	for i, item := range items {
		itemPath := joinPath(path, strconv.Itoa(i))
		link, ancestor, ok := referenceLink(item)
		if !ok {
			errs.Add(itemPath, ConstraintType, "Not a valid taxonomy reference.")
			valid = false
			continue
		}
		if ancestor {
			continue
		}
		if resolver == nil {
			errs.Add(itemPath, ConstraintReference, "No taxonomy resolver configured.")
			valid = false
			continue
		}
		entries, err := resolver.Dereference(lc.Context(), link)
		if err != nil {
			errs.Add(itemPath, ConstraintReference, err.Error())
			valid = false
			continue
		}
		for _, entry := range entries {
			self := SelfLink(entry)
			if pos, seen := index[self]; seen {
				if isAncestor, _ := entry["is_ancestor"].(bool); !isAncestor {
					out[pos].(map[string]any)["is_ancestor"] = false
				}
				continue
			}
			index[self] = len(out)
			out = append(out, cloneJSON(entry))
		}
	}
	if !valid {
		return nil, false
	}
	if out == nil {
		out = []any{}
	}
	return out, true
}

func referenceLink(item any) (link string, ancestor bool, ok bool) {
	switch v := item.(type) {
	case string:
		link = strings.TrimSpace(v)
		return link, false, link != ""
	case map[string]any:
		link = SelfLink(v)
		if link == "" {
			if ref, isString := v["$ref"].(string); isString {
				link = ref
			}
		}
		ancestor, _ = v["is_ancestor"].(bool)
		return link, ancestor, link != ""
	}
	return "", false, false
}

// SelfLink returns links.self of a dereferenced entry.
func SelfLink(entry map[string]any) string {
	links, ok := entry["links"].(map[string]any)
	if !ok {
		return ""
	}
	self, _ := links["self"].(string)
	return self
}
