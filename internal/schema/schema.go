// Package schema implements the field-level metadata schema used by record
// types: typed fields with length, date-range and reference constraints that
// load a raw JSON document into its validated, dereferenced form.
package schema

import (
	"context"
	"sort"
	"time"
)

// Resolver expands a taxonomy term link into the entries embedded in records:
// the ancestors of the term (is_ancestor true) followed by the term itself.
type Resolver interface {
	Dereference(ctx context.Context, link string) ([]map[string]any, error)
}

// Def declares a named field of a Schema.
type Def struct {
	Name     string
	Field    Field
	Required bool
}

// PostLoadHook runs after all fields loaded without error and may rewrite the document.
type PostLoadHook func(doc map[string]any) error

// Schema is an immutable set of field definitions. Use Extend to derive a
// schema with additional fields.
type Schema struct {
	defs         map[string]Def
	order        []string
	hooks        []PostLoadHook
	allowUnknown bool
}

// New builds a schema from defs. A later def with the same name replaces an earlier one.
func New(defs ...Def) *Schema {
	s := &Schema{defs: make(map[string]Def, len(defs))}
	s.add(defs...)
	return s
}

func (s *Schema) add(defs ...Def) {
	for _, d := range defs {
		if _, exists := s.defs[d.Name]; !exists {
			s.order = append(s.order, d.Name)
		}
		s.defs[d.Name] = d
	}
}

// Extend returns a copy of s with defs added.
func (s *Schema) Extend(defs ...Def) *Schema {
	cp := &Schema{
		defs:         make(map[string]Def, len(s.defs)+len(defs)),
		order:        append([]string(nil), s.order...),
		hooks:        append([]PostLoadHook(nil), s.hooks...),
		allowUnknown: s.allowUnknown,
	}
	for k, v := range s.defs {
		cp.defs[k] = v
	}
	cp.add(defs...)
	return cp
}

// WithPostLoad returns a copy of s running hook after a successful load.
func (s *Schema) WithPostLoad(hook PostLoadHook) *Schema {
	cp := s.Extend()
	cp.hooks = append(cp.hooks, hook)
	return cp
}

// AllowUnknown returns a copy of s that passes unknown keys through unchanged.
func (s *Schema) AllowUnknown() *Schema {
	cp := s.Extend()
	cp.allowUnknown = true
	return cp
}

// FieldNames lists the declared field names in declaration order.
func (s *Schema) FieldNames() []string {
	return append([]string(nil), s.order...)
}

// Lookup returns the definition of name.
func (s *Schema) Lookup(name string) (Def, bool) {
	d, ok := s.defs[name]
	return d, ok
}

// Required lists the required field names in declaration order.
func (s *Schema) Required() []string {
	var out []string
	for _, name := range s.order {
		if s.defs[name].Required {
			out = append(out, name)
		}
	}
	return out
}

// LoadOption customizes a single Load call.
type LoadOption func(*LoadContext)

// WithResolver supplies the taxonomy resolver used by TaxonomyList fields.
func WithResolver(r Resolver) LoadOption {
	return func(lc *LoadContext) { lc.resolver = r }
}

// WithNow fixes the clock used by date range checks.
func WithNow(now func() time.Time) LoadOption {
	return func(lc *LoadContext) {
		if now != nil {
			lc.now = now
		}
	}
}

// LoadContext carries per-call state to fields.
type LoadContext struct {
	ctx      context.Context
	resolver Resolver
	now      func() time.Time
}

// Load validates data and returns the loaded document. Keys are processed in
// sorted order so error ordering is deterministic. The input is not modified.
// A non-nil error is always a *ValidationError.
func (s *Schema) Load(ctx context.Context, data map[string]any, opts ...LoadOption) (map[string]any, error) {
	lc := &LoadContext{ctx: ctx, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(lc)
	}
	errs := &ValidationError{}
	out := s.load(lc, "", data, errs)
	if !errs.Empty() {
		errs.sort()
		return nil, errs
	}
	for _, hook := range s.hooks {
		if err := hook(out); err != nil {
			if ve, ok := AsValidationError(err); ok {
				return nil, ve
			}
			errs.Add("_schema", ConstraintType, err.Error())
			return nil, errs
		}
	}
	return out, nil
}

func (s *Schema) load(lc *LoadContext, prefix string, data map[string]any, errs *ValidationError) map[string]any {
	out := make(map[string]any, len(data))
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		path := joinPath(prefix, key)
		def, ok := s.defs[key]
		if !ok {
			if s.allowUnknown {
				out[key] = cloneJSON(data[key])
				continue
			}
			errs.Add(path, ConstraintUnknownField, "Unknown field.")
			continue
		}
		value := data[key]
		if value == nil {
			errs.Add(path, ConstraintType, "Field may not be null.")
			continue
		}
		if loaded, ok := def.Field.Load(lc, path, value, errs); ok {
			out[key] = loaded
		}
	}
	for _, name := range s.order {
		if !s.defs[name].Required {
			continue
		}
		if _, present := data[name]; !present {
			errs.Add(joinPath(prefix, name), ConstraintRequired, "Missing data for required field.")
		}
	}
	return out
}
