package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout accepted by Import:
//
//	taxonomies:
//	  - code: languages
//	    extra: {title: {cs: jazyky, en: languages}}
//	    terms:
//	      - slug: cze
//	        extra: {title: {cs: čeština, en: Czech}}
//	        children: [...]
type SeedFile struct {
	Taxonomies []SeedTaxonomy `yaml:"taxonomies"`
}

// SeedTaxonomy declares one taxonomy and its root terms.
type SeedTaxonomy struct {
	Code  string         `yaml:"code"`
	Extra map[string]any `yaml:"extra"`
	Terms []SeedTerm     `yaml:"terms"`
}

// SeedTerm declares a term and its children.
type SeedTerm struct {
	Slug     string         `yaml:"slug"`
	Extra    map[string]any `yaml:"extra"`
	Children []SeedTerm     `yaml:"children"`
}

// ImportStats counts what Import changed.
type ImportStats struct {
	Taxonomies int
	Created    int
	Updated    int
}

// ParseSeed decodes a seed document.
func ParseSeed(r io.Reader) (SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return SeedFile{}, fmt.Errorf("decode taxonomy seed: %w", err)
	}
	for i, t := range seed.Taxonomies {
		if t.Code == "" {
			return SeedFile{}, fmt.Errorf("taxonomy #%d: code is required", i+1)
		}
	}
	return seed, nil
}

// ImportFile reads and imports the seed at path.
func (s *Service) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("open taxonomy seed: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.Import(ctx, f)
}

// Import creates missing taxonomies and terms from r and refreshes the extra
// data of existing terms. Importing the same seed twice is a no-op apart from
// extra data rewrites.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	seed, err := ParseSeed(r)
	if err != nil {
		return ImportStats{}, err
	}
	var stats ImportStats
	for _, t := range seed.Taxonomies {
		if !s.hasTaxonomy(t.Code) {
			if _, err := s.CreateTaxonomy(ctx, t.Code, normalizeYAML(t.Extra)); err != nil {
				return stats, err
			}
			stats.Taxonomies++
		}
		if err := s.importTerms(ctx, t.Code, "", t.Terms, &stats); err != nil {
			return stats, err
		}
	}
	s.logger.Info("taxonomy.imported", "taxonomies", stats.Taxonomies, "created", stats.Created, "updated", stats.Updated)
	return stats, nil
}

func (s *Service) hasTaxonomy(code string) bool {
	for _, t := range s.store.ListTaxonomies() {
		if t.Code == code {
			return true
		}
	}
	return false
}

func (s *Service) importTerms(ctx context.Context, code, parent string, terms []SeedTerm, stats *ImportStats) error {
	for _, st := range terms {
		extra := normalizeYAML(st.Extra)
		slug := Slugify(st.Slug)
		if _, exists := s.store.GetTerm(code, slug); exists {
			if _, err := s.UpdateTerm(ctx, code, slug, extra); err != nil {
				return err
			}
			stats.Updated++
		} else {
			if _, err := s.CreateTerm(ctx, code, st.Slug, parent, extra); err != nil {
				return fmt.Errorf("term %s/%s: %w", code, st.Slug, err)
			}
			stats.Created++
		}
		if err := s.importTerms(ctx, code, slug, st.Children, stats); err != nil {
			return err
		}
	}
	return nil
}

// normalizeYAML converts decoded YAML into JSON-compatible values: nested maps
// become map[string]any and integers become float64.
func normalizeYAML(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out, _ := normalizeValue(in).(map[string]any)
	return out
}

func normalizeValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case uint64:
		return float64(typed)
	}
	return v
}
