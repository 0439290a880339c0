package core

import (
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
)

// AppConfig is the merged configuration contributed by installed plugins.
// Each plugin's values are applied with set-default-then-update semantics: a
// missing section is created, then the plugin's keys overwrite existing ones.
type AppConfig struct {
	RestEndpoints  map[string]Endpoint                     `json:"RECORDS_REST_ENDPOINTS"`
	DraftEndpoints map[string]Endpoint                     `json:"RECORDS_DRAFT_ENDPOINTS"`
	Facets         map[string]map[string]search.FacetDef   `json:"RECORDS_REST_FACETS"`
	SortOptions    map[string]map[string]search.SortOption `json:"RECORDS_REST_SORT_OPTIONS"`
	DefaultSort    map[string]search.DefaultSort           `json:"RECORDS_REST_DEFAULT_SORT"`
	SearchIndexes  map[string]search.IndexConfig           `json:"SEARCH_INDEXES"`
}

func newAppConfig() AppConfig {
	return AppConfig{
		RestEndpoints:  make(map[string]Endpoint),
		DraftEndpoints: make(map[string]Endpoint),
		Facets:         make(map[string]map[string]search.FacetDef),
		SortOptions:    make(map[string]map[string]search.SortOption),
		DefaultSort:    make(map[string]search.DefaultSort),
		SearchIndexes:  make(map[string]search.IndexConfig),
	}
}

func (c *AppConfig) merge(r *PluginRegistry) {
	for k, v := range r.endpoints {
		c.RestEndpoints[k] = v
	}
	for k, v := range r.draftEndpoints {
		c.DraftEndpoints[k] = v
	}
	for index, facets := range r.facets {
		current, ok := c.Facets[index]
		if !ok {
			current = make(map[string]search.FacetDef, len(facets))
			c.Facets[index] = current
		}
		for k, v := range facets {
			current[k] = v
		}
	}
	for index, options := range r.sortOptions {
		current, ok := c.SortOptions[index]
		if !ok {
			current = make(map[string]search.SortOption, len(options))
			c.SortOptions[index] = current
		}
		for k, v := range options {
			current[k] = v
		}
	}
	for index, ds := range r.defaultSort {
		c.DefaultSort[index] = ds
	}
	for index, cfg := range r.indexes {
		c.SearchIndexes[index] = cfg
	}
}

func (c AppConfig) clone() AppConfig {
	out := newAppConfig()
	for k, v := range c.RestEndpoints {
		out.RestEndpoints[k] = v
	}
	for k, v := range c.DraftEndpoints {
		out.DraftEndpoints[k] = v
	}
	for index, facets := range c.Facets {
		cp := make(map[string]search.FacetDef, len(facets))
		for k, v := range facets {
			cp[k] = v
		}
		out.Facets[index] = cp
	}
	for index, options := range c.SortOptions {
		cp := make(map[string]search.SortOption, len(options))
		for k, v := range options {
			cp[k] = v
		}
		out.SortOptions[index] = cp
	}
	for k, v := range c.DefaultSort {
		out.DefaultSort[k] = v
	}
	for k, v := range c.SearchIndexes {
		out.SearchIndexes[k] = v
	}
	return out
}

// IndexConfig assembles the search config of index from its mapping and the
// merged facets, sort options and default sort.
func (c AppConfig) IndexConfig(index string) (search.IndexConfig, bool) {
	cfg, ok := c.SearchIndexes[index]
	if !ok {
		return search.IndexConfig{}, false
	}
	if facets := c.Facets[index]; len(facets) > 0 {
		cfg.Facets = make(map[string]search.FacetDef, len(facets))
		for k, v := range facets {
			cfg.Facets[k] = v
		}
	}
	if options := c.SortOptions[index]; len(options) > 0 {
		cfg.SortOptions = make(map[string]search.SortOption, len(options))
		for k, v := range options {
			cfg.SortOptions[k] = v
		}
	}
	if ds, ok := c.DefaultSort[index]; ok {
		cfg.DefaultSort = ds
	}
	return cfg, true
}
