// Package search indexes record metadata in bleve and serves the list/search
// queries of the record endpoints: full text, term filters, facets, named sort
// options, highlights and bounded pagination.
package search

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType names how a metadata path is indexed.
type FieldType string

// Field types understood by Mapping.
const (
	FieldKeyword      FieldType = "keyword"
	FieldText         FieldType = "text"
	FieldDate         FieldType = "date"
	FieldBoolean      FieldType = "boolean"
	FieldNumber       FieldType = "number"
	FieldMultilingual FieldType = "multilingual"
	FieldTaxonomy     FieldType = "taxonomy"
)

// RawSuffix is appended to the language key of multilingual fields for the
// keyword variant used by sorting and facets ("title.cs_raw").
const RawSuffix = "_raw"

// Mapping declares the indexed fields of a search index by dotted path.
type Mapping struct {
	Fields    map[string]FieldType `json:"fields" yaml:"fields"`
	Languages []string             `json:"languages,omitempty" yaml:"languages,omitempty"`
}

// Paths returns the declared paths sorted.
func (m Mapping) Paths() []string {
	out := make([]string, 0, len(m.Fields))
	for p := range m.Fields {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// FacetDef aggregates the distinct values of Field.
type FacetDef struct {
	Field string `json:"field"`
	Size  int    `json:"size"`
}

// SortOption is a named sort. Fields use bleve syntax: a leading "-" sorts
// descending and "_score" is relevance.
type SortOption struct {
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
	Order  int      `json:"order"`
}

// DefaultSort picks the sort option used when a request names none.
type DefaultSort struct {
	Query   string `json:"query"`
	NoQuery string `json:"noquery"`
}

// IndexConfig describes one search index.
type IndexConfig struct {
	Name            string                `json:"name"`
	Mapping         Mapping               `json:"mapping"`
	MaxResultWindow int                   `json:"max_result_window"`
	SourceFields    []string              `json:"source_fields,omitempty"`
	HighlightFields []string              `json:"highlight_fields,omitempty"`
	Facets          map[string]FacetDef   `json:"facets,omitempty"`
	SortOptions     map[string]SortOption `json:"sort_options,omitempty"`
	DefaultSort     DefaultSort           `json:"default_sort"`
}

// Validate checks that the config is self-consistent.
func (c IndexConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("search index name is required")
	}
	if len(c.Mapping.Fields) == 0 {
		return fmt.Errorf("search index %s: mapping has no fields", c.Name)
	}
	for name, f := range c.Facets {
		if f.Field == "" {
			return fmt.Errorf("search index %s: facet %s has no field", c.Name, name)
		}
	}
	for _, name := range []string{c.DefaultSort.Query, c.DefaultSort.NoQuery} {
		if name == "" {
			continue
		}
		if _, ok := c.SortOptions[name]; !ok {
			return fmt.Errorf("search index %s: default sort %s is not a sort option", c.Name, name)
		}
	}
	return nil
}
