package nresults

import (
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
)

// ListSourceFields are returned for every hit of a list request.
var ListSourceFields = []string{
	"control_number", "oarepo:validity.valid", "oarepo:draft", "title", "dateIssued",
	"creator", "resourceType", "contributor", "keywords", "subject", "abstract", "state",
	"_administration.primaryCommunity", "_administration.communities",
}

// HighlightFields are highlighted when a list request carries a query.
var HighlightFields = []string{"title.cs", "title._", "title.en"}

func indexMapping() search.Mapping {
	return search.Mapping{Fields: map[string]search.FieldType{
		"$schema":                          search.FieldKeyword,
		"control_number":                   search.FieldKeyword,
		"_primary_community":               search.FieldKeyword,
		"_communities":                     search.FieldKeyword,
		"_administration.primaryCommunity": search.FieldKeyword,
		"_administration.communities":      search.FieldKeyword,
		"_administration.state":            search.FieldKeyword,
		"oarepo:draft":                     search.FieldBoolean,
		"oarepo:validity.valid":            search.FieldBoolean,
		"title":                            search.FieldMultilingual,
		"abstract":                         search.FieldMultilingual,
		"keywords":                         search.FieldMultilingual,
		"creator.name":                     search.FieldKeyword,
		"contributor.name":                 search.FieldKeyword,
		"dateIssued":                       search.FieldDate,
		"state":                            search.FieldKeyword,
		"subject":                          search.FieldTaxonomy,
		"language":                         search.FieldTaxonomy,
		"provider":                         search.FieldTaxonomy,
		"entities":                         search.FieldTaxonomy,
		"resourceType":                     search.FieldTaxonomy,
		"accessRights":                     search.FieldTaxonomy,
		"rights":                           search.FieldTaxonomy,
		"N_certifyingAuthority":            search.FieldTaxonomy,
		"N_dateCertified":                  search.FieldDate,
		"N_economicalParameters":           search.FieldText,
		"N_technicalParameters":            search.FieldText,
		"N_internalID":                     search.FieldKeyword,
		"N_referenceNumber":                search.FieldKeyword,
		"N_resultUsage":                    search.FieldTaxonomy,
		"N_type":                           search.FieldTaxonomy,
	}}
}

// IndexConfig is the search mapping of index. Facets and sorts are merged in
// from the application config.
func IndexConfig(index string) search.IndexConfig {
	return search.IndexConfig{
		Name:            index,
		Mapping:         indexMapping(),
		MaxResultWindow: MaxResultWindow,
		SourceFields:    ListSourceFields,
		HighlightFields: HighlightFields,
	}
}

func taxonomyFacet(path string) search.FacetDef {
	return search.FacetDef{Field: path + ".title.cs" + search.RawSuffix, Size: 100}
}

// Facets of the record endpoints, keyed by facet name.
func Facets() map[string]search.FacetDef {
	return map[string]search.FacetDef{
		"resourceType":          taxonomyFacet("resourceType"),
		"language":              taxonomyFacet("language"),
		"provider":              taxonomyFacet("provider"),
		"accessRights":          taxonomyFacet("accessRights"),
		"N_type":                taxonomyFacet("N_type"),
		"N_certifyingAuthority": taxonomyFacet("N_certifyingAuthority"),
		"N_resultUsage":         taxonomyFacet("N_resultUsage"),
		"creator":               {Field: "creator.name", Size: 100},
	}
}

// Sort option names.
const (
	SortAlphabetical = "alphabetical"
	SortBestMatch    = "best_match"
	SortNewest       = "newest"
	SortOldest       = "oldest"
)

// SortOptions of the record endpoints.
func SortOptions() map[string]search.SortOption {
	return map[string]search.SortOption{
		SortAlphabetical: {Title: "alphabetical", Fields: []string{"title.cs" + search.RawSuffix}, Order: 1},
		SortBestMatch:    {Title: "Best match", Fields: []string{"-_score"}, Order: 2},
		SortNewest:       {Title: "Newest", Fields: []string{"-dateIssued"}, Order: 3},
		SortOldest:       {Title: "Oldest", Fields: []string{"dateIssued"}, Order: 4},
	}
}

// DefaultSort ranks by relevance for queries and by date otherwise.
func DefaultSort() search.DefaultSort {
	return search.DefaultSort{Query: SortBestMatch, NoQuery: SortNewest}
}
