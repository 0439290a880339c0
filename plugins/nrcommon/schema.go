package nrcommon

import (
	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// Common field names used outside the schema.
const (
	FieldProvider = "provider"
	FieldEntities = "entities"
)

var (
	personSchema = schema.New(
		schema.Def{Name: "name", Field: schema.String{MaxLength: 1024}, Required: true},
		schema.Def{Name: "ORCID", Field: schema.String{}},
		schema.Def{Name: "scopusID", Field: schema.String{}},
		schema.Def{Name: "researcherID", Field: schema.String{}},
		schema.Def{Name: "czenasAutID", Field: schema.String{}},
		schema.Def{Name: "affiliation", Field: schema.TaxonomyList{}},
	)

	contributorSchema = personSchema.Extend(
		schema.Def{Name: "role", Field: schema.TaxonomyList{}},
	)

	identifierSchema = schema.New(
		schema.Def{Name: "value", Field: schema.String{}, Required: true},
		schema.Def{Name: "type", Field: schema.String{}, Required: true},
	)

	administrationSchema = schema.New(
		schema.Def{Name: "primaryCommunity", Field: schema.String{}},
		schema.Def{Name: "communities", Field: schema.List{Item: schema.String{}}},
		schema.Def{Name: "state", Field: schema.String{}},
		schema.Def{Name: "owned_by", Field: schema.Raw{}},
	)
)

// CommonFields are the metadata fields every national repository record has.
func CommonFields() []schema.Def {
	return []schema.Def{
		{Name: "$schema", Field: schema.URL{}},
		{Name: "_primary_community", Field: schema.String{}},
		{Name: "_communities", Field: schema.List{Item: schema.String{}}},
		{Name: "_administration", Field: schema.Nested{Schema: administrationSchema}},
		{Name: "control_number", Field: schema.String{}},
		{Name: "title", Field: schema.List{Item: schema.Multilingual{}, MinItems: 1}, Required: true},
		{Name: "creator", Field: schema.List{Item: schema.Nested{Schema: personSchema}, MinItems: 1}, Required: true},
		{Name: "contributor", Field: schema.List{Item: schema.Nested{Schema: contributorSchema}}},
		{Name: "dateIssued", Field: schema.Date{AllowPartial: true}, Required: true},
		{Name: "keywords", Field: schema.List{Item: schema.Multilingual{}}},
		{Name: "abstract", Field: schema.Multilingual{}},
		{Name: "subject", Field: schema.TaxonomyList{}},
		{Name: "language", Field: schema.TaxonomyList{MinItems: 1}, Required: true},
		{Name: FieldProvider, Field: schema.TaxonomyList{MinItems: 1}, Required: true},
		{Name: FieldEntities, Field: schema.TaxonomyList{}},
		{Name: "resourceType", Field: schema.TaxonomyList{MinItems: 1}, Required: true},
		{Name: "accessRights", Field: schema.TaxonomyList{MinItems: 1}, Required: true},
		{Name: "rights", Field: schema.TaxonomyList{}},
		{Name: "identifier", Field: schema.List{Item: schema.Nested{Schema: identifierSchema}}},
		{Name: "state", Field: schema.String{}},
	}
}

// CommonSchema builds the common metadata schema extended with defs. The
// loaded document's entities always mirror its provider.
func CommonSchema(defs ...schema.Def) *schema.Schema {
	return schema.New(CommonFields()...).Extend(defs...).WithPostLoad(MirrorEntities)
}

// MirrorEntities copies the dereferenced provider into entities.
func MirrorEntities(doc map[string]any) error {
	provider, ok := doc[FieldProvider]
	if !ok {
		delete(doc, FieldEntities)
		return nil
	}
	items, ok := provider.([]any)
	if !ok {
		return nil
	}
	entities := make([]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			entities = append(entities, domain.CloneDocument(m))
			continue
		}
		entities = append(entities, item)
	}
	doc[FieldEntities] = entities
	return nil
}
