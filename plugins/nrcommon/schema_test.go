package nrcommon

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
)

const taxonomyBase = "http://127.0.0.1:5000/2.0/taxonomies/test_taxonomy/"

type staticResolver map[string]map[string]any

func (r staticResolver) Dereference(_ context.Context, link string) ([]map[string]any, error) {
	extra, ok := r[link]
	if !ok {
		return nil, fmt.Errorf("term %s not found", link)
	}
	entry := map[string]any{"is_ancestor": false, "level": 1, "links": map[string]any{"self": link}}
	for k, v := range extra {
		entry[k] = v
	}
	return []map[string]any{entry}, nil
}

func ref(slug string) []any {
	return []any{map[string]any{"is_ancestor": false, "links": map[string]any{"self": taxonomyBase + slug}}}
}

func resolver() staticResolver {
	return staticResolver{
		taxonomyBase + "c-abf2":           {"title": map[string]any{"cs": "otevřený přístup", "en": "open access"}},
		taxonomyBase + "cze":              {"title": map[string]any{"cs": "čeština", "en": "Czech"}},
		taxonomyBase + "61384984":         {"title": map[string]any{"cs": "Akademie múzických umění v Praze"}, "ico": "61384984", "aliases": []any{"AMU"}},
		taxonomyBase + "bakalarske-prace": {"title": map[string]any{"cs": "Bakalářské práce"}},
	}
}

func baseRecord() map[string]any {
	return map[string]any{
		"_primary_community": "nr",
		"accessRights":       ref("c-abf2"),
		"control_number":     "411100",
		"creator":            []any{map[string]any{"name": "Daniel Kopecký"}},
		"dateIssued":         "2010-07-01",
		"keywords":           []any{map[string]any{"cs": "1", "en": "1"}},
		"language":           ref("cze"),
		"provider":           ref("61384984"),
		"resourceType":       ref("bakalarske-prace"),
		"title":              []any{map[string]any{"cs": "Testovací záznam", "en": "Test record"}},
	}
}

func load(doc map[string]any) (map[string]any, error) {
	now := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return CommonSchema().Load(context.Background(), doc, schema.WithResolver(resolver()), schema.WithNow(now))
}

func TestCommonSchemaMirrorsProviderIntoEntities(t *testing.T) {
	out, err := load(baseRecord())
	require.NoError(t, err)

	provider := out[FieldProvider].([]any)
	entities := out[FieldEntities].([]any)
	require.Equal(t, provider, entities)
	require.Equal(t, "61384984", entities[0].(map[string]any)["ico"])

	entities[0].(map[string]any)["ico"] = "changed"
	require.Equal(t, "61384984", provider[0].(map[string]any)["ico"])
}

func TestCommonSchemaRequiredFields(t *testing.T) {
	for _, field := range []string{"title", "creator", "dateIssued", "language", "provider", "resourceType", "accessRights"} {
		t.Run(field, func(t *testing.T) {
			doc := baseRecord()
			delete(doc, field)
			_, err := load(doc)
			ve, ok := schema.AsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			require.True(t, ve.Has(field, schema.ConstraintRequired), "errors: %v", ve.Fields())
		})
	}
}

func TestCommonSchemaRejectsUnknownAndEmptyReferences(t *testing.T) {
	doc := baseRecord()
	doc["unexpected"] = "x"
	doc["language"] = []any{}
	_, err := load(doc)
	ve, ok := schema.AsValidationError(err)
	require.True(t, ok)
	require.True(t, ve.Has("unexpected", schema.ConstraintUnknownField))
	require.True(t, ve.Has("language", schema.ConstraintMinItems))
}

func TestMirrorEntitiesWithoutProvider(t *testing.T) {
	doc := map[string]any{FieldEntities: []any{"stale"}}
	require.NoError(t, MirrorEntities(doc))
	_, present := doc[FieldEntities]
	require.False(t, present)
}
