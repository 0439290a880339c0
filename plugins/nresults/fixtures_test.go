package nresults

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Narodni-repozitar/nr-Nresults/internal/core"
	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/persistence/memory"
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
	"github.com/Narodni-repozitar/nr-Nresults/internal/taxonomy"
)

const taxonomySeed = `
taxonomies:
  - code: test_taxonomy
    extra:
      title: {cs: test_taxonomy, en: test_taxonomy}
    terms:
      - slug: c_abf2
        extra:
          title: {cs: otevřený přístup, en: open access}
          relatedURI:
            coar: http://purl.org/coar/access_right/c_abf2
      - slug: bakalarske_prace
        extra:
          title: {cs: Bakalářské práce, en: Bachelor’s theses}
      - slug: "61384984"
        extra:
          title: {cs: Akademie múzických umění v Praze, en: Academy of Performing Arts in Prague}
          type: veřejná VŠ
          aliases: [AMU]
          ico: "61384984"
          provider: true
      - slug: cze
        extra:
          title: {cs: čeština, en: Czech}
      - slug: mdcr
        extra:
          title: {cs: Ministerstvo dopravy, en: Ministry of transport}
      - slug: C
        extra:
          title: {cs: Výsledek je užíván bez omezení okruhu uživatelů}
      - slug: A
        extra:
          title: {cs: certifikovaná metodika (NmetC)}
`

const termBase = "http://127.0.0.1:5000/2.0/taxonomies/test_taxonomy/"

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func termRef(slug string) []any {
	return []any{map[string]any{"is_ancestor": false, "links": map[string]any{"self": termBase + slug}}}
}

func baseJSON() map[string]any {
	return map[string]any{
		"_primary_community": "nr",
		"accessRights":       termRef("c-abf2"),
		"control_number":     "411100",
		"creator":            []any{map[string]any{"name": "Daniel Kopecký"}},
		"dateIssued":         "2010-07-01",
		"keywords": []any{
			map[string]any{"cs": "1", "en": "1"},
			map[string]any{"cs": "2", "en": "2"},
		},
		"language":     termRef("cze"),
		"provider":     termRef("61384984"),
		"resourceType": termRef("bakalarske-prace"),
		"title":        []any{map[string]any{"cs": "Testovací záznam", "en": "Test record"}},
	}
}

func baseNResult() map[string]any {
	return map[string]any{
		"N_certifyingAuthority":  []any{map[string]any{"links": map[string]any{"self": termBase + "mdcr"}}},
		"N_dateCertified":        "2020-03-19",
		"N_economicalParameters": "Výsledky diagnostiky staveb jsou podkladem pro návrh vhodného způsobu opatření či zásahu.",
		"N_technicalParameters":  "Metodika uvádí jak postupovat při použití kombinace dvou nedestruktivních diagnostických zařízení.",
		"N_internalID":           "N-2020-FWD-GPR",
		"N_referenceNumber":      "1/2020-710-VV/1",
		"N_resultUsage":          []any{map[string]any{"links": map[string]any{"self": termBase + "c"}}},
		"N_type":                 []any{map[string]any{"links": map[string]any{"self": termBase + "a"}}},
	}
}

func fullRecord() map[string]any {
	doc := baseJSON()
	for k, v := range baseNResult() {
		doc[k] = v
	}
	return doc
}

type harness struct {
	store    *memory.Store
	taxonomy *taxonomy.Service
	search   *search.Engine
	svc      *core.Service
}

func newHarness(t *testing.T, opts ...core.Option) *harness {
	t.Helper()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	tax := taxonomy.NewService(store, taxonomy.Options{})
	_, err := tax.Import(context.Background(), strings.NewReader(taxonomySeed))
	require.NoError(t, err)
	engine := search.NewEngine("", nil)
	t.Cleanup(func() { _ = engine.Close() })

	base := []core.Option{
		core.WithTaxonomy(tax),
		core.WithSearchEngine(engine),
		core.WithClock(core.ClockFunc(func() time.Time { return fixedNow })),
	}
	svc := core.NewService(store, append(base, opts...)...)
	_, err = svc.InstallPlugin(New())
	require.NoError(t, err)
	return &harness{store: store, taxonomy: tax, search: engine, svc: svc}
}
