package taxonomy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/persistence/memory"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

const seed = `
taxonomies:
  - code: test_taxonomy
    extra:
      title: {cs: test_taxonomy, en: test_taxonomy}
    terms:
      - slug: c_abf2
        extra:
          title: {cs: otevřený přístup, en: open access}
      - slug: "61384984"
        extra:
          title: {cs: Akademie múzických umění v Praze, en: Academy of Performing Arts in Prague}
          aliases: [AMU]
          provider: true
      - slug: Bakalářské práce
        extra:
          title: {cs: Bakalářské práce}
        children:
          - slug: A
            extra:
              title: {cs: certifikovaná metodika (NmetC)}
              rank: 3
`

func newService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(memory.NewStore(nil), Options{})
	stats, err := svc.Import(context.Background(), strings.NewReader(seed))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.Taxonomies != 1 || stats.Created != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	return svc
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"c_abf2":                            "c-abf2",
		"bakalarske_prace":                  "bakalarske-prace",
		"A":                                 "a",
		"Bakalářské práce":                  "bakalarske-prace",
		"O_herectvi-alternativniho-divadla": "o-herectvi-alternativniho-divadla",
		"  --x__y--  ":                      "x-y",
		"61384984":                          "61384984",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
	if got := SlugifyPath("/Bakalářské práce/A/"); got != "bakalarske-prace/a" {
		t.Fatalf("unexpected path slug %q", got)
	}
}

func TestDereferenceRootTerm(t *testing.T) {
	svc := newService(t)
	link := "http://127.0.0.1:5000/2.0/taxonomies/test_taxonomy/c-abf2"
	entries, err := svc.Dereference(context.Background(), link)
	if err != nil {
		t.Fatalf("dereference: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single entry, got %+v", entries)
	}
	e := entries[0]
	if e["is_ancestor"] != false || e["level"] != 1 {
		t.Fatalf("unexpected flags %+v", e)
	}
	if e["title"].(map[string]any)["en"] != "open access" {
		t.Fatalf("expected title, got %+v", e)
	}
	if e["links"].(map[string]any)["self"] != link {
		t.Fatalf("unexpected self link %+v", e["links"])
	}
}

func TestDereferenceChildIncludesAncestors(t *testing.T) {
	svc := newService(t)
	link := "http://127.0.0.1:5000/2.0/taxonomies/test_taxonomy/bakalarske-prace/a"
	entries, err := svc.Dereference(context.Background(), link)
	if err != nil {
		t.Fatalf("dereference: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected ancestor and term, got %+v", entries)
	}
	if entries[0]["is_ancestor"] != true || entries[0]["level"] != 1 {
		t.Fatalf("unexpected ancestor %+v", entries[0])
	}
	if entries[1]["is_ancestor"] != false || entries[1]["level"] != 2 || entries[1]["rank"] != float64(3) {
		t.Fatalf("unexpected term %+v", entries[1])
	}

	entries[1]["title"] = "mutated"
	again, err := svc.Dereference(context.Background(), link)
	if err != nil {
		t.Fatalf("cached dereference: %v", err)
	}
	if _, ok := again[1]["title"].(map[string]any); !ok {
		t.Fatalf("cache must hand out copies: %+v", again[1])
	}
	if svc.Cache().Len() == 0 {
		t.Fatalf("expected cached entry")
	}
}

func TestDereferenceFailures(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, link := range []string{
		"http://127.0.0.1:5000/other/test_taxonomy/c-abf2",
		"http://127.0.0.1:5000/2.0/taxonomies/test_taxonomy",
		"::not a url",
	} {
		if _, err := svc.Dereference(ctx, link); !errors.Is(err, ErrInvalidLink) {
			t.Fatalf("%s: expected invalid link, got %v", link, err)
		}
	}
	var nf domain.ErrNotFound
	if _, err := svc.Dereference(ctx, "http://127.0.0.1:5000/2.0/taxonomies/test_taxonomy/missing"); !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Dereference(ctx, "http://127.0.0.1:5000/2.0/taxonomies/test_taxonomy/a"); !errors.As(err, &nf) {
		t.Fatalf("child must be addressed by full path, got %v", err)
	}
}

func TestUpdateTermFlushesCache(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	link := "http://127.0.0.1:5000/2.0/taxonomies/test_taxonomy/c-abf2"
	if _, err := svc.Dereference(ctx, link); err != nil {
		t.Fatalf("dereference: %v", err)
	}
	if _, err := svc.UpdateTerm(ctx, "test_taxonomy", "c_abf2", map[string]any{"title": map[string]any{"en": "public"}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if svc.Cache().Len() != 0 {
		t.Fatalf("expected cache flush")
	}
	entries, err := svc.Dereference(ctx, link)
	if err != nil {
		t.Fatalf("dereference: %v", err)
	}
	if entries[0]["title"].(map[string]any)["en"] != "public" {
		t.Fatalf("expected refreshed title, got %+v", entries[0])
	}
}

func TestImportIsIdempotent(t *testing.T) {
	svc := newService(t)
	stats, err := svc.Import(context.Background(), strings.NewReader(seed))
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if stats.Taxonomies != 0 || stats.Created != 0 || stats.Updated != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := len(svc.Terms("test_taxonomy")); got != 4 {
		t.Fatalf("expected 4 terms, got %d", got)
	}
	if _, err := svc.Import(context.Background(), strings.NewReader("taxonomies:\n  - extra: {}\n")); err == nil {
		t.Fatalf("expected missing code error")
	}
	if _, err := svc.Import(context.Background(), strings.NewReader("unknown: 1\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := svc.ImportFile(context.Background(), "does-not-exist.yaml"); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestReferencesAndDescendants(t *testing.T) {
	svc := newService(t)
	base := "http://127.0.0.1:5000/2.0/taxonomies/test_taxonomy/"
	doc := map[string]any{
		"resourceType": []any{
			map[string]any{"is_ancestor": true, "links": map[string]any{"self": base + "bakalarske-prace"}},
			map[string]any{"is_ancestor": false, "links": map[string]any{"self": base + "bakalarske-prace/a"}},
		},
		"provider": []any{map[string]any{"links": map[string]any{"self": base + "61384984"}}},
		"related":  map[string]any{"links": map[string]any{"self": "https://example.org/x"}},
	}
	all := ExtractReferences(doc)
	if len(all) != 3 {
		t.Fatalf("expected three non-ancestor links, got %v", all)
	}
	refs := svc.References(doc)
	if len(refs) != 2 || refs[0] != base+"61384984" {
		t.Fatalf("unexpected term references %v", refs)
	}
	parent, ok := svc.Term("test_taxonomy", "Bakalářské práce")
	if !ok {
		t.Fatalf("expected parent term")
	}
	if got := svc.Descendants(parent); len(got) != 2 {
		t.Fatalf("expected parent and child, got %v", got)
	}
	if len(svc.Taxonomies()) != 1 {
		t.Fatalf("expected one taxonomy")
	}
}

func TestCreateTermValidation(t *testing.T) {
	svc := newService(t)
	if _, err := svc.CreateTerm(context.Background(), "test_taxonomy", "__", "", nil); err == nil {
		t.Fatalf("expected empty slug error")
	}
	if _, err := svc.CreateTaxonomy(context.Background(), "test_taxonomy", nil); err == nil {
		t.Fatalf("expected duplicate taxonomy error")
	}
}
