// Package taxonomy stores hierarchical controlled vocabularies and expands
// term links embedded in records into their dereferenced form.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Narodni-repozitar/nr-Nresults/internal/logging"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// Defaults matching the public taxonomy API layout.
const (
	DefaultBaseURL = "http://127.0.0.1:5000"
	DefaultPrefix  = "/2.0/taxonomies/"
)

// ErrInvalidLink is returned for links outside the taxonomy URL space.
var ErrInvalidLink = errors.New("invalid taxonomy link")

// Options configures a Service.
type Options struct {
	BaseURL  string
	Prefix   string
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Service resolves and maintains taxonomy terms on top of a persistent store.
type Service struct {
	store  domain.PersistentStore
	base   string
	prefix string
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs a taxonomy service.
func NewService(store domain.PersistentStore, opts Options) *Service {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	logger := logging.OrDiscard(opts.Logger)
	return &Service{
		store:  store,
		base:   base,
		prefix: prefix,
		cache:  NewCache(opts.CacheTTL, logger),
		logger: logger,
	}
}

// Cache exposes the dereference cache.
func (s *Service) Cache() *Cache { return s.cache }

// Prefix returns the URL path prefix of term links.
func (s *Service) Prefix() string { return s.prefix }

// Link returns the canonical link of term.
func (s *Service) Link(term domain.Term) string {
	return s.base + s.prefix + term.Taxonomy + "/" + term.Path
}

// ParseLink splits a term link into taxonomy code and slug path. Any scheme and
// host are accepted; the path must live under the configured prefix.
func (s *Service) ParseLink(link string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidLink, link)
	}
	if !strings.HasPrefix(u.Path, s.prefix) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidLink, link)
	}
	rest := strings.Trim(strings.TrimPrefix(u.Path, s.prefix), "/")
	code, path, ok := strings.Cut(rest, "/")
	if !ok || code == "" || path == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidLink, link)
	}
	return code, SlugifyPath(path), nil
}

// IsTermLink reports whether link points into the taxonomy URL space.
func (s *Service) IsTermLink(link string) bool {
	_, _, err := s.ParseLink(link)
	return err == nil
}

// CreateTaxonomy stores a new taxonomy.
func (s *Service) CreateTaxonomy(ctx context.Context, code string, extra map[string]any) (domain.Taxonomy, error) {
	var created domain.Taxonomy
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateTaxonomy(domain.Taxonomy{Code: code, Extra: domain.CloneDocument(extra)})
		return err
	})
	if err != nil {
		return domain.Taxonomy{}, err
	}
	s.logger.Info("taxonomy.created", "taxonomy", code)
	return created, nil
}

// CreateTerm stores a term under parent (empty for a root term). Slugs are normalized.
func (s *Service) CreateTerm(ctx context.Context, taxonomy, slug, parent string, extra map[string]any) (domain.Term, error) {
	term := domain.Term{
		Taxonomy: taxonomy,
		Slug:     Slugify(slug),
		Parent:   Slugify(parent),
		Extra:    domain.CloneDocument(extra),
	}
	if term.Slug == "" {
		return domain.Term{}, fmt.Errorf("term slug %q is empty after normalization", slug)
	}
	var created domain.Term
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateTerm(term)
		return err
	})
	if err != nil {
		return domain.Term{}, err
	}
	s.logger.Debug("taxonomy.term.created", "taxonomy", taxonomy, "path", created.Path)
	return created, nil
}

// UpdateTerm replaces the extra data of a term and drops cached dereferences.
func (s *Service) UpdateTerm(ctx context.Context, taxonomy, slug string, extra map[string]any) (domain.Term, error) {
	var updated domain.Term
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateTerm(taxonomy, Slugify(slug), func(t *domain.Term) error {
			t.Extra = domain.CloneDocument(extra)
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Term{}, err
	}
	s.cache.Flush()
	s.logger.Info("taxonomy.term.updated", "taxonomy", taxonomy, "path", updated.Path)
	return updated, nil
}

// Term looks up a term by taxonomy and slug.
func (s *Service) Term(taxonomy, slug string) (domain.Term, bool) {
	return s.store.GetTerm(taxonomy, Slugify(slug))
}

// Terms lists the terms of a taxonomy ordered by path.
func (s *Service) Terms(taxonomy string) []domain.Term {
	return s.store.ListTerms(taxonomy)
}

// Taxonomies lists every taxonomy.
func (s *Service) Taxonomies() []domain.Taxonomy {
	return s.store.ListTaxonomies()
}

// Descendants returns the links of term and every term below it.
func (s *Service) Descendants(term domain.Term) []string {
	var out []string
	for _, t := range s.store.ListTerms(term.Taxonomy) {
		if t.Path == term.Path || strings.HasPrefix(t.Path, term.Path+"/") {
			out = append(out, s.Link(t))
		}
	}
	sort.Strings(out)
	return out
}

// Dereference resolves link into the ancestors of the term (is_ancestor true,
// root first) followed by the term itself. Each entry carries the term's extra
// data plus level and links.self.
func (s *Service) Dereference(_ context.Context, link string) ([]map[string]any, error) {
	if cached, ok := s.cache.Get(link); ok {
		return cached, nil
	}
	code, path, err := s.ParseLink(link)
	if err != nil {
		return nil, err
	}
	segments := strings.Split(path, "/")
	term, ok := s.store.GetTerm(code, segments[len(segments)-1])
	if !ok || term.Path != path {
		return nil, domain.ErrNotFound{Entity: domain.EntityTerm, ID: code + "/" + path}
	}
	chain := []domain.Term{term}
	for current := term; current.Parent != ""; {
		parent, ok := s.store.GetTerm(code, current.Parent)
		if !ok {
			return nil, domain.ErrNotFound{Entity: domain.EntityTerm, ID: code + "/" + current.Parent}
		}
		chain = append(chain, parent)
		current = parent
	}
	entries := make([]map[string]any, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		entries = append(entries, s.entry(chain[i], i != 0))
	}
	s.cache.Set(link, entries)
	return entries, nil
}

func (s *Service) entry(term domain.Term, ancestor bool) map[string]any {
	out := domain.CloneDocument(term.Extra)
	if out == nil {
		out = make(map[string]any, 3)
	}
	out["is_ancestor"] = ancestor
	out["level"] = term.Level
	out["links"] = map[string]any{"self": s.Link(term)}
	return out
}

// References lists the distinct term links embedded in doc as non-ancestor
// entries, sorted.
func (s *Service) References(doc map[string]any) []string {
	var out []string
	for _, link := range ExtractReferences(doc) {
		if s.IsTermLink(link) {
			out = append(out, link)
		}
	}
	return out
}

// ExtractReferences walks doc and returns the distinct links.self values of
// every embedded entry not flagged is_ancestor, sorted.
func ExtractReferences(doc map[string]any) []string {
	seen := make(map[string]struct{})
	var walk func(v any)
	walk = func(v any) {
		switch typed := v.(type) {
		case map[string]any:
			if links, ok := typed["links"].(map[string]any); ok {
				if self, ok := links["self"].(string); ok && self != "" {
					if ancestor, _ := typed["is_ancestor"].(bool); !ancestor {
						seen[self] = struct{}{}
					}
				}
			}
			for _, child := range typed {
				walk(child)
			}
		case []any:
			for _, child := range typed {
				walk(child)
			}
		case []map[string]any:
			for _, child := range typed {
				walk(child)
			}
		}
	}
	walk(doc)
	out := make([]string, 0, len(seen))
	for link := range seen {
		out = append(out, link)
	}
	sort.Strings(out)
	return out
}
