package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Narodni-repozitar/nr-Nresults/internal/logging"
)

// Errors returned by the engine.
var (
	ErrUnknownIndex = errors.New("unknown search index")
	ErrResultWindow = errors.New("result window is too large")
	ErrUnknownSort  = errors.New("unknown sort option")
	ErrInvalidQuery = errors.New("invalid query")
)

// DefaultMaxResultWindow bounds from+size when an index config leaves it unset.
const DefaultMaxResultWindow = 10000

// Request is a single search page.
type Request struct {
	Query   string
	Filters map[string][]string
	Sort    string
	Page    int
	Size    int
}

// Hit is one matching document.
type Hit struct {
	ID         string              `json:"id"`
	Score      float64             `json:"score"`
	Source     map[string]any      `json:"metadata"`
	Highlights map[string][]string `json:"highlight,omitempty"`
}

// Bucket is a facet value with its document count.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"doc_count"`
}

// Response is a page of hits plus facet buckets.
type Response struct {
	Total  uint64              `json:"total"`
	Page   int                 `json:"page"`
	Size   int                 `json:"size"`
	Sort   string              `json:"sort,omitempty"`
	Hits   []Hit               `json:"hits"`
	Facets map[string][]Bucket `json:"aggregations,omitempty"`
}

type index struct {
	cfg IndexConfig
	idx bleve.Index
}

// Engine owns a set of named bleve indexes. With an empty dir every index lives in memory.
type Engine struct {
	mu      sync.RWMutex
	dir     string
	indexes map[string]*index
	logger  *slog.Logger
}

// NewEngine constructs an engine storing indexes below dir.
func NewEngine(dir string, logger *slog.Logger) *Engine {
	return &Engine{dir: dir, indexes: make(map[string]*index), logger: logging.OrDiscard(logger)}
}

// CreateIndex opens or creates the index described by cfg.
func (e *Engine) CreateIndex(cfg IndexConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.indexes[cfg.Name]; exists {
		return fmt.Errorf("search index %s already exists", cfg.Name)
	}
	im, err := cfg.Mapping.IndexMapping()
	if err != nil {
		return err
	}
	var idx bleve.Index
	if e.dir == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		path := filepath.Join(e.dir, cfg.Name)
		if _, statErr := os.Stat(path); statErr == nil {
			idx, err = bleve.Open(path)
		} else {
			if err = os.MkdirAll(e.dir, 0o755); err != nil {
				return fmt.Errorf("create search dir: %w", err)
			}
			idx, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return fmt.Errorf("open search index %s: %w", cfg.Name, err)
	}
	if cfg.MaxResultWindow <= 0 {
		cfg.MaxResultWindow = DefaultMaxResultWindow
	}
	e.indexes[cfg.Name] = &index{cfg: cfg, idx: idx}
	e.logger.Info("search.index.opened", "index", cfg.Name, "persistent", e.dir != "")
	return nil
}

// Indexes lists the open index names.
func (e *Engine) Indexes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.indexes))
	for name := range e.indexes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Config returns the config of an open index.
func (e *Engine) Config(name string) (IndexConfig, bool) {
	ix, err := e.lookup(name)
	if err != nil {
		return IndexConfig{}, false
	}
	return ix.cfg, true
}

func (e *Engine) lookup(name string) (*index, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ix, ok := e.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndex, name)
	}
	return ix, nil
}

// Index stores doc under id, replacing any previous version.
func (e *Engine) Index(_ context.Context, name, id string, doc map[string]any) error {
	ix, err := e.lookup(name)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode search document %s: %w", id, err)
	}
	entry := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		entry[k] = v
	}
	entry[SourceField] = string(raw)
	if err := ix.idx.Index(id, entry); err != nil {
		return fmt.Errorf("index %s/%s: %w", name, id, err)
	}
	return nil
}

// Delete removes id from the index. Missing documents are ignored.
func (e *Engine) Delete(_ context.Context, name, id string) error {
	ix, err := e.lookup(name)
	if err != nil {
		return err
	}
	if err := ix.idx.Delete(id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", name, id, err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (e *Engine) Count(name string) (uint64, error) {
	ix, err := e.lookup(name)
	if err != nil {
		return 0, err
	}
	return ix.idx.DocCount()
}

// Search runs req against the named index.
func (e *Engine) Search(ctx context.Context, name string, req Request) (Response, error) {
	ix, err := e.lookup(name)
	if err != nil {
		return Response{}, err
	}
	cfg := ix.cfg
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Size < 1 {
		req.Size = 10
	}
	// Bounds are checked before multiplying so huge pages cannot wrap around.
	if req.Size > cfg.MaxResultWindow || req.Page-1 > (cfg.MaxResultWindow-req.Size)/req.Size {
		return Response{}, fmt.Errorf("%w: page %d of size %d exceeds %d", ErrResultWindow, req.Page, req.Size, cfg.MaxResultWindow)
	}
	from := (req.Page - 1) * req.Size

	sortName := req.Sort
	if sortName == "" {
		if req.Query != "" {
			sortName = cfg.DefaultSort.Query
		} else {
			sortName = cfg.DefaultSort.NoQuery
		}
	}
	var sortFields []string
	if sortName != "" {
		opt, ok := cfg.SortOptions[sortName]
		if !ok {
			return Response{}, fmt.Errorf("%w: %s", ErrUnknownSort, sortName)
		}
		sortFields = opt.Fields
	}

	q, err := buildQuery(req)
	if err != nil {
		return Response{}, err
	}
	sr := bleve.NewSearchRequestOptions(q, req.Size, from, false)
	sr.Fields = []string{SourceField}
	if len(sortFields) > 0 {
		sr.SortBy(sortFields)
	}
	for facet, def := range cfg.Facets {
		size := def.Size
		if size <= 0 {
			size = 10
		}
		sr.AddFacet(facet, bleve.NewFacetRequest(def.Field, size))
	}
	if req.Query != "" && len(cfg.HighlightFields) > 0 {
		sr.Highlight = bleve.NewHighlight()
		for _, f := range cfg.HighlightFields {
			sr.Highlight.AddField(f)
		}
	}

	res, err := ix.idx.SearchInContext(ctx, sr)
	if err != nil {
		return Response{}, fmt.Errorf("search %s: %w", name, err)
	}
	out := Response{Total: res.Total, Page: req.Page, Size: req.Size, Sort: sortName, Hits: make([]Hit, 0, len(res.Hits))}
	for _, dm := range res.Hits {
		hit := Hit{ID: dm.ID, Score: dm.Score}
		if raw, ok := dm.Fields[SourceField].(string); ok {
			var doc map[string]any
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				e.logger.Warn("search.source.corrupt", "index", name, "id", dm.ID, "error", err)
			} else {
				hit.Source = Project(doc, cfg.SourceFields)
			}
		}
		if len(dm.Fragments) > 0 {
			hit.Highlights = make(map[string][]string, len(dm.Fragments))
			for field, fragments := range dm.Fragments {
				hit.Highlights[field] = append([]string(nil), fragments...)
			}
		}
		out.Hits = append(out.Hits, hit)
	}
	if len(res.Facets) > 0 {
		out.Facets = make(map[string][]Bucket, len(res.Facets))
		for facet, fr := range res.Facets {
			buckets := []Bucket{}
			if fr.Terms != nil {
				for _, tf := range fr.Terms.Terms() {
					buckets = append(buckets, Bucket{Key: tf.Term, Count: tf.Count})
				}
			}
			out.Facets[facet] = buckets
		}
	}
	return out, nil
}

func buildQuery(req Request) (query.Query, error) {
	var base query.Query
	if req.Query == "" {
		base = bleve.NewMatchAllQuery()
	} else {
		if err := checkGrouping(req.Query); err != nil {
			return nil, err
		}
		qs := bleve.NewQueryStringQuery(req.Query)
		if _, err := qs.Parse(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		base = qs
	}
	if len(req.Filters) == 0 {
		return base, nil
	}
	fields := make([]string, 0, len(req.Filters))
	for f := range req.Filters {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	conj := bleve.NewConjunctionQuery(base)
	for _, field := range fields {
		values := req.Filters[field]
		if len(values) == 0 {
			continue
		}
		terms := make([]query.Query, 0, len(values))
		for _, v := range values {
			tq := bleve.NewTermQuery(v)
			tq.SetField(field)
			terms = append(terms, tq)
		}
		conj.AddQuery(bleve.NewDisjunctionQuery(terms...))
	}
	return conj, nil
}

// checkGrouping rejects unescaped parentheses outside phrases. The query
// string syntax has no grouping and would otherwise search for them as terms.
func checkGrouping(q string) error {
	inPhrase := false
	for i := 0; i < len(q); i++ {
		switch q[i] {
		case '\\':
			i++
		case '"':
			inPhrase = !inPhrase
		case '(', ')':
			if !inPhrase {
				return fmt.Errorf("%w: grouping with parentheses is not supported", ErrInvalidQuery)
			}
		}
	}
	return nil
}

// Close closes every index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for name, ix := range e.indexes {
		if err := ix.idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(e.indexes, name)
	}
	return errors.Join(errs...)
}
