// Package rest serves the record endpoints declared by installed record types
// over HTTP: search and CRUD for published records and drafts, draft
// publishing, taxonomy term resolution and the registered JSON Schemas.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Narodni-repozitar/nr-Nresults/internal/core"
	"github.com/Narodni-repozitar/nr-Nresults/internal/jsonschema"
	"github.com/Narodni-repozitar/nr-Nresults/internal/logging"
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
	"github.com/Narodni-repozitar/nr-Nresults/internal/taxonomy"
)

// Records is the service surface used by the handlers; *core.Service
// implements it.
type Records interface {
	Config() core.AppConfig
	CreateRecord(ctx context.Context, typeName string, data map[string]any) (core.Record, core.Result, error)
	CreateDraft(ctx context.Context, typeName string, data map[string]any) (core.Record, core.Result, error)
	ResolvePID(ctx context.Context, pidType, pidValue string) (core.PersistentIdentifier, core.Record, error)
	GetRecordByID(ctx context.Context, id string) (core.Record, error)
	UpdateRecord(ctx context.Context, pidType, pidValue string, data map[string]any) (core.Record, core.Result, error)
	DeleteRecord(ctx context.Context, pidType, pidValue string) (core.Result, error)
	PublishDraft(ctx context.Context, draftPIDType, draftPIDValue string) (core.Record, core.Result, error)
	Search(ctx context.Context, endpoint string, req search.Request) (search.Response, error)
	RecordType(name string) (core.RecordType, bool)
	JSONSchemas() *jsonschema.Registry
	Taxonomy() *taxonomy.Service
	UpdateTerm(ctx context.Context, taxonomyCode, slug string, extra map[string]any) (core.Term, []string, error)
}

// SchemasPrefix is the route under which JSON Schemas are served.
const SchemasPrefix = "/schemas/"

// Handler routes record endpoint requests.
type Handler struct {
	records Records
	logger  *slog.Logger
	router  chi.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler builds the router for every endpoint in the records config.
func NewHandler(records Records, opts ...Option) *Handler {
	h := &Handler{records: records}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.OrDiscard(h.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.StripSlashes)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	cfg := records.Config()
	for _, ep := range cfg.RestEndpoints {
		h.mountEndpoint(r, ep)
	}
	for _, ep := range cfg.DraftEndpoints {
		h.mountEndpoint(r, ep)
	}
	if tax := records.Taxonomy(); tax != nil {
		prefix := strings.TrimRight(tax.Prefix(), "/")
		r.Get(prefix+"/{code}/*", h.getTerm)
		r.Put(prefix+"/{code}/*", h.putTerm)
	}
	r.Get(SchemasPrefix+"*", h.getSchema)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "The requested URL was not found on the server.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "The method is not allowed for the requested URL.")
	})
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) mountEndpoint(r chi.Router, ep core.Endpoint) {
	list := strings.TrimRight(ep.ListRoute, "/")
	item := strings.TrimRight(ep.ItemRoute, "/")
	r.Get(list, h.listRecords(ep))
	r.Post(list, h.createRecord(ep))
	r.Get(item, h.getRecord(ep))
	r.Put(item, h.updateRecord(ep))
	r.Delete(item, h.deleteRecord(ep))
	if ep.Draft {
		r.Post(item+"/actions/publish", h.publishDraft(ep))
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info("rest.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// baseURL derives scheme and host of the incoming request.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// itemURL renders an item route for pidValue.
func itemURL(r *http.Request, ep core.Endpoint, pidValue string) string {
	return baseURL(r) + strings.Replace(strings.TrimRight(ep.ItemRoute, "/"), "{pid_value}", pidValue, 1)
}
