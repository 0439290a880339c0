package core

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Narodni-repozitar/nr-Nresults/internal/jsonschema"
	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
	"github.com/Narodni-repozitar/nr-Nresults/internal/taxonomy"
)

// Defaults used to build canonical record URLs.
const (
	DefaultScheme     = "http"
	DefaultServerName = "127.0.0.1:5000"
)

// Archiver keeps a copy of every committed record revision.
type Archiver interface {
	Archive(ctx context.Context, pid PersistentIdentifier, rec Record) error
}

// Service exposes transactional record operations on top of the installed
// record types.
type Service struct {
	store   PersistentStore
	engine  *RulesEngine
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder

	taxonomy *taxonomy.Service
	resolver schema.Resolver
	search   *search.Engine
	archiver Archiver
	scheme   string
	server   string
	strict   bool

	mu          sync.RWMutex
	plugins     map[string]PluginMetadata
	recordTypes map[string]RecordType
	minters     map[string]Minter
	fetchers    map[string]Fetcher
	config      AppConfig
	jsonSchemas *jsonschema.Registry
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithTaxonomy wires the taxonomy service used to dereference term links and
// to update terms.
func WithTaxonomy(svc *taxonomy.Service) Option {
	return func(s *Service) {
		s.taxonomy = svc
		if svc != nil && s.resolver == nil {
			s.resolver = svc
		}
	}
}

// WithResolver overrides the reference resolver handed to metadata schemas.
func WithResolver(resolver schema.Resolver) Option {
	return func(s *Service) { s.resolver = resolver }
}

// WithSearchEngine indexes committed records into engine.
func WithSearchEngine(engine *search.Engine) Option {
	return func(s *Service) { s.search = engine }
}

// WithArchiver stores every committed revision through archiver.
func WithArchiver(archiver Archiver) Option {
	return func(s *Service) { s.archiver = archiver }
}

// WithServer sets the scheme and host used by CanonicalURL.
func WithServer(scheme, serverName string) Option {
	return func(s *Service) {
		if scheme != "" {
			s.scheme = scheme
		}
		if serverName != "" {
			s.server = serverName
		}
	}
}

// WithStrictJSONSchema validates every published document against its JSON
// Schema before it is stored.
func WithStrictJSONSchema(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

type rulesEngineProvider interface {
	RulesEngine() *RulesEngine
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		clock:       ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:      noopLogger{},
		metrics:     noopMetricsRecorder{},
		tracer:      noopTracer{},
		audit:       noopAuditRecorder{},
		scheme:      DefaultScheme,
		server:      DefaultServerName,
		plugins:     make(map[string]PluginMetadata),
		recordTypes: make(map[string]RecordType),
		minters:     make(map[string]Minter),
		fetchers:    make(map[string]Fetcher),
		config:      newAppConfig(),
		jsonSchemas: jsonschema.NewRegistry(),
	}
	if p, ok := store.(rulesEngineProvider); ok {
		s.engine = p.RulesEngine()
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine != nil && s.taxonomy != nil && !slices.Contains(s.engine.Rules(), "reference_integrity") {
		s.engine.Register(ReferenceIntegrityRule(s.taxonomy))
	}
	return s
}

// Store returns the underlying persistent store.
func (s *Service) Store() PersistentStore { return s.store }

// Taxonomy returns the wired taxonomy service, if any.
func (s *Service) Taxonomy() *taxonomy.Service { return s.taxonomy }

// SearchEngine returns the wired search engine, if any.
func (s *Service) SearchEngine() *search.Engine { return s.search }

// InstallPlugin registers a plugin and merges its contributions. Installing the
// same plugin twice fails.
func (s *Service) InstallPlugin(plugin Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, fmt.Errorf("plugin cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plugins[plugin.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", plugin.Name())
	}

	registry := NewPluginRegistry()
	if err := plugin.Register(registry); err != nil {
		return PluginMetadata{}, fmt.Errorf("register plugin %s: %w", plugin.Name(), err)
	}
	for name := range registry.recordTypes {
		if _, exists := s.recordTypes[name]; exists {
			return PluginMetadata{}, fmt.Errorf("record type %s already provided by another plugin", name)
		}
	}
	for url, doc := range registry.jsonSchemas {
		if s.jsonSchemas.Has(url) {
			continue
		}
		if err := s.jsonSchemas.Add(url, doc); err != nil {
			return PluginMetadata{}, err
		}
	}
	if len(registry.rules) > 0 {
		if s.engine == nil {
			return PluginMetadata{}, fmt.Errorf("plugin %s contributes rules but the store has no rules engine", plugin.Name())
		}
		for _, rule := range registry.rules {
			s.engine.Register(rule)
		}
	}
	for name, rt := range registry.recordTypes {
		s.recordTypes[name] = rt
	}
	for name, m := range registry.minters {
		s.minters[name] = m
	}
	for name, f := range registry.fetchers {
		s.fetchers[name] = f
	}
	s.config.merge(registry)

	meta := registry.metadata(plugin)
	s.plugins[plugin.Name()] = meta
	s.logger.Info("core.plugin.installed", "plugin", meta.Name, "version", meta.Version, "record_types", meta.RecordTypes)
	return meta, nil
}

// RegisteredPlugins returns metadata describing installed plugins ordered by name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Config returns a copy of the merged plugin configuration.
func (s *Service) Config() AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.clone()
}

// RecordType looks up an installed record type.
func (s *Service) RecordType(name string) (RecordType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.recordTypes[name]
	return rt, ok
}

// RecordTypes lists installed record types ordered by name.
func (s *Service) RecordTypes() []RecordType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RecordType, 0, len(s.recordTypes))
	for _, rt := range s.recordTypes {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) recordType(name string) (RecordType, error) {
	rt, ok := s.RecordType(name)
	if !ok {
		return RecordType{}, fmt.Errorf("unknown record type %q", name)
	}
	return rt, nil
}

func (s *Service) recordTypeForPID(pidType string) (RecordType, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rt := range s.recordTypes {
		if rt.PIDType == pidType {
			return rt, false, nil
		}
		if rt.DraftPIDType != "" && rt.DraftPIDType == pidType {
			return rt, true, nil
		}
	}
	return RecordType{}, false, fmt.Errorf("no record type uses pid type %q", pidType)
}

// Minter returns a named minter.
func (s *Service) Minter(name string) (Minter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.minters[name]
	return m, ok
}

// Fetcher returns a named fetcher.
func (s *Service) Fetcher(name string) (Fetcher, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fetchers[name]
	return f, ok
}

// JSONSchemas exposes the registry of plugin JSON Schemas.
func (s *Service) JSONSchemas() *jsonschema.Registry { return s.jsonSchemas }

// Endpoint looks up a published or draft endpoint by name.
func (s *Service) Endpoint(name string) (Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ep, ok := s.config.RestEndpoints[name]; ok {
		return ep, true
	}
	ep, ok := s.config.DraftEndpoints[name]
	return ep, ok
}

// CanonicalURL returns the public URL of a published record.
func (s *Service) CanonicalURL(rec Record) (string, error) {
	rt, err := s.recordType(rec.Type)
	if err != nil {
		return "", err
	}
	cn := rec.ControlNumber()
	if cn == "" {
		return "", fmt.Errorf("record %s has no control number", rec.ID)
	}
	route := strings.TrimRight(rt.ItemRoute, "/")
	return fmt.Sprintf("%s://%s%s/%s", s.scheme, s.server, route, cn), nil
}

// FetchPID extracts the identifier of data with the named fetcher.
func (s *Service) FetchPID(_ context.Context, fetcherName, recordUUID string, data map[string]any) (FetchedPID, error) {
	f, ok := s.Fetcher(fetcherName)
	if !ok {
		return FetchedPID{}, fmt.Errorf("unknown fetcher %q", fetcherName)
	}
	return f(recordUUID, data)
}
