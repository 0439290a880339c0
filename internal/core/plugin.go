package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
)

// Plugin describes a record-type module contributing identifiers, endpoints,
// search configuration, schemas and rules.
type Plugin interface {
	Name() string
	Version() string
	Register(registry *PluginRegistry) error
}

// Minter assigns the persistent identifier of a new record inside tx. It writes
// the minted value back into data under control_number.
type Minter func(tx Transaction, recordUUID string, data map[string]any) (PersistentIdentifier, error)

// FetchedPID is the identifier a Fetcher reads out of record data.
type FetchedPID struct {
	Provider string `json:"provider"`
	PIDType  string `json:"pid_type"`
	PIDValue string `json:"pid_value"`
}

// Fetcher extracts the identifier of a record without touching storage.
type Fetcher func(recordUUID string, data map[string]any) (FetchedPID, error)

// RecordType binds a metadata schema to its identifiers and routes.
type RecordType struct {
	Name            string
	PIDType         string
	DraftPIDType    string
	Minter          string
	Fetcher         string
	DraftMinter     string
	DraftFetcher    string
	AllowedSchemas  []string
	PreferredSchema string
	JSONSchema      string
	Schema          *schema.Schema
	ItemRoute       string
	SearchIndex     string
	DraftIndex      string
}

func (rt RecordType) validate() error {
	switch {
	case strings.TrimSpace(rt.Name) == "":
		return fmt.Errorf("record type name is required")
	case rt.PIDType == "":
		return fmt.Errorf("record type %s: pid type is required", rt.Name)
	case rt.Minter == "" || rt.Fetcher == "":
		return fmt.Errorf("record type %s: minter and fetcher are required", rt.Name)
	case rt.Schema == nil:
		return fmt.Errorf("record type %s: metadata schema is required", rt.Name)
	case rt.PreferredSchema == "":
		return fmt.Errorf("record type %s: preferred schema is required", rt.Name)
	}
	return nil
}

// AllowsSchema reports whether url is an accepted $schema for the type.
func (rt RecordType) AllowsSchema(url string) bool {
	if url == rt.PreferredSchema {
		return true
	}
	for _, allowed := range rt.AllowedSchemas {
		if allowed == url {
			return true
		}
	}
	return false
}

// Endpoint describes a REST endpoint serving a record type.
type Endpoint struct {
	Name              string `json:"-"`
	RecordType        string `json:"record_type"`
	Draft             bool   `json:"draft,omitempty"`
	PIDType           string `json:"pid_type"`
	PIDMinter         string `json:"pid_minter"`
	PIDFetcher        string `json:"pid_fetcher"`
	ListRoute         string `json:"list_route"`
	ItemRoute         string `json:"item_route"`
	SearchIndex       string `json:"search_index"`
	DefaultMediaType  string `json:"default_media_type"`
	MaxResultWindow   int    `json:"max_result_window"`
	PublishedEndpoint string `json:"published_endpoint,omitempty"`
}

// PluginRegistry accumulates plugin contributions during registration.
type PluginRegistry struct {
	recordTypes    map[string]RecordType
	minters        map[string]Minter
	fetchers       map[string]Fetcher
	endpoints      map[string]Endpoint
	draftEndpoints map[string]Endpoint
	indexes        map[string]search.IndexConfig
	facets         map[string]map[string]search.FacetDef
	sortOptions    map[string]map[string]search.SortOption
	defaultSort    map[string]search.DefaultSort
	jsonSchemas    map[string][]byte
	rules          []Rule
}

// NewPluginRegistry constructs a plugin registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		recordTypes:    make(map[string]RecordType),
		minters:        make(map[string]Minter),
		fetchers:       make(map[string]Fetcher),
		endpoints:      make(map[string]Endpoint),
		draftEndpoints: make(map[string]Endpoint),
		indexes:        make(map[string]search.IndexConfig),
		facets:         make(map[string]map[string]search.FacetDef),
		sortOptions:    make(map[string]map[string]search.SortOption),
		defaultSort:    make(map[string]search.DefaultSort),
		jsonSchemas:    make(map[string][]byte),
	}
}

// RegisterRecordType adds a record type.
func (r *PluginRegistry) RegisterRecordType(rt RecordType) error {
	if err := rt.validate(); err != nil {
		return err
	}
	if _, exists := r.recordTypes[rt.Name]; exists {
		return fmt.Errorf("record type %s already registered", rt.Name)
	}
	r.recordTypes[rt.Name] = rt
	return nil
}

// RegisterMinter stores a named minter.
func (r *PluginRegistry) RegisterMinter(name string, m Minter) error {
	if name == "" || m == nil {
		return fmt.Errorf("minter name and function are required")
	}
	if _, exists := r.minters[name]; exists {
		return fmt.Errorf("minter %s already registered", name)
	}
	r.minters[name] = m
	return nil
}

// RegisterFetcher stores a named fetcher.
func (r *PluginRegistry) RegisterFetcher(name string, f Fetcher) error {
	if name == "" || f == nil {
		return fmt.Errorf("fetcher name and function are required")
	}
	if _, exists := r.fetchers[name]; exists {
		return fmt.Errorf("fetcher %s already registered", name)
	}
	r.fetchers[name] = f
	return nil
}

// RegisterEndpoint adds a published or draft REST endpoint keyed by name.
func (r *PluginRegistry) RegisterEndpoint(name string, ep Endpoint) error {
	if name == "" || ep.ListRoute == "" || ep.ItemRoute == "" {
		return fmt.Errorf("endpoint %q: name, list route and item route are required", name)
	}
	ep.Name = name
	if ep.Draft {
		r.draftEndpoints[name] = ep
	} else {
		r.endpoints[name] = ep
	}
	return nil
}

// RegisterSearchIndex declares a search index mapping.
func (r *PluginRegistry) RegisterSearchIndex(cfg search.IndexConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("search index name is required")
	}
	r.indexes[cfg.Name] = cfg
	return nil
}

// RegisterFacets merges facets into the given search index.
func (r *PluginRegistry) RegisterFacets(index string, facets map[string]search.FacetDef) {
	current := r.facets[index]
	if current == nil {
		current = make(map[string]search.FacetDef, len(facets))
		r.facets[index] = current
	}
	for k, v := range facets {
		current[k] = v
	}
}

// RegisterSortOptions merges sort options into the given search index.
func (r *PluginRegistry) RegisterSortOptions(index string, options map[string]search.SortOption) {
	current := r.sortOptions[index]
	if current == nil {
		current = make(map[string]search.SortOption, len(options))
		r.sortOptions[index] = current
	}
	for k, v := range options {
		current[k] = v
	}
}

// RegisterDefaultSort sets the default sort of a search index.
func (r *PluginRegistry) RegisterDefaultSort(index string, ds search.DefaultSort) {
	r.defaultSort[index] = ds
}

// RegisterJSONSchema stores a JSON Schema document under its URL.
func (r *PluginRegistry) RegisterJSONSchema(url string, document []byte) error {
	if url == "" || len(document) == 0 {
		return fmt.Errorf("json schema url and document are required")
	}
	r.jsonSchemas[url] = append([]byte(nil), document...)
	return nil
}

// RegisterRule adds an in-transaction rule contributed by the plugin.
func (r *PluginRegistry) RegisterRule(rule Rule) {
	if rule == nil {
		return
	}
	r.rules = append(r.rules, rule)
}

// Rules returns a copy of registered rules.
func (r *PluginRegistry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// PluginMetadata describes an installed plugin.
type PluginMetadata struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	RecordTypes []string `json:"record_types"`
	Minters     []string `json:"minters"`
	Fetchers    []string `json:"fetchers"`
	Endpoints   []string `json:"endpoints"`
	JSONSchemas []string `json:"json_schemas"`
	Rules       []string `json:"rules"`
}

func (r *PluginRegistry) metadata(p Plugin) PluginMetadata {
	meta := PluginMetadata{
		Name:        p.Name(),
		Version:     p.Version(),
		RecordTypes: sortedKeys(r.recordTypes),
		Minters:     sortedKeys(r.minters),
		Fetchers:    sortedKeys(r.fetchers),
		Endpoints:   append(sortedKeys(r.endpoints), sortedKeys(r.draftEndpoints)...),
		JSONSchemas: sortedKeys(r.jsonSchemas),
	}
	for _, rule := range r.rules {
		meta.Rules = append(meta.Rules, rule.Name())
	}
	return meta
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
