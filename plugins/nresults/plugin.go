// Package nresults registers the N-results record type (certified
// methodologies and other applied research results) with the record host:
// identifiers, metadata schema, REST endpoints and search configuration.
package nresults

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/Narodni-repozitar/nr-Nresults/internal/core"
	"github.com/Narodni-repozitar/nr-Nresults/plugins/nrcommon"
)

// Identifier types and the names minters and fetchers are registered under.
const (
	PIDType      = "nrnrs"
	DraftPIDType = "dnrnrs"

	MinterName       = "nr_nresults"
	FetcherName      = "nr_nresults"
	DraftMinterName  = "dnrnrs_minter"
	DraftFetcherName = "dnrnrs_fetcher"
)

// Record type, endpoints and indexes.
const (
	RecordTypeName     = "nresults"
	EndpointName       = "nresults"
	DraftEndpointName  = "draft-nresults"
	ItemRoute          = "/nr/nresults/"
	DraftItemRoute     = "/drafts/nr/nresults/"
	SearchIndex        = "nr_nresults-nr-nresults-v1.0.0"
	DraftSearchIndex   = "draft-nr_nresults-nr-nresults-v1.0.0"
	MaxResultWindow    = 500000
	DefaultMediaType   = "application/json"
	DefaultSchemasHost = "nusl.cz"
	schemaPath         = "schemas/nr_nresults/nr-nresults-v1.0.0.json"
)

//go:embed jsonschemas/nr-nresults-v1.0.0.json
var recordJSONSchema []byte

// Plugin is the N-results record module.
type Plugin struct {
	host string
}

// Option configures the plugin.
type Option func(*Plugin)

// WithSchemasHost sets the host of the record $schema URL.
func WithSchemasHost(host string) Option {
	return func(p *Plugin) {
		if h := strings.Trim(strings.TrimSpace(host), "/"); h != "" {
			p.host = h
		}
	}
}

// New constructs the plugin.
func New(opts ...Option) Plugin {
	p := Plugin{host: DefaultSchemasHost}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "nr-nresults" }

// Version returns the plugin version.
func (Plugin) Version() string { return "1.0.0" }

// SchemaURL is the allowed and preferred $schema of records.
func (p Plugin) SchemaURL() string {
	return fmt.Sprintf("https://%s/%s", p.host, schemaPath)
}

// PublishedRecordType describes published N-results records.
func (p Plugin) PublishedRecordType() core.RecordType {
	return core.RecordType{
		Name:            RecordTypeName,
		PIDType:         PIDType,
		DraftPIDType:    DraftPIDType,
		Minter:          MinterName,
		Fetcher:         FetcherName,
		DraftMinter:     DraftMinterName,
		DraftFetcher:    DraftFetcherName,
		AllowedSchemas:  []string{p.SchemaURL()},
		PreferredSchema: p.SchemaURL(),
		JSONSchema:      p.SchemaURL(),
		Schema:          MetadataSchema(),
		ItemRoute:       ItemRoute,
		SearchIndex:     SearchIndex,
		DraftIndex:      DraftSearchIndex,
	}
}

// Register contributes the record type, identifiers, endpoints, search
// configuration and JSON Schema.
func (p Plugin) Register(registry *core.PluginRegistry) error {
	if err := registry.RegisterRecordType(p.PublishedRecordType()); err != nil {
		return err
	}
	for name, m := range map[string]core.Minter{
		MinterName:      nrcommon.Mint(PIDType),
		DraftMinterName: nrcommon.Mint(DraftPIDType),
	} {
		if err := registry.RegisterMinter(name, m); err != nil {
			return err
		}
	}
	for name, f := range map[string]core.Fetcher{
		FetcherName:      nrcommon.Fetch(PIDType),
		DraftFetcherName: nrcommon.Fetch(DraftPIDType),
	} {
		if err := registry.RegisterFetcher(name, f); err != nil {
			return err
		}
	}

	if err := registry.RegisterEndpoint(EndpointName, core.Endpoint{
		RecordType:       RecordTypeName,
		PIDType:          PIDType,
		PIDMinter:        MinterName,
		PIDFetcher:       FetcherName,
		ListRoute:        ItemRoute,
		ItemRoute:        ItemRoute + "{pid_value}",
		SearchIndex:      SearchIndex,
		DefaultMediaType: DefaultMediaType,
		MaxResultWindow:  MaxResultWindow,
	}); err != nil {
		return err
	}
	if err := registry.RegisterEndpoint(DraftEndpointName, core.Endpoint{
		RecordType:        RecordTypeName,
		Draft:             true,
		PIDType:           DraftPIDType,
		PIDMinter:         DraftMinterName,
		PIDFetcher:        DraftFetcherName,
		ListRoute:         DraftItemRoute,
		ItemRoute:         DraftItemRoute + "{pid_value}",
		SearchIndex:       DraftSearchIndex,
		DefaultMediaType:  DefaultMediaType,
		MaxResultWindow:   MaxResultWindow,
		PublishedEndpoint: EndpointName,
	}); err != nil {
		return err
	}

	for _, index := range []string{SearchIndex, DraftSearchIndex} {
		if err := registry.RegisterSearchIndex(IndexConfig(index)); err != nil {
			return err
		}
		registry.RegisterFacets(index, Facets())
		registry.RegisterSortOptions(index, SortOptions())
		registry.RegisterDefaultSort(index, DefaultSort())
	}

	return registry.RegisterJSONSchema(p.SchemaURL(), p.jsonSchema())
}

// jsonSchema returns the embedded JSON Schema with its $id on the configured host.
func (p Plugin) jsonSchema() []byte {
	if p.host == DefaultSchemasHost {
		return recordJSONSchema
	}
	return bytes.ReplaceAll(recordJSONSchema,
		[]byte("https://"+DefaultSchemasHost+"/"+schemaPath),
		[]byte(p.SchemaURL()))
}
