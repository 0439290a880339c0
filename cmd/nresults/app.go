package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Narodni-repozitar/nr-Nresults/internal/archive"
	"github.com/Narodni-repozitar/nr-Nresults/internal/blob"
	"github.com/Narodni-repozitar/nr-Nresults/internal/config"
	"github.com/Narodni-repozitar/nr-Nresults/internal/core"
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
	"github.com/Narodni-repozitar/nr-Nresults/internal/taxonomy"
	"github.com/Narodni-repozitar/nr-Nresults/plugins/nresults"
)

// app is a fully wired record service plus the resources it owns.
type app struct {
	service  *core.Service
	taxonomy *taxonomy.Service
	registry *prometheus.Registry
	closers  []func(context.Context) error
}

// openApp wires storage, taxonomy, search, archive and telemetry from cfg and
// installs the N-results plugin. traceOut receives spans when tracing is on.
func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger, traceOut io.Writer) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	store, err := core.OpenPersistentStore(ctx, cfg.StorageConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	}

	taxOpts := cfg.TaxonomyOptions()
	taxOpts.Logger = logger
	a.taxonomy = taxonomy.NewService(store, taxOpts)
	if cfg.Taxonomy.Seed != "" {
		stats, err := a.taxonomy.ImportFile(ctx, cfg.Taxonomy.Seed)
		if err != nil {
			return nil, err
		}
		logger.Info("taxonomy.seed.imported", "file", cfg.Taxonomy.Seed, "taxonomies", stats.Taxonomies, "created", stats.Created, "updated", stats.Updated)
	}

	engine := search.NewEngine(cfg.Search.Dir, logger)
	a.closers = append(a.closers, func(context.Context) error { return engine.Close() })

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		return nil, err
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithAuditRecorder(core.NewSlogAuditRecorder(logger.With("component", "audit"))),
		core.WithTaxonomy(a.taxonomy),
		core.WithSearchEngine(engine),
		core.WithServer(cfg.Server.Scheme, cfg.Server.Name),
		core.WithStrictJSONSchema(cfg.Schemas.Strict),
	}

	blobs, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if blobs != nil {
		opts = append(opts, core.WithArchiver(archive.New(blobs)))
		logger.Info("archive.enabled", "driver", string(blobs.Driver()))
	}

	if cfg.Tracing.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		a.closers = append(a.closers, provider.Shutdown)
		opts = append(opts, core.WithTracer(core.NewOTelTracer(provider.Tracer("nresults"))))
	}

	a.service = core.NewService(store, opts...)
	if _, err := a.service.InstallPlugin(nresults.New(nresults.WithSchemasHost(cfg.Schemas.Host))); err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
