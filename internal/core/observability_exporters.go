package core

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PrometheusMetricsRecorder counts operations by outcome and records their
// latency in a histogram.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the service collectors with reg.
// Registering twice on the same registerer reuses the existing collectors.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nresults",
		Subsystem: "service",
		Name:      "operations_total",
		Help:      "Service operations by outcome.",
	}, []string{"operation", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nresults",
		Subsystem: "service",
		Name:      "operation_duration_seconds",
		Help:      "Service operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	var err error
	if operations, err = registerOrReuse(reg, operations); err != nil {
		return nil, err
	}
	if latency, err = registerOrReuse(reg, latency); err != nil {
		return nil, err
	}
	return &PrometheusMetricsRecorder{operations: operations, latency: latency}, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// OTelTracer opens an OpenTelemetry span per service operation.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer wraps an OpenTelemetry tracer.
func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer}
}

// Start implements Tracer.
func (t *OTelTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	ctx, span := t.tracer.Start(ctx, "nresults."+operation, trace.WithAttributes(attribute.String("nresults.operation", operation)))
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// SlogAuditRecorder writes audit entries to a structured logger.
type SlogAuditRecorder struct {
	logger Logger
}

// NewSlogAuditRecorder builds an audit recorder logging through logger.
func NewSlogAuditRecorder(logger Logger) *SlogAuditRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SlogAuditRecorder{logger: logger}
}

// Record implements AuditRecorder.
func (r *SlogAuditRecorder) Record(_ context.Context, e AuditEntry) {
	args := []any{
		"operation", e.Operation,
		"entity", string(e.Entity),
		"action", string(e.Action),
		"entity_id", e.EntityID,
		"status", string(e.Status),
		"duration", e.Duration,
		"at", e.Timestamp,
	}
	if e.Error != "" {
		args = append(args, "error", e.Error)
	}
	r.logger.Info("audit", args...)
}
