package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.Observe(context.Background(), "create_record", true, 20*time.Millisecond)
	rec.Observe(context.Background(), "create_record", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("create_record", "success")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("create_record", "error")); got != 1 {
		t.Fatalf("expected one error, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.latency); n != 1 {
		t.Fatalf("expected one latency series, got %d", n)
	}

	again, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	again.Observe(context.Background(), "create_record", true, time.Millisecond)
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("create_record", "success")); got != 2 {
		t.Fatalf("expected shared collector, got %v", got)
	}
}

func TestOTelTracerRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	svc, _ := newNoteService(t, WithTracer(NewOTelTracer(provider.Tracer("test"))))
	ctx := context.Background()
	if _, _, err := svc.CreateRecord(ctx, "note", map[string]any{"title": "traced"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.CreateRecord(ctx, "note", map[string]any{}); err == nil {
		t.Fatalf("expected validation error")
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "nresults.create_record" || spans[0].Status().Code != codes.Ok {
		t.Fatalf("unexpected first span %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error || len(spans[1].Events()) == 0 {
		t.Fatalf("expected error status with recorded event, got %v", spans[1].Status())
	}
	found := false
	for _, attr := range spans[0].Attributes() {
		if string(attr.Key) == "nresults.operation" && attr.Value.AsString() == "create_record" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing operation attribute: %v", spans[0].Attributes())
	}
}

func TestSlogAuditRecorder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	rec := NewSlogAuditRecorder(logger)
	rec.Record(context.Background(), AuditEntry{
		Operation: "delete_record",
		Entity:    EntityRecord,
		Action:    ActionDelete,
		EntityID:  "rec-1",
		Status:    AuditStatusError,
		Error:     errors.New("boom").Error(),
		Timestamp: testNow,
	})
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["msg"] != "audit" || line["operation"] != "delete_record" || line["status"] != "error" || line["error"] != "boom" {
		t.Fatalf("unexpected audit line %v", line)
	}

	NewSlogAuditRecorder(nil).Record(context.Background(), AuditEntry{Operation: "noop"})
}
