package core

import (
	"context"
	"time"
)

// Logger is the structured logger used by the service. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes the outcome and latency of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is an in-flight span returned by Tracer.Start.
type TraceSpan interface {
	End(err error)
}

// Tracer opens a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

// AuditStatus is the outcome stored on an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one completed service operation.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives an entry for every mutating operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type auditTarget struct {
	entity EntityType
	action Action
}

// auditOperations lists the mutating operations that produce audit entries.
var auditOperations = map[string]auditTarget{
	"create_record":      {EntityRecord, ActionCreate},
	"update_record":      {EntityRecord, ActionUpdate},
	"delete_record":      {EntityRecord, ActionDelete},
	"create_draft":       {EntityRecord, ActionCreate},
	"publish_draft":      {EntityRecord, ActionCreate},
	"refresh_references": {EntityReference, ActionUpdate},
	"update_term":        {EntityTerm, ActionUpdate},
}

func (s *Service) recordAudit(ctx context.Context, operation, entityID string, duration time.Duration, err error) {
	target, ok := auditOperations[operation]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: operation,
		Entity:    target.entity,
		Action:    target.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now().UTC(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// run wraps an operation with tracing, metrics, audit and logging. fn returns
// the id of the entity it touched.
func (s *Service) run(ctx context.Context, operation string, fn func(ctx context.Context) (string, error)) error {
	ctx, span := s.tracer.Start(ctx, operation)
	started := s.clock.Now()
	entityID, err := fn(ctx)
	duration := s.clock.Now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	s.recordAudit(ctx, operation, entityID, duration, err)
	if err != nil {
		s.logger.Warn("core.operation.failed", "operation", operation, "entity_id", entityID, "error", err)
		return err
	}
	s.logger.Debug("core.operation.completed", "operation", operation, "entity_id", entityID, "duration", duration)
	return nil
}
