package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "nope"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if !strings.Contains(err.Error(), "block: nope") {
		t.Fatalf("expected blocking rule in error string, got %q", err.Error())
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	engine.Register(nil)
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
	if names := engine.Rules(); len(names) != 1 || names[0] != "warn" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

func TestRecordControlNumber(t *testing.T) {
	if got := (Record{}).ControlNumber(); got != "" {
		t.Fatalf("expected empty control number, got %q", got)
	}
	rec := Record{Metadata: map[string]any{"control_number": "411100"}}
	if got := rec.ControlNumber(); got != "411100" {
		t.Fatalf("unexpected control number %q", got)
	}
	rec.Metadata["control_number"] = 12
	if got := rec.ControlNumber(); got != "" {
		t.Fatalf("non-string control number should be ignored, got %q", got)
	}
}

func TestKeysAndErrors(t *testing.T) {
	pid := PersistentIdentifier{PIDType: "nrnrs", PIDValue: "1", Status: PIDStatusRegistered}
	if pid.Key() != "nrnrs:1" || !pid.IsRegistered() {
		t.Fatalf("unexpected pid key/status: %s %v", pid.Key(), pid.IsRegistered())
	}
	term := Term{Taxonomy: "languages", Slug: "cze"}
	if term.Key() != "languages/cze" {
		t.Fatalf("unexpected term key %s", term.Key())
	}
	var nf error = ErrNotFound{Entity: EntityRecord, ID: "x"}
	var target ErrNotFound
	if !errors.As(fmt.Errorf("wrap: %w", nf), &target) || target.ID != "x" {
		t.Fatalf("expected ErrNotFound to unwrap")
	}
	if (ErrAlreadyExists{Entity: EntityPID, ID: "nrnrs:1"}).Error() != `pid "nrnrs:1" already exists` {
		t.Fatalf("unexpected already exists message")
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{}, fmt.Errorf("boom")
}

type emptyView struct{}

func (emptyView) ListRecords() []Record                                { return nil }
func (emptyView) FindRecord(string) (Record, bool)                     { return Record{}, false }
func (emptyView) ListPIDs() []PersistentIdentifier                     { return nil }
func (emptyView) FindPID(string, string) (PersistentIdentifier, bool) { return PersistentIdentifier{}, false }
func (emptyView) ListReferences() []RecordReference                    { return nil }
func (emptyView) FindTerm(string, string) (Term, bool)                 { return Term{}, false }
func (emptyView) ListTerms(string) []Term                              { return nil }
