package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindRecord("missing"); ok {
			t.Fatalf("expected missing record lookup")
		}
		created, err := tx.CreateRecord(domain.Record{Type: "nresults", Metadata: map[string]any{"control_number": "1"}})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		if created.Revision != 1 {
			t.Fatalf("expected first revision, got %d", created.Revision)
		}
		if len(tx.Snapshot().ListRecords()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListRecords()) != 1 {
		t.Fatalf("expected persisted record")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListRecords()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListRecords()) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
}

func TestStoreRuleViolationDiscardsChanges(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateRecord(domain.Record{Type: "nresults"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if len(store.ListRecords()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

func TestStoreFunctionErrorDiscardsChanges(t *testing.T) {
	store := NewStore(nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateRecord(domain.Record{Type: "nresults"}); err != nil {
			return err
		}
		tx.NextRecordIdentifier()
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(store.ListRecords()) != 0 {
		t.Fatalf("failed transaction must not commit")
	}
	if got := store.ExportState().Sequences[recordIDSequence]; got != 0 {
		t.Fatalf("sequence must roll back, got %d", got)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

func TestUpdateAndDeleteRecord(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	ctx := context.Background()
	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		rec, err := tx.CreateRecord(domain.Record{Type: "nresults", Metadata: map[string]any{"title": "a"}})
		id = rec.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpdateRecord("missing", func(*domain.Record) error { return nil }); err == nil {
			t.Fatalf("expected missing record error")
		}
		updated, err := tx.UpdateRecord(id, func(r *domain.Record) error {
			r.Metadata["title"] = "b"
			r.ID = "hijack"
			return nil
		})
		if err != nil {
			return err
		}
		if updated.ID != id || updated.Revision != 2 {
			t.Fatalf("unexpected update result: %+v", updated)
		}
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, ok := store.GetRecord(id)
	if !ok || rec.Metadata["title"] != "b" {
		t.Fatalf("expected updated title, got %+v", rec)
	}
	if !rec.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected fixed clock, got %v", rec.UpdatedAt)
	}
	rec.Metadata["title"] = "mutated"
	if again, _ := store.GetRecord(id); again.Metadata["title"] != "b" {
		t.Fatalf("store must return copies")
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		tx.SetReferences(id, []string{"http://x/1"})
		return tx.DeleteRecord(id)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.GetRecord(id); ok {
		t.Fatalf("expected record removed")
	}
	if refs := store.ReferencingRecords("http://x/1"); len(refs) != 0 {
		t.Fatalf("references must be removed with record: %v", refs)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteRecord(id)
	})
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPIDLifecycle(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreatePID(domain.PersistentIdentifier{PIDType: "nrnrs"}); err == nil {
			t.Fatalf("expected missing value error")
		}
		pid, err := tx.CreatePID(domain.PersistentIdentifier{PIDType: "nrnrs", PIDValue: "1", ObjectType: domain.ObjectTypeRecord, ObjectUUID: "r1"})
		if err != nil {
			return err
		}
		if pid.Status != domain.PIDStatusNew {
			t.Fatalf("expected default status N, got %s", pid.Status)
		}
		if _, err := tx.CreatePID(domain.PersistentIdentifier{PIDType: "nrnrs", PIDValue: "1"}); err == nil {
			t.Fatalf("expected duplicate pid error")
		}
		if _, err := tx.CreatePID(domain.PersistentIdentifier{PIDType: "dnrnrs", PIDValue: "1", ObjectUUID: "r1", Status: domain.PIDStatusRegistered}); err != nil {
			return err
		}
		if got := tx.PIDsForObject("r1"); len(got) != 2 || got[0].PIDType != "dnrnrs" {
			t.Fatalf("unexpected pids for object: %+v", got)
		}
		_, err = tx.UpdatePID("nrnrs", "1", func(p *domain.PersistentIdentifier) error {
			p.Status = domain.PIDStatusRegistered
			p.PIDValue = "2"
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("pid transaction: %v", err)
	}
	pid, ok := store.GetPID("nrnrs", "1")
	if !ok || !pid.IsRegistered() {
		t.Fatalf("expected registered pid, got %+v", pid)
	}
	if _, ok := store.GetPID("nrnrs", "2"); ok {
		t.Fatalf("pid value must not change")
	}
	if len(store.ListPIDs()) != 2 {
		t.Fatalf("expected two pids")
	}
}

func TestRecordIdentifierSequence(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if got := tx.NextRecordIdentifier(); got != 1 {
			t.Fatalf("expected 1, got %d", got)
		}
		tx.ReserveRecordIdentifier(10)
		tx.ReserveRecordIdentifier(3)
		if got := tx.NextRecordIdentifier(); got != 11 {
			t.Fatalf("expected 11, got %d", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if got := store.ExportState().Sequences[recordIDSequence]; got != 11 {
		t.Fatalf("expected committed sequence 11, got %d", got)
	}
}

func TestTaxonomyTerms(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateTerm(domain.Term{Taxonomy: "languages", Slug: "cs"}); err == nil {
			t.Fatalf("expected missing taxonomy error")
		}
		if _, err := tx.CreateTaxonomy(domain.Taxonomy{Code: "languages"}); err != nil {
			return err
		}
		if _, err := tx.CreateTaxonomy(domain.Taxonomy{Code: "languages"}); err == nil {
			t.Fatalf("expected duplicate taxonomy error")
		}
		if _, err := tx.CreateTerm(domain.Term{Taxonomy: "languages", Slug: "cs", Parent: "missing"}); err == nil {
			t.Fatalf("expected missing parent error")
		}
		if _, err := tx.CreateTerm(domain.Term{Taxonomy: "languages", Slug: "slavic"}); err != nil {
			return err
		}
		child, err := tx.CreateTerm(domain.Term{Taxonomy: "languages", Slug: "cs", Parent: "slavic", Extra: map[string]any{"title": map[string]any{"cs": "čeština"}}})
		if err != nil {
			return err
		}
		if child.Path != "slavic/cs" || child.Level != 2 {
			t.Fatalf("unexpected child placement: %+v", child)
		}
		_, err = tx.UpdateTerm("languages", "cs", func(term *domain.Term) error {
			term.Extra["code"] = "ces"
			term.Path = "elsewhere"
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("taxonomy transaction: %v", err)
	}
	term, ok := store.GetTerm("languages", "cs")
	if !ok || term.Path != "slavic/cs" || term.Extra["code"] != "ces" {
		t.Fatalf("unexpected term: %+v", term)
	}
	if terms := store.ListTerms("languages"); len(terms) != 2 || terms[0].Slug != "slavic" {
		t.Fatalf("unexpected term order: %+v", terms)
	}
	if taxonomies := store.ListTaxonomies(); len(taxonomies) != 1 {
		t.Fatalf("expected one taxonomy")
	}
}

func TestReferencesAndView(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		tx.SetReferences("a", []string{"http://t/2", "http://t/1", "http://t/1", ""})
		tx.SetReferences("b", []string{"http://t/1"})
		tx.SetReferences("c", []string{"http://t/3"})
		tx.SetReferences("c", nil)
		return nil
	})
	if err != nil {
		t.Fatalf("references: %v", err)
	}
	if got := store.ReferencingRecords("http://t/1"); len(got) != 2 || got[0] != "a" {
		t.Fatalf("unexpected referencing records: %v", got)
	}
	if got := store.ReferencingRecords("http://t/3"); len(got) != 0 {
		t.Fatalf("cleared references must be dropped: %v", got)
	}
	err = store.View(ctx, func(view domain.TransactionView) error {
		refs := view.ListReferences()
		if len(refs) != 3 {
			t.Fatalf("expected three reference rows, got %+v", refs)
		}
		if refs[0].RecordID != "a" || refs[0].Reference != "http://t/1" {
			t.Fatalf("unexpected reference order: %+v", refs)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSnapshotBucketsRoundTrip(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		tx.NextRecordIdentifier()
		_, err := tx.CreateRecord(domain.Record{ID: "r1", Type: "nresults", Metadata: map[string]any{"control_number": "1"}})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	buckets, err := store.ExportState().EncodeBuckets()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buckets) != len(Buckets) {
		t.Fatalf("expected every bucket encoded")
	}
	var snapshot Snapshot
	for name, payload := range buckets {
		if err := snapshot.DecodeBucket(name, payload); err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
	}
	if err := snapshot.DecodeBucket("unknown", []byte("{")); err != nil {
		t.Fatalf("unknown buckets must be ignored: %v", err)
	}
	if err := snapshot.DecodeBucket(BucketRecords, []byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
	restored := NewStore(nil)
	restored.ImportState(snapshot)
	rec, ok := restored.GetRecord("r1")
	if !ok || rec.ControlNumber() != "1" {
		t.Fatalf("expected restored record, got %+v", rec)
	}
	if restored.ExportState().Sequences[recordIDSequence] != 1 {
		t.Fatalf("expected restored sequence")
	}
}
