package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		tx.ReserveRecordIdentifier(41)
		if _, err := tx.CreatePID(domain.PersistentIdentifier{PIDType: "nrnrs", PIDValue: "41", ObjectUUID: "r1", Status: domain.PIDStatusRegistered}); err != nil {
			return err
		}
		_, e := tx.CreateRecord(domain.Record{ID: "r1", Type: "nresults", Metadata: map[string]any{"control_number": "41"}})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if got := len(reloaded.ListRecords()); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}
	if pid, ok := reloaded.GetPID("nrnrs", "41"); !ok || !pid.IsRegistered() {
		t.Fatalf("expected registered pid after reload, got %+v", pid)
	}
	_, err = reloaded.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if got := tx.NextRecordIdentifier(); got != 42 {
			t.Fatalf("expected sequence to survive reload, got %d", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
}

func TestSQLiteStoreSkipsPersistOnFailure(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	boom := errors.New("boom")
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed transaction must not persist, got %d rows", count)
	}
}

func TestSQLiteStoreRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES('records', 'not json')`); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path, nil); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSQLiteStoreDefaultPath(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	store, err := NewStore("", nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if store.Path() != "nresults.db" {
		t.Fatalf("unexpected default path %s", store.Path())
	}
}
