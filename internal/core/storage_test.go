package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/persistence/postgres"
	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/persistence/postgres/testutil"
)

func TestOpenPersistentStore(t *testing.T) {
	ctx := context.Background()

	mem, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageMemory}, nil)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	provider, ok := mem.(rulesEngineProvider)
	if !ok {
		t.Fatalf("memory store should expose its rules engine")
	}
	rules := provider.RulesEngine().Rules()
	if len(rules) != 2 || rules[0] != "immutable_control_number" || rules[1] != "pid_object_consistency" {
		t.Fatalf("unexpected default rules %v", rules)
	}

	path := filepath.Join(t.TempDir(), "nresults.db")
	sqlite, err := OpenPersistentStore(ctx, StorageConfig{SQLitePath: path}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	if _, err := sqlite.RunInTransaction(ctx, func(tx Transaction) error {
		_ = tx.NextRecordIdentifier()
		return nil
	}); err != nil {
		t.Fatalf("sqlite transaction: %v", err)
	}

	if _, err := OpenPersistentStore(ctx, StorageConfig{Driver: "bogus"}, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}

	db, _ := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	if _, err := OpenPersistentStore(ctx, StorageConfig{Driver: StoragePostgres, PostgresDSN: "postgres://stub"}, nil); err != nil {
		t.Fatalf("postgres store: %v", err)
	}
}
