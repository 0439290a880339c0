package core

import (
	"context"
	"fmt"

	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/persistence/memory"
	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/persistence/postgres"
	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/persistence/sqlite"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures the persistent store.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// NewDefaultRulesEngine builds a rules engine with the built-in record rules.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(ImmutableControlNumberRule())
	engine.Register(PIDObjectConsistencyRule())
	return engine
}

// OpenPersistentStore opens the backend named by cfg.Driver (sqlite when
// empty). A nil engine gets the default rules.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
