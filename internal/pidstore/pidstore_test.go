package pidstore

import (
	"context"
	"errors"
	"testing"

	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/persistence/memory"
	"github.com/Narodni-repozitar/nr-Nresults/pkg/domain"
)

func TestLifecycle(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()
	var recordID string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		rec, err := tx.CreateRecord(domain.Record{Type: "nresults", Metadata: map[string]any{"control_number": "1"}})
		if err != nil {
			return err
		}
		recordID = rec.ID
		if _, err := Create(tx, "nrnrs", "1", domain.ObjectTypeRecord, rec.ID, domain.PIDStatusRegistered); err != nil {
			return err
		}
		_, err = Create(tx, "nrnrs", "1", domain.ObjectTypeRecord, rec.ID, domain.PIDStatusRegistered)
		if !errors.Is(err, ErrPIDExists) {
			t.Fatalf("expected ErrPIDExists, got %v", err)
		}
		return nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	pid, rec, err := Resolve(store, "nrnrs", "1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rec.ID != recordID || pid.ObjectType != domain.ObjectTypeRecord {
		t.Fatalf("unexpected resolution %+v %+v", pid, rec)
	}
	if _, _, err := Resolve(store, "nrnrs", "2"); !errors.Is(err, ErrPIDDoesNotExist) {
		t.Fatalf("expected missing pid, got %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := Delete(tx, "nrnrs", "1")
		return err
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := Resolve(store, "nrnrs", "1"); !errors.Is(err, ErrPIDDeleted) {
		t.Fatalf("expected deleted pid, got %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := Register(tx, "nrnrs", "1", recordID)
		return err
	}); !errors.Is(err, ErrPIDDeleted) {
		t.Fatalf("deleted pid cannot be registered again, got %v", err)
	}
}

func TestRedirectAndUnregistered(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := Create(tx, "dnrnrs", "5", domain.ObjectTypeRecord, "draft-uuid", domain.PIDStatusNew); err != nil {
			return err
		}
		if _, err := Create(tx, "nrnrs", "5", domain.ObjectTypeRecord, "published-uuid", domain.PIDStatusRegistered); err != nil {
			return err
		}
		target, _ := tx.FindPID("nrnrs", "5")
		_, err := Redirect(tx, "dnrnrs", "5", target)
		return err
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	pid, _, err := Resolve(store, "dnrnrs", "5")
	if !errors.Is(err, ErrPIDRedirected) || pid.ObjectUUID != "published-uuid" {
		t.Fatalf("expected redirect to published object, got %+v %v", pid, err)
	}
	if _, _, err := Resolve(store, "nrnrs", "5"); !errors.Is(err, ErrPIDMissingObject) {
		t.Fatalf("expected missing object, got %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := Create(tx, "nrnrs", "6", domain.ObjectTypeRecord, "x", domain.PIDStatusReserved)
		return err
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, _, err := Resolve(store, "nrnrs", "6"); !errors.Is(err, ErrPIDUnregistered) {
		t.Fatalf("expected unregistered, got %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := Delete(tx, "nrnrs", "404")
		return err
	}); !errors.Is(err, ErrPIDDoesNotExist) {
		t.Fatalf("expected missing pid on delete, got %v", err)
	}
}
