package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Narodni-repozitar/nr-Nresults/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	info, err := s.Put(ctx, "records/nrnrs/1/1.json", bytes.NewBufferString(`{"title":"x"}`), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"revision": "1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 13 || len(info.ETag) != 64 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "records", "nrnrs", "1", "1.json.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	if _, err := s.Put(ctx, "records/nrnrs/1/1.json", bytes.NewBufferString("{}"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := s.Get(ctx, "records/nrnrs/1/1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"title":"x"}` || got.Metadata["revision"] != "1" || got.ContentType != "application/json" {
		t.Fatalf("unexpected object %q %+v", body, got)
	}

	if _, err := s.Put(ctx, "records/nrnrs/1/2.json", bytes.NewBufferString("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	list, err := s.List(ctx, "records/nrnrs/1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "records/nrnrs/1/1.json" || list[1].Key != "records/nrnrs/1/2.json" {
		t.Fatalf("unexpected listing %+v", list)
	}

	if ok, err := s.Delete(ctx, "records/nrnrs/1/1.json"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := s.Delete(ctx, "records/nrnrs/1/1.json"); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, err := s.Head(ctx, "records/nrnrs/1/1.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "records/nrnrs/1/1.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsUnsafeKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "/etc/passwd", "../escape", "a/../../b", "x.json.meta"} {
		if _, err := s.Put(context.Background(), key, bytes.NewBufferString("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestNewCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "archive")
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Root() != root || s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected store %s %s", s.Root(), s.Driver())
	}
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}
