package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestLocalStore_PutGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	ctx := context.Background()
	content := []byte("hello world")
	objectPath := "schemas/snapshot.json"

	if err := store.Put(ctx, objectPath, content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := store.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	got, err := store.Get(ctx, objectPath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestLocalStore_GetMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	_, err = store.Get(context.Background(), "missing/object")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	ctx := context.Background()
	if err := store.Put(ctx, "a/b", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "a/b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err := store.Exists(ctx, "a/b")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("object should be gone after delete")
	}

	// Deleting a missing object is not an error.
	if err := store.Delete(ctx, "a/b"); err != nil {
		t.Errorf("deleting missing object: %v", err)
	}
}

func TestLocalStore_List(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	ctx := context.Background()
	for _, p := range []string{"snapshots/a", "snapshots/b", "other/c"} {
		if err := store.Put(ctx, p, []byte("x")); err != nil {
			t.Fatalf("Put %s failed: %v", p, err)
		}
	}

	objects, err := store.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objects) != 2 || objects[0] != "snapshots/a" || objects[1] != "snapshots/b" {
		t.Errorf("unexpected listing: %v", objects)
	}
}

func TestLocalStore_PutOverwrites(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}

	ctx := context.Background()
	if err := store.Put(ctx, "obj", []byte("v1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "obj", []byte("v2")); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	got, err := store.Get(ctx, "obj")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("expected v2, got %q", got)
	}
}
