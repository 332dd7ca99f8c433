package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestPutGetDelete(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir(), "/api/v1/documents/files")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	key := "user-1/app-1/aadhaar_card.pdf"
	info, err := store.Put(ctx, key, strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if info.Size != int64(len("pdf bytes")) {
		t.Errorf("expected size %d, got %d", len("pdf bytes"), info.Size)
	}
	if len(info.SHA256) != 64 {
		t.Errorf("expected sha256 hex digest, got %q", info.SHA256)
	}

	rc, got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "pdf bytes" {
		t.Errorf("expected %q, got %q", "pdf bytes", string(data))
	}
	if got.Size != info.Size {
		t.Errorf("stat size mismatch: %d vs %d", got.Size, info.Size)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, _, err := store.Get(ctx, key); err == nil {
		t.Error("expected not found after delete")
	}
}

func TestPutReplacesExisting(t *testing.T) {
	store, _ := NewFilesystemStore(t.TempDir(), "")
	ctx := context.Background()

	key := "user-1/app-1/photo.jpg"
	if _, err := store.Put(ctx, key, strings.NewReader("first")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if _, err := store.Put(ctx, key, strings.NewReader("second")); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	rc, _, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "second" {
		t.Errorf("expected replacement content, got %q", string(data))
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store, _ := NewFilesystemStore(t.TempDir(), "")
	ctx := context.Background()

	for _, key := range []string{
		"",
		"/etc/passwd",
		"../outside",
		"user-1/../../outside",
		"user-1\\app-1\\doc.pdf",
	} {
		if _, err := store.Put(ctx, key, strings.NewReader("x")); err == nil {
			t.Errorf("key %q: expected rejection", key)
		}
	}
}

func TestDeleteMissingIsIdempotent(t *testing.T) {
	store, _ := NewFilesystemStore(t.TempDir(), "")
	if err := store.Delete(context.Background(), "user-1/app-1/gone.pdf"); err != nil {
		t.Errorf("delete of missing object should be a no-op, got %v", err)
	}
}

func TestURL(t *testing.T) {
	store, _ := NewFilesystemStore(t.TempDir(), "/api/v1/documents/files/")
	got := store.URL("u/a/doc.pdf")
	if got != "/api/v1/documents/files/u/a/doc.pdf" {
		t.Errorf("unexpected URL %q", got)
	}
}
