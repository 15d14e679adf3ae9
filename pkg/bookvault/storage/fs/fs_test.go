package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bookvault/bookvault/pkg/bookvault"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp, URLPrefix: "/files"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	ctx := context.Background()
	key := "owner/book/book.epub"
	data := []byte("epub bytes")

	if err := backend.Put(ctx, key, bytes.NewReader(data), "application/epub+zip"); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := backend.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != string(data) {
		t.Fatalf("get mismatch: %q", string(got))
	}

	access, err := backend.GetAccessURL(ctx, key, time.Hour)
	if err != nil {
		t.Fatalf("access url: %v", err)
	}
	if access.URL != "/files/owner/book/book.epub" {
		t.Fatalf("unexpected access url: %s", access.URL)
	}
	if access.ExpiresAt != nil {
		t.Fatal("filesystem URLs should not expire")
	}

	pdfKey := "owner/book/book.pdf"
	if err := backend.Put(ctx, pdfKey, bytes.NewReader(data), "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := backend.Stat(ctx, pdfKey)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size != int64(len(data)) {
		t.Fatalf("expected size %d, got %d", len(data), info.Size)
	}
	if info.ContentType != "application/pdf" {
		t.Fatalf("expected content type from extension, got %q", info.ContentType)
	}
	if err := backend.Remove(ctx, pdfKey); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := backend.Remove(ctx, key); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, filepath.FromSlash(key))); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	// Emptied parents are pruned too.
	if _, err := os.Stat(filepath.Join(tmp, "owner")); !os.IsNotExist(err) {
		t.Fatalf("expected empty directories pruned, stat err=%v", err)
	}
}

func TestFSBackend_MissingObject(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir(), URLPrefix: "/files"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	if _, err := backend.GetAccessURL(ctx, "owner/book/book.epub", time.Hour); !errors.Is(err, bookvault.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if _, err := backend.Get(ctx, "owner/book/book.epub"); !errors.Is(err, bookvault.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	// Removing a missing object holds the desired state.
	if err := backend.Remove(ctx, "owner/book/book.epub"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestFSBackend_MissingBaseDir(t *testing.T) {
	tmp := t.TempDir()
	base := filepath.Join(tmp, "store")
	backend, err := New(Config{BaseDir: base, URLPrefix: "/files"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	// Base directory deleted out of band: a configuration failure, not a
	// missing object.
	if err := os.RemoveAll(base); err != nil {
		t.Fatalf("remove base: %v", err)
	}

	_, err = backend.GetAccessURL(context.Background(), "owner/book/book.epub", time.Hour)
	if !errors.Is(err, bookvault.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestFSBackend_PathTraversal(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir(), URLPrefix: "/files"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../escape", "../../etc/passwd", "/abs/path"} {
		if err := backend.Put(ctx, key, bytes.NewReader([]byte("x")), ""); err == nil {
			t.Fatalf("expected traversal rejection for %q", key)
		}
	}
}

func TestFSBackend_List(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir(), URLPrefix: "/files"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	keys := []string{"o1/b1/book.epub", "o1/b1/cover.jpg", "o1/b2/book.pdf"}
	for _, key := range keys {
		if err := backend.Put(ctx, key, bytes.NewReader([]byte("x")), ""); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	listed, err := backend.List(ctx, "o1/b1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 keys under prefix, got %v", listed)
	}
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base directory")
	}
}
