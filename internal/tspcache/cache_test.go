package tspcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFingerprintCanonicalizesOrder(t *testing.T) {
	a := Fingerprint([]int{3, 1, 2})
	b := Fingerprint([]int{1, 2, 3})
	if a != b {
		t.Fatalf("fingerprint must be order-independent: %q != %q", a, b)
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tspcache.csv")

	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	c := New(backend)
	ctx := context.Background()

	fp := Fingerprint([]int{2, 5, 9})
	if _, ok, _ := c.Lookup(ctx, fp); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if err := c.Store(ctx, fp, Tour{Nodes: []int{0, 2, 5, 9, 0}, Cost: 42}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	reopened, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	c2 := New(reopened)
	tour, ok, err := c2.Lookup(ctx, fp)
	if err != nil || !ok {
		t.Fatalf("expected persisted hit, got ok=%v err=%v", ok, err)
	}
	if tour.Cost != 42 || len(tour.Nodes) != 5 {
		t.Fatalf("unexpected tour after reload: %+v", tour)
	}

	hits, misses := c.Stats()
	if hits != 0 || misses != 1 {
		t.Fatalf("want 0 hits/1 miss on first cache, got %d/%d", hits, misses)
	}
}

func TestFileBackendKeepsCheaperEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tspcache.csv")
	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	ctx := context.Background()
	fp := "1,2,3"

	if err := backend.Put(ctx, fp, Tour{Nodes: []int{1, 2, 3}, Cost: 10}); err != nil {
		t.Fatal(err)
	}
	if err := backend.Put(ctx, fp, Tour{Nodes: []int{3, 2, 1}, Cost: 25}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := backend.Get(ctx, fp)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Cost != 10 {
		t.Fatalf("expected cheaper entry (10) to survive, got %v", got.Cost)
	}
}

func TestFileBackendMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.csv")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("precondition: file should not exist")
	}
	if _, err := NewFileBackend(path); err != nil {
		t.Fatalf("NewFileBackend on missing file: %v", err)
	}
}
