package tspcache

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FileBackend is the default TspCache backend: an in-process map guarded by
// a RWMutex, persisted to a CSV file of the form
//
//	fingerprint,cost,node_sequence
//
// on every update. Persistence is atomic: a full snapshot is written to a
// temp file in the same directory and renamed over the target, so a reader
// (or a crash) never observes a partially written file (spec.md §5).
type FileBackend struct {
	path string

	mu      sync.RWMutex
	entries map[string]Tour
}

// NewFileBackend loads path (if it exists) into memory and returns a ready backend.
func NewFileBackend(path string) (*FileBackend, error) {
	b := &FileBackend{path: path, entries: make(map[string]Tour)}
	if path == "" {
		return b, nil
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *FileBackend) load() error {
	f, err := os.Open(b.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("tspcache: open %s: %w", b.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("tspcache: read %s: %w", b.path, err)
	}
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		cost, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			continue
		}
		nodes, err := parseNodeSequence(row[2])
		if err != nil {
			continue
		}
		b.entries[row[0]] = Tour{Nodes: nodes, Cost: cost}
	}
	return nil
}

func parseNodeSequence(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "|")
	nodes := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return nodes, nil
}

func formatNodeSequence(nodes []int) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "|")
}

// Get implements Backend.
func (b *FileBackend) Get(_ context.Context, fingerprint string) (Tour, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.entries[fingerprint]
	return t, ok, nil
}

// Put implements Backend. It keeps the cheaper of any existing entry and the
// new tour, then rewrites the backing file atomically.
func (b *FileBackend) Put(_ context.Context, fingerprint string, tour Tour) error {
	b.mu.Lock()
	if existing, ok := b.entries[fingerprint]; ok && existing.Cost <= tour.Cost {
		b.mu.Unlock()
		return nil
	}
	b.entries[fingerprint] = tour
	snapshot := make(map[string]Tour, len(b.entries))
	for k, v := range b.entries {
		snapshot[k] = v
	}
	b.mu.Unlock()

	if b.path == "" {
		return nil
	}
	return writeSnapshotAtomic(b.path, snapshot)
}

func writeSnapshotAtomic(path string, entries map[string]Tour) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tspcache-*.tmp")
	if err != nil {
		return fmt.Errorf("tspcache: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	w := csv.NewWriter(tmp)
	for fp, t := range entries {
		row := []string{fp, strconv.FormatFloat(t.Cost, 'f', -1, 64), formatNodeSequence(t.Nodes)}
		if err := w.Write(row); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("tspcache: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("tspcache: rename temp file: %w", err)
	}
	return nil
}

// Close is a no-op for FileBackend: every Put already flushed to disk.
func (b *FileBackend) Close() error { return nil }
