// Package tspcache implements the persistent key -> tour map described in
// spec.md §4.2: a mapping from a canonical node-subset fingerprint to the
// cheapest known Hamiltonian cycle on that subset, shared across workers.
package tspcache

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// ErrNotFound is returned by a Backend when the fingerprint is unknown.
var ErrNotFound = errors.New("tspcache: fingerprint not found")

// Tour is a cached result: a cyclic node order and its total routing cost.
type Tour struct {
	Nodes []int
	Cost  float64
}

// Backend is the storage driver behind a Cache: an in-process map backed by
// a CSV file (the default, §4.2/§5), or a Redis-backed store for the
// optional cross-process worker-fleet deployment described in SPEC_FULL.md.
type Backend interface {
	Get(ctx context.Context, fingerprint string) (Tour, bool, error)
	Put(ctx context.Context, fingerprint string, tour Tour) error
	Close() error
}

// Cache wraps a Backend with the subset-fingerprint canonicalization spec.md
// requires: a sorted node-id sequence, joined into a stable string key.
type Cache struct {
	backend Backend

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps an existing Backend in a Cache.
func New(backend Backend) *Cache {
	return &Cache{backend: backend}
}

// Fingerprint canonicalizes a node subset into a stable string key: the
// sorted node ids joined by commas, per spec.md §4.2 ("sorted node-id
// sequence"). Every id passed in is part of the key; TspRepair passes the
// depot together with the customers.
func Fingerprint(nodes []int) string {
	sorted := append([]int(nil), nodes...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// Lookup returns the cached tour for fingerprint, if any.
func (c *Cache) Lookup(ctx context.Context, fingerprint string) (Tour, bool, error) {
	tour, ok, err := c.backend.Get(ctx, fingerprint)
	if err != nil {
		return Tour{}, false, err
	}
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return tour, ok, nil
}

// Store records tour as the best known solution for fingerprint. Backends
// are expected to keep the cheaper of an existing entry and tour, since a
// TSP backend running twice on the same subset may return different-quality
// heuristic results.
func (c *Cache) Store(ctx context.Context, fingerprint string, tour Tour) error {
	return c.backend.Put(ctx, fingerprint, tour)
}

// Stats reports cumulative hit/miss counts for this process.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close releases the underlying backend's resources.
func (c *Cache) Close() error {
	return c.backend.Close()
}
