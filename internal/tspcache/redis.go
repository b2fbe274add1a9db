package tspcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is the optional cross-process TspCache driver described in
// SPEC_FULL.md: when a fleet of solver worker *processes* (not goroutines
// within one process) share a machine pool, they can share tour lookups
// through Redis instead of each maintaining its own CSV file.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBackend dials addr/db and verifies connectivity before returning.
func NewRedisBackend(addr string, db int) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("tspcache: redis ping failed: %w", err)
	}
	return &RedisBackend{client: client, keyPrefix: "tspcache:"}, nil
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, fingerprint string) (Tour, bool, error) {
	val, err := b.client.Get(ctx, b.keyPrefix+fingerprint).Result()
	if errors.Is(err, redis.Nil) {
		return Tour{}, false, nil
	}
	if err != nil {
		return Tour{}, false, err
	}
	tour, err := decodeTourValue(val)
	if err != nil {
		return Tour{}, false, err
	}
	return tour, true, nil
}

// Put implements Backend. It keeps the cheaper of any existing entry and
// the new tour, using WATCH/MULTI to guard against a concurrent writer
// racing the read-then-write. Entries never expire: a good tour on a given
// subset remains valid for the lifetime of the instance.
func (b *RedisBackend) Put(ctx context.Context, fingerprint string, tour Tour) error {
	key := b.keyPrefix + fingerprint
	err := b.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			if existingTour, decErr := decodeTourValue(existing); decErr == nil && existingTour.Cost <= tour.Cost {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encodeTourValue(tour), 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return b.Put(ctx, fingerprint, tour)
	}
	return err
}

// Close releases the underlying Redis connection pool.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// encodeTourValue/decodeTourValue store a tour as "cost;node|node|...": the
// cost and node sequence of a CSV file backend row, with the same "|"-joined
// node list, so the two drivers hold interchangeable tours.
func encodeTourValue(t Tour) string {
	parts := make([]string, len(t.Nodes))
	for i, n := range t.Nodes {
		parts[i] = strconv.Itoa(n)
	}
	return strconv.FormatFloat(t.Cost, 'f', -1, 64) + ";" + strings.Join(parts, "|")
}

func decodeTourValue(v string) (Tour, error) {
	idx := strings.IndexByte(v, ';')
	if idx < 0 {
		return Tour{}, fmt.Errorf("tspcache: malformed redis value %q", v)
	}
	cost, err := strconv.ParseFloat(v[:idx], 64)
	if err != nil {
		return Tour{}, err
	}
	nodes, err := parseNodeSequence(v[idx+1:])
	if err != nil {
		return Tour{}, err
	}
	return Tour{Nodes: nodes, Cost: cost}, nil
}
