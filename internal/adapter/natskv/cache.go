// Package natskv implements the cache port on a NATS JetStream KeyValue
// bucket. It is the shared L2 behind the tiered order-snapshot cache: every
// engine instance reads and writes the same bucket, so a snapshot fetched by
// one instance is a hit for the others.
package natskv

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache serves order snapshots out of one JetStream KV bucket.
type Cache struct {
	kv jetstream.KeyValue
}

// New wraps an existing KV bucket. TTL is a bucket-level property, set when
// the bucket is created; the per-call ttl argument is ignored here.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// Get reads a snapshot by key. A missing key is a miss, not an error.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set writes a snapshot. Expiry follows the bucket TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, key, value)
	return err
}

// Delete drops a snapshot, typically after the order changed upstream.
// Deleting an absent key is a no-op.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
