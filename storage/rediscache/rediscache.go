// Package rediscache wraps a storage.DataStorage with a read-through Redis
// cache: ReadTable consults Redis first and only falls through to the
// wrapped backend on a miss, populating the cache afterward; WriteTable
// always goes to the backend and then invalidates the cached entry so a
// stale copy is never served.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/coregraph/metadata"
	"github.com/smallnest/coregraph/storage"
)

// Cache decorates a storage.DataStorage with a Redis-backed cache of whole
// tables, keyed by path.
type Cache struct {
	client  *redis.Client
	backend storage.DataStorage
	prefix  string
	ttl     time.Duration
}

// Options configures a Cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every cache key, default "coregraph:table:".
	Prefix string
	// TTL is how long a cached table survives; 0 means no expiration.
	TTL time.Duration
}

// New wraps backend with a Redis cache.
func New(backend storage.DataStorage, opts Options) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "coregraph:table:"
	}

	return &Cache{client: client, backend: backend, prefix: prefix, ttl: opts.TTL}
}

func (c *Cache) key(path string) string {
	return c.prefix + path
}

type cachedPayload struct {
	Rows [][]any `json:"rows"`
}

// ReadTable returns the cached table for path if present, else reads
// through to the backend and caches the result.
func (c *Cache) ReadTable(ctx context.Context, schema metadata.TableDefinition, path, format string, options map[string]string) (*storage.Table, error) {
	raw, err := c.client.Get(ctx, c.key(path)).Bytes()
	if err == nil {
		var p cachedPayload
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &storage.Table{Schema: schema, Rows: p.Rows}, nil
		}
		// A corrupt cache entry falls through to the backend rather than
		// failing the read outright.
	} else if err != redis.Nil {
		return nil, fmt.Errorf("rediscache: get %q: %w", path, err)
	}

	table, err := c.backend.ReadTable(ctx, schema, path, format, options)
	if err != nil {
		return nil, err
	}

	c.store(ctx, path, table)
	return table, nil
}

// WriteTable writes through to the backend, then invalidates (rather than
// updates) the cached entry so the next read repopulates it.
func (c *Cache) WriteTable(ctx context.Context, schema metadata.TableDefinition, table *storage.Table, path, format string, options map[string]string) error {
	if err := c.backend.WriteTable(ctx, schema, table, path, format, options); err != nil {
		return err
	}
	if err := c.client.Del(ctx, c.key(path)).Err(); err != nil {
		return fmt.Errorf("rediscache: invalidate %q: %w", path, err)
	}
	return nil
}

func (c *Cache) store(ctx context.Context, path string, table *storage.Table) {
	raw, err := json.Marshal(cachedPayload{Rows: table.Rows})
	if err != nil {
		return
	}
	// Best-effort: a failed cache write should never fail the read it's
	// serving.
	c.client.Set(ctx, c.key(path), raw, c.ttl)
}
