// Package redisdriver implements the L2 CacheDriver of §4.3 over
// github.com/redis/go-redis/v9, so L1 misses fall through to a shared cache before
// hitting the underlying data source driver.
package redisdriver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Driver adapts a redis.Client to ports.CacheDriver. Values are stored as
// JSON-encoded ToAny payloads rather than Redis hashes, since a cached
// Value may be any of the thirteen kinds of §3, not just a flat record.
type Driver struct {
	client    *redis.Client
	keyPrefix string
}

// Config holds the redis connection options, a thin subset of
// redis.Options exposed to configuration.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// New builds a Driver from Config. It does not dial; Redis clients connect
// lazily on first command.
func New(cfg Config) *Driver {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Driver{client: client, keyPrefix: cfg.KeyPrefix}
}

func (d *Driver) prefixed(key string) string {
	if d.keyPrefix == "" {
		return key
	}
	return d.keyPrefix + ":" + key
}

func (d *Driver) Get(ctx context.Context, key string) (value.Value, bool, error) {
	raw, err := d.client.Get(ctx, d.prefixed(key)).Bytes()
	if err == redis.Nil {
		return value.Value{}, false, nil
	}
	if err != nil {
		return value.Value{}, false, apexerr.Wrap(apexerr.KindCacheError, "redisdriver.Get", "redis GET failed", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return value.Value{}, false, apexerr.Wrap(apexerr.KindCacheError, "redisdriver.Get", "corrupt cache entry", err)
	}
	return value.FromAny(decoded), true, nil
}

func (d *Driver) Put(ctx context.Context, key string, v value.Value, ttl time.Duration) error {
	raw, err := json.Marshal(value.ToAny(v))
	if err != nil {
		return apexerr.Wrap(apexerr.KindCacheError, "redisdriver.Put", "cannot encode value", err)
	}
	if err := d.client.Set(ctx, d.prefixed(key), raw, ttl).Err(); err != nil {
		return apexerr.Wrap(apexerr.KindCacheError, "redisdriver.Put", "redis SET failed", err)
	}
	return nil
}

func (d *Driver) Invalidate(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefixed(key)).Err(); err != nil {
		return apexerr.Wrap(apexerr.KindCacheError, "redisdriver.Invalidate", "redis DEL failed", err)
	}
	return nil
}

// InvalidatePattern scans and deletes every key matching a Redis glob
// pattern, batching deletes via SCAN rather than the blocking KEYS command.
func (d *Driver) InvalidatePattern(ctx context.Context, pattern string) error {
	iter := d.client.Scan(ctx, 0, d.prefixed(pattern), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return apexerr.Wrap(apexerr.KindCacheError, "redisdriver.InvalidatePattern", "redis SCAN failed", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := d.client.Del(ctx, keys...).Err(); err != nil {
		return apexerr.Wrap(apexerr.KindCacheError, "redisdriver.InvalidatePattern", "redis DEL failed", err)
	}
	return nil
}

// Stats reports zero locally; Redis-side hit/miss accounting is exposed
// through INFO stats rather than this narrow interface, so L1 is the
// source of truth for ports.CacheDriver.Stats callers.
func (d *Driver) Stats(ctx context.Context) (hits, misses int64) { return 0, 0 }

var _ ports.CacheDriver = (*Driver)(nil)
