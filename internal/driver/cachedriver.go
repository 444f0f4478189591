package driver

import (
	"context"
	"time"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/cache"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// CacheSource exposes a cache tier as a data source in its own right
// (§4.4: "Cache: direct lookup by key, used as source rather than
// accelerator"), for datasets that are populated entirely out of band
// (warmed by another process) and never backed by a driver of their own.
type CacheSource struct {
	store *cache.L1
}

// NewCacheDriverSource builds a CacheSource from `{ttl-seconds, max-size}`;
// it owns a private L1 with no L2, since it IS the source of record.
func NewCacheDriverSource(config map[string]any) (ports.DataSourceDriver, error) {
	policy := cache.DefaultPolicy()
	if ttl, ok := config["ttl-seconds"].(int); ok && ttl > 0 {
		policy.TTL = time.Duration(ttl) * time.Second
	}
	if maxSize, ok := config["max-size"].(int); ok && maxSize > 0 {
		policy.MaxSize = maxSize
	}
	return &CacheSource{store: cache.New(policy, nil)}, nil
}

func (d *CacheSource) Init(ctx context.Context) error     { return nil }
func (d *CacheSource) Shutdown(ctx context.Context) error { return nil }
func (d *CacheSource) Healthy(ctx context.Context) bool   { return d.store != nil }

func (d *CacheSource) Capabilities() ports.Capabilities {
	return ports.Capabilities{SupportsBatch: true, SupportsFilter: false, SupportsComposite: false}
}

// Seed preloads a key directly, bypassing the loader path. Used by
// preload-on-startup and by callers that push data into the cache out of
// band (e.g. a queue driver's read-through buffer).
func (d *CacheSource) Seed(ctx context.Context, key string, rec ports.Record) {
	d.store.Put(ctx, key, value.FromAny(toAnyMap(rec)))
}

func (d *CacheSource) Resolve(ctx context.Context, datasetRef string, key value.Value, params map[string]value.Value) (ports.Record, bool, error) {
	v, ok := d.store.Get(ctx, value.Format(key))
	if !ok {
		return nil, false, nil
	}
	m, ok := v.AsMap()
	if !ok {
		return nil, false, apexerr.New(apexerr.KindDriverParseError, "CacheSource.Resolve", "cached value is not a record")
	}
	return ports.Record(m), true, nil
}

func (d *CacheSource) BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]ports.Record, error) {
	out := map[string]ports.Record{}
	for _, k := range keys {
		rec, ok, err := d.Resolve(ctx, datasetRef, k, params)
		if err != nil {
			return nil, err
		}
		if ok {
			out[value.Format(k)] = rec
		}
	}
	return out, nil
}

// Query is not supported: a cache is an address-by-key source only.
func (d *CacheSource) Query(ctx context.Context, statement string, params map[string]value.Value) ([]ports.Record, error) {
	return nil, apexerr.New(apexerr.KindFilterNotSupported, "CacheSource.Query", "cache source does not support arbitrary queries")
}

func toAnyMap(rec ports.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = value.ToAny(v)
	}
	return out
}
