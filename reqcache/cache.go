// Package reqcache deduplicates and memoizes keyed requests.
//
// A Cache makes sure that any number of concurrent callers asking for the
// same key cause at most one call to the loader, and that callers arriving
// within the time-to-live of a successful result get that result with no
// loader call at all. Failed loads are not cached: every waiter of the failed
// call gets the error, and the next call starts a new load.
package reqcache

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

var log = logging.Logger("reqcache")

// Loader loads the value for a cache key.
type Loader[T any] func(context.Context) (T, error)

type entry[T any] struct {
	data      T
	fetchedAt time.Time
}

// Cache is a keyed request cache with a time-to-live and in-flight request
// deduplication. It is safe for concurrent use.
type Cache[T any] struct {
	name  string
	clock clock.Clock
	ttl   time.Duration

	// store holds the last successful result for each key.
	store *ttlcache.Cache[string, entry[T]]
	// group holds the in-flight load for each key.
	group singleflight.Group

	hits       metric.Int64Counter
	misses     metric.Int64Counter
	shared     metric.Int64Counter
	loadErrors metric.Int64Counter
}

// New creates a new empty Cache.
func New[T any](options ...Option) (*Cache[T], error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	c := &Cache[T]{
		name:  opts.name,
		clock: opts.clock,
		ttl:   opts.ttl,
		store: ttlcache.New[string, entry[T]](
			ttlcache.WithTTL[string, entry[T]](opts.ttl),
			ttlcache.WithDisableTouchOnHit[string, entry[T]](),
		),
	}

	meter := opts.meterProvider.Meter(opts.name)
	if c.hits, err = meter.Int64Counter("reqcache.hits",
		metric.WithDescription("Requests served from a fresh cached result")); err != nil {
		return nil, err
	}
	if c.misses, err = meter.Int64Counter("reqcache.misses",
		metric.WithDescription("Requests that called the loader")); err != nil {
		return nil, err
	}
	if c.shared, err = meter.Int64Counter("reqcache.shared",
		metric.WithDescription("Requests that received the result of a shared in-flight load")); err != nil {
		return nil, err
	}
	if c.loadErrors, err = meter.Int64Counter("reqcache.load_errors",
		metric.WithDescription("Loader calls that returned an error")); err != nil {
		return nil, err
	}

	return c, nil
}

// FetchWithCache returns the value for key. A fresh stored value is returned
// immediately. Otherwise, if a load for key is in flight, its outcome is
// awaited and shared. Otherwise loader is called and, if it succeeds, its
// result is stored.
//
// The loader runs to completion even if ctx is canceled; in that case
// FetchWithCache returns ctx.Err() without waiting, and the result is still
// stored for later callers.
func (c *Cache[T]) FetchWithCache(ctx context.Context, key string, loader Loader[T]) (T, error) {
	attrs := metric.WithAttributes(attribute.String("cache.key", key))

	if data, ok := c.Peek(key); ok {
		c.hits.Add(ctx, 1, attrs)
		return data, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	// Only the caller whose function singleflight runs sets leader.
	var leader bool
	ch := c.group.DoChan(key, func() (any, error) {
		leader = true
		// A load for the same key may have been stored after the Peek above.
		if data, ok := c.Peek(key); ok {
			c.hits.Add(loadCtx, 1, attrs)
			return data, nil
		}
		c.misses.Add(loadCtx, 1, attrs)

		start := c.clock.Now()
		data, err := loader(loadCtx)
		if err != nil {
			c.loadErrors.Add(loadCtx, 1, attrs)
			log.Warnw("Load failed", "cache", c.name, "key", key, "err", err)
			return nil, err
		}
		c.store.Set(key, entry[T]{
			data:      data,
			fetchedAt: c.clock.Now(),
		}, ttlcache.DefaultTTL)
		log.Debugw("Stored loaded result", "cache", c.name, "key", key, "elapsed", c.clock.Since(start))
		return data, nil
	})

	var zero T
	select {
	case res := <-ch:
		if !leader {
			c.shared.Add(ctx, 1, attrs)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		data, _ := res.Val.(T)
		return data, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Peek returns the stored value for key if it is still fresh. It never calls
// a loader.
func (c *Cache[T]) Peek(key string) (T, bool) {
	item := c.store.Get(key)
	if item == nil {
		var zero T
		return zero, false
	}
	e := item.Value()
	// A result exactly ttl old is stale.
	if c.clock.Since(e.fetchedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return e.data, true
}

// Clear removes the stored value for key so that the next FetchWithCache
// loads it again. A load already in flight is not affected.
func (c *Cache[T]) Clear(key string) {
	c.store.Delete(key)
}

// TTL returns the time-to-live of stored values.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}
