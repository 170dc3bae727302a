package pagedata

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ledgerline/erpsite/content/fallback"
	"github.com/ledgerline/erpsite/content/model"
	"github.com/ledgerline/erpsite/loading"
	"github.com/ledgerline/erpsite/reqcache"
)

const defaultCacheTTL = 30 * time.Second

type config struct {
	cache       *reqcache.Cache[*model.PageData]
	cacheTTL    time.Duration
	clock       clock.Clock
	coordinator *loading.Coordinator
	fallback    func() (*model.PageData, error)
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		cacheTTL: defaultCacheTTL,
		clock:    clock.New(),
		fallback: fallback.Load,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithCache sets the request cache that holds fetched page data. Sharing one
// cache between orchestrators makes them share fetches. When set, the
// WithCacheTTL option is ignored.
func WithCache(c *reqcache.Cache[*model.PageData]) Option {
	return func(cfg *config) error {
		cfg.cache = c
		return nil
	}
}

// WithCacheTTL sets how long fetched page data is served before it is
// fetched again.
//
// Default is 30 seconds.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *config) error {
		if ttl <= 0 {
			return errors.New("cache ttl must be positive")
		}
		cfg.cacheTTL = ttl
		return nil
	}
}

// WithClock sets the clock for the cache and loading coordinator that the
// orchestrator creates. It does not affect a cache or coordinator supplied
// with WithCache or WithCoordinator.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.clock = c
		}
		return nil
	}
}

// WithCoordinator sets the loading coordinator to drive while a fetch is
// outstanding. If not set, the orchestrator uses a coordinator of its own.
func WithCoordinator(c *loading.Coordinator) Option {
	return func(cfg *config) error {
		cfg.coordinator = c
		return nil
	}
}

// WithFallback sets the function that supplies page data when the source
// cannot be fetched. If nil, an empty PageData is used as the fallback.
//
// Default is the embedded dataset from the fallback package.
func WithFallback(f func() (*model.PageData, error)) Option {
	return func(cfg *config) error {
		if f == nil {
			f = func() (*model.PageData, error) {
				return &model.PageData{}, nil
			}
		}
		cfg.fallback = f
		return nil
	}
}
