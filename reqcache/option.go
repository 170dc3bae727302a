package reqcache

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultName = "reqcache"
	defaultTTL  = 30 * time.Second
)

type config struct {
	clock         clock.Clock
	meterProvider metric.MeterProvider
	name          string
	ttl           time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		clock: clock.New(),
		name:  defaultName,
		ttl:   defaultTTL,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	if cfg.meterProvider == nil {
		cfg.meterProvider = otel.GetMeterProvider()
	}
	return cfg, nil
}

// WithClock sets the clock used to timestamp stored results and to judge
// their freshness.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.clock = c
		}
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider used to record
// cache hits, misses, shared loads and load errors. If not set, the global
// meter provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithName sets the name of the cache, used as the meter name and in log
// messages.
func WithName(name string) Option {
	return func(cfg *config) error {
		if name == "" {
			return errors.New("cache name cannot be empty")
		}
		cfg.name = name
		return nil
	}
}

// WithTTL sets how long a successfully loaded result is served without
// calling the loader again. The age of a result is measured from when it was
// stored.
//
// Default is 30 seconds.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *config) error {
		if ttl <= 0 {
			return errors.New("ttl must be positive")
		}
		cfg.ttl = ttl
		return nil
	}
}
