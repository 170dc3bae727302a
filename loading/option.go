package loading

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	defaultDrainDelay = 250 * time.Millisecond
	defaultWatchdog   = 20 * time.Second
)

type config struct {
	clock      clock.Clock
	drainDelay time.Duration
	watchdog   time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		clock:      clock.New(),
		drainDelay: defaultDrainDelay,
		watchdog:   defaultWatchdog,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithClock sets the clock used for the drain and watchdog timers.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.clock = c
		}
		return nil
	}
}

// WithDrainDelay sets how long the loading flag stays set after the last
// operation stops. A zero delay clears the flag immediately.
//
// Default is 250 milliseconds.
func WithDrainDelay(d time.Duration) Option {
	return func(cfg *config) error {
		if d < 0 {
			return errors.New("drain delay cannot be negative")
		}
		cfg.drainDelay = d
		return nil
	}
}

// WithWatchdog sets the longest time the loading flag may stay set before it
// is forcibly cleared.
//
// Default is 20 seconds.
func WithWatchdog(d time.Duration) Option {
	return func(cfg *config) error {
		if d <= 0 {
			return errors.New("watchdog duration must be positive")
		}
		cfg.watchdog = d
		return nil
	}
}
