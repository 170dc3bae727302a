package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxBodySize    = 1 << 20
)

type config struct {
	adminToken     string
	maxBodySize    int64
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		maxBodySize:    defaultMaxBodySize,
		requestTimeout: defaultRequestTimeout,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithAdminToken sets the shared secret that admin requests must present.
// If not set, all admin requests are rejected.
func WithAdminToken(token string) Option {
	return func(c *config) error {
		c.adminToken = token
		return nil
	}
}

// WithMaxBodySize sets the largest request body accepted by the server.
//
// Default is 1MiB.
func WithMaxBodySize(n int64) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.New("max body size must be positive")
		}
		c.maxBodySize = n
		return nil
	}
}

// WithMiddlewares adds middleware applied to every request, after the
// server's own request ID, recovery and logging middleware.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(c *config) error {
		c.middlewares = append(c.middlewares, mw...)
		return nil
	}
}

// WithRequestTimeout sets the time limit for handling a request.
//
// Default is 30 seconds.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		c.requestTimeout = d
		return nil
	}
}
