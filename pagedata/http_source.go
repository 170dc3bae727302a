package pagedata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/ledgerline/erpsite/apierror"
	"github.com/ledgerline/erpsite/content/model"
)

const (
	defaultPageDataPath = "/api/page-data"
	maxBodySize         = 4 << 20
)

// Source is a supplier of composite page data.
type Source interface {
	// Fetch gets the hero, services and testimonials in one request.
	Fetch(context.Context) (*model.PageData, error)
	// String returns a description of the source.
	String() string
}

type httpSource struct {
	url    *url.URL
	client *http.Client
	header http.Header
}

type httpConfig struct {
	client       *http.Client
	header       http.Header
	path         string
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// HTTPOption configures an HTTP Source.
type HTTPOption func(*httpConfig) error

// WithClient sets the http client used to fetch page data.
func WithClient(c *http.Client) HTTPOption {
	return func(cfg *httpConfig) error {
		if c != nil {
			cfg.client = c
		}
		return nil
	}
}

// WithHeader adds a header to every page data request.
func WithHeader(key, value string) HTTPOption {
	return func(cfg *httpConfig) error {
		cfg.header.Add(key, value)
		return nil
	}
}

// WithPath sets the path of the page data endpoint, relative to the base URL.
//
// Default is /api/page-data.
func WithPath(p string) HTTPOption {
	return func(cfg *httpConfig) error {
		cfg.path = p
		return nil
	}
}

// WithRetries enables retrying page data requests that fail with a
// connection error or a retryable server error, up to retryMax times with
// exponential backoff between waitMin and waitMax. If retryMax is 0, requests
// are not retried.
//
// Default is no retries.
func WithRetries(retryMax int, waitMin, waitMax time.Duration) HTTPOption {
	return func(cfg *httpConfig) error {
		if retryMax < 0 {
			return fmt.Errorf("retry count cannot be negative: %d", retryMax)
		}
		cfg.retryMax = retryMax
		cfg.retryWaitMin = waitMin
		cfg.retryWaitMax = waitMax
		return nil
	}
}

// NewHTTPSource creates a Source that fetches page data from the content API
// at baseURL.
func NewHTTPSource(baseURL string, options ...HTTPOption) (Source, error) {
	cfg := httpConfig{
		client: http.DefaultClient,
		header: make(http.Header),
		path:   defaultPageDataPath,
	}
	for i, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("option %d failed: %s", i, err)
		}
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url must have http or https scheme: %s", baseURL)
	}
	u = u.JoinPath(cfg.path)

	client := cfg.client
	if cfg.retryMax != 0 {
		rclient := &retryablehttp.Client{
			HTTPClient:   client,
			RetryWaitMin: cfg.retryWaitMin,
			RetryWaitMax: cfg.retryWaitMax,
			RetryMax:     cfg.retryMax,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
		}
		client = rclient.StandardClient()
	}

	return &httpSource{
		url:    u,
		client: client,
		header: cfg.header,
	}, nil
}

func (s *httpSource) Fetch(ctx context.Context) (*model.PageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, vals := range s.header {
		for _, val := range vals {
			req.Header.Add(key, val)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierror.FromResponse(resp.StatusCode, body)
	}

	// A null or non-object body would otherwise decode as empty page data.
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("cannot decode page data: response is not a JSON object")
	}
	var pd model.PageData
	if err = json.Unmarshal(body, &pd); err != nil {
		return nil, fmt.Errorf("cannot decode page data: %w", err)
	}
	if pd.Services == nil {
		pd.Services = []model.Service{}
	}
	if pd.Testimonials == nil {
		pd.Testimonials = []model.Testimonial{}
	}
	return &pd, nil
}

func (s *httpSource) String() string {
	return s.url.String()
}
