package pagedata_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledgerline/erpsite/apierror"
	"github.com/ledgerline/erpsite/internal/test"
	"github.com/ledgerline/erpsite/pagedata"
	"github.com/stretchr/testify/require"
)

func TestHTTPSourceFetch(t *testing.T) {
	pd := test.RandomPageData(2, 3)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cms/api/page-data" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Site") != "erp" || r.Header.Get("Accept") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(pd)
	}))
	defer ts.Close()

	src, err := pagedata.NewHTTPSource(ts.URL+"/cms", pagedata.WithHeader("X-Site", "erp"))
	require.NoError(t, err)
	require.Equal(t, ts.URL+"/cms/api/page-data", src.String())

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, pd, got)
}

func TestHTTPSourceEmptyLists(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hero":null}`))
	}))
	defer ts.Close()

	src, err := pagedata.NewHTTPSource(ts.URL)
	require.NoError(t, err)

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Nil(t, got.Hero)
	require.NotNil(t, got.Services)
	require.Empty(t, got.Services)
	require.NotNil(t, got.Testimonials)
	require.Empty(t, got.Testimonials)
}

func TestHTTPSourceErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apierror.Write(w, apierror.Newf(http.StatusNotFound, "no page data"))
	}))
	defer ts.Close()

	src, err := pagedata.NewHTTPSource(ts.URL, pagedata.WithPath("/other"))
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, apierror.StatusOf(err))
	require.ErrorContains(t, err, "no page data")
}

func TestHTTPSourceBadBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer ts.Close()

	src, err := pagedata.NewHTTPSource(ts.URL)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	require.ErrorContains(t, err, "cannot decode page data")
}

func TestHTTPSourceNotAnObject(t *testing.T) {
	for _, body := range []string{"null", "[]", "\"page\"", ""} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		src, err := pagedata.NewHTTPSource(ts.URL)
		require.NoError(t, err)

		pd, err := src.Fetch(context.Background())
		require.ErrorContains(t, err, "not a JSON object", "body %q", body)
		require.Nil(t, pd)
		ts.Close()
	}
}

func TestHTTPSourceRetries(t *testing.T) {
	pd := test.RandomPageData(1, 1)
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(pd)
	}))
	defer ts.Close()

	src, err := pagedata.NewHTTPSource(ts.URL, pagedata.WithRetries(2, time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, pd, got)
	require.Equal(t, int32(2), calls.Load())
}

func TestNewHTTPSourceErrors(t *testing.T) {
	_, err := pagedata.NewHTTPSource("ftp://example.com")
	require.ErrorContains(t, err, "http or https")

	_, err = pagedata.NewHTTPSource("http://example.com", pagedata.WithRetries(-1, 0, 0))
	require.ErrorContains(t, err, "negative")
}
