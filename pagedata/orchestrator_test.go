package pagedata_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ledgerline/erpsite/content/fallback"
	"github.com/ledgerline/erpsite/content/model"
	"github.com/ledgerline/erpsite/internal/test"
	"github.com/ledgerline/erpsite/loading"
	"github.com/ledgerline/erpsite/pagedata"
	"github.com/stretchr/testify/require"
)

// pageServer serves page data and counts requests. When gate is set, every
// request after the first free ones blocks until gate is closed. Requests
// fail when status is set to something other than 200.
type pageServer struct {
	*httptest.Server
	calls  atomic.Int32
	free   atomic.Int32
	status atomic.Int32
	gate   chan struct{}
	data   *model.PageData
}

func newPageServer(t *testing.T, pd *model.PageData, gate chan struct{}) *pageServer {
	ps := &pageServer{
		data: pd,
		gate: gate,
	}
	ps.status.Store(http.StatusOK)
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ps.calls.Add(1)
		if ps.gate != nil && n > ps.free.Load() {
			<-ps.gate
		}
		if status := int(ps.status.Load()); status != http.StatusOK {
			http.Error(w, "unavailable", status)
			return
		}
		_ = json.NewEncoder(w).Encode(ps.data)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func newOrchestrator(t *testing.T, url string, options ...pagedata.Option) *pagedata.Orchestrator {
	src, err := pagedata.NewHTTPSource(url)
	require.NoError(t, err)
	o, err := pagedata.New(src, options...)
	require.NoError(t, err)
	return o
}

func TestLoadWithinTTLUsesCache(t *testing.T) {
	pd := &model.PageData{
		Hero:         &model.Hero{Title: "X"},
		Services:     []model.Service{{ID: "1", Title: "Svc"}},
		Testimonials: []model.Testimonial{},
	}
	ps := newPageServer(t, pd, nil)
	mock := clock.NewMock()
	o := newOrchestrator(t, ps.URL, pagedata.WithClock(mock))
	ctx := context.Background()

	first := o.Load(ctx)
	require.Equal(t, pd, first)

	mock.Add(5 * time.Millisecond)
	require.Same(t, first, o.Load(ctx))
	mock.Add(5 * time.Millisecond)
	require.Same(t, first, o.Load(ctx))
	require.Equal(t, int32(1), ps.calls.Load())

	st := o.State()
	require.Equal(t, pd.Hero, st.Hero)
	require.Equal(t, pd.Services, st.Services)
	require.Equal(t, pd.Testimonials, st.Testimonials)
	require.Empty(t, st.Err)
	require.False(t, st.Degraded)

	// At 31000ms the cached copy is stale.
	mock.Add(30990 * time.Millisecond)
	second := o.Load(ctx)
	require.Equal(t, int32(2), ps.calls.Load())
	require.NotSame(t, first, second)
	require.Equal(t, pd, second)
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	gate := make(chan struct{})
	ps := newPageServer(t, test.RandomPageData(2, 2), gate)
	o := newOrchestrator(t, ps.URL, pagedata.WithClock(clock.NewMock()))

	const n = 10
	results := make([]*model.PageData, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = o.Load(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return ps.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	require.Equal(t, int32(1), ps.calls.Load())
	for i := 1; i < n; i++ {
		require.Same(t, results[0], results[i])
	}
}

func TestLoadingIndicator(t *testing.T) {
	gate := make(chan struct{})
	ps := newPageServer(t, test.RandomPageData(1, 1), gate)
	mock := clock.NewMock()
	o := newOrchestrator(t, ps.URL, pagedata.WithClock(mock))
	require.False(t, o.IsLoading())

	done := make(chan struct{})
	go func() {
		o.Load(context.Background())
		close(done)
	}()

	require.Eventually(t, o.IsLoading, time.Second, time.Millisecond)
	require.True(t, o.State().Loading)
	close(gate)
	<-done

	// Cleared only after the drain delay.
	require.True(t, o.IsLoading())
	mock.Add(250 * time.Millisecond)
	require.Eventually(t, func() bool { return !o.IsLoading() }, time.Second, time.Millisecond)

	// A cache hit does not touch the indicator.
	o.Load(context.Background())
	require.False(t, o.IsLoading())
	require.Equal(t, 0, o.Coordinator().Count())
}

func TestFallbackOnFailure(t *testing.T) {
	ps := newPageServer(t, test.RandomPageData(2, 2), nil)
	ps.status.Store(http.StatusInternalServerError)
	o := newOrchestrator(t, ps.URL, pagedata.WithClock(clock.NewMock()))
	ctx := context.Background()

	expect, err := fallback.Load()
	require.NoError(t, err)

	got := o.Load(ctx)
	require.Nil(t, got.Hero)
	require.Equal(t, expect.Services, got.Services)
	require.Equal(t, expect.Testimonials, got.Testimonials)

	st := o.State()
	require.True(t, st.Degraded)
	require.Contains(t, st.Err, "cannot load page data")
	require.Equal(t, expect.Services, st.Services)

	// Fallback data is not cached.
	o.Load(ctx)
	require.Equal(t, int32(2), ps.calls.Load())

	ps.status.Store(http.StatusOK)
	got = o.Load(ctx)
	require.Equal(t, ps.data, got)
	st = o.State()
	require.False(t, st.Degraded)
	require.Empty(t, st.Err)
	require.Equal(t, int32(3), ps.calls.Load())
}

func TestFallbackFailure(t *testing.T) {
	ps := newPageServer(t, nil, nil)
	ps.status.Store(http.StatusBadGateway)
	o := newOrchestrator(t, ps.URL,
		pagedata.WithClock(clock.NewMock()),
		pagedata.WithFallback(func() (*model.PageData, error) {
			return nil, errors.New("boom")
		}))

	got := o.Load(context.Background())
	require.NotNil(t, got)
	require.Nil(t, got.Hero)
	require.Empty(t, got.Services)
	require.Empty(t, got.Testimonials)

	st := o.State()
	require.True(t, st.Degraded)
	require.Contains(t, st.Err, "fallback failed: boom")
}

func TestFallbackValueNotModified(t *testing.T) {
	ps := newPageServer(t, nil, nil)
	ps.status.Store(http.StatusServiceUnavailable)
	shared := &model.PageData{Hero: &model.Hero{Title: "Offline"}}
	o := newOrchestrator(t, ps.URL,
		pagedata.WithClock(clock.NewMock()),
		pagedata.WithFallback(func() (*model.PageData, error) {
			return shared, nil
		}))

	got := o.Load(context.Background())
	require.NotSame(t, shared, got)
	require.Equal(t, shared.Hero, got.Hero)
	require.NotNil(t, got.Services)
	require.NotNil(t, got.Testimonials)
	require.Nil(t, shared.Services)
	require.Nil(t, shared.Testimonials)
}

func TestRefetch(t *testing.T) {
	ps := newPageServer(t, test.RandomPageData(2, 1), nil)
	o := newOrchestrator(t, ps.URL, pagedata.WithClock(clock.NewMock()))
	ctx := context.Background()

	first := o.Load(ctx)
	second := o.Refetch(ctx)
	require.Equal(t, int32(2), ps.calls.Load())
	require.NotSame(t, first, second)
	require.Same(t, second, o.Load(ctx))
	require.Equal(t, int32(2), ps.calls.Load())
}

func TestConcurrentRefetchSharesOneFetch(t *testing.T) {
	gate := make(chan struct{})
	ps := newPageServer(t, test.RandomPageData(1, 1), gate)
	ps.free.Store(1)
	o := newOrchestrator(t, ps.URL, pagedata.WithClock(clock.NewMock()))
	o.Load(context.Background())
	require.Equal(t, int32(1), ps.calls.Load())

	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			o.Refetch(context.Background())
		}()
	}

	require.Eventually(t, func() bool {
		return ps.calls.Load() == 2 && o.Coordinator().Count() == n
	}, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()
	require.Equal(t, int32(2), ps.calls.Load())
}

func TestCanceledLoadStillCaches(t *testing.T) {
	gate := make(chan struct{})
	ps := newPageServer(t, test.RandomPageData(1, 2), gate)
	o := newOrchestrator(t, ps.URL, pagedata.WithClock(clock.NewMock()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *model.PageData)
	go func() {
		done <- o.Load(ctx)
	}()
	require.Eventually(t, func() bool { return ps.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	got := <-done
	require.Nil(t, got.Hero)
	require.True(t, o.State().Degraded)
	require.Contains(t, o.State().Err, context.Canceled.Error())

	close(gate)
	got = o.Load(context.Background())
	require.Equal(t, ps.data, got)
	require.Equal(t, int32(1), ps.calls.Load())
}

func TestSharedCoordinator(t *testing.T) {
	coord, err := loading.New(loading.WithDrainDelay(0))
	require.NoError(t, err)

	gate1 := make(chan struct{})
	gate2 := make(chan struct{})
	ps1 := newPageServer(t, test.RandomPageData(1, 1), gate1)
	ps2 := newPageServer(t, test.RandomPageData(1, 1), gate2)
	o1 := newOrchestrator(t, ps1.URL, pagedata.WithCoordinator(coord))
	o2 := newOrchestrator(t, ps2.URL, pagedata.WithCoordinator(coord))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		o1.Load(context.Background())
	}()
	done2 := make(chan struct{})
	go func() {
		defer wg.Done()
		o2.Load(context.Background())
		close(done2)
	}()

	require.Eventually(t, func() bool { return coord.Count() == 2 }, time.Second, time.Millisecond)
	require.True(t, o1.IsLoading())

	close(gate2)
	<-done2
	require.True(t, coord.IsLoading())
	require.True(t, o2.IsLoading())

	close(gate1)
	wg.Wait()
	require.False(t, coord.IsLoading())
}

func TestNewErrors(t *testing.T) {
	_, err := pagedata.New(nil)
	require.Error(t, err)

	src, err := pagedata.NewHTTPSource("http://localhost")
	require.NoError(t, err)
	_, err = pagedata.New(src, pagedata.WithCacheTTL(0))
	require.ErrorContains(t, err, "ttl")
}
