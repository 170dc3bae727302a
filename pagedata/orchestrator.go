package pagedata

import (
	"context"
	"errors"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/ledgerline/erpsite/content/model"
	"github.com/ledgerline/erpsite/loading"
	"github.com/ledgerline/erpsite/reqcache"
)

var log = logging.Logger("pagedata")

const pageDataKey = "page-data"

// State is a snapshot of the most recent Load as seen by consumers.
type State struct {
	Hero         *model.Hero         `json:"hero"`
	Services     []model.Service     `json:"services"`
	Testimonials []model.Testimonial `json:"testimonials"`
	// Loading is the loading indicator of the orchestrator's coordinator.
	Loading bool `json:"loading"`
	// Err describes why the last Load could not use live page data. It is
	// empty after a successful Load.
	Err string `json:"error,omitempty"`
	// Degraded is true when the current data is from the fallback dataset.
	Degraded bool `json:"degraded"`
}

// Orchestrator loads page data from a Source through a request cache and
// drives a loading indicator while doing so. It is safe for concurrent use.
type Orchestrator struct {
	src         Source
	cache       *reqcache.Cache[*model.PageData]
	coordinator *loading.Coordinator
	fallback    func() (*model.PageData, error)

	mu       sync.RWMutex
	data     *model.PageData
	errMsg   string
	degraded bool
}

// New creates an Orchestrator that loads page data from src.
func New(src Source, options ...Option) (*Orchestrator, error) {
	if src == nil {
		return nil, errors.New("nil page data source")
	}
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	cache := opts.cache
	if cache == nil {
		cache, err = reqcache.New[*model.PageData](
			reqcache.WithClock(opts.clock),
			reqcache.WithName("pagedata"),
			reqcache.WithTTL(opts.cacheTTL))
		if err != nil {
			return nil, fmt.Errorf("cannot create page data cache: %w", err)
		}
	}

	coordinator := opts.coordinator
	if coordinator == nil {
		coordinator, err = loading.New(loading.WithClock(opts.clock))
		if err != nil {
			return nil, fmt.Errorf("cannot create loading coordinator: %w", err)
		}
	}

	return &Orchestrator{
		src:         src,
		cache:       cache,
		coordinator: coordinator,
		fallback:    opts.fallback,
	}, nil
}

// Load returns the page data, fetching it from the source if the cached copy
// is missing or older than the cache time-to-live. It never returns nil. If
// the source cannot be fetched, the fallback dataset is returned and the
// failure is reported by State.
//
// If ctx is canceled while waiting, Load stops waiting and returns the
// fallback dataset. The fetch itself continues and its result is cached for
// later callers.
func (o *Orchestrator) Load(ctx context.Context) *model.PageData {
	if pd, ok := o.cache.Peek(pageDataKey); ok {
		o.setState(pd, "", false)
		return pd
	}

	o.coordinator.Start()
	defer o.coordinator.Stop()

	pd, err := o.cache.FetchWithCache(ctx, pageDataKey, o.src.Fetch)
	if err != nil {
		log.Errorw("Cannot load page data, using fallback", "err", err, "source", o.src)
		return o.useFallback(err)
	}
	o.setState(pd, "", false)
	return pd
}

// Refetch drops any cached page data and loads it again from the source.
// Concurrent calls to Refetch and Load share a single fetch.
func (o *Orchestrator) Refetch(ctx context.Context) *model.PageData {
	o.cache.Clear(pageDataKey)
	return o.Load(ctx)
}

// IsLoading returns the loading indicator.
func (o *Orchestrator) IsLoading() bool {
	return o.coordinator.IsLoading()
}

// State returns a snapshot of the data returned by the most recent Load,
// along with the loading indicator and any load failure. Before the first
// Load the lists are empty and the hero is nil.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	st := State{
		Err:      o.errMsg,
		Degraded: o.degraded,
	}
	if o.data != nil {
		st.Hero = o.data.Hero
		st.Services = o.data.Services
		st.Testimonials = o.data.Testimonials
	}
	o.mu.RUnlock()

	if st.Services == nil {
		st.Services = []model.Service{}
	}
	if st.Testimonials == nil {
		st.Testimonials = []model.Testimonial{}
	}
	st.Loading = o.coordinator.IsLoading()
	return st
}

// Coordinator returns the loading coordinator driven by the orchestrator.
func (o *Orchestrator) Coordinator() *loading.Coordinator {
	return o.coordinator
}

func (o *Orchestrator) useFallback(loadErr error) *model.PageData {
	pd, err := o.fallback()
	if err != nil || pd == nil {
		if err == nil {
			err = errors.New("no data")
		}
		log.Errorw("Cannot load fallback page data", "err", err)
		pd = &model.PageData{
			Services:     []model.Service{},
			Testimonials: []model.Testimonial{},
		}
		o.setState(pd, fmt.Sprintf("cannot load page data: %s; fallback failed: %s", loadErr, err), true)
		return pd
	}
	// The fallback may hand out a shared value, so normalize a copy.
	cp := *pd
	if cp.Services == nil {
		cp.Services = []model.Service{}
	}
	if cp.Testimonials == nil {
		cp.Testimonials = []model.Testimonial{}
	}
	o.setState(&cp, "cannot load page data: "+loadErr.Error(), true)
	return &cp
}

func (o *Orchestrator) setState(pd *model.PageData, errMsg string, degraded bool) {
	o.mu.Lock()
	o.data = pd
	o.errMsg = errMsg
	o.degraded = degraded
	o.mu.Unlock()
}
