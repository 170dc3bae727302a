// Package pagedata provides the single accessor that landing page consumers
// use to get the hero banner, services and testimonials.
//
// An Orchestrator fetches the composite page data from a Source, usually the
// content API's page-data endpoint, at most once per cache window no matter
// how many consumers ask for it at the same time. It drives a shared loading
// indicator while a fetch is outstanding, and substitutes a static dataset
// when the fetch fails.
//
// ## Caching
//
// Results are kept in a reqcache.Cache under a single key. A call to Load
// within the cache time-to-live (default 30 seconds) of the last successful
// fetch returns the same PageData with no network access and without touching
// the loading indicator. Concurrent calls made while a fetch is in flight all
// wait for that fetch and get its result. Refetch drops the cached result
// first, so it always causes one new fetch, shared by everyone calling at the
// same time.
//
// ## Loading Indicator
//
// Every Load that has to wait for a fetch holds the loading.Coordinator for
// the duration of the wait, and releases it on every exit path. Several
// orchestrators, or other operations, can share one Coordinator with
// WithCoordinator so that the page has one busy flag.
//
// ## Fallback
//
// Load never returns an error. If the fetch fails, the failure is logged and
// recorded in State().Err, State().Degraded is set, and the fallback dataset
// (services and testimonials, no hero) is returned instead. Fallback data is
// not cached, so the next Load tries the source again. If the fallback
// cannot be loaded either, an empty PageData is returned and the error
// message says so.
package pagedata
