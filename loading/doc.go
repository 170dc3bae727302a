// Package loading provides a reference-counted loading indicator shared by
// any number of concurrent operations.
//
// A Coordinator presents a single "busy" flag. Every operation that wants a
// spinner calls Start when it begins and Stop when it settles. The flag is set
// as soon as the first operation starts and is cleared only after the last one
// stops.
//
// ## Drain Delay
//
// When the count of outstanding operations drops to zero the flag is not
// cleared immediately. It is cleared after a short drain delay (default 250ms)
// so that one operation ending just before another begins does not make the
// indicator flicker. A Start during the drain delay cancels the pending clear.
//
// ## Watchdog
//
// Each time the flag goes from false to true a watchdog timer is armed
// (default 20s). If the flag is still set when the watchdog fires, the count is
// forced to zero and the flag is cleared, regardless of how many operations
// are believed to be outstanding. A leaked Start therefore cannot leave the
// indicator on forever. The watchdog is cancelled when the flag clears
// normally. Stop calls that arrive after a watchdog reset are ignored, with a
// warning.
//
// ## Subscribers
//
// OnChange returns a channel that receives the new flag value at every
// transition. Each subscriber channel is backed by an unbounded queue so a
// slow reader never blocks Start or Stop.
package loading
