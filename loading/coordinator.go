package loading

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/channelqueue"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("loading")

// Coordinator tracks outstanding operations and exposes a single loading
// flag for all of them. It is safe for concurrent use.
//
// The zero value is not usable; create one with New.
type Coordinator struct {
	clock      clock.Clock
	drainDelay time.Duration
	watchdog   time.Duration

	mu    sync.Mutex
	count int
	flag  bool

	// Each timer callback captures the sequence current when it was armed,
	// and does nothing if the sequence has moved on since. This makes a
	// callback that was already running when its timer was stopped harmless.
	drainTimer    *clock.Timer
	drainSeq      uint64
	watchdogTimer *clock.Timer
	watchdogSeq   uint64

	subs map[chan<- bool]struct{}
}

// New creates a new Coordinator in the idle state.
func New(options ...Option) (*Coordinator, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		clock:      opts.clock,
		drainDelay: opts.drainDelay,
		watchdog:   opts.watchdog,
		subs:       make(map[chan<- bool]struct{}),
	}, nil
}

// Start registers one more outstanding operation.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Draining: the flag is still set, keep it that way.
	c.cancelDrain()

	c.count++
	if !c.flag {
		c.flag = true
		c.armWatchdog()
		c.notify(true)
	}
}

// Stop marks one outstanding operation as settled. Calls without a matching
// Start are ignored.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count == 0 {
		log.Warn("Loading stop without matching start")
		return
	}
	c.count--
	if c.count != 0 {
		return
	}

	if c.drainDelay == 0 {
		c.clear()
		return
	}
	c.drainSeq++
	seq := c.drainSeq
	c.drainTimer = c.clock.AfterFunc(c.drainDelay, func() {
		c.drained(seq)
	})
}

// IsLoading reports whether the loading flag is set.
func (c *Coordinator) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flag
}

// Count returns the number of outstanding operations.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// OnChange creates a channel that receives the loading flag each time it
// changes.
//
// Calling the returned cancel function removes the channel from the set of
// channels to notify, and closes it so that readers can stop waiting.
func (c *Coordinator) OnChange() (<-chan bool, context.CancelFunc) {
	cq := channelqueue.New[bool](-1)
	ch := cq.In()

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	cncl := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			close(ch)
			c.mu.Unlock()
		})
	}
	return cq.Out(), cncl
}

func (c *Coordinator) drained(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.drainSeq || c.drainTimer == nil {
		return
	}
	c.drainTimer = nil
	if c.count != 0 {
		return
	}
	c.clear()
}

func (c *Coordinator) watchdogFired(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.watchdogSeq || c.watchdogTimer == nil {
		return
	}
	c.watchdogTimer = nil
	if !c.flag {
		return
	}
	log.Warnw("Loading watchdog expired, resetting loading state", "outstanding", c.count, "after", c.watchdog)
	c.count = 0
	c.cancelDrain()
	c.flag = false
	c.notify(false)
}

// clear moves to the idle state. Must be called with mu held.
func (c *Coordinator) clear() {
	c.cancelWatchdog()
	if c.flag {
		c.flag = false
		c.notify(false)
	}
}

func (c *Coordinator) armWatchdog() {
	c.cancelWatchdog()
	c.watchdogSeq++
	seq := c.watchdogSeq
	c.watchdogTimer = c.clock.AfterFunc(c.watchdog, func() {
		c.watchdogFired(seq)
	})
}

func (c *Coordinator) cancelWatchdog() {
	if c.watchdogTimer != nil {
		c.watchdogTimer.Stop()
		c.watchdogTimer = nil
	}
	c.watchdogSeq++
}

func (c *Coordinator) cancelDrain() {
	if c.drainTimer != nil {
		c.drainTimer.Stop()
		c.drainTimer = nil
	}
	c.drainSeq++
}

// notify sends the flag to every subscriber. Must be called with mu held.
func (c *Coordinator) notify(flag bool) {
	for ch := range c.subs {
		ch <- flag
	}
	log.Debugw("Loading flag changed", "loading", flag)
}
