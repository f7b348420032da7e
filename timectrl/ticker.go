package timectrl

import (
	"sync"
	"time"
)

// Ticker runs fn at a fixed wall-clock interval on its own goroutine until
// stopped. Stop is idempotent and waits for an in-flight fn to return, so
// after Stop no further callback can observe or mutate shared state.
type Ticker struct {
	interval time.Duration
	clock    SimClock
	fn       func(now time.Time)

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewTicker prepares a ticker. It does nothing until Start.
func NewTicker(interval time.Duration, clock SimClock, fn func(now time.Time)) *Ticker {
	if clock == nil {
		clock = WallClock{}
	}
	return &Ticker{
		interval: interval,
		clock:    clock,
		fn:       fn,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop. Calling Start more than once has no effect.
func (t *Ticker) Start() {
	t.startOnce.Do(func() {
		go t.run()
	})
}

func (t *Ticker) run() {
	defer close(t.done)
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-t.quit:
			return
		case <-tk.C:
			// Stop may have raced with the tick; honour it first.
			select {
			case <-t.quit:
				return
			default:
			}
			t.fn(t.clock.Now())
		}
	}
}

// Stop ends the loop. Safe to call any number of times, from any goroutine
// except the ticker's own callback (use StopAsync there).
func (t *Ticker) Stop() {
	t.signal()
	t.startOnce.Do(func() { close(t.done) })
	<-t.done
}

// StopAsync requests the loop to end without waiting. It is the variant to
// use from inside the callback.
func (t *Ticker) StopAsync() {
	t.signal()
}

func (t *Ticker) signal() {
	t.stopOnce.Do(func() { close(t.quit) })
}

// Stopped reports whether Stop or StopAsync has been called.
func (t *Ticker) Stopped() bool {
	select {
	case <-t.quit:
		return true
	default:
		return false
	}
}
