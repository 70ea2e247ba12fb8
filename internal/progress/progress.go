// Package progress implements the monotonic progress counter and pluggable
// reporter described in spec §4.6: an atomic add/load counter, sampled at
// fixed intervals by a reporter that is never in the critical path.
package progress

import (
	"sync/atomic"
	"time"
)

// Counter is a monotonic count of completed prefixes (persisted or
// skipped), incremented once per prefix per spec §4.5 step 3/§4.6.
type Counter struct {
	n atomic.Uint64
}

// Add increments the counter by delta and returns the new value.
func (c *Counter) Add(delta uint64) uint64 { return c.n.Add(delta) }

// Load returns the current count.
func (c *Counter) Load() uint64 { return c.n.Load() }

// Reporter samples a Counter at fixed intervals and renders progress. It is
// invoked from a dedicated goroutine, never from a worker's hot path.
type Reporter interface {
	// Start begins sampling counter against total until Finish is called.
	// Start must not block the caller.
	Start(counter *Counter, total uint64)
	// Finish stops sampling and renders a final state.
	Finish()
}

// NoopReporter discards all progress; selected by --no-progress.
type NoopReporter struct{}

func (NoopReporter) Start(*Counter, uint64) {}
func (NoopReporter) Finish()                {}

// TickerReporter is a minimal polling reporter: it samples counter every
// interval and hands the (current, total) pair to onSample. It exists as
// the seam behind the mpb-backed reporter in cmd/hibp-build, and is used
// directly in tests that don't want a real terminal bar.
type TickerReporter struct {
	Interval time.Duration
	OnSample func(current, total uint64)
	OnFinish func()

	stop chan struct{}
	done chan struct{}
}

// Start implements Reporter.
func (r *TickerReporter) Start(counter *Counter, total uint64) {
	if r.Interval <= 0 {
		r.Interval = 100 * time.Millisecond
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				current := counter.Load()
				if r.OnSample != nil {
					r.OnSample(current, total)
				}
				if current >= total {
					return
				}
			case <-r.stop:
				return
			}
		}
	}()
}

// Finish implements Reporter.
func (r *TickerReporter) Finish() {
	if r.stop == nil {
		return
	}
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
	if r.OnFinish != nil {
		r.OnFinish()
	}
}
