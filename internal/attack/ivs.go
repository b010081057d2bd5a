package attack

import "time"

// ivCounter sums IVs across capture sessions. The capture tool reports a count
// per output file; when the count drops a new file was started, so the last
// count is banked.
type ivCounter struct {
	previous int
	current  int
}

// Observe records the capture's current count and returns the cumulative total.
func (c *ivCounter) Observe(n int) int {
	if n < c.current {
		c.previous += c.current
	}
	c.current = n
	return c.Total()
}

func (c *ivCounter) Total() int {
	return c.previous + c.current
}

// staleWatchdog fires when the IV count has not grown for longer than threshold.
// After firing it restarts its timer, so a continuous stall fires once per
// threshold interval. A zero threshold never fires.
type staleWatchdog struct {
	threshold time.Duration
	last      int
	since     time.Time
}

func newStaleWatchdog(threshold time.Duration, ivs int, now time.Time) *staleWatchdog {
	return &staleWatchdog{threshold: threshold, last: ivs, since: now}
}

func (w *staleWatchdog) Observe(ivs int, now time.Time) bool {
	if ivs > w.last {
		w.last = ivs
		w.since = now
		return false
	}
	w.last = ivs
	if w.threshold > 0 && now.Sub(w.since) > w.threshold {
		w.since = now
		return true
	}
	return false
}

// Reset restarts the timer, e.g. after the injection process was replaced.
func (w *staleWatchdog) Reset(ivs int, now time.Time) {
	w.last = ivs
	w.since = now
}
