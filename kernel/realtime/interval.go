// Package realtime paces periodic control loops and records how well they
// kept their period.
package realtime

import (
	"context"
	"time"
)

// IntervalStats summarizes the intervals seen since the last Reset.
type IntervalStats struct {
	Count    uint64
	Min      time.Duration
	Max      time.Duration
	Mean     time.Duration
	Overruns uint64 // deadlines that had already passed when SleepUntilNext ran
}

// IntervalTimer wakes a loop on a fixed period. Deadlines are absolute, so a
// slow iteration shortens the next sleep rather than shifting every later
// wake-up. After an overrun longer than a whole period the schedule restarts
// from now.
type IntervalTimer struct {
	period time.Duration
	next   time.Time
	last   time.Time

	count    uint64
	min      time.Duration
	max      time.Duration
	sum      time.Duration
	overruns uint64
}

// NewIntervalTimer returns a timer for period. A non-positive period makes
// SleepUntilNext return immediately.
func NewIntervalTimer(period time.Duration) *IntervalTimer {
	return &IntervalTimer{period: period}
}

// Period returns the configured period.
func (t *IntervalTimer) Period() time.Duration {
	return t.period
}

// Start anchors the schedule at the current time.
func (t *IntervalTimer) Start() {
	now := time.Now()
	t.last = now
	t.next = now.Add(t.period)
}

// SleepUntilNext blocks until the next deadline or until ctx is done.
func (t *IntervalTimer) SleepUntilNext(ctx context.Context) error {
	if t.next.IsZero() {
		t.Start()
	}
	wait := time.Until(t.next)
	if wait <= 0 {
		t.overruns++
		if -wait > t.period {
			t.next = time.Now()
		}
	} else {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	t.next = t.next.Add(t.period)
	return nil
}

// Sync records the time since the previous Sync (or Start) and returns it.
func (t *IntervalTimer) Sync() time.Duration {
	now := time.Now()
	if t.last.IsZero() {
		t.last = now
		return 0
	}
	d := now.Sub(t.last)
	t.last = now

	if t.count == 0 || d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
	t.sum += d
	t.count++
	return d
}

// MaxInterval returns the longest interval since the last Reset.
func (t *IntervalTimer) MaxInterval() time.Duration {
	return t.max
}

// Stats returns the current statistics.
func (t *IntervalTimer) Stats() IntervalStats {
	s := IntervalStats{
		Count:    t.count,
		Min:      t.min,
		Max:      t.max,
		Overruns: t.overruns,
	}
	if t.count > 0 {
		s.Mean = t.sum / time.Duration(t.count)
	}
	return s
}

// Reset clears statistics without touching the schedule.
func (t *IntervalTimer) Reset() {
	t.count = 0
	t.min = 0
	t.max = 0
	t.sum = 0
	t.overruns = 0
}
