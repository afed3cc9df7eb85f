package foundation

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// FrameSource is anything exposing a monotonically increasing frame count,
// normally a *shm.Segment.
type FrameSource interface {
	GetFrame() (uint64, error)
}

const (
	// DefaultSpin is how long WaitForChange busy-polls before sleeping.
	DefaultSpin = 20 * time.Microsecond
	// DefaultPollInterval is the sleep between polls after the spin phase.
	DefaultPollInterval = 200 * time.Microsecond
)

// FrameWatcher blocks until the frame counter of a segment moves. Writers in
// other processes cannot signal it, so it polls; writers in this process may
// call Notify to cut the poll short.
type FrameWatcher struct {
	src       FrameSource
	lastValue uint64

	spin         time.Duration
	pollInterval time.Duration

	waiters   *[]chan struct{}
	waitersMu *sync.RWMutex

	stats *WatcherStats
}

// WatcherStats is shared by a watcher and all of its readers.
type WatcherStats struct {
	Changes  uint64 // WaitForChange calls that saw a new frame
	Timeouts uint64 // WaitForChange calls that gave up
	Polls    uint64 // counter loads
	Skipped  uint64 // frames committed between two observed changes
	Notifies uint64
}

// NewFrameWatcher starts watching src from its current frame.
func NewFrameWatcher(src FrameSource) (*FrameWatcher, error) {
	frame, err := src.GetFrame()
	if err != nil {
		return nil, err
	}
	waiters := make([]chan struct{}, 0, 4)
	return &FrameWatcher{
		src:          src,
		lastValue:    frame,
		spin:         DefaultSpin,
		pollInterval: DefaultPollInterval,
		waiters:      &waiters,
		waitersMu:    &sync.RWMutex{},
		stats:        &WatcherStats{},
	}, nil
}

// SetPolling overrides the spin and sleep durations. Zero keeps the current
// value.
func (fw *FrameWatcher) SetPolling(spin, interval time.Duration) {
	if spin > 0 {
		fw.spin = spin
	}
	if interval > 0 {
		fw.pollInterval = interval
	}
}

// Reader creates a cursor of its own that shares notification and stats.
// Each goroutine waiting on the same source needs its own reader.
func (fw *FrameWatcher) Reader() *FrameWatcher {
	r := *fw
	if frame, err := fw.src.GetFrame(); err == nil {
		r.lastValue = frame
	}
	return &r
}

// Last returns the frame observed by the most recent successful wait.
func (fw *FrameWatcher) Last() uint64 {
	return fw.lastValue
}

func (fw *FrameWatcher) poll() (bool, error) {
	atomic.AddUint64(&fw.stats.Polls, 1)
	current, err := fw.src.GetFrame()
	if err != nil {
		return false, err
	}
	if current == fw.lastValue {
		return false, nil
	}
	if current > fw.lastValue+1 {
		atomic.AddUint64(&fw.stats.Skipped, current-fw.lastValue-1)
	}
	fw.lastValue = current
	atomic.AddUint64(&fw.stats.Changes, 1)
	return true, nil
}

// WaitForChange returns true once the frame differs from the last one seen,
// or false after timeout. Errors come from the source (for example a segment
// that is no longer active).
func (fw *FrameWatcher) WaitForChange(timeout time.Duration) (bool, error) {
	start := time.Now()
	deadline := start.Add(timeout)

	// Fast path
	if changed, err := fw.poll(); changed || err != nil {
		return changed, err
	}

	spinDeadline := start.Add(fw.spin)
	for time.Now().Before(spinDeadline) {
		runtime.Gosched()
		if changed, err := fw.poll(); changed || err != nil {
			return changed, err
		}
	}

	ch := make(chan struct{}, 1)
	fw.addWaiter(ch)
	defer fw.removeWaiter(ch)

	ticker := time.NewTicker(fw.pollInterval)
	defer ticker.Stop()
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case <-ch:
		case <-ticker.C:
		case <-timer.C:
			if changed, err := fw.poll(); changed || err != nil {
				return changed, err
			}
			atomic.AddUint64(&fw.stats.Timeouts, 1)
			return false, nil
		}
		if changed, err := fw.poll(); changed || err != nil {
			return changed, err
		}
	}
}

// Notify wakes local waiters so they poll immediately. Writers in the same
// process call it after a write.
func (fw *FrameWatcher) Notify() {
	atomic.AddUint64(&fw.stats.Notifies, 1)
	fw.waitersMu.RLock()
	defer fw.waitersMu.RUnlock()
	for _, ch := range *fw.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Stats returns a snapshot of the shared counters.
func (fw *FrameWatcher) Stats() WatcherStats {
	return WatcherStats{
		Changes:  atomic.LoadUint64(&fw.stats.Changes),
		Timeouts: atomic.LoadUint64(&fw.stats.Timeouts),
		Polls:    atomic.LoadUint64(&fw.stats.Polls),
		Skipped:  atomic.LoadUint64(&fw.stats.Skipped),
		Notifies: atomic.LoadUint64(&fw.stats.Notifies),
	}
}

func (fw *FrameWatcher) addWaiter(ch chan struct{}) {
	fw.waitersMu.Lock()
	defer fw.waitersMu.Unlock()
	*fw.waiters = append(*fw.waiters, ch)
}

func (fw *FrameWatcher) removeWaiter(ch chan struct{}) {
	fw.waitersMu.Lock()
	defer fw.waitersMu.Unlock()
	for i, waiter := range *fw.waiters {
		if waiter == ch {
			*fw.waiters = append((*fw.waiters)[:i], (*fw.waiters)[i+1:]...)
			break
		}
	}
}
