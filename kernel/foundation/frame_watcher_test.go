package foundation

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterSource struct {
	frame atomic.Uint64
	fail  atomic.Bool
}

var errInactive = errors.New("inactive")

func (c *counterSource) GetFrame() (uint64, error) {
	if c.fail.Load() {
		return 0, errInactive
	}
	return c.frame.Load(), nil
}

func TestFrameWatcher_StartsAtCurrentFrame(t *testing.T) {
	src := &counterSource{}
	src.frame.Store(7)

	fw, err := NewFrameWatcher(src)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), fw.Last())
}

func TestFrameWatcher_FastPath(t *testing.T) {
	src := &counterSource{}
	fw, err := NewFrameWatcher(src)
	require.NoError(t, err)

	src.frame.Add(1)

	changed, err := fw.WaitForChange(time.Second)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint64(1), fw.Last())
}

func TestFrameWatcher_Timeout(t *testing.T) {
	src := &counterSource{}
	fw, err := NewFrameWatcher(src)
	require.NoError(t, err)

	changed, err := fw.WaitForChange(10 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, uint64(1), fw.Stats().Timeouts)
}

func TestFrameWatcher_SlowPath(t *testing.T) {
	src := &counterSource{}
	fw, err := NewFrameWatcher(src)
	require.NoError(t, err)

	start := time.Now()
	go func() {
		time.Sleep(50 * time.Millisecond)
		src.frame.Add(1)
	}()

	changed, err := fw.WaitForChange(time.Second)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.WithinDuration(t, start.Add(50*time.Millisecond), time.Now(), 40*time.Millisecond)
}

func TestFrameWatcher_NotifyWakesWaiter(t *testing.T) {
	src := &counterSource{}
	fw, err := NewFrameWatcher(src)
	require.NoError(t, err)
	// Polling alone would not see the change within the timeout.
	fw.SetPolling(time.Microsecond, time.Hour)

	go func() {
		time.Sleep(20 * time.Millisecond)
		src.frame.Add(1)
		fw.Notify()
	}()

	changed, err := fw.WaitForChange(2 * time.Second)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint64(1), fw.Stats().Notifies)
}

func TestFrameWatcher_CountsSkippedFrames(t *testing.T) {
	src := &counterSource{}
	fw, err := NewFrameWatcher(src)
	require.NoError(t, err)

	src.frame.Store(5)
	changed, err := fw.WaitForChange(time.Second)
	require.NoError(t, err)
	assert.True(t, changed)

	stats := fw.Stats()
	assert.Equal(t, uint64(4), stats.Skipped)
	assert.Equal(t, uint64(1), stats.Changes)
}

func TestFrameWatcher_SourceError(t *testing.T) {
	src := &counterSource{}
	fw, err := NewFrameWatcher(src)
	require.NoError(t, err)

	src.fail.Store(true)
	changed, err := fw.WaitForChange(time.Second)
	assert.ErrorIs(t, err, errInactive)
	assert.False(t, changed)

	_, err = NewFrameWatcher(src)
	assert.ErrorIs(t, err, errInactive)
}

func TestFrameWatcher_ConcurrentReaders(t *testing.T) {
	src := &counterSource{}
	fw, err := NewFrameWatcher(src)
	require.NoError(t, err)

	const triggers = 10
	const readers = 5

	var wg sync.WaitGroup
	wg.Add(readers)

	for i := 0; i < readers; i++ {
		r := fw.Reader()
		go func() {
			defer wg.Done()
			for r.Last() < triggers {
				changed, err := r.WaitForChange(time.Second)
				assert.NoError(t, err)
				assert.True(t, changed)
			}
		}()
	}

	for i := 0; i < triggers; i++ {
		time.Sleep(5 * time.Millisecond)
		src.frame.Add(1)
		fw.Notify()
	}

	wg.Wait()
}
