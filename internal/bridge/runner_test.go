package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	got  [][]float64
	fail error
}

func (s *recordingSink) Publish(_ context.Context, positions []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, positions)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func openSegment(t *testing.T) *shm.Segment {
	t.Helper()
	settings, err := shm.NewSettings(8888, 8888, 3, 0, 0, shm.PositionCommand)
	require.NoError(t, err)
	seg, err := shm.Open(settings, true, shm.WithBackend(shm.NewMemoryBackend()))
	require.NoError(t, err)
	require.True(t, seg.CheckHeader())
	t.Cleanup(func() { _ = seg.Close() })
	return seg
}

func TestRunner_StepForwardsPositions(t *testing.T) {
	seg := openSegment(t)
	require.NoError(t, seg.WritePositionCommand([]float64{0.5, 0.25, -1}))

	sink := &recordingSink{}
	r := NewRunner(seg, sink, 100, quietLogger())
	require.NoError(t, r.Step(context.Background()))

	assert.Equal(t, [][]float64{{0.5, 0.25, -1}}, sink.got)
	sent, failed := r.Counts()
	assert.Equal(t, uint64(1), sent)
	assert.Equal(t, uint64(0), failed)
}

func TestRunner_StepErrors(t *testing.T) {
	seg := openSegment(t)
	sink := &recordingSink{fail: ErrThrottled}
	r := NewRunner(seg, sink, 100, quietLogger())

	assert.ErrorIs(t, r.Step(context.Background()), ErrThrottled)

	require.NoError(t, seg.Close())
	assert.ErrorIs(t, r.Step(context.Background()), shm.ErrNotActive)

	_, failed := r.Counts()
	assert.Equal(t, uint64(2), failed)
}

func TestRunner_RunUntilCancelled(t *testing.T) {
	seg := openSegment(t)
	sink := &recordingSink{}
	r := NewRunner(seg, sink, 200, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := r.Run(ctx)
	assert.NoError(t, err)
	assert.Greater(t, sink.count(), 5)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}
