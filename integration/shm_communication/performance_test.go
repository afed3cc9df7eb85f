package shm_communication

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== PERFORMANCE & LOAD TESTS ==========

// TestPerformance_WriteRate measures committed writes per second.
func TestPerformance_WriteRate(t *testing.T) {
	s, err := shm.NewSettings(1, 1, 32, 0, 0, shm.PositionCommand)
	require.NoError(t, err)
	seg := openSegment(t, s, true, shm.WithBackend(fileBackend(t)))
	require.True(t, seg.CheckHeader())

	values := make([]float64, 32)
	iterations := 100000

	start := time.Now()
	for i := 0; i < iterations; i++ {
		values[0] = float64(i)
		require.NoError(t, seg.WritePositionCommand(values))
	}
	duration := time.Since(start)

	rate := float64(iterations) / duration.Seconds()
	t.Logf("Writes: %d in %v (%.0f/s)", iterations, duration, rate)
	assert.Greater(t, rate, 10000.0, "a 1 kHz control loop needs headroom")

	frame, err := seg.GetFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(iterations), frame)
}

// TestPerformance_ReadersUnderLoad checks that readers keep completing while
// a writer runs flat out.
func TestPerformance_ReadersUnderLoad(t *testing.T) {
	backend := fileBackend(t)
	s, err := shm.NewSettings(1, 1, 16, 0, 0, shm.PositionCommand)
	require.NoError(t, err)
	writer := openSegment(t, s, true, shm.WithBackend(backend))
	require.True(t, writer.CheckHeader())

	var stop atomic.Bool
	var reads, torn atomic.Uint64
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		reader := openSegment(t, s, false, shm.WithBackend(backend), shm.WithReadRetries(64))
		require.True(t, reader.CheckHeader())
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]float64, 16)
			for !stop.Load() {
				if err := reader.ReadInto(shm.PositionCommand, buf); err != nil {
					torn.Add(1)
					continue
				}
				reads.Add(1)
			}
		}()
	}

	values := make([]float64, 16)
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.NoError(t, writer.WritePositionCommand(values))
	}
	stop.Store(true)
	wg.Wait()

	t.Logf("Reads: %d, gave up: %d", reads.Load(), torn.Load())
	assert.Greater(t, reads.Load(), uint64(0))
}

func BenchmarkWritePositionCommand(b *testing.B) {
	s, _ := shm.NewSettings(1, 1, 32, 0, 0, shm.PositionCommand)
	seg, err := shm.Open(s, true, shm.WithBackend(shm.NewMemoryBackend()))
	if err != nil {
		b.Fatal(err)
	}
	defer seg.Close()
	seg.CheckHeader()
	values := make([]float64, 32)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = seg.WritePositionCommand(values)
	}
}

func BenchmarkReadInto(b *testing.B) {
	s, _ := shm.NewSettings(1, 1, 32, 0, 0, shm.PositionCommand)
	seg, err := shm.Open(s, true, shm.WithBackend(shm.NewMemoryBackend()))
	if err != nil {
		b.Fatal(err)
	}
	defer seg.Close()
	seg.CheckHeader()
	buf := make([]float64, 32)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = seg.ReadInto(shm.PositionCommand, buf)
	}
}
