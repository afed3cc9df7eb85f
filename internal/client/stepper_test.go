package client

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/irsl/shmcontroller/kernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepToward(t *testing.T) {
	got := StepToward([]float64{0.1, -0.2, 0.0, 0.03, -0.05, 0.3}, 0.05)
	assert.InDeltaSlice(t, []float64{0.05, -0.15, 0, 0, 0, 0.25}, got, 1e-12)
}

func TestStepper_ConvergesToZero(t *testing.T) {
	settings, err := shm.NewSettings(8888, 8888, 5, 0, 0, shm.PositionCommand|shm.PositionGains)
	require.NoError(t, err)
	seg, err := shm.Open(settings, true, shm.WithBackend(shm.NewMemoryBackend()))
	require.NoError(t, err)
	defer seg.Close()
	require.True(t, seg.CheckHeader())
	require.NoError(t, seg.WritePositionCommand([]float64{0.1, -0.2, 0.0, 0.3, -0.4}))

	s := &Stepper{
		Seg:        seg,
		Delta:      0.05,
		Interval:   time.Millisecond,
		Iterations: 10,
		Logger:     utils.NewLogger(utils.LoggerConfig{Level: utils.ERROR, Output: io.Discard}),
	}
	last, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, last)

	frame, err := seg.GetFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(11), frame)
}

func TestStepper_StopsOnCancel(t *testing.T) {
	settings, err := shm.NewSettings(1, 1, 1, 0, 0, shm.PositionCommand)
	require.NoError(t, err)
	seg, err := shm.Open(settings, true, shm.WithBackend(shm.NewMemoryBackend()))
	require.NoError(t, err)
	defer seg.Close()
	require.True(t, seg.CheckHeader())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Stepper{Seg: seg, Interval: time.Hour, Iterations: 5}
	_, err = s.Run(ctx)
	require.NoError(t, err)

	frame, err := seg.GetFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame)
}

func TestStepper_NotActive(t *testing.T) {
	settings, err := shm.NewSettings(1, 1, 1, 0, 0, shm.PositionCommand)
	require.NoError(t, err)
	seg, err := shm.Open(settings, true, shm.WithBackend(shm.NewMemoryBackend()))
	require.NoError(t, err)
	defer seg.Close()

	s := &Stepper{Seg: seg, Iterations: 1}
	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, shm.ErrNotActive)
}
