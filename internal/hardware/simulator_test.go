package hardware

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

func quietLogger() *utils.Logger {
	return utils.NewLogger(utils.LoggerConfig{Level: utils.ERROR, Output: io.Discard})
}

func openPair(t *testing.T, s shm.Settings) (hw, ctrl *shm.Segment) {
	t.Helper()
	backend := shm.NewMemoryBackend()

	hw, err := shm.Open(s, true, shm.WithBackend(backend))
	require.NoError(t, err)
	require.True(t, hw.CheckHeader())
	t.Cleanup(func() { _ = hw.Close() })

	ctrl, err = shm.Open(s, false, shm.WithBackend(backend), shm.WithRole(shm.RoleController))
	require.NoError(t, err)
	require.True(t, ctrl.CheckHeader())
	t.Cleanup(func() { _ = ctrl.Close() })
	return hw, ctrl
}

func TestSimulator_SeedsInitialPose(t *testing.T) {
	s := shm.Settings{Hash: 1, Key: 1, NumJoints: 3, JointType: shm.PositionCommand}
	hw, ctrl := openPair(t, s)

	_, err := NewSimulator(hw, Options{Period: time.Millisecond, Initial: []float64{0.3, -0.1, 0.2}, Logger: quietLogger()})
	require.NoError(t, err)

	pos, err := ctrl.ReadPositionCurrent()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, -0.1, 0.2}, pos)
}

func TestSimulator_FollowsPositionCommand(t *testing.T) {
	s := shm.Settings{Hash: 1, Key: 1, NumJoints: 2, JointType: shm.PositionCommand | shm.MotorCurrent | shm.MotorTemperature}
	hw, ctrl := openPair(t, s)

	sim, err := NewSimulator(hw, Options{Period: time.Millisecond, Response: 0.5, Logger: quietLogger()})
	require.NoError(t, err)

	require.NoError(t, ctrl.WritePositionCommand([]float64{1, -1}))
	require.NoError(t, sim.Step())
	assert.InDeltaSlice(t, []float64{0.5, -0.5}, sim.Positions(), 1e-12)

	current, err := ctrl.ReadMotorCurrent()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.4, 0.4}, current, 1e-12)

	temps, err := ctrl.ReadMotorTemperature()
	require.NoError(t, err)
	assert.InDelta(t, 25.8, temps[0], 1e-12)

	for i := 0; i < 60; i++ {
		require.NoError(t, sim.Step())
	}
	assert.InDeltaSlice(t, []float64{1, -1}, sim.Positions(), 1e-9)
	assert.Equal(t, uint64(61), sim.Cycles())
}

func TestSimulator_IntegratesVelocity(t *testing.T) {
	s := shm.Settings{Hash: 1, Key: 1, NumJoints: 1, JointType: shm.VelocityCommand}
	hw, ctrl := openPair(t, s)

	sim, err := NewSimulator(hw, Options{Period: 10 * time.Millisecond, Logger: quietLogger()})
	require.NoError(t, err)

	require.NoError(t, ctrl.WriteVelocityCommand([]float64{2}))
	for i := 0; i < 5; i++ {
		require.NoError(t, sim.Step())
	}
	assert.InDelta(t, 0.1, sim.Positions()[0], 1e-12)
}

func TestSimulator_Sensors(t *testing.T) {
	s := shm.Settings{Hash: 1, Key: 1, NumForceSensors: 1, NumImuSensors: 2, JointType: shm.ForceSensor | shm.ImuSensor}
	hw, ctrl := openPair(t, s)

	_, err := NewSimulator(hw, Options{Period: time.Millisecond, Logger: quietLogger()})
	require.NoError(t, err)

	imu, err := ctrl.ReadImuSensors()
	require.NoError(t, err)
	require.Len(t, imu, 20)
	assert.Equal(t, 1.0, imu[0])
	assert.Equal(t, 1.0, imu[10])
	assert.InDelta(t, gravity, imu[19], 1e-12)

	force, err := ctrl.ReadForceSensors()
	require.NoError(t, err)
	assert.Len(t, force, 6)
}

func TestSimulator_RequiresActiveSegment(t *testing.T) {
	s := shm.Settings{Hash: 1, Key: 1, NumJoints: 1, JointType: shm.PositionCommand}
	seg, err := shm.Open(s, true, shm.WithBackend(shm.NewMemoryBackend()))
	require.NoError(t, err)
	defer seg.Close()

	_, err = NewSimulator(seg, Options{})
	assert.ErrorIs(t, err, shm.ErrNotActive)

	require.True(t, seg.CheckHeader())
	_, err = NewSimulator(seg, Options{Initial: []float64{1, 2}, Logger: quietLogger()})
	assert.ErrorIs(t, err, shm.ErrSizeMismatch)
}

func TestSimulator_RunStopsOnCancel(t *testing.T) {
	s := shm.Settings{Hash: 1, Key: 1, NumJoints: 2, JointType: shm.PositionCommand}
	hw, _ := openPair(t, s)

	sim, err := NewSimulator(hw, Options{Period: 2 * time.Millisecond, ReportEvery: 5, Logger: quietLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, sim.Run(ctx))
	assert.Greater(t, sim.Cycles(), uint64(5))
}
