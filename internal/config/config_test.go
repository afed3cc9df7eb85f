package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/robot.yaml")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Millisecond, cfg.Hardware.PeriodDuration())
	assert.Equal(t, "/dev/ttyUSB0", cfg.Hardware.PortName)
	assert.Equal(t, int32(1000000), cfg.Hardware.BaudRate)

	require.Len(t, cfg.Joints, 5)
	assert.Equal(t, "LINK_0", cfg.Joints[0].Name)
	assert.Equal(t, int32(1), cfg.Joints[0].ID)
	assert.Equal(t, []Item{{"Operating_Mode", 3}, {"Profile_Velocity", 100}}, cfg.Joints[0].Items)
	assert.Equal(t, "LINK_4", cfg.Joints[4].Name)
	assert.Empty(t, cfg.Joints[4].Items)

	assert.Equal(t, []string{"LINK_0", "LINK_1", "LINK_2", "LINK_3", "LINK_4"}, cfg.JointNames())
	assert.Equal(t, 10.0, cfg.Bridge.Rate)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestSegmentSettings(t *testing.T) {
	cfg, err := Load("testdata/robot.yaml")
	require.NoError(t, err)

	s, err := cfg.SegmentSettings()
	require.NoError(t, err)
	assert.Equal(t, shm.Settings{
		Hash:      8888,
		Key:       8888,
		NumJoints: 5,
		JointType: shm.PositionCommand | shm.PositionGains,
	}, s)

	cfg.Shm.NumJoints = 7
	s, err = cfg.SegmentSettings()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), s.NumJoints)

	cfg.Shm.JointType = []string{"PositionCommand", "Bogus"}
	_, err = cfg.SegmentSettings()
	assert.ErrorIs(t, err, shm.ErrInvalidSettings)
}

func TestSegmentOptions(t *testing.T) {
	cfg, err := Load("testdata/robot.yaml")
	require.NoError(t, err)

	opts, err := cfg.SegmentOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	settings, err := cfg.SegmentSettings()
	require.NoError(t, err)
	seg, err := shm.Open(settings, true, opts...)
	require.NoError(t, err)
	defer seg.Close()
	assert.True(t, seg.CheckHeader())

	cfg.Shm.Backend = "posix"
	_, err = cfg.SegmentOptions()
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SHMCTL_SHM_SETTINGS_SHM_KEY", "1234")
	t.Setenv("SHMCTL_BRIDGE_URL", "ws://robot:9090")

	cfg, err := Load("testdata/robot.yaml")
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), cfg.Shm.ShmKey)
	assert.Equal(t, "ws://robot:9090", cfg.Bridge.URL)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.Hardware.PeriodDuration())
	assert.Equal(t, uint32(8888), cfg.Shm.ShmKey)
	assert.Equal(t, shm.DefaultReadRetries, cfg.Shm.ReadRetries)
	assert.Empty(t, cfg.Joints)

	_, err = cfg.SegmentSettings()
	assert.ErrorIs(t, err, shm.ErrInvalidSettings, "joint blocks need at least one joint")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("Joint:\n  LINK_0:\n    ID: one\n"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	notMap := filepath.Join(t.TempDir(), "list.yaml")
	require.NoError(t, os.WriteFile(notMap, []byte("Joint:\n  - LINK_0\n"), 0o600))
	_, err = Load(notMap)
	assert.Error(t, err)
}
