package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. SHMCTL_SHM_SETTINGS_SHM_KEY.
const EnvPrefix = "SHMCTL"

// Config is the parameter file shared by the hardware process, the client
// and the bridge.
type Config struct {
	Hardware HardwareIFSettings `mapstructure:"hardwareifsettings"`
	Joints   []Joint            `mapstructure:"-"`
	Shm      ShmSettings        `mapstructure:"shm_settings"`
	Bridge   BridgeSettings     `mapstructure:"bridge"`
	Metrics  MetricsSettings    `mapstructure:"metrics"`
	Log      LogSettings        `mapstructure:"log"`
}

// HardwareIFSettings holds the control period and the servo bus port.
type HardwareIFSettings struct {
	Period   float64 `mapstructure:"period"` // seconds
	PortName string  `mapstructure:"port_name"`
	BaudRate int32   `mapstructure:"baud_rate"`
}

// PeriodDuration returns Period as a time.Duration.
func (h HardwareIFSettings) PeriodDuration() time.Duration {
	return time.Duration(h.Period * float64(time.Second))
}

// Joint is one actuator entry of the Joint section. Items holds every other
// register setting in file order.
type Joint struct {
	Name  string
	ID    int32
	Items []Item
}

// Item is a named register value.
type Item struct {
	Name  string
	Value int32
}

// ShmSettings selects the segment.
type ShmSettings struct {
	Hash            uint32   `mapstructure:"hash"`
	ShmKey          uint32   `mapstructure:"shm_key"`
	JointType       []string `mapstructure:"jointtype"`
	NumJoints       uint32   `mapstructure:"numjoints"` // 0: one per Joint entry
	NumForceSensors uint32   `mapstructure:"numforcesensors"`
	NumImuSensors   uint32   `mapstructure:"numimusensors"`
	Backend         string   `mapstructure:"backend"`
	Dir             string   `mapstructure:"dir"`
	ReadRetries     int      `mapstructure:"read_retries"`
}

// BridgeSettings configures the trajectory bridge.
type BridgeSettings struct {
	URL           string   `mapstructure:"url"`
	Topic         string   `mapstructure:"topic"`
	JointNames    []string `mapstructure:"joint_names"`
	Rate          float64  `mapstructure:"rate"`            // publishes per second
	TimeFromStart float64  `mapstructure:"time_from_start"` // seconds
	Burst         int      `mapstructure:"burst"`
}

// MetricsSettings enables the Prometheus endpoint when Addr is set.
type MetricsSettings struct {
	Addr string `mapstructure:"addr"`
}

// LogSettings holds the log level name.
type LogSettings struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hardwareifsettings.period", 0.01)
	v.SetDefault("hardwareifsettings.port_name", "/dev/ttyUSB0")
	v.SetDefault("hardwareifsettings.baud_rate", 1000000)

	v.SetDefault("shm_settings.hash", 8888)
	v.SetDefault("shm_settings.shm_key", 8888)
	v.SetDefault("shm_settings.jointtype", []string{"PositionCommand", "PositionGains"})
	v.SetDefault("shm_settings.numjoints", 0)
	v.SetDefault("shm_settings.numforcesensors", 0)
	v.SetDefault("shm_settings.numimusensors", 0)
	v.SetDefault("shm_settings.backend", "default")
	v.SetDefault("shm_settings.dir", "")
	v.SetDefault("shm_settings.read_retries", shm.DefaultReadRetries)

	v.SetDefault("bridge.url", "ws://localhost:9090")
	v.SetDefault("bridge.topic", "/dyamixel/trajectory_controller/command")
	v.SetDefault("bridge.joint_names", []string{})
	v.SetDefault("bridge.rate", 1.0)
	v.SetDefault("bridge.time_from_start", 1.0)
	v.SetDefault("bridge.burst", 1)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")
}

// Load reads the parameter file at path. Environment variables with prefix
// SHMCTL_ override any scalar key. An empty path loads defaults only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var raw []byte
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	joints, err := parseJoints(raw)
	if err != nil {
		return Config{}, err
	}
	c.Joints = joints
	return c, nil
}

// parseJoints walks the Joint mapping with yaml.v3 nodes so that joint order
// and name case survive; viper flattens and lowercases map keys.
func parseJoints(raw []byte) ([]Joint, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	section := mappingValue(root, "Joint")
	if section == nil {
		return nil, nil
	}
	if section.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config line %d: Joint must be a mapping", section.Line)
	}

	joints := make([]Joint, 0, len(section.Content)/2)
	for i := 0; i+1 < len(section.Content); i += 2 {
		name, body := section.Content[i], section.Content[i+1]
		j := Joint{Name: name.Value, ID: -1}
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("config line %d: joint %s must be a mapping", body.Line, name.Value)
		}
		for k := 0; k+1 < len(body.Content); k += 2 {
			key := body.Content[k].Value
			var value int32
			if err := body.Content[k+1].Decode(&value); err != nil {
				return nil, fmt.Errorf("config line %d: joint %s item %s: %w", body.Content[k+1].Line, name.Value, key, err)
			}
			if key == "ID" {
				j.ID = value
				continue
			}
			j.Items = append(j.Items, Item{Name: key, Value: value})
		}
		joints = append(joints, j)
	}
	return joints, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// JointNames returns the bridge joint names, falling back to the Joint
// section order.
func (c Config) JointNames() []string {
	if len(c.Bridge.JointNames) > 0 {
		return c.Bridge.JointNames
	}
	names := make([]string, len(c.Joints))
	for i, j := range c.Joints {
		names[i] = j.Name
	}
	return names
}

// SegmentSettings maps shm_settings to shm.Settings. Joint-type names that
// are not known fail rather than being ignored.
func (c Config) SegmentSettings() (shm.Settings, error) {
	mask, err := shm.ParseJointTypes(c.Shm.JointType)
	if err != nil {
		return shm.Settings{}, err
	}
	numJoints := c.Shm.NumJoints
	if numJoints == 0 {
		numJoints = uint32(len(c.Joints))
	}
	return shm.NewSettings(c.Shm.Hash, c.Shm.ShmKey, numJoints, c.Shm.NumForceSensors, c.Shm.NumImuSensors, mask)
}

// SegmentOptions returns the backend and retry options for shm.Open.
func (c Config) SegmentOptions() ([]shm.Option, error) {
	backend, err := shm.BackendByName(c.Shm.Backend, c.Shm.Dir)
	if err != nil {
		return nil, err
	}
	opts := []shm.Option{shm.WithBackend(backend)}
	if c.Shm.ReadRetries > 0 {
		opts = append(opts, shm.WithReadRetries(c.Shm.ReadRetries))
	}
	return opts, nil
}
