package shm

import (
	"fmt"
	"math"
	"math/bits"
	"strings"
)

// JointType is the capability mask selecting which data blocks a segment carries.
// Bit order is the canonical block order of the segment layout.
type JointType uint32

const (
	PositionCommand JointType = 1 << iota
	PositionGains
	VelocityCommand
	VelocityGains
	TorqueCommand
	TorqueGains
	MotorTemperature
	MotorCurrent
	ForceSensor
	ImuSensor

	jointTypeEnd
)

const (
	// JointScoped covers every capability whose block holds one value per joint.
	JointScoped = PositionCommand | PositionGains | VelocityCommand | VelocityGains |
		TorqueCommand | TorqueGains | MotorTemperature | MotorCurrent

	// AllJointTypes is the union of every known capability.
	AllJointTypes = jointTypeEnd - 1
)

const (
	// ForceSensorWidth is fx, fy, fz, tx, ty, tz per sensor.
	ForceSensorWidth = 6
	// ImuSensorWidth is quaternion wxyz, gyro xyz, accel xyz per sensor.
	ImuSensorWidth = 10
)

var jointTypeNames = map[JointType]string{
	PositionCommand:  "PositionCommand",
	PositionGains:    "PositionGains",
	VelocityCommand:  "VelocityCommand",
	VelocityGains:    "VelocityGains",
	TorqueCommand:    "TorqueCommand",
	TorqueGains:      "TorqueGains",
	MotorTemperature: "MotorTemperature",
	MotorCurrent:     "MotorCurrent",
	ForceSensor:      "ForceSensor",
	ImuSensor:        "ImuSensor",
}

// JointTypes returns every single-bit capability in canonical order.
func JointTypes() []JointType {
	out := make([]JointType, 0, bits.OnesCount32(uint32(AllJointTypes)))
	for jt := PositionCommand; jt < jointTypeEnd; jt <<= 1 {
		out = append(out, jt)
	}
	return out
}

// Has reports whether every bit of flag is set in t.
func (t JointType) Has(flag JointType) bool {
	return flag != 0 && t&flag == flag
}

// Split returns the single-bit capabilities set in t, in canonical order.
func (t JointType) Split() []JointType {
	var out []JointType
	for _, jt := range JointTypes() {
		if t&jt != 0 {
			out = append(out, jt)
		}
	}
	return out
}

func (t JointType) String() string {
	if t == 0 {
		return "None"
	}
	parts := make([]string, 0, bits.OnesCount32(uint32(t)))
	for _, jt := range t.Split() {
		parts = append(parts, jointTypeNames[jt])
	}
	if unknown := t &^ AllJointTypes; unknown != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(unknown)))
	}
	return strings.Join(parts, "|")
}

// ParseJointType maps a configuration name such as "PositionCommand" to its flag.
func ParseJointType(name string) (JointType, error) {
	for jt, n := range jointTypeNames {
		if n == name {
			return jt, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown joint type %q", ErrInvalidSettings, name)
}

// ParseJointTypes ORs the flags for every name.
func ParseJointTypes(names []string) (JointType, error) {
	var mask JointType
	for _, name := range names {
		jt, err := ParseJointType(strings.TrimSpace(name))
		if err != nil {
			return 0, err
		}
		mask |= jt
	}
	return mask, nil
}

// Settings describes what a segment contains. It is a value type; two processes
// holding equal Settings compute identical layouts.
type Settings struct {
	Hash            uint32
	Key             uint32
	NumJoints       uint32
	NumForceSensors uint32
	NumImuSensors   uint32
	JointType       JointType
}

// NewSettings builds and validates a Settings value.
func NewSettings(hash, key, numJoints, numForceSensors, numImuSensors uint32, mask JointType) (Settings, error) {
	s := Settings{
		Hash:            hash,
		Key:             key,
		NumJoints:       numJoints,
		NumForceSensors: numForceSensors,
		NumImuSensors:   numImuSensors,
		JointType:       mask,
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks that every enabled capability has a non-zero dimension.
func (s Settings) Validate() error {
	if unknown := s.JointType &^ AllJointTypes; unknown != 0 {
		return fmt.Errorf("%w: unknown joint type bits 0x%x", ErrInvalidSettings, uint32(unknown))
	}
	if s.JointType&JointScoped != 0 && s.NumJoints == 0 {
		return fmt.Errorf("%w: %s requires numJoints >= 1", ErrInvalidSettings, s.JointType&JointScoped)
	}
	if s.JointType.Has(ForceSensor) && s.NumForceSensors == 0 {
		return fmt.Errorf("%w: ForceSensor requires numForceSensors >= 1", ErrInvalidSettings)
	}
	if s.JointType.Has(ImuSensor) && s.NumImuSensors == 0 {
		return fmt.Errorf("%w: ImuSensor requires numImuSensors >= 1", ErrInvalidSettings)
	}
	if size := s.segmentSize(); size > math.MaxUint32 {
		return fmt.Errorf("%w: segment of %d bytes does not fit a 32-bit offset", ErrInvalidSettings, size)
	}
	return nil
}

// segmentSize is the total segment size computed without wrapping.
func (s Settings) segmentSize() uint64 {
	size := uint64(HeaderSize)
	for _, jt := range s.JointType.Split() {
		var n uint64
		switch {
		case JointScoped.Has(jt):
			n = uint64(s.NumJoints)
		case jt == ForceSensor:
			n = uint64(s.NumForceSensors) * ForceSensorWidth
		case jt == ImuSensor:
			n = uint64(s.NumImuSensors) * ImuSensorWidth
		}
		size += n * VALUE_SIZE
	}
	return size
}

// blockLength is the number of float64 values a capability occupies.
func (s Settings) blockLength(jt JointType) uint32 {
	switch {
	case JointScoped.Has(jt):
		return s.NumJoints
	case jt == ForceSensor:
		return s.NumForceSensors * ForceSensorWidth
	case jt == ImuSensor:
		return s.NumImuSensors * ImuSensorWidth
	default:
		return 0
	}
}

func (s Settings) String() string {
	return fmt.Sprintf("hash=%d key=%d joints=%d force=%d imu=%d mask=%s",
		s.Hash, s.Key, s.NumJoints, s.NumForceSensors, s.NumImuSensors, s.JointType)
}
