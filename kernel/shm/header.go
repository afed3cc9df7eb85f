package shm

import "fmt"

// Header is the write-once identity record at the start of a segment.
type Header struct {
	Hash            uint32
	SchemaVersion   uint32
	NumJoints       uint32
	NumForceSensors uint32
	NumImuSensors   uint32
	JointType       JointType
}

// HeaderFor returns the header a segment created from s carries.
func HeaderFor(s Settings) Header {
	return Header{
		Hash:            s.Hash,
		SchemaVersion:   SchemaVersion,
		NumJoints:       s.NumJoints,
		NumForceSensors: s.NumForceSensors,
		NumImuSensors:   s.NumImuSensors,
		JointType:       s.JointType,
	}
}

// MatchHeader reports whether h is exactly what a segment built from s carries.
func MatchHeader(h Header, s Settings) bool {
	return h == HeaderFor(s)
}

// Settings rebuilds the Settings a header was written from. Key is not part
// of the header and must be supplied.
func (h Header) Settings(key uint32) Settings {
	return Settings{
		Hash:            h.Hash,
		Key:             key,
		NumJoints:       h.NumJoints,
		NumForceSensors: h.NumForceSensors,
		NumImuSensors:   h.NumImuSensors,
		JointType:       h.JointType,
	}
}

func (h Header) String() string {
	return fmt.Sprintf("hash=%d version=%d joints=%d force=%d imu=%d mask=%s",
		h.Hash, h.SchemaVersion, h.NumJoints, h.NumForceSensors, h.NumImuSensors, h.JointType)
}

// readHeader loads every header word atomically.
func readHeader(mem MemoryProvider) (Header, error) {
	var words [SIZE_HEADER / 4]uint32
	for i := range words {
		v, err := mem.AtomicLoad32(uint32(i * 4))
		if err != nil {
			return Header{}, fmt.Errorf("read header word %d: %w", i, err)
		}
		words[i] = v
	}
	return Header{
		Hash:            words[OFFSET_HASH/4],
		SchemaVersion:   words[OFFSET_SCHEMA_VERSION/4],
		NumJoints:       words[OFFSET_NUM_JOINTS/4],
		NumForceSensors: words[OFFSET_NUM_FORCE_SENSORS/4],
		NumImuSensors:   words[OFFSET_NUM_IMU_SENSORS/4],
		JointType:       JointType(words[OFFSET_JOINT_TYPE/4]),
	}, nil
}

// writeHeader stores the header with the hash last, so an attacher that sees
// the expected hash also sees the dimensions written before it.
func writeHeader(mem MemoryProvider, h Header) error {
	fields := []struct {
		offset uint32
		value  uint32
	}{
		{OFFSET_SCHEMA_VERSION, h.SchemaVersion},
		{OFFSET_NUM_JOINTS, h.NumJoints},
		{OFFSET_NUM_FORCE_SENSORS, h.NumForceSensors},
		{OFFSET_NUM_IMU_SENSORS, h.NumImuSensors},
		{OFFSET_JOINT_TYPE, uint32(h.JointType)},
		{OFFSET_HASH, h.Hash},
	}
	for _, f := range fields {
		if err := mem.AtomicStore32(f.offset, f.value); err != nil {
			return fmt.Errorf("write header at 0x%02x: %w", f.offset, err)
		}
	}
	return nil
}
