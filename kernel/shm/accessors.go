package shm

import "fmt"

// block resolves a capability for an accessor call. Capability is checked
// before state: asking for a block the mask lacks is a configuration error
// whatever the handle is doing.
func (s *Segment) block(jt JointType) (Block, error) {
	b, ok := s.layout.Block(jt)
	if !ok {
		return Block{}, fmt.Errorf("%w: %s not in %s", ErrCapability, jt, s.settings.JointType)
	}
	if s.state != StateActive {
		return Block{}, fmt.Errorf("%w: %s", ErrNotActive, s.state)
	}
	return b, nil
}

// Read returns a private copy of one block.
func (s *Segment) Read(jt JointType) ([]float64, error) {
	b, err := s.block(jt)
	if err != nil {
		return nil, err
	}
	out := make([]float64, b.Length)
	if err := s.readBlock(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadInto copies one block into dst without allocating. dst must have
// exactly the block length.
func (s *Segment) ReadInto(jt JointType, dst []float64) error {
	b, err := s.block(jt)
	if err != nil {
		return err
	}
	if uint32(len(dst)) != b.Length {
		return fmt.Errorf("%w: %s wants %d values, got %d", ErrSizeMismatch, jt, b.Length, len(dst))
	}
	return s.readBlock(b, dst)
}

// Write stores one block and advances the frame counter by one.
func (s *Segment) Write(jt JointType, values []float64) error {
	b, err := s.block(jt)
	if err != nil {
		return err
	}
	if p := PolicyFor(jt); !p.CanWrite(s.role) {
		return fmt.Errorf("%w: %s is written by %s, not %s", ErrNotWriter, jt, p.WriterMask, s.role)
	}
	if uint32(len(values)) != b.Length {
		return fmt.Errorf("%w: %s wants %d values, got %d", ErrSizeMismatch, jt, b.Length, len(values))
	}
	return s.writeBlock(b, values)
}

// GetFrame returns the number of committed writes.
func (s *Segment) GetFrame() (uint64, error) {
	if s.state != StateActive {
		return 0, fmt.Errorf("%w: %s", ErrNotActive, s.state)
	}
	return s.frameValue(), nil
}

// ReadPositionCurrent returns the latest committed joint positions. The
// position block is the one PositionCommand enables.
func (s *Segment) ReadPositionCurrent() ([]float64, error) {
	return s.Read(PositionCommand)
}

func (s *Segment) ReadPositionCommand() ([]float64, error) {
	return s.Read(PositionCommand)
}

// WritePositionCommand requires exactly NumJoints values.
func (s *Segment) WritePositionCommand(values []float64) error {
	return s.Write(PositionCommand, values)
}

func (s *Segment) ReadPositionGains() ([]float64, error) {
	return s.Read(PositionGains)
}

func (s *Segment) WritePositionGains(values []float64) error {
	return s.Write(PositionGains, values)
}

func (s *Segment) ReadVelocityCommand() ([]float64, error) {
	return s.Read(VelocityCommand)
}

func (s *Segment) WriteVelocityCommand(values []float64) error {
	return s.Write(VelocityCommand, values)
}

func (s *Segment) ReadVelocityGains() ([]float64, error) {
	return s.Read(VelocityGains)
}

func (s *Segment) WriteVelocityGains(values []float64) error {
	return s.Write(VelocityGains, values)
}

func (s *Segment) ReadTorqueCommand() ([]float64, error) {
	return s.Read(TorqueCommand)
}

func (s *Segment) WriteTorqueCommand(values []float64) error {
	return s.Write(TorqueCommand, values)
}

func (s *Segment) ReadTorqueGains() ([]float64, error) {
	return s.Read(TorqueGains)
}

func (s *Segment) WriteTorqueGains(values []float64) error {
	return s.Write(TorqueGains, values)
}

func (s *Segment) ReadMotorTemperature() ([]float64, error) {
	return s.Read(MotorTemperature)
}

func (s *Segment) WriteMotorTemperature(values []float64) error {
	return s.Write(MotorTemperature, values)
}

func (s *Segment) ReadMotorCurrent() ([]float64, error) {
	return s.Read(MotorCurrent)
}

func (s *Segment) WriteMotorCurrent(values []float64) error {
	return s.Write(MotorCurrent, values)
}

// ReadForceSensors returns NumForceSensors*6 values, sensor-major.
func (s *Segment) ReadForceSensors() ([]float64, error) {
	return s.Read(ForceSensor)
}

func (s *Segment) WriteForceSensors(values []float64) error {
	return s.Write(ForceSensor, values)
}

// ReadImuSensors returns NumImuSensors*10 values, sensor-major.
func (s *Segment) ReadImuSensors() ([]float64, error) {
	return s.Read(ImuSensor)
}

func (s *Segment) WriteImuSensors(values []float64) error {
	return s.Write(ImuSensor, values)
}
