// Package hardware simulates the hardware side of the transport: it owns the
// segment, follows the commanded joint state with a first-order servo model
// and publishes motor and sensor feedback every control period.
package hardware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/irsl/shmcontroller/kernel/realtime"
	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/irsl/shmcontroller/kernel/utils"
)

const (
	// DefaultReportEvery is how many cycles pass between interval reports.
	DefaultReportEvery = 100
	// DefaultResponse is the fraction of the command error closed per cycle.
	DefaultResponse = 0.2

	ambientTemperature = 25.0
	currentPerRad      = 0.8
	heatPerAmp         = 2.0
	gravity            = 9.80665
)

// Options tune the simulation.
type Options struct {
	Period      time.Duration
	Response    float64
	ReportEvery int
	// Initial is the starting joint position; nil means all zeros.
	Initial []float64
	Logger  *utils.Logger
}

// Simulator drives one segment as the hardware process.
type Simulator struct {
	seg    *shm.Segment
	timer  *realtime.IntervalTimer
	opts   Options
	logger *utils.Logger

	positions []float64
	command   []float64
	cycles    uint64
}

// NewSimulator seeds the segment and returns a simulator for it. seg must be
// Active. When the segment was created by this process the initial pose is
// written as the first position command so clients start from it.
func NewSimulator(seg *shm.Segment, opts Options) (*Simulator, error) {
	if seg.State() != shm.StateActive {
		return nil, fmt.Errorf("hardware: %w", shm.ErrNotActive)
	}
	if opts.Response <= 0 || opts.Response > 1 {
		opts.Response = DefaultResponse
	}
	if opts.ReportEvery <= 0 {
		opts.ReportEvery = DefaultReportEvery
	}
	if opts.Logger == nil {
		opts.Logger = utils.DefaultLogger("hardware")
	}

	n := int(seg.Settings().NumJoints)
	s := &Simulator{
		seg:       seg,
		timer:     realtime.NewIntervalTimer(opts.Period),
		opts:      opts,
		logger:    opts.Logger,
		positions: make([]float64, n),
		command:   make([]float64, n),
	}
	if opts.Initial != nil {
		if len(opts.Initial) != n {
			return nil, fmt.Errorf("hardware: %w: %d initial positions for %d joints", shm.ErrSizeMismatch, len(opts.Initial), n)
		}
		copy(s.positions, opts.Initial)
	}

	mask := seg.Settings().JointType
	if seg.Created() && mask.Has(shm.PositionCommand) {
		if err := seg.WritePositionCommand(s.positions); err != nil {
			return nil, fmt.Errorf("hardware: seed positions: %w", err)
		}
	}
	if err := s.publishFeedback(); err != nil {
		return nil, err
	}
	return s, nil
}

// Positions returns the simulated joint positions.
func (s *Simulator) Positions() []float64 {
	return append([]float64(nil), s.positions...)
}

// Cycles returns the number of completed steps.
func (s *Simulator) Cycles() uint64 {
	return s.cycles
}

// Step runs one control cycle: read the command, advance the servo model
// and publish feedback.
func (s *Simulator) Step() error {
	mask := s.seg.Settings().JointType
	dt := s.opts.Period.Seconds()

	switch {
	case mask.Has(shm.PositionCommand):
		if err := s.seg.ReadInto(shm.PositionCommand, s.command); err != nil {
			return err
		}
		for i, target := range s.command {
			s.positions[i] += (target - s.positions[i]) * s.opts.Response
		}
	case mask.Has(shm.VelocityCommand):
		if err := s.seg.ReadInto(shm.VelocityCommand, s.command); err != nil {
			return err
		}
		for i, v := range s.command {
			s.positions[i] += v * dt
		}
	}

	if err := s.publishFeedback(); err != nil {
		return err
	}
	s.cycles++
	return nil
}

func (s *Simulator) publishFeedback() error {
	settings := s.seg.Settings()
	mask := settings.JointType

	current := make([]float64, len(s.positions))
	for i := range current {
		current[i] = math.Abs(s.command[i]-s.positions[i]) * currentPerRad
	}
	if mask.Has(shm.MotorCurrent) {
		if err := s.seg.WriteMotorCurrent(current); err != nil {
			return err
		}
	}
	if mask.Has(shm.MotorTemperature) {
		temps := make([]float64, len(current))
		for i, c := range current {
			temps[i] = ambientTemperature + c*heatPerAmp
		}
		if err := s.seg.WriteMotorTemperature(temps); err != nil {
			return err
		}
	}
	if mask.Has(shm.ForceSensor) {
		if err := s.seg.WriteForceSensors(make([]float64, settings.NumForceSensors*shm.ForceSensorWidth)); err != nil {
			return err
		}
	}
	if mask.Has(shm.ImuSensor) {
		imu := make([]float64, settings.NumImuSensors*shm.ImuSensorWidth)
		for i := 0; i < int(settings.NumImuSensors); i++ {
			base := i * shm.ImuSensorWidth
			imu[base] = 1         // quaternion w
			imu[base+9] = gravity // accel z
		}
		if err := s.seg.WriteImuSensors(imu); err != nil {
			return err
		}
	}
	return nil
}

// Run steps once per period until ctx is done, reporting the worst interval
// every ReportEvery cycles.
func (s *Simulator) Run(ctx context.Context) error {
	s.timer.Start()
	for {
		if err := s.timer.SleepUntilNext(ctx); err != nil {
			return nil
		}
		s.timer.Sync()

		if err := s.Step(); err != nil {
			s.logger.Error("Cycle failed", utils.Err(err), utils.Uint64("cycle", s.cycles))
			return err
		}

		if s.cycles%uint64(s.opts.ReportEvery) == 0 {
			stats := s.timer.Stats()
			s.logger.Info("Interval report",
				utils.Duration("max", stats.Max),
				utils.Duration("mean", stats.Mean),
				utils.Uint64("overruns", stats.Overruns),
				utils.Floats("positions", s.positions),
			)
			s.timer.Reset()
		}
	}
}
