// Package client is a polling controller: it reads joint positions from the
// segment, moves each joint a fixed step toward zero and writes the result
// back as the next position command.
package client

import (
	"context"
	"time"

	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/irsl/shmcontroller/kernel/utils"
)

const (
	DefaultDelta      = 0.05
	DefaultInterval   = 10 * time.Millisecond
	DefaultIterations = 100
)

// Segment is the part of *shm.Segment the stepper uses.
type Segment interface {
	ReadPositionCurrent() ([]float64, error)
	WritePositionCommand([]float64) error
	GetFrame() (uint64, error)
}

// StepToward moves every value delta closer to zero, snapping values within
// delta to exactly zero. pos is modified in place and returned.
func StepToward(pos []float64, delta float64) []float64 {
	for i, p := range pos {
		switch {
		case p <= delta && p >= -delta:
			pos[i] = 0
		case p > 0:
			pos[i] = p - delta
		default:
			pos[i] = p + delta
		}
	}
	return pos
}

// Stepper runs the polling loop.
type Stepper struct {
	Seg        Segment
	Delta      float64
	Interval   time.Duration
	Iterations int
	Logger     *utils.Logger
}

// Run performs Iterations read/step/write cycles, sleeping Interval between
// them, and returns the last command written. A cancelled ctx ends the loop
// early without error.
func (s *Stepper) Run(ctx context.Context) ([]float64, error) {
	delta := s.Delta
	if delta <= 0 {
		delta = DefaultDelta
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	iterations := s.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	logger := s.Logger
	if logger == nil {
		logger = utils.DefaultLogger("client")
	}

	var last []float64
	for i := 0; i < iterations; i++ {
		pos, err := s.Seg.ReadPositionCurrent()
		if err != nil {
			return last, err
		}
		frame, err := s.Seg.GetFrame()
		if err != nil {
			return last, err
		}
		logger.Debug("Read positions", utils.Uint64("frame", frame), utils.Floats("positions", pos))

		cmd := StepToward(pos, delta)
		if err := s.Seg.WritePositionCommand(cmd); err != nil {
			return last, err
		}
		last = cmd

		select {
		case <-ctx.Done():
			return last, nil
		case <-time.After(interval):
		}
	}
	return last, nil
}

var _ Segment = (*shm.Segment)(nil)
