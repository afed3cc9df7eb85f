package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/irsl/shmcontroller/kernel/realtime"
	"github.com/irsl/shmcontroller/kernel/utils"
)

// PositionSource supplies the latest joint positions, normally a
// *shm.Segment.
type PositionSource interface {
	ReadPositionCurrent() ([]float64, error)
}

// Sink publishes positions.
type Sink interface {
	Publish(ctx context.Context, positions []float64) error
}

// Runner forwards positions from a segment to a sink at a fixed rate.
type Runner struct {
	src    PositionSource
	sink   Sink
	timer  *realtime.IntervalTimer
	logger *utils.Logger

	sent   uint64
	failed uint64
}

// NewRunner paces at hz publishes per second.
func NewRunner(src PositionSource, sink Sink, hz float64, logger *utils.Logger) *Runner {
	if hz <= 0 {
		hz = 1
	}
	if logger == nil {
		logger = utils.DefaultLogger("bridge")
	}
	return &Runner{
		src:    src,
		sink:   sink,
		timer:  realtime.NewIntervalTimer(time.Duration(float64(time.Second) / hz)),
		logger: logger,
	}
}

// Run loops until ctx is done. Read and publish failures are logged and the
// loop continues; only cancellation ends it.
func (r *Runner) Run(ctx context.Context) error {
	r.timer.Start()
	for {
		if err := r.Step(ctx); err != nil {
			r.logger.Debug("Step failed", utils.Err(err))
		}
		if err := r.timer.SleepUntilNext(ctx); err != nil {
			r.logger.Info("Bridge stopped",
				utils.Uint64("sent", r.sent),
				utils.Uint64("failed", r.failed),
			)
			return nil
		}
	}
}

// Step reads once and publishes once.
func (r *Runner) Step(ctx context.Context) error {
	positions, err := r.src.ReadPositionCurrent()
	if err != nil {
		r.failed++
		r.logger.Warn("Read positions failed", utils.Err(err))
		return err
	}
	if err := r.sink.Publish(ctx, positions); err != nil {
		r.failed++
		if !errors.Is(err, ErrThrottled) {
			r.logger.Warn("Publish failed", utils.Err(err))
		}
		return err
	}
	r.sent++
	return nil
}

// Counts returns successful and failed steps.
func (r *Runner) Counts() (sent, failed uint64) {
	return r.sent, r.failed
}
