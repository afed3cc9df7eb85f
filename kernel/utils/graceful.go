package utils

import (
	"context"
	"errors"
	"sync"
	"time"
)

// GracefulShutdown releases process resources in the reverse order they
// were acquired: a control loop registered after its segment stops before
// the segment is detached.
type GracefulShutdown struct {
	mu      sync.Mutex
	steps   []shutdownStep
	timeout time.Duration
	logger  *Logger
	done    bool
}

type shutdownStep struct {
	name string
	fn   func() error
}

// NewGracefulShutdown creates a new graceful shutdown manager
func NewGracefulShutdown(timeout time.Duration, logger *Logger) *GracefulShutdown {
	if logger == nil {
		logger = DefaultLogger("shutdown")
	}

	return &GracefulShutdown{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a named shutdown step.
func (g *GracefulShutdown) Register(name string, fn func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.steps = append(g.steps, shutdownStep{name: name, fn: fn})
}

// Shutdown runs registered steps LIFO, one at a time. A failing step does
// not stop later ones; all errors are joined. When the timeout expires the
// remaining steps are skipped and a timeout error is returned. Calling
// Shutdown twice is a no-op.
func (g *GracefulShutdown) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return nil
	}
	g.done = true

	g.logger.Info("Starting graceful shutdown",
		Int("components", len(g.steps)),
	)

	shutdownCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var errs []error
	for i := len(g.steps) - 1; i >= 0; i-- {
		step := g.steps[i]

		result := make(chan error, 1)
		go func() { result <- step.fn() }()

		select {
		case err := <-result:
			if err != nil {
				g.logger.Error("Shutdown step failed",
					String("step", step.name),
					Err(err),
				)
				errs = append(errs, WrapError(err, step.name))
			}
		case <-shutdownCtx.Done():
			g.logger.Warn("Graceful shutdown timed out",
				String("step", step.name),
				Int("skipped", i),
			)
			return errors.Join(append(errs, TimeoutError("shutdown"))...)
		}
	}

	g.logger.Info("Graceful shutdown complete")
	return errors.Join(errs...)
}
