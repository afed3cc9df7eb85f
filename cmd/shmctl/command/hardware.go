package command

import (
	"context"
	"fmt"

	"github.com/irsl/shmcontroller/internal/hardware"
	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/irsl/shmcontroller/kernel/utils"
	"github.com/spf13/cobra"
)

var hardwareFlags struct {
	removeOnExit bool
	initial      []float64
}

// NewHardwareCommand returns the cobra command for "hardware".
func NewHardwareCommand() *cobra.Command {
	cc := &cobra.Command{
		Use:   "hardware",
		Short: "create the segment and run the simulated hardware loop",
		RunE:  hardwareCommandFunc,
	}
	cc.Flags().BoolVar(&hardwareFlags.removeOnExit, "remove-on-exit", false, "destroy the segment when the loop stops")
	cc.Flags().Float64SliceVar(&hardwareFlags.initial, "initial", nil, "initial joint positions")
	return cc
}

func hardwareCommandFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, "hardware")
	shutdown := utils.NewGracefulShutdown(shutdownTimeout, logger.Named("shutdown"))

	seg, err := openSegment(cfg, true, shm.RoleAny, logger)
	if err != nil {
		return err
	}
	shutdown.Register("segment", func() error {
		if hardwareFlags.removeOnExit {
			return seg.Remove()
		}
		return seg.Close()
	})
	startMetrics(cfg.Metrics.Addr, shutdown, logger)

	sim, err := hardware.NewSimulator(seg, hardware.Options{
		Period:  cfg.Hardware.PeriodDuration(),
		Initial: hardwareFlags.initial,
		Logger:  logger,
	})
	if err != nil {
		_ = shutdown.Shutdown(context.Background())
		return err
	}

	logger.Info("Hardware loop started",
		utils.Duration("period", cfg.Hardware.PeriodDuration()),
		utils.String("port", cfg.Hardware.PortName),
		utils.Int("joints", len(cfg.Joints)),
	)

	ctx, cancel := signalContext()
	defer cancel()
	runErr := sim.Run(ctx)

	logger.Info("Hardware loop stopped", utils.Uint64("cycles", sim.Cycles()))
	if err := shutdown.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return runErr
}
