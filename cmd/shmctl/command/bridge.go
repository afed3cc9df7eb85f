package command

import (
	"time"

	"github.com/irsl/shmcontroller/internal/bridge"
	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/irsl/shmcontroller/kernel/utils"
	"github.com/spf13/cobra"
)

// NewBridgeCommand returns the cobra command for "bridge".
func NewBridgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bridge",
		Short: "publish joint positions as JointTrajectory messages over rosbridge",
		RunE:  bridgeCommandFunc,
	}
}

func bridgeCommandFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, "bridge")
	shutdown := utils.NewGracefulShutdown(shutdownTimeout, logger.Named("shutdown"))

	seg, err := openSegment(cfg, false, shm.RoleController, logger)
	if err != nil {
		return err
	}
	shutdown.Register("segment", seg.Close)

	pub, err := bridge.NewPublisher(bridge.Config{
		URL:           cfg.Bridge.URL,
		Topic:         cfg.Bridge.Topic,
		JointNames:    cfg.JointNames(),
		TimeFromStart: time.Duration(cfg.Bridge.TimeFromStart * float64(time.Second)),
		Rate:          cfg.Bridge.Rate,
		Burst:         cfg.Bridge.Burst,
		Logger:        logger,
	})
	if err != nil {
		_ = shutdown.Shutdown(cmd.Context())
		return withExitCode(ExitBadArgs, err)
	}
	shutdown.Register("publisher", pub.Close)
	startMetrics(cfg.Metrics.Addr, shutdown, logger)

	ctx, cancel := signalContext()
	defer cancel()

	runner := bridge.NewRunner(seg, pub, cfg.Bridge.Rate, logger)
	runErr := runner.Run(ctx)

	if err := shutdown.Shutdown(cmd.Context()); err != nil {
		return err
	}
	return runErr
}
