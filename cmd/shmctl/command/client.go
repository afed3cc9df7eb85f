package command

import (
	"fmt"

	"github.com/irsl/shmcontroller/internal/client"
	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/spf13/cobra"
)

var clientFlags struct {
	delta      float64
	iterations int
}

// NewClientCommand returns the cobra command for "client".
func NewClientCommand() *cobra.Command {
	cc := &cobra.Command{
		Use:   "client",
		Short: "attach to the segment and step every joint toward zero",
		RunE:  clientCommandFunc,
	}
	cc.Flags().Float64Var(&clientFlags.delta, "delta", client.DefaultDelta, "step size per iteration")
	cc.Flags().IntVar(&clientFlags.iterations, "iterations", client.DefaultIterations, "number of iterations")
	return cc
}

func clientCommandFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, "client")

	seg, err := openSegment(cfg, false, shm.RoleController, logger)
	if err != nil {
		return err
	}
	defer seg.Close()

	ctx, cancel := signalContext()
	defer cancel()

	s := &client.Stepper{
		Seg:        seg,
		Delta:      clientFlags.delta,
		Interval:   client.DefaultInterval,
		Iterations: clientFlags.iterations,
		Logger:     logger,
	}
	last, err := s.Run(ctx)
	if err != nil {
		return err
	}
	frame, err := seg.GetFrame()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "frame %d command %v\n", frame, last)
	return nil
}
