package command

import (
	"fmt"
	"time"

	"github.com/irsl/shmcontroller/kernel/foundation"
	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/spf13/cobra"
)

var inspectFlags struct {
	key   uint32
	watch bool
}

// NewInspectCommand returns the cobra command for "inspect".
func NewInspectCommand() *cobra.Command {
	cc := &cobra.Command{
		Use:   "inspect",
		Short: "print the header, layout and frame of an existing segment",
		RunE:  inspectCommandFunc,
	}
	cc.Flags().Uint32Var(&inspectFlags.key, "key", 0, "segment key (default: shm_settings.shm_key)")
	cc.Flags().BoolVar(&inspectFlags.watch, "watch", false, "print every frame change until interrupted")
	return cc
}

func inspectCommandFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	key := inspectFlags.key
	if key == 0 {
		key = cfg.Shm.ShmKey
	}
	opts, err := cfg.SegmentOptions()
	if err != nil {
		return withExitCode(ExitBadArgs, err)
	}

	h, frame, err := shm.Inspect(key, opts...)
	if err != nil {
		return err
	}
	settings := h.Settings(key)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "key:    %d\nheader: %s\nframe:  %d\n", key, h, frame)
	fmt.Fprint(out, shm.CalculateLayout(settings).MemoryMap())

	if !inspectFlags.watch {
		return nil
	}

	// The header describes itself, so attach with exactly its settings.
	seg, err := shm.Open(settings, false, opts...)
	if err != nil {
		return err
	}
	defer seg.Close()
	if err := seg.MustActivate(); err != nil {
		return err
	}
	watcher, err := foundation.NewFrameWatcher(seg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	for ctx.Err() == nil {
		changed, err := watcher.WaitForChange(time.Second)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		line := fmt.Sprintf("frame %d", watcher.Last())
		if settings.JointType.Has(shm.PositionCommand) {
			if pos, err := seg.ReadPositionCurrent(); err == nil {
				line += fmt.Sprintf(" positions %v", pos)
			}
		}
		fmt.Fprintln(out, line)
	}
	stats := watcher.Stats()
	fmt.Fprintf(out, "changes %d skipped %d timeouts %d\n", stats.Changes, stats.Skipped, stats.Timeouts)
	return nil
}
