package command

import (
	"fmt"

	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/spf13/cobra"
)

var removeFlags struct {
	key uint32
}

// NewRemoveCommand returns the cobra command for "remove".
func NewRemoveCommand() *cobra.Command {
	cc := &cobra.Command{
		Use:   "remove",
		Short: "destroy a segment; attached processes keep their mapping",
		RunE:  removeCommandFunc,
	}
	cc.Flags().Uint32Var(&removeFlags.key, "key", 0, "segment key (default: shm_settings.shm_key)")
	return cc
}

func removeCommandFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	key := removeFlags.key
	if key == 0 {
		key = cfg.Shm.ShmKey
	}
	opts, err := cfg.SegmentOptions()
	if err != nil {
		return withExitCode(ExitBadArgs, err)
	}
	if !shm.Exists(key, opts...) {
		return withExitCode(ExitBadArgs, fmt.Errorf("%w: key %d", shm.ErrSegmentNotFound, key))
	}
	if err := shm.Remove(key, opts...); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed segment %d\n", key)
	return nil
}
