package main

import (
	"fmt"
	"os"

	"github.com/irsl/shmcontroller/cmd/shmctl/command"
	"github.com/spf13/cobra"
)

const (
	cliName        = "shmctl"
	cliDescription = "Shared-memory joint transport tools: simulated hardware, polling client, trajectory bridge."
)

var (
	rootCmd = &cobra.Command{
		Use:           cliName,
		Short:         cliDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&command.GlobalFlagsInstance.ConfigPath, "config", "c", "test.yaml", "parameter file")
	rootCmd.PersistentFlags().StringVar(&command.GlobalFlagsInstance.LogLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
	rootCmd.PersistentFlags().StringVar(&command.GlobalFlagsInstance.Backend, "backend", "", "shared memory backend: sysv, file or memory (overrides shm_settings.backend)")

	rootCmd.AddCommand(
		command.NewHardwareCommand(),
		command.NewClientCommand(),
		command.NewBridgeCommand(),
		command.NewValidateCommand(),
		command.NewInspectCommand(),
		command.NewRemoveCommand(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(command.ExitCode(err))
	}
}
