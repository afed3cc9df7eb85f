package command

import (
	"errors"
	"fmt"

	"github.com/irsl/shmcontroller/internal/config"
	"github.com/spf13/cobra"
)

var validateFlags struct {
	schema string
}

// NewValidateCommand returns the cobra command for "validate".
func NewValidateCommand() *cobra.Command {
	cc := &cobra.Command{
		Use:   "validate [file]",
		Short: "check a parameter file against the JSON schema",
		Args:  cobra.MaximumNArgs(1),
		RunE:  validateCommandFunc,
	}
	cc.Flags().StringVar(&validateFlags.schema, "schema", "", "schema file (default: built-in)")
	return cc
}

func validateCommandFunc(cmd *cobra.Command, args []string) error {
	path := GlobalFlagsInstance.ConfigPath
	if len(args) == 1 {
		path = args[0]
	}

	res, err := config.ValidateFile(path, validateFlags.schema)
	if err != nil {
		return withExitCode(ExitBadArgs, err)
	}
	out := cmd.OutOrStdout()
	if !res.OK {
		fmt.Fprintln(out, "YAML validation failed!")
		fmt.Fprintln(out, res.Diagnostic)
		return withExitCode(ExitInvalid, errors.New("invalid parameter file"))
	}

	// Schema-valid files can still name an impossible segment.
	cfg, err := config.Load(path)
	if err != nil {
		return withExitCode(ExitInvalid, err)
	}
	settings, err := cfg.SegmentSettings()
	if err != nil {
		fmt.Fprintln(out, "YAML validation failed!")
		return withExitCode(ExitInvalid, err)
	}
	fmt.Fprintln(out, "YAML validation succeeded!")
	fmt.Fprintln(out, settings)
	return nil
}
