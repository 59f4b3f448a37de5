package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/casket/internal/engine"
	"github.com/roach88/casket/internal/pipeline"
)

// NewExecCommand creates the exec command: execute one artifact and print
// its entry path. Only the built-in command kind ships with the CLI;
// embedding programs register their own executors on the library engine.
func NewExecCommand(opts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "exec <kind> [input-json]",
		Short: "Execute an artifact and print its entry path",
		Example: `  casket exec command '{"argv": ["date", "+%Y"]}'
  casket exec command '{"argv": ["uname", "-a"]}' --force`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := parseInput(args[1:])
			if err != nil {
				return err
			}
			eng, cleanup, err := opts.newEngine()
			if err != nil {
				return err
			}
			defer cleanup()
			if err := pipeline.RegisterCommand(eng); err != nil {
				return err
			}

			path, err := eng.Execute(cmd.Context(), engine.Config{
				Kind:           args[0],
				Input:          input,
				ForceRecompute: force,
			})
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"path": path})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard any cached artifact and recompute")
	return cmd
}
