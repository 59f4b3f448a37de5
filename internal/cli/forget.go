package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewForgetCommand creates the forget command: delete one artifact.
// Idempotent; forgetting an absent artifact succeeds.
func NewForgetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <kind> [input-json]",
		Short: "Delete the artifact for (kind, input)",
		Args:  cobra.RangeArgs(1, 2),
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

			if err := eng.Forget(args[0], input); err != nil {
				return err
			}
			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]bool{"forgotten": true})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "forgotten")
			return err
		},
	}
}
