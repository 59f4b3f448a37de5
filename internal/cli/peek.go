package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPeekCommand creates the peek command: probe the cache without
// executing anything.
func NewPeekCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "peek <kind> [input-json]",
		Short: "Probe the cache for an artifact without executing",
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

			path, ok, err := eng.Peek(args[0], input)
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				out := map[string]any{"cached": ok}
				if ok {
					out["path"] = path
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			if !ok {
				return fmt.Errorf("not cached")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}
