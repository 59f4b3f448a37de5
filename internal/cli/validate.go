package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/casket/internal/pipeline"
)

// NewValidateCommand creates the validate command: check a pipeline
// manifest without executing it.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <pipeline.cue>",
		Short: "Validate a pipeline manifest without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Load(args[0])
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"valid": true,
					"tasks": len(p.Tasks),
				})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d tasks\n", len(p.Tasks))
			return err
		},
	}
}
