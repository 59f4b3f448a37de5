package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/casket/internal/pipeline"
)

// NewRunCommand creates the run command: execute a CUE pipeline manifest.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <pipeline.cue>",
		Short: "Execute a pipeline manifest",
		Long: "Run loads a CUE pipeline manifest, executes every task against the\n" +
			"store, and prints the entry path per task. Tasks whose inputs are\n" +
			"unchanged since a previous run are served from the cache.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Load(args[0])
			if err != nil {
				return err
			}
			eng, cleanup, err := opts.newEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := pipeline.Run(cmd.Context(), eng, p)
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), results)
			}
			names := make([]string, 0, len(results))
			for name := range results {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, results[name])
			}
			return nil
		},
	}
}
