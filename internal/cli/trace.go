package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/casket/internal/journal"
)

// NewTraceCommand creates the trace command: show recent engine runs from
// the execution journal.
func NewTraceCommand(opts *RootOptions) *cobra.Command {
	var (
		kind  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recent runs from the execution journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Journal == "" {
				return fmt.Errorf("no journal configured (set --journal or the config file)")
			}
			j, err := journal.Open(opts.Journal)
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.Runs(cmd.Context(), kind, limit)
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), runs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tKIND\tFINGERPRINT\tOUTCOME\tDURATION\tERROR")
			for _, r := range runs {
				fp := r.Fingerprint
				if len(fp) > 12 {
					fp = fp[:12]
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Format(time.RFC3339),
					r.Kind,
					fp,
					r.Outcome,
					r.Duration.Round(time.Millisecond),
					r.Error,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter runs by executor kind")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum runs to show (0 = all)")
	return cmd
}
