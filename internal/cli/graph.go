package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/casket/internal/graph"
)

// NewGraphCommand creates the graph command: list every artifact on disk
// with its dependency edges.
func NewGraphCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "List artifacts and their dependency edges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := graph.Discover(opts.Root)
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), nodes)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tFINGERPRINT\tSIZE\tCREATED\tDEPS")
			for _, n := range nodes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					n.Kind,
					n.Fingerprint[:12],
					humanize.Bytes(uint64(n.Size)),
					n.Descriptor.CreatedAt,
					len(n.Edges),
				)
				for _, e := range n.Edges {
					fmt.Fprintf(w, "\t  %s -> %s/%s\t\t\t\n", e.MountPath, e.Kind, e.Fingerprint[:12])
				}
			}
			return w.Flush()
		},
	}
}
