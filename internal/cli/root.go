// Package cli implements the casket command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/casket/internal/engine"
	"github.com/roach88/casket/internal/journal"
)

// RootOptions holds global flags for all commands, merged with the
// optional config file.
type RootOptions struct {
	Root        string
	Format      string // "json" | "text"
	ConfigPath  string
	Journal     string
	KeepScratch bool
	Verbose     bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the casket CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "casket",
		Short: "casket - content-addressed execution cache",
		Long: "Casket caches computations as content-addressed directories of artifacts.\n" +
			"Identical inputs return the previously computed directory; novel inputs\n" +
			"run in an isolated workspace and publish atomically.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.applyConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Root, "root", ".", "store root directory")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default casket.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", "", "execution journal database path")
	cmd.PersistentFlags().BoolVar(&opts.KeepScratch, "keep-scratch", false, "keep scratch directories after failed builds")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewPeekCommand(opts))
	cmd.AddCommand(NewForgetCommand(opts))
	cmd.AddCommand(NewGraphCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newEngine builds the engine (and journal, when configured) for a
// command invocation. The returned cleanup closes the journal.
func (o *RootOptions) newEngine() (*engine.Engine, func(), error) {
	logOpts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if o.Verbose {
		logOpts.Level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, logOpts))

	engOpts := []engine.Option{engine.WithLogger(log)}
	if o.KeepScratch {
		engOpts = append(engOpts, engine.WithKeepScratch())
	}

	cleanup := func() {}
	if o.Journal != "" {
		j, err := journal.Open(o.Journal)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		engOpts = append(engOpts, engine.WithRecorder(j))
		cleanup = func() { j.Close() }
	}

	return engine.New(o.Root, engOpts...), cleanup, nil
}
