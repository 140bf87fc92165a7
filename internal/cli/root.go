// Package cli implements the chartsync command line interface: sync runs,
// offline validation, and mapping-store inspection.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the chartsync command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chartsync",
		Short: "Sync legacy practice-management exports to the remote EHR",
		Long: "chartsync reads the positional CSV exports a legacy practice-management\n" +
			"system produces, reconciles record identity against a durable mapping\n" +
			"store, and creates or updates the corresponding remote entities.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(opts.Verbose)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "chartsync.yaml", "path to config file")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(
		NewSyncCommand(opts),
		NewValidateCommand(opts),
		NewMappingsCommand(opts),
	)

	return cmd
}

func isValidFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	}
	return false
}

// configureLogging installs the process-wide slog handler. Logs go to
// stderr so command output on stdout stays parseable.
func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
