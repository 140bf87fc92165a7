package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"chartsync/internal/config"
	"chartsync/internal/mapstore"
)

// NewMappingsCommand creates the mappings command group.
func NewMappingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect and maintain the identity mapping store",
	}

	cmd.AddCommand(newMappingsListCommand(rootOpts))
	cmd.AddCommand(newMappingsStatsCommand(rootOpts))
	cmd.AddCommand(newMappingsExportCommand(rootOpts))
	cmd.AddCommand(newMappingsRemoveCommand(rootOpts))

	return cmd
}

func openStore(rootOpts *RootOptions, formatter *OutputFormatter) (*mapstore.Store, error) {
	cfg, err := config.Load(rootOpts.ConfigPath)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	store, err := mapstore.Open(cfg.Sync.MappingDB)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "cannot open mapping store", err)
	}
	return store, nil
}

func newFormatter(rootOpts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}
}

func newMappingsListCommand(rootOpts *RootOptions) *cobra.Command {
	var recordType string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List identity mappings",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			store, err := openStore(rootOpts, formatter)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), recordType)
			if err != nil {
				formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "listing mappings", err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%d mapping(s)", len(entries))
			for _, e := range entries {
				fmt.Fprintf(&b, "\n%s/%s -> %s (last synced %s)",
					e.RecordType, e.LocalID, e.RemoteID, e.LastSynced.Format("2006-01-02 15:04:05"))
			}
			return formatter.Success(entries, b.String())
		},
	}

	cmd.Flags().StringVar(&recordType, "type", "", "limit to one record type")
	return cmd
}

func newMappingsStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show mapping counts per record type",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			store, err := openStore(rootOpts, formatter)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "reading stats", err)
			}

			var b strings.Builder
			b.WriteString("mappings per record type:")
			if len(stats) == 0 {
				b.WriteString(" none")
			}
			for _, t := range sortedKeys(stats) {
				fmt.Fprintf(&b, "\n  %-16s %d", t, stats[t])
			}
			return formatter.Success(stats, b.String())
		},
	}
}

func newMappingsExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "export",
		Short:         "Export all mappings as CSV to stdout",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			store, err := openStore(rootOpts, formatter)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ExportCSV(cmd.Context(), cmd.OutOrStdout()); err != nil {
				formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "exporting mappings", err)
			}
			return nil
		},
	}
}

func newMappingsRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <record-type> <local-id>",
		Short: "Remove one mapping (manual intervention)",
		Long: `Remove one identity mapping. The next sync run treats the local record
as new: it re-resolves through the demographic fallback search or
creates a fresh remote entity. Only for reconciling a mis-mapped
record; normal operation never deletes mappings.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			store, err := openStore(rootOpts, formatter)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Remove(cmd.Context(), args[0], args[1])
			if err != nil {
				formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "removing mapping", err)
			}
			if !removed {
				formatter.Error(ErrCodeStore, fmt.Sprintf("no mapping for %s/%s", args[0], args[1]), nil)
				return NewExitError(ExitFailure, "mapping not found")
			}
			return formatter.Success(
				map[string]string{"record_type": args[0], "local_id": args[1]},
				fmt.Sprintf("removed mapping %s/%s", args[0], args[1]))
		},
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
