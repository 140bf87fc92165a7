package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"chartsync/internal/config"
	"chartsync/internal/engine"
	"chartsync/internal/identity"
	"chartsync/internal/mapstore"
	"chartsync/internal/remote"
)

// SyncOptions holds sync command flags.
type SyncOptions struct {
	DryRun    bool
	Types     []string
	SkipProbe bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync pass over the configured exports",
		Long: `Run a sync pass: load each configured export, normalize rows, resolve
remote identity through the mapping store, and create or update remote
entities. Records whose content is unchanged since the last run are
skipped without a remote call.

Exit codes: 0 all records synced or skipped, 1 some records failed,
2 the run could not start.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would change without calling the remote or writing mappings")
	cmd.Flags().StringSliceVar(&opts.Types, "type", nil, "limit the run to these record types (default: all configured)")
	cmd.Flags().BoolVar(&opts.SkipProbe, "skip-health-check", false, "skip the remote health probe before the run")

	return cmd
}

func runSync(rootOpts *RootOptions, opts *SyncOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	cfg, err := config.Load(rootOpts.ConfigPath)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.DryRun {
		cfg.Sync.DryRun = true
	}
	if len(opts.Types) > 0 {
		filtered := make(map[string]config.SourceConfig, len(opts.Types))
		for _, t := range opts.Types {
			src, ok := cfg.Sources[t]
			if !ok {
				formatter.Error(ErrCodeConfig, fmt.Sprintf("record type %q is not configured", t), nil)
				return NewExitError(ExitCommandError, "unknown record type")
			}
			filtered[t] = src
		}
		cfg.Sources = filtered
	}

	reg, loadErrs := BuildRegistry(cfg.Sync.SpecsDir, LoadModeFailFast)
	if len(loadErrs) > 0 {
		formatter.Error(ErrCodeLayout, loadErrs[0].Error(), nil)
		return WrapExitError(ExitCommandError, "invalid record type declarations", loadErrs[0])
	}
	if errs := reg.Validate(); len(errs) > 0 {
		formatter.Error(ErrCodeLayout, errs[0].Error(), nil)
		return WrapExitError(ExitCommandError, "invalid record type layout", errs[0])
	}

	store, err := mapstore.Open(cfg.Sync.MappingDB)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot open mapping store", err)
	}
	defer store.Close()

	client, err := remote.New(remote.Config{
		BaseURL:      cfg.Remote.BaseURL,
		APIKey:       cfg.Remote.APIKey,
		Timeout:      cfg.Remote.Timeout(),
		RetryCeiling: cfg.Remote.RetryCeiling,
	}, slog.Default())
	if err != nil {
		formatter.Error(ErrCodeRemote, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot build remote client", err)
	}

	ctx := cmd.Context()

	// A dead endpoint should fail the run before any export is read, not
	// per record. Dry runs make no remote calls, so no probe either.
	if !opts.SkipProbe && !cfg.Sync.DryRun {
		if err := client.Health(ctx); err != nil {
			formatter.Error(ErrCodeRemote, err.Error(), nil)
			return WrapExitError(ExitCommandError, "remote endpoint unreachable", err)
		}
	}

	resolver := identity.New(store, client, slog.Default())
	eng := engine.New(reg, client, resolver, store, nil, cfg, slog.Default())

	report, runErr := eng.Run(ctx)
	if runErr != nil {
		formatter.Error(ErrCodeRun, runErr.Error(), report)
		return WrapExitError(ExitFailure, "run aborted", runErr)
	}

	if err := formatter.Success(report, report.Render()); err != nil {
		return WrapExitError(ExitCommandError, "writing report", err)
	}
	if report.Failed() {
		return NewExitError(ExitFailure, "some records failed")
	}
	return nil
}
