package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chartsync/internal/config"
	"chartsync/internal/export"
)

// ValidationResult holds validation results for JSON output.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	RecordTypes []string `json:"record_types"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and record type layouts offline",
		Long: `Validate the configuration file, the CUE record type declarations, and
the presence of the configured export files. Makes no remote calls and
writes nothing.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(rootOpts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	result := ValidationResult{Valid: true}

	cfg, err := config.Load(rootOpts.ConfigPath)
	if err != nil {
		// Without a config nothing else can be checked.
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		formatter.Error(ErrCodeConfig, err.Error(), result)
		return NewExitError(ExitFailure, "configuration invalid")
	}

	reg, loadErrs := BuildRegistry(cfg.Sync.SpecsDir, LoadModeCollectAll)
	for _, e := range loadErrs {
		result.Valid = false
		result.Errors = append(result.Errors, e.Error())
	}
	for _, e := range reg.Validate() {
		result.Valid = false
		result.Errors = append(result.Errors, e.Error())
	}
	result.RecordTypes = reg.Types()

	for name, src := range cfg.Sources {
		if _, err := reg.Resolve(name); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("sources.%s: %v", name, err))
		}
		// A missing export is a warning here: validate runs are often done
		// before the nightly export lands.
		if _, _, err := export.Load(src.Path, export.Options{Limit: 1}); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("sources.%s: %v", name, err))
		}
	}

	if !result.Valid {
		formatter.Error(ErrCodeLayout, "validation failed", result)
		return NewExitError(ExitFailure, "validation failed")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "configuration valid\nrecord types: %s", strings.Join(result.RecordTypes, ", "))
	for _, w := range result.Warnings {
		fmt.Fprintf(&b, "\nwarning: %s", w)
	}
	if err := formatter.Success(result, b.String()); err != nil {
		return WrapExitError(ExitCommandError, "writing result", err)
	}
	return nil
}
