package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/telemetry"
)

var (
	// Global flags
	logLevel string
	jsonLogs bool

	// logger is the root logger, built before any subcommand runs.
	logger zerolog.Logger
)

// ExitCodeError carries a process exit code chosen by a subcommand.
type ExitCodeError struct {
	Code int
	Err  error
}

// Error implements the error interface.
func (e *ExitCodeError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *ExitCodeError) Unwrap() error { return e.Err }

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dataprep",
		Short: "Climate Explorer data preparation tools",
		Long: `dataprep prepares NetCDF climate data files for publication.

Tools:
  - update-metadata: apply declarative attribute updates from a YAML file
  - generate-climos: form multi-year climatological means from model output
  - split-merged-climos: split merged climatology files by averaging interval
  - decompose-flow-vectors: convert VIC routing grids into vector components
  - generate-prsn: derive precipitation-as-snow from pr, tasmin, and tasmax`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			format := "console"
			if jsonLogs {
				format = "json"
			}
			var err error
			logger, err = telemetry.NewLogger(telemetry.LoggingConfig{
				Level:  logLevel,
				Format: format,
				Output: "stderr",
			})
			return err
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "emit logs in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newUpdateMetadataCommand())
	rootCmd.AddCommand(newGenerateClimosCommand())
	rootCmd.AddCommand(newSplitMergedClimosCommand())
	rootCmd.AddCommand(newDecomposeFlowVectorsCommand())
	rootCmd.AddCommand(newGeneratePrsnCommand())

	return rootCmd
}
