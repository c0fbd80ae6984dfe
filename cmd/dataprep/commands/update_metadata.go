package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
	"github.com/pacificclimate/climate-explorer-data-prep/pkg/telemetry"
	"github.com/pacificclimate/climate-explorer-data-prep/pkg/updatemeta"
)

func newUpdateMetadataCommand() *cobra.Command {
	var updatesPath string

	cmd := &cobra.Command{
		Use:   "update-metadata <ncfile>",
		Short: "Apply declarative metadata updates to a NetCDF file",
		Long: `Apply attribute updates described in a YAML updates file to a NetCDF
file in place.

The updates file groups attribute operations by scope: "global" for
file-level attributes, a variable name for that variable's attributes,
or an "=expression" that evaluates to a variable name. Within a scope,
an attribute maps to its new value; an empty value deletes the
attribute, a "<-name" value renames the attribute name to the given
key, and an "=expression" value is evaluated with the scope's current
attributes in context.

Operations that cannot be applied are reported and skipped; the rest of
the updates still proceed.`,
		Example: `  # Apply updates.yaml to downscaled.nc
  dataprep update-metadata -u updates.yaml downscaled.nc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := telemetry.ComponentLogger(logger, "update-metadata")

			spec, err := updatemeta.ParseFile(updatesPath)
			if err != nil {
				return err
			}

			ds, err := ncdf.Open(args[0])
			if err != nil {
				return err
			}

			engine := updatemeta.NewEngine(ds,
				updatemeta.WithLogger(log),
				updatemeta.WithDatasetContext(ds),
			)
			report := engine.Run(spec)

			for _, diag := range report.Diagnostics {
				log.Warn().
					Str("scope", diag.Scope).
					Str("attribute", diag.Attribute).
					Err(diag.Err).
					Msg("update skipped")
			}
			log.Info().
				Str("run_id", report.RunID).
				Int("applied", report.Applied).
				Int("skipped", report.Skipped).
				Msg("updates applied")

			if err := ds.Close(); err != nil {
				return fmt.Errorf("saving %s: %w", args[0], err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&updatesPath, "updates", "u", "", "YAML file specifying the updates (required)")
	cmd.MarkFlagRequired("updates")

	return cmd
}
