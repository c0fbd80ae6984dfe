package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/flowvec"
	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
	"github.com/pacificclimate/climate-explorer-data-prep/pkg/telemetry"
)

func newDecomposeFlowVectorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompose-flow-vectors <source> <dest> <variable>",
		Short: "Convert a VIC routing grid into vector component grids",
		Long: `Convert an indexed VIC flow direction grid into normalized eastward and
northward vector component grids suitable for ncWMS display.

The process exits with code 1 when the source file has no usable flow
data at all, and code 2 when the named variable is missing or is not a
valid flow routing.`,
		Example: `  # Decompose the "flow" variable of routes.nc
  dataprep decompose-flow-vectors routes.nc vectors.nc flow`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := telemetry.ComponentLogger(logger, "decompose-flow-vectors")
			source, dest, variable := args[0], args[1], args[2]

			ds, err := ncdf.Open(source)
			if err != nil {
				return err
			}
			defer ds.Close()

			if err := flowvec.Decompose(ds, dest, variable, log); err != nil {
				if errors.Is(err, &flowvec.VariableError{}) {
					return &ExitCodeError{Code: 2, Err: err}
				}
				return err
			}
			log.Info().Str("path", dest).Msg("wrote vector components")
			return nil
		},
	}

	return cmd
}
