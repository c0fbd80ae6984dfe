package commands

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
	"github.com/pacificclimate/climate-explorer-data-prep/pkg/prsn"
	"github.com/pacificclimate/climate-explorer-data-prep/pkg/telemetry"
)

// generatePrsnOptions holds the validated flags of generate-prsn.
type generatePrsnOptions struct {
	Precip string `validate:"required"`
	Tasmin string `validate:"required"`
	Tasmax string `validate:"required"`
	OutDir string `validate:"required"`
}

func newGeneratePrsnCommand() *cobra.Command {
	opts := generatePrsnOptions{}

	cmd := &cobra.Command{
		Use:   "generate-prsn",
		Short: "Derive precipitation-as-snow from pr, tasmin, and tasmax",
		Long: `Derive a precipitation-as-snow (prsn) file from precipitation and daily
temperature extremes. Precipitation in cells where the mean of tasmin
and tasmax is below freezing is counted as snowfall; other cells are
masked.

The three input files must describe the same model run: their project,
model, institute, experiment, and ensemble member metadata must agree,
the temperature files must share units, and all three variables must
have the same shape.`,
		Example: `  # Derive prsn for a CanESM2 run
  dataprep generate-prsn -p pr_day.nc -n tasmin_day.nc -x tasmax_day.nc -o ./out`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := telemetry.ComponentLogger(logger, "generate-prsn")

			if err := validator.New().Struct(opts); err != nil {
				return fmt.Errorf("invalid options: %w", err)
			}

			open := func(path string) (*ncdf.Dataset, error) {
				log.Info().Str("path", path).Msg("retrieving file")
				return ncdf.Open(path)
			}
			pr, err := open(opts.Precip)
			if err != nil {
				return err
			}
			defer pr.Close()
			tasmin, err := open(opts.Tasmin)
			if err != nil {
				return err
			}
			defer tasmin.Close()
			tasmax, err := open(opts.Tasmax)
			if err != nil {
				return err
			}
			defer tasmax.Close()

			path, err := prsn.Generate(pr, tasmin, tasmax, opts.OutDir, log)
			if err != nil {
				return err
			}
			log.Info().Str("path", path).Msg("wrote prsn file")
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Precip, "prec", "p", "", "precipitation input file (required)")
	cmd.Flags().StringVarP(&opts.Tasmin, "tasmin", "n", "", "tasmin input file (required)")
	cmd.Flags().StringVarP(&opts.Tasmax, "tasmax", "x", "", "tasmax input file (required)")
	cmd.Flags().StringVarP(&opts.OutDir, "outdir", "o", "", "output directory (required)")
	cmd.MarkFlagRequired("prec")
	cmd.MarkFlagRequired("tasmin")
	cmd.MarkFlagRequired("tasmax")
	cmd.MarkFlagRequired("outdir")

	return cmd
}
