package commands

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/climo"
	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
	"github.com/pacificclimate/climate-explorer-data-prep/pkg/telemetry"
)

// generateClimosOptions holds the validated flags of generate-climos.
type generateClimosOptions struct {
	Operation string `validate:"required,oneof=mean std min max"`
	Start     string `validate:"required"`
	End       string `validate:"required"`
	OutDir    string `validate:"required"`
	Split     bool
}

// parseClimoDate accepts either a full date or a bare year.
func parseClimoDate(s string, endOfYear bool) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse date %q (want YYYY-MM-DD or YYYY)", s)
	}
	if endOfYear {
		return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC), nil
	}
	return t, nil
}

func newGenerateClimosCommand() *cobra.Command {
	opts := generateClimosOptions{}

	cmd := &cobra.Command{
		Use:   "generate-climos <ncfile>...",
		Short: "Form multi-year climatological means from model output",
		Long: `Form multi-year means (climatologies) over a fixed period from daily,
monthly, or yearly model output.

Daily and monthly input yields monthly, seasonal, and annual means;
yearly input yields annual means only. By default the averaging
intervals are concatenated into one msaClim output file per variable;
--split-intervals writes one file per interval instead.`,
		Example: `  # 1961-1990 means, one merged file per variable
  dataprep generate-climos -s 1961 -e 1990 -o ./climos tasmax_day.nc

  # Standard deviations, one file per averaging interval
  dataprep generate-climos --operation std -s 1971-01-01 -e 2000-12-31 \
    --split-intervals -o ./climos pr_day.nc`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := telemetry.ComponentLogger(logger, "generate-climos")

			if err := validator.New().Struct(opts); err != nil {
				return fmt.Errorf("invalid options: %w", err)
			}
			start, err := parseClimoDate(opts.Start, false)
			if err != nil {
				return err
			}
			end, err := parseClimoDate(opts.End, true)
			if err != nil {
				return err
			}

			climoOpts := climo.Options{
				Operation:      climo.Operation(opts.Operation),
				Start:          start,
				End:            end,
				OutDir:         opts.OutDir,
				SplitIntervals: opts.Split,
			}

			var failed int
			for _, path := range args {
				log.Info().Str("path", path).Msg("processing input file")
				ds, err := ncdf.Open(path)
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("cannot open input")
					failed++
					continue
				}
				outputs, err := climo.Generate(ds, climoOpts, log)
				ds.Close()
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("generation failed")
					failed++
					continue
				}
				for _, out := range outputs {
					log.Info().Str("path", out).Msg("wrote output")
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d input files failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Operation, "operation", "mean", "statistic to compute (mean, std, min, max)")
	cmd.Flags().StringVarP(&opts.Start, "start", "s", "", "start of the climatological period (YYYY-MM-DD or YYYY)")
	cmd.Flags().StringVarP(&opts.End, "end", "e", "", "end of the climatological period, inclusive (YYYY-MM-DD or YYYY)")
	cmd.Flags().StringVarP(&opts.OutDir, "outdir", "o", "", "output directory (required)")
	cmd.Flags().BoolVar(&opts.Split, "split-intervals", false, "write one file per averaging interval")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	cmd.MarkFlagRequired("outdir")

	return cmd
}
