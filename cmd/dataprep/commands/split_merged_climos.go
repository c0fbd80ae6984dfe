package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pacificclimate/climate-explorer-data-prep/pkg/climo"
	"github.com/pacificclimate/climate-explorer-data-prep/pkg/ncdf"
	"github.com/pacificclimate/climate-explorer-data-prep/pkg/telemetry"
)

func newSplitMergedClimosCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "split-merged-climos <ncfile>...",
		Short: "Split merged climatology files by averaging interval",
		Long: `Split climatology files holding several averaging intervals on one time
axis (frequency msaClim or saClim) into one file per interval.`,
		Example: `  # Split a merged file into mClim, sClim, and aClim files
  dataprep split-merged-climos -o ./climos tasmax_msaClim_....nc`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := telemetry.ComponentLogger(logger, "split-merged-climos")

			var failed int
			for _, path := range args {
				log.Info().Str("path", path).Msg("processing input file")
				ds, err := ncdf.Open(path)
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("cannot open input")
					failed++
					continue
				}
				outputs, err := climo.SplitMerged(ds, outDir, log)
				ds.Close()
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("split failed")
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

	cmd.Flags().StringVarP(&outDir, "outdir", "o", "", "output directory (required)")
	cmd.MarkFlagRequired("outdir")

	return cmd
}
