package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/forest-cli/internal/analysis"
	"github.com/sells-group/forest-cli/internal/report"
)

var extentCmd = &cobra.Command{
	Use:   "extent",
	Short: "Measure the area of a binary image band within regions",
	Long: `Sums the pixel area of a binary image (tree cover by default) inside
each input region. Large regions can be split into 4, 16 or 64 quadrant
tiles, reduced either in one batch call or one call per tile.`,
	Example: `  forest-cli extent --geojson plots.geojson --tiles 16
  forest-cli extent --shapefile parks.shp --band loss --threshold 30 --per-region`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		geojsonPath, _ := cmd.Flags().GetString("geojson")
		shapefilePath, _ := cmd.Flags().GetString("shapefile")

		regions, err := loadRegions(geojsonPath, shapefilePath)
		if err != nil {
			return err
		}

		req := analysis.ExtentRequest{Regions: regions}
		req.Asset, _ = cmd.Flags().GetString("asset")
		req.Band, _ = cmd.Flags().GetString("band")
		req.Threshold, _ = cmd.Flags().GetInt("threshold")
		req.Tiles, _ = cmd.Flags().GetInt("tiles")
		req.PerRegion, _ = cmd.Flags().GetBool("per-region")
		req.BestEffort, _ = cmd.Flags().GetBool("best-effort")

		e, err := initEnv(ctx, "analysis")
		if err != nil {
			return err
		}
		defer e.Close()

		if req.Tiles == 0 {
			req.Tiles = cfg.Analysis.DefaultTiles
		}

		res, err := e.Service.Extent(ctx, req)
		if err != nil {
			return err
		}
		return printResult(os.Stdout, res, func(w io.Writer, p *report.Printer) {
			formatExtent(w, p, res)
		})
	},
}

func init() {
	extentCmd.Flags().String("geojson", "", "GeoJSON file with the regions (- for stdin)")
	extentCmd.Flags().String("shapefile", "", "shapefile with the regions")
	extentCmd.Flags().String("asset", "", "image asset (default from config)")
	extentCmd.Flags().String("band", "", "binary band (default from config)")
	extentCmd.Flags().Int("threshold", 0, "canopy density threshold; selects band_<threshold>")
	extentCmd.Flags().Int("tiles", 0, "split each region into 1, 4, 16 or 64 tiles (default from config)")
	extentCmd.Flags().Bool("per-region", false, "reduce each tile in its own call")
	extentCmd.Flags().Bool("best-effort", false, "let the platform coarsen the scale for large tiles")
	rootCmd.AddCommand(extentCmd)
}
