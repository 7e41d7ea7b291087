package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/forest-cli/internal/region"
)

var divideCmd = &cobra.Command{
	Use:   "divide",
	Short: "Split regions into quadrant tiles and print them as GeoJSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		geojsonPath, _ := cmd.Flags().GetString("geojson")
		shapefilePath, _ := cmd.Flags().GetString("shapefile")
		tiles, _ := cmd.Flags().GetInt("tiles")

		regions, err := loadRegions(geojsonPath, shapefilePath)
		if err != nil {
			return err
		}

		prepared, err := region.Prepare(regions, tiles)
		if err != nil {
			return err
		}

		data, err := region.ToFeatureCollection(prepared)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	},
}

func init() {
	divideCmd.Flags().String("geojson", "", "GeoJSON file with the regions (- for stdin)")
	divideCmd.Flags().String("shapefile", "", "shapefile with the regions")
	divideCmd.Flags().Int("tiles", 4, "number of tiles per region (1, 4, 16 or 64)")
	rootCmd.AddCommand(divideCmd)
}
