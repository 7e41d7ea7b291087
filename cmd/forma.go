package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/forest-cli/internal/analysis"
	"github.com/sells-group/forest-cli/internal/report"
	"github.com/sells-group/forest-cli/internal/stats"
)

var formaCmd = &cobra.Command{
	Use:   "forma",
	Short: "Measure FORMA 250 alert area and counts",
	Long: `Measures the area (ha) and number of FORMA 250 deforestation alerts
within a period, either inside GeoJSON regions or inside an administrative
boundary selected by ISO code and optional admin-1 id.`,
	Example: `  forest-cli forma --geojson plot.geojson --period 2017-01-01,2018-01-01
  forest-cli forma --iso BRA --adm1 12 --period 2017-01-01,2018-01-01 -o json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		geojsonPath, _ := cmd.Flags().GetString("geojson")
		shapefilePath, _ := cmd.Flags().GetString("shapefile")
		iso, _ := cmd.Flags().GetString("iso")
		adm1, _ := cmd.Flags().GetInt("adm1")
		periodStr, _ := cmd.Flags().GetString("period")

		period, err := stats.ParsePeriod(periodStr)
		if err != nil {
			return err
		}

		req := analysis.FormaRequest{Period: period}
		switch {
		case iso != "":
			if geojsonPath != "" || shapefilePath != "" {
				return eris.New("use either --iso or a region file, not both")
			}
			req.Admin = &analysis.AdminArea{ISO: iso, Adm1: adm1}
		default:
			if adm1 != 0 {
				return eris.New("--adm1 requires --iso")
			}
			if req.Regions, err = loadRegions(geojsonPath, shapefilePath); err != nil {
				return err
			}
		}

		e, err := initEnv(ctx, "analysis")
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.Service.Forma250(ctx, req)
		if err != nil {
			return err
		}
		return printResult(os.Stdout, res, func(w io.Writer, p *report.Printer) {
			formatForma(w, p, res)
		})
	},
}

func init() {
	formaCmd.Flags().String("geojson", "", "GeoJSON file with the area of interest (- for stdin)")
	formaCmd.Flags().String("shapefile", "", "shapefile with the area of interest")
	formaCmd.Flags().String("iso", "", "ISO 3166-1 alpha-3 country code")
	formaCmd.Flags().Int("adm1", 0, "admin-1 id within the country")
	formaCmd.Flags().String("period", "", "date range start,end (YYYY-MM-DD,YYYY-MM-DD)")
	_ = formaCmd.MarkFlagRequired("period")
	rootCmd.AddCommand(formaCmd)
}
