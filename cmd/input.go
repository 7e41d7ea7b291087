package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forest-cli/internal/analysis"
	"github.com/sells-group/forest-cli/internal/region"
	"github.com/sells-group/forest-cli/internal/report"
)

// loadRegions reads regions from a GeoJSON file ("-" for stdin) or a
// shapefile. Exactly one source must be given.
func loadRegions(geojsonPath, shapefilePath string) ([]region.Region, error) {
	switch {
	case geojsonPath != "" && shapefilePath != "":
		return nil, eris.New("use either --geojson or --shapefile, not both")
	case shapefilePath != "":
		return region.FromShapefile(shapefilePath)
	case geojsonPath == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, eris.Wrap(err, "read stdin")
		}
		return region.Parse(data)
	case geojsonPath != "":
		data, err := os.ReadFile(geojsonPath)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", geojsonPath)
		}
		return region.Parse(data)
	default:
		return nil, eris.New("an input region is required (--geojson or --shapefile)")
	}
}

// formatForma writes a FORMA result as aligned text.
func formatForma(out io.Writer, p *report.Printer, res *analysis.FormaResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Alert area:\t%s\n", p.Hectares(res.AreaHa))
	_, _ = fmt.Fprintf(w, "Alert count:\t%s\n", p.Count(res.AlertCounts))
	writeRunLine(w, res.RunID, res.Cached)
	_ = w.Flush()
}

// formatExtent writes the per-tile areas followed by the total.
func formatExtent(out io.Writer, p *report.Printer, res *analysis.ExtentResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, "TILE\tAREA\t")
	for _, t := range res.Regions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t\n", t.Name, p.Hectares(t.AreaHa))
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t%s\t\n", p.Hectares(res.AreaHa))
	_ = w.Flush()

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	writeRunLine(w, res.RunID, res.Cached)
	_ = w.Flush()
}

func writeRunLine(w io.Writer, id string, cached bool) {
	if id == "" {
		return
	}
	suffix := ""
	if cached {
		suffix = " (cached)"
	}
	_, _ = fmt.Fprintf(w, "Run:\t%s%s\n", truncateID(id), suffix)
}

// printResult writes v in the selected --output format, using text for
// the human-readable form.
func printResult(out io.Writer, v any, text func(io.Writer, *report.Printer)) error {
	if err := report.ValidFormat(outputFormat); err != nil {
		return err
	}
	if strings.EqualFold(outputFormat, report.FormatText) {
		text(out, report.NewPrinter(locale))
		return nil
	}
	return report.Write(out, outputFormat, v)
}
