// Package report renders analysis results and run history for people:
// localized text, JSON/YAML documents and spreadsheets.
package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/forest-cli/internal/model"
)

// RunsSheet is the sheet name used by WriteRunsXLSX.
const RunsSheet = "runs"

var runsHeader = []string{
	"id", "kind", "status", "area_ha", "alert_counts", "tiles",
	"cache_hit", "error", "created_at", "duration_s",
}

// runMetrics are the result fields worth a spreadsheet column.
type runMetrics struct {
	AreaHa      *float64 `json:"area_ha"`
	AlertCounts *int64   `json:"alert_counts"`
	Tiles       *int     `json:"tiles"`
}

// WriteRunsXLSX writes one row per run to an XLSX workbook.
func WriteRunsXLSX(w io.Writer, runs []model.Run) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(RunsSheet)
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range runsHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range runs {
		var m runMetrics
		if len(r.Result) > 0 {
			if err := json.Unmarshal(r.Result, &m); err != nil {
				return eris.Wrapf(err, "report: decode result of run %s", r.ID)
			}
		}

		row := sheet.AddRow()
		row.AddCell().SetString(r.ID)
		row.AddCell().SetString(string(r.Kind))
		row.AddCell().SetString(string(r.Status))
		addOptionalFloat(row, m.AreaHa)
		if m.AlertCounts != nil {
			row.AddCell().SetInt64(*m.AlertCounts)
		} else {
			row.AddCell()
		}
		if m.Tiles != nil {
			row.AddCell().SetInt(*m.Tiles)
		} else {
			row.AddCell()
		}
		row.AddCell().SetBool(r.CacheHit)
		row.AddCell().SetString(r.Error)
		row.AddCell().SetString(r.CreatedAt.UTC().Format(time.RFC3339))
		row.AddCell().SetFloat(r.Duration().Seconds())
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

func addOptionalFloat(row *xlsx.Row, v *float64) {
	c := row.AddCell()
	if v != nil {
		c.SetFloat(*v)
	}
}
