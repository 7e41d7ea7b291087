package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/forest-cli/internal/report"
	"github.com/sells-group/forest-cli/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Select a year range from a year-keyed table and total it",
	Long:  "Reads a JSON table ({\"values\": {...}} or {\"rows\": [...]}, - for stdin), keeps the years in [begin, end], optionally scales them and prints the total over [begin, end).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := statsQueryFromFlags(cmd)
		if err != nil {
			return err
		}

		table, err := readTable(args[0])
		if err != nil {
			return err
		}

		sel, err := stats.Select(table, q)
		if err != nil {
			return err
		}
		return printResult(os.Stdout, sel, func(w io.Writer, p *report.Printer) {
			formatSelection(w, p, sel)
		})
	},
}

func init() {
	statsCmd.Flags().Int("begin", 0, "first year to keep")
	statsCmd.Flags().Int("end", 0, "last year to keep")
	statsCmd.Flags().Int("indicator", 0, "indicator id to read from rows")
	statsCmd.Flags().Float64("scale", 0, "factor applied to each kept value (0 keeps values as is)")
	_ = statsCmd.MarkFlagRequired("begin")
	_ = statsCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(statsCmd)
}

func statsQueryFromFlags(cmd *cobra.Command) (stats.Query, error) {
	var q stats.Query
	var err error
	if q.Begin, err = cmd.Flags().GetInt("begin"); err != nil {
		return q, err
	}
	if q.End, err = cmd.Flags().GetInt("end"); err != nil {
		return q, err
	}
	if q.Indicator, err = cmd.Flags().GetInt("indicator"); err != nil {
		return q, err
	}
	q.Scale, err = cmd.Flags().GetFloat64("scale")
	return q, err
}

// readTable decodes a year-keyed table from path, or stdin for "-".
func readTable(path string) (stats.Table, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return stats.Table{}, eris.Wrapf(err, "read %s", path)
	}

	var t stats.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return stats.Table{}, eris.Wrapf(err, "decode %s", path)
	}
	return t, nil
}

// formatSelection writes the kept years in order followed by the total.
func formatSelection(out io.Writer, p *report.Printer, sel *stats.Selection) {
	keys := make([]string, 0, len(sel.Values))
	for k := range sel.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, "YEAR\tVALUE\t")
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s\t%s\t\n", k, p.Number(sel.Values[k]))
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t%s\t\n", p.Number(sel.Total))
	_ = w.Flush()
}
