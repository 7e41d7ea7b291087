package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forest-cli/internal/report"
	"github.com/sells-group/forest-cli/internal/stats"
)

func newStatsCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "x"}
	c.Flags().Int("begin", 0, "")
	c.Flags().Int("end", 0, "")
	c.Flags().Int("indicator", 0, "")
	c.Flags().Float64("scale", 0, "")
	require.NoError(t, c.Flags().Parse(args))
	return c
}

func writeTable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestStatsQueryFromFlags(t *testing.T) {
	q, err := statsQueryFromFlags(newStatsCmd(t, "--begin", "2015", "--end", "2018", "--indicator", "2", "--scale", "0.5"))
	require.NoError(t, err)
	assert.Equal(t, stats.Query{Begin: 2015, End: 2018, Indicator: 2, Scale: 0.5}, q)
}

func TestReadTable(t *testing.T) {
	table, err := readTable(writeTable(t, `{"values":{"2016":1.5}}`))
	require.NoError(t, err)
	assert.Equal(t, stats.YearValues{"2016": 1.5}, table.Values)

	_, err = readTable(writeTable(t, `not json`))
	assert.Error(t, err)

	_, err = readTable(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFormatSelection(t *testing.T) {
	sel := &stats.Selection{Values: stats.YearValues{"2017": 1500, "2016": 2}, Total: 2}

	var buf bytes.Buffer
	formatSelection(&buf, report.NewPrinter("en"), sel)
	out := buf.String()

	assert.Contains(t, out, "1,500.00")
	assert.Contains(t, out, "TOTAL")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("2016")), bytes.Index(buf.Bytes(), []byte("2017")))
}

func TestStatsCommand_Run(t *testing.T) {
	path := writeTable(t, `{"values":{"2016":1,"2017":2}}`)

	require.NoError(t, statsCmd.RunE(newStatsCmd(t, "--begin", "2016", "--end", "2017"), []string{path}))

	err := statsCmd.RunE(newStatsCmd(t, "--begin", "2018", "--end", "2017"), []string{path})
	require.Error(t, err)
	assert.ErrorIs(t, err, stats.ErrInvalidSelection)
}
