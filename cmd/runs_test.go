package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forest-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Kind:      model.RunKindForma,
			Status:    model.RunStatusComplete,
			CacheHit:  true,
			CreatedAt: now,
			UpdatedAt: now.Add(1500 * time.Millisecond),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Kind:      model.RunKindExtent,
			Status:    model.RunStatusFailed,
			Error:     "status 503: the backend is temporarily unavailable, try again later",
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "KIND")
	assert.Contains(t, output, "CACHED")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "forma250")
	assert.Contains(t, output, "extent")
	assert.Contains(t, output, "yes")
	assert.Contains(t, output, "1.5s")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "status 503: the backend is temporaril...")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}

func newFilterCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "x"}
	c.Flags().String("kind", "", "")
	c.Flags().String("status", "", "")
	c.Flags().Int("limit", 50, "")
	c.Flags().Int("offset", 0, "")
	require.NoError(t, c.Flags().Parse(args))
	return c
}

func TestRunFilterFromFlags(t *testing.T) {
	f, err := runFilterFromFlags(newFilterCmd(t, "--kind", "extent", "--status", "failed", "--limit", "5", "--offset", "10"))
	require.NoError(t, err)
	assert.Equal(t, model.RunKindExtent, f.Kind)
	assert.Equal(t, model.RunStatusFailed, f.Status)
	assert.Equal(t, 5, f.Limit)
	assert.Equal(t, 10, f.Offset)

	_, err = runFilterFromFlags(newFilterCmd(t, "--status", "crawling"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawling")
}

func TestComputeRunStats(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{ID: "1", Kind: model.RunKindForma, Status: model.RunStatusComplete, CreatedAt: now, UpdatedAt: now.Add(2 * time.Second)},
		{ID: "2", Kind: model.RunKindForma, Status: model.RunStatusComplete, CacheHit: true, CreatedAt: now, UpdatedAt: now},
		{ID: "3", Kind: model.RunKindExtent, Status: model.RunStatusComplete, CreatedAt: now, UpdatedAt: now.Add(4 * time.Second)},
		{ID: "4", Kind: model.RunKindExtent, Status: model.RunStatusFailed, CreatedAt: now, UpdatedAt: now},
		{ID: "5", Kind: model.RunKindExtent, Status: model.RunStatusQueued, CreatedAt: now, UpdatedAt: now},
		{ID: "old", Kind: model.RunKindForma, Status: model.RunStatusFailed, CreatedAt: now.Add(-48 * time.Hour)},
	}

	s := computeRunStats(runs, now.Add(-24*time.Hour))
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Complete)
	assert.Equal(t, 1, s.CacheHits)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Queued)
	assert.Equal(t, 2, s.ByKind[model.RunKindForma])
	assert.Equal(t, 3, s.ByKind[model.RunKindExtent])
	assert.InDelta(t, 3.0, s.AvgDurSecs, 1e-9)

	all := computeRunStats(runs, time.Time{})
	assert.Equal(t, 6, all.Total)
	assert.Equal(t, 2, all.Failed)
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{
		Total:      4,
		Complete:   3,
		Failed:     1,
		CacheHits:  1,
		ByKind:     map[model.RunKind]int{model.RunKindForma: 4},
		AvgDurSecs: 2.5,
	})

	out := buf.String()
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "forma250:")
	assert.Contains(t, out, "Cache hits:")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "2.5s")
}

func TestFormatRunStats_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{ByKind: map[model.RunKind]int{}})
	assert.NotContains(t, buf.String(), "Failure rate")
	assert.NotContains(t, buf.String(), "Avg duration")
}
