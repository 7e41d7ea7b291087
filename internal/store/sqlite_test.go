package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forest-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	params := json.RawMessage(`{"period":"2017-01-01,2018-01-01"}`)
	run, err := s.CreateRun(ctx, model.RunKindForma, params)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunKindForma, got.Kind)
	assert.Equal(t, model.RunStatusQueued, got.Status)
	assert.JSONEq(t, string(params), string(got.Params))
	assert.Nil(t, got.Result)
	assert.Empty(t, got.Error)
	assert.False(t, got.CacheHit)
}

func TestSQLite_CreateRun_EmptyParams(t *testing.T) {
	s := newTestSQLite(t)
	run, err := s.CreateRun(context.Background(), model.RunKindExtent, nil)
	require.NoError(t, err)

	got, err := s.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got.Params))
}

func TestSQLite_CompleteRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.RunKindExtent, json.RawMessage(`{"tiles":4}`))
	require.NoError(t, err)

	require.NoError(t, s.CompleteRun(ctx, run.ID, json.RawMessage(`{"area_ha":42.17}`), true))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.JSONEq(t, `{"area_ha":42.17}`, string(got.Result))
	assert.True(t, got.CacheHit)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestSQLite_FailRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.RunKindForma, nil)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "forma: platform unavailable"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "forma: platform unavailable", got.Error)
}

func TestSQLite_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.CompleteRun(ctx, "missing", json.RawMessage(`{}`), false)
	assert.True(t, eris.Is(err, ErrNotFound))

	err = s.FailRun(ctx, "missing", "boom")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		r, err := s.CreateRun(ctx, model.RunKindForma, nil)
		require.NoError(t, err)
		ids = append(ids, r.ID)
		time.Sleep(5 * time.Millisecond)
	}
	ext, err := s.CreateRun(ctx, model.RunKindExtent, nil)
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, ext.ID, json.RawMessage(`{}`), false))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ext.ID, all[0].ID, "newest first")

	forma, err := s.ListRuns(ctx, RunFilter{Kind: model.RunKindForma})
	require.NoError(t, err)
	assert.Len(t, forma, 3)

	done, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, ext.ID, done[0].ID)

	page, err := s.ListRuns(ctx, RunFilter{Kind: model.RunKindForma, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
}

func TestSQLite_PruneRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.CreateRun(ctx, model.RunKindForma, nil)
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, model.RunKindForma, nil)
	require.NoError(t, err)

	n, err := s.PruneRuns(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.PruneRuns(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"), nil)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	_, err = s.CreateRun(context.Background(), model.RunKindForma, nil)
	assert.NoError(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
