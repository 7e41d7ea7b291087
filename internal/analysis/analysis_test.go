package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forest-cli/internal/cache"
	"github.com/sells-group/forest-cli/internal/model"
	"github.com/sells-group/forest-cli/internal/region"
	"github.com/sells-group/forest-cli/internal/resilience"
	"github.com/sells-group/forest-cli/internal/stats"
	"github.com/sells-group/forest-cli/internal/store"
	"github.com/sells-group/forest-cli/pkg/earthengine"
	"github.com/sells-group/forest-cli/pkg/earthengine/mocks"
)

const square = `{"type":"Feature","properties":{"name":"plot"},
	"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}}`

const islands = `{"type":"Feature","properties":{"name":"islands"},
	"geometry":{"type":"MultiPolygon","coordinates":[
		[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
		[[[9,9],[10,9],[10,10],[9,10],[9,9]]]]}}`

var testConfig = Config{
	FormaAsset:  "projects/forma/forma250",
	Admin0Asset: "projects/gadm/adm0",
	Admin1Asset: "projects/gadm/adm1",
	ExtentAsset: "projects/hansen/treecover",
	ExtentBand:  "treecover",
	Concurrency: 2,
	CacheTTL:    time.Hour,
}

func parse(t *testing.T, doc string) []region.Region {
	t.Helper()
	regions, err := region.Parse([]byte(doc))
	require.NoError(t, err)
	return regions
}

func period(t *testing.T) stats.Period {
	t.Helper()
	p, err := stats.ParsePeriod("2017-01-01,2018-01-01")
	require.NoError(t, err)
	return p
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func isSum(req earthengine.ReduceRequest) bool { return req.Reducer == earthengine.ReducerSum }

func isCount(req earthengine.ReduceRequest) bool { return req.Reducer == earthengine.ReducerCount }

func TestForma250_Success(t *testing.T) {
	client := mocks.NewMockClient(t)
	st := newTestStore(t)
	svc := NewService(client, cache.NewMemory(10), st, testConfig)
	p := period(t)

	client.On("ReduceRegion", mock.Anything, mock.MatchedBy(func(req earthengine.ReduceRequest) bool {
		return isSum(req) &&
			req.Image.Asset == testConfig.FormaAsset &&
			req.Image.Latest &&
			req.Image.Band == "alert_delta" &&
			req.Image.Divide == 100 &&
			req.Image.PixelArea &&
			req.Image.Mask != nil &&
			req.Image.Mask.Band == "alert_date" &&
			req.Image.Mask.Min == float64(p.Start.UnixMilli()) &&
			req.Image.Mask.Max == float64(p.End.UnixMilli()) &&
			req.Unweighted && req.BestEffort &&
			req.Scale == formaScale &&
			req.CRS == "EPSG:4326" &&
			req.MaxPixels == formaMaxPixels &&
			len(req.Geometry.GeoJSON) > 0
	})).Return(earthengine.Values{"alert_delta": 1234567}, nil).Once()

	client.On("ReduceRegion", mock.Anything, mock.MatchedBy(func(req earthengine.ReduceRequest) bool {
		return isCount(req) && !req.Image.PixelArea && req.Image.Divide == 0 && req.Image.Mask != nil
	})).Return(earthengine.Values{"alert_delta": 42}, nil).Once()

	res, err := svc.Forma250(context.Background(), FormaRequest{Regions: parse(t, square), Period: p})
	require.NoError(t, err)
	assert.InDelta(t, 123.46, res.AreaHa, 1e-9)
	assert.Equal(t, int64(42), res.AlertCounts)
	assert.False(t, res.Cached)
	require.NotEmpty(t, res.RunID)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunKindForma, run.Kind)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.JSONEq(t, `{"area_ha":123.46,"alert_counts":42}`, string(run.Result))
	assert.Contains(t, string(run.Params), "2017-01-01,2018-01-01")

	// The same request is answered from the cache without remote calls.
	again, err := svc.Forma250(context.Background(), FormaRequest{Regions: parse(t, square), Period: p})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, res.AreaHa, again.AreaHa)
	assert.NotEqual(t, res.RunID, again.RunID)

	hit, err := st.GetRun(context.Background(), again.RunID)
	require.NoError(t, err)
	assert.True(t, hit.CacheHit)
}

func TestForma250_RemoteFailure(t *testing.T) {
	client := mocks.NewMockClient(t)
	st := newTestStore(t)
	svc := NewService(client, nil, st, testConfig)

	remote := resilience.NewStatusError(errors.New("status 503: backend unavailable"), 503)
	client.On("ReduceRegion", mock.Anything, mock.MatchedBy(isSum)).Return(nil, remote).Maybe()
	client.On("ReduceRegion", mock.Anything, mock.MatchedBy(isCount)).Return(earthengine.Values{"alert_delta": 1}, nil).Maybe()

	_, err := svc.Forma250(context.Background(), FormaRequest{Regions: parse(t, square), Period: period(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForma)

	var se *resilience.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.StatusCode)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "backend unavailable")
}

func TestForma250_AdminArea(t *testing.T) {
	client := mocks.NewMockClient(t)
	svc := NewService(client, nil, nil, testConfig)

	client.On("ReduceRegion", mock.Anything, mock.MatchedBy(func(req earthengine.ReduceRequest) bool {
		a := req.Geometry.Admin
		return a != nil && len(req.Geometry.GeoJSON) == 0 &&
			a.Asset == testConfig.Admin1Asset && a.ISO == "RUS" && a.Adm1 == 60 && a.Simplify == 0.3
	})).Return(earthengine.Values{"alert_delta": 0}, nil).Twice()

	res, err := svc.Forma250(context.Background(), FormaRequest{Admin: &AdminArea{ISO: "rus", Adm1: 60}, Period: period(t)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.AreaHa)
	assert.Empty(t, res.RunID)
}

func TestForma250_CountryWithoutTolerance(t *testing.T) {
	client := mocks.NewMockClient(t)
	svc := NewService(client, nil, nil, testConfig)

	client.On("ReduceRegion", mock.Anything, mock.MatchedBy(func(req earthengine.ReduceRequest) bool {
		a := req.Geometry.Admin
		return a != nil && a.Asset == testConfig.Admin0Asset && a.ISO == "GHA" && a.Adm1 == 0 && a.Simplify == 0
	})).Return(earthengine.Values{"alert_delta": 10}, nil).Twice()

	_, err := svc.Forma250(context.Background(), FormaRequest{Admin: &AdminArea{ISO: "GHA"}, Period: period(t)})
	require.NoError(t, err)
}

func TestForma250_InvalidRequests(t *testing.T) {
	svc := NewService(mocks.NewMockClient(t), nil, nil, testConfig)
	p := period(t)

	cases := map[string]FormaRequest{
		"no area":   {Period: p},
		"both":      {Regions: parse(t, square), Admin: &AdminArea{ISO: "BRA"}, Period: p},
		"bad iso":   {Admin: &AdminArea{ISO: "BR"}, Period: p},
		"neg adm1":  {Admin: &AdminArea{ISO: "BRA", Adm1: -1}, Period: p},
		"no period": {Regions: parse(t, square)},
		"backwards": {Regions: parse(t, square), Period: stats.Period{Start: p.End, End: p.Start}},
	}
	for name, req := range cases {
		_, err := svc.Forma250(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest, name)
	}
}

func TestExtent_Batch(t *testing.T) {
	client := mocks.NewMockClient(t)
	st := newTestStore(t)
	svc := NewService(client, cache.NewMemory(10), st, testConfig)

	client.On("ReduceRegions", mock.Anything, mock.MatchedBy(func(req earthengine.ReduceRegionsRequest) bool {
		return req.Image.Asset == testConfig.ExtentAsset &&
			req.Image.Band == "treecover" &&
			req.Image.PixelArea &&
			req.Reducer == earthengine.ReducerSum &&
			req.Scale == 30 &&
			len(req.Features) == 4
	})).Return([]earthengine.FeatureValues{
		{ID: "0", Values: earthengine.Values{"sum": 10000}},
		{ID: "1", Values: earthengine.Values{"sum": 20000}},
		{ID: "2", Values: earthengine.Values{"sum": 30000}},
		{ID: "3", Values: earthengine.Values{"sum": 46000}},
	}, nil).Once()

	res, err := svc.Extent(context.Background(), ExtentRequest{Regions: parse(t, square), Tiles: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Tiles)
	assert.InDelta(t, 10.6, res.AreaHa, 1e-9)
	require.Len(t, res.Regions, 4)
	assert.Equal(t, "plot/t0", res.Regions[0].Name)
	assert.InDelta(t, 1.0, res.Regions[0].AreaHa, 1e-9)
	assert.Equal(t, "plot/t3", res.Regions[3].Name)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunKindExtent, run.Kind)

	var params map[string]any
	require.NoError(t, json.Unmarshal(run.Params, &params))
	assert.Equal(t, float64(4), params["tiles"])

	cached, err := svc.Extent(context.Background(), ExtentRequest{Regions: parse(t, square), Tiles: 4})
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, res.AreaHa, cached.AreaHa)
}

func TestExtent_PerRegionSkipsEmptyTiles(t *testing.T) {
	client := mocks.NewMockClient(t)
	svc := NewService(client, nil, nil, testConfig)

	client.On("ReduceRegion", mock.Anything, mock.MatchedBy(func(req earthengine.ReduceRequest) bool {
		return req.Image.Band == "loss_30" &&
			req.Scale == 30 &&
			req.MaxPixels == 1e9 &&
			req.TileScale == 16 &&
			req.BestEffort &&
			len(req.Geometry.GeoJSON) > 0
	})).Return(earthengine.Values{"loss_30": 50000}, nil).Twice()

	res, err := svc.Extent(context.Background(), ExtentRequest{
		Regions:    parse(t, islands),
		Asset:      "projects/hansen/loss",
		Band:       "loss",
		Threshold:  30,
		Tiles:      4,
		PerRegion:  true,
		BestEffort: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tiles)
	assert.InDelta(t, 10.0, res.AreaHa, 1e-9)
	require.Len(t, res.Regions, 2)
	assert.Equal(t, "islands/t0", res.Regions[0].Name)
	assert.Equal(t, "islands/t2", res.Regions[1].Name)
}

func TestExtent_RemoteFailure(t *testing.T) {
	client := mocks.NewMockClient(t)
	st := newTestStore(t)
	svc := NewService(client, nil, st, testConfig)

	client.On("ReduceRegions", mock.Anything, mock.Anything).
		Return(nil, errors.New("status 400: Geometry has too many edges")).Once()

	_, err := svc.Extent(context.Background(), ExtentRequest{Regions: parse(t, square), Tiles: 16})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtent)
	assert.NotErrorIs(t, err, ErrForma)
	assert.Contains(t, err.Error(), "too many edges")
}

func TestExtent_InvalidRequests(t *testing.T) {
	svc := NewService(mocks.NewMockClient(t), nil, nil, Config{})

	_, err := svc.Extent(context.Background(), ExtentRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Extent(context.Background(), ExtentRequest{Regions: parse(t, square)})
	assert.ErrorIs(t, err, ErrInvalidRequest, "no asset configured")

	_, err = svc.Extent(context.Background(), ExtentRequest{Regions: parse(t, square), Asset: "a", Tiles: 8})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Extent(context.Background(), ExtentRequest{Regions: parse(t, square), Asset: "a", Threshold: 30})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFirstValue(t *testing.T) {
	assert.Equal(t, 3.0, firstValue(earthengine.Values{"sum": 3, "b": 1}, "sum"))
	assert.Equal(t, 1.0, firstValue(earthengine.Values{"b": 1, "c": 2}, "sum"))
	assert.Equal(t, 0.0, firstValue(nil, "sum"))
}
