package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/forest-cli/internal/cache"
	"github.com/sells-group/forest-cli/internal/model"
	"github.com/sells-group/forest-cli/internal/region"
	"github.com/sells-group/forest-cli/internal/stats"
	"github.com/sells-group/forest-cli/pkg/earthengine"
)

const (
	extentScale     = 30
	extentMaxPixels = 1e9
	extentTileScale = 16
	sumKey          = "sum"
)

// ExtentRequest asks for the area covered by a binary image band within a
// set of regions.
type ExtentRequest struct {
	Regions []region.Region
	// Asset and Band name the binary image; empty values fall back to the
	// service configuration.
	Asset string
	Band  string
	// Threshold selects a canopy-density band variant ("<band>_<threshold>").
	Threshold int
	// Tiles splits every region into 1, 4, 16 or 64 quadrant tiles.
	Tiles int
	// PerRegion reduces each tile separately instead of in one batch call.
	PerRegion  bool
	BestEffort bool
}

// TileArea is the measured area of one tile.
type TileArea struct {
	Name   string  `json:"name"`
	AreaHa float64 `json:"area_ha"`
}

// ExtentResult totals the area of the image within all tiles.
type ExtentResult struct {
	AreaHa  float64    `json:"area_ha"`
	Tiles   int        `json:"tiles"`
	Regions []TileArea `json:"regions"`
	RunID   string     `json:"run_id,omitempty"`
	Cached  bool       `json:"cached,omitempty"`
}

type extentParams struct {
	Asset      string          `json:"asset"`
	Band       string          `json:"band"`
	Tiles      int             `json:"tiles"`
	PerRegion  bool            `json:"per_region,omitempty"`
	BestEffort bool            `json:"best_effort,omitempty"`
	Regions    json.RawMessage `json:"regions"`
}

type tile struct {
	id   string
	name string
	geom json.RawMessage
}

// Extent converts a binary image to pixel area and sums it over every
// prepared tile. Empty tiles are skipped without a remote call. Failures are
// returned as an *Error of kind ErrExtent.
func (s *Service) Extent(ctx context.Context, req ExtentRequest) (*ExtentResult, error) {
	if len(req.Regions) == 0 {
		return nil, invalid("extent: at least one region is required")
	}
	if req.Tiles == 0 {
		req.Tiles = 1
	}
	if req.Asset == "" {
		req.Asset = s.cfg.ExtentAsset
	}
	if req.Band == "" {
		req.Band = s.cfg.ExtentBand
	}
	if req.Asset == "" {
		return nil, invalid("extent: asset is required")
	}
	band := req.Band
	if req.Threshold > 0 {
		if band == "" {
			return nil, invalid("extent: threshold needs a band")
		}
		band = fmt.Sprintf("%s_%d", band, req.Threshold)
	}

	prepared, err := region.Prepare(req.Regions, req.Tiles)
	if err != nil {
		return nil, invalid("extent: %v", err)
	}

	var tiles []tile
	for i, r := range prepared {
		if r.Empty() {
			continue
		}
		gj, err := r.GeoJSON()
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, tile{id: strconv.Itoa(i), name: r.Name(), geom: gj})
	}

	fc, err := region.ToFeatureCollection(req.Regions)
	if err != nil {
		return nil, err
	}
	params := extentParams{
		Asset:      req.Asset,
		Band:       band,
		Tiles:      req.Tiles,
		PerRegion:  req.PerRegion,
		BestEffort: req.BestEffort,
		Regions:    fc,
	}
	key, err := cache.Key(string(model.RunKindExtent), params)
	if err != nil {
		return nil, err
	}

	var cached ExtentResult
	if s.lookup(ctx, key, &cached) {
		r := s.startRun(ctx, model.RunKindExtent, params)
		r.complete(ctx, cached, true)
		cached.RunID = r.ID()
		cached.Cached = true
		return &cached, nil
	}

	r := s.startRun(ctx, model.RunKindExtent, params)
	log := zap.L().With(
		zap.String("asset", req.Asset),
		zap.String("band", band),
		zap.Int("tiles", len(tiles)),
		zap.String("run_id", r.ID()),
	)

	image := earthengine.Image{Asset: req.Asset, Band: band, PixelArea: true}

	var sums map[string]float64
	if req.PerRegion {
		sums, err = s.reduceEach(ctx, image, tiles, req.BestEffort)
	} else {
		sums, err = s.reduceBatch(ctx, image, tiles)
	}
	if err != nil {
		log.Error("extent analysis failed", zap.Error(err))
		r.fail(ctx, err)
		return nil, &Error{Kind: ErrExtent, Err: err}
	}

	res := ExtentResult{Tiles: len(tiles), Regions: make([]TileArea, 0, len(tiles))}
	var total float64
	for _, t := range tiles {
		m2 := sums[t.id]
		total += m2
		res.Regions = append(res.Regions, TileArea{Name: t.name, AreaHa: stats.SquareMetersToHectares(m2)})
	}
	res.AreaHa = stats.SquareMetersToHectares(total)
	log.Info("extent analysis complete", zap.Float64("area_ha", res.AreaHa))

	s.remember(ctx, key, res)
	r.complete(ctx, res, false)
	res.RunID = r.ID()
	return &res, nil
}

// reduceBatch sums all tiles in one ReduceRegions call.
func (s *Service) reduceBatch(ctx context.Context, image earthengine.Image, tiles []tile) (map[string]float64, error) {
	if len(tiles) == 0 {
		return map[string]float64{}, nil
	}
	features := make([]earthengine.Feature, len(tiles))
	for i, t := range tiles {
		features[i] = earthengine.Feature{ID: t.id, Geometry: earthengine.Geometry{GeoJSON: t.geom}}
	}

	out, err := s.client.ReduceRegions(ctx, earthengine.ReduceRegionsRequest{
		Image:    image,
		Reducer:  earthengine.ReducerSum,
		Features: features,
		Scale:    extentScale,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extent: reduce regions")
	}

	sums := make(map[string]float64, len(out))
	for _, fv := range out {
		sums[fv.ID] = firstValue(fv.Values, sumKey)
	}
	return sums, nil
}

// reduceEach sums every tile with its own ReduceRegion call, at most
// Config.Concurrency at a time.
func (s *Service) reduceEach(ctx context.Context, image earthengine.Image, tiles []tile, bestEffort bool) (map[string]float64, error) {
	results := make([]float64, len(tiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, t := range tiles {
		g.Go(func() error {
			v, err := s.client.ReduceRegion(gctx, earthengine.ReduceRequest{
				Image:      image,
				Reducer:    earthengine.ReducerSum,
				Geometry:   earthengine.Geometry{GeoJSON: t.geom},
				Scale:      extentScale,
				MaxPixels:  extentMaxPixels,
				BestEffort: bestEffort,
				TileScale:  extentTileScale,
			})
			if err != nil {
				return eris.Wrapf(err, "extent: reduce tile %s", t.name)
			}
			results[i] = firstValue(v, image.Band)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sums := make(map[string]float64, len(tiles))
	for i, t := range tiles {
		sums[t.id] = results[i]
	}
	return sums, nil
}

// firstValue returns v[key], or the value of the lowest-sorting key when key
// is absent.
func firstValue(v earthengine.Values, key string) float64 {
	if x, ok := v[key]; ok {
		return x
	}
	if len(v) == 0 {
		return 0
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return v[keys[0]]
}
