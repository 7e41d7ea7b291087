package analysis

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/forest-cli/internal/cache"
	"github.com/sells-group/forest-cli/internal/model"
	"github.com/sells-group/forest-cli/internal/region"
	"github.com/sells-group/forest-cli/internal/stats"
	"github.com/sells-group/forest-cli/pkg/earthengine"
)

// FORMA 250 reduction parameters. The scale is the native pixel size of the
// product in meters.
const (
	formaScale     = 231.65635826395828
	formaMaxPixels = 9999999999
	formaDivisor   = 100
	formaBand      = "alert_delta"
	formaDateBand  = "alert_date"
)

// AdminArea references an administrative boundary held by the platform.
// Adm1 == 0 selects the whole country.
type AdminArea struct {
	ISO  string `json:"iso"`
	Adm1 int    `json:"adm1,omitempty"`
}

// FormaRequest asks for FORMA alert area and counts over either a set of
// regions or an administrative area, within a date period.
type FormaRequest struct {
	Regions []region.Region
	Admin   *AdminArea
	Period  stats.Period
}

// FormaResult is the outcome of a FORMA 250 analysis.
type FormaResult struct {
	AreaHa      float64 `json:"area_ha"`
	AlertCounts int64   `json:"alert_counts"`
	RunID       string  `json:"run_id,omitempty"`
	Cached      bool    `json:"cached,omitempty"`
}

// formaParams is the canonical, serializable form of a FormaRequest used for
// cache keys and run records.
type formaParams struct {
	Asset    string          `json:"asset"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
	Admin    *AdminArea      `json:"admin,omitempty"`
	Period   string          `json:"period"`
}

// Forma250 measures FORMA alert area (hectares) and alert counts within the
// request period. The sum and count reductions run concurrently; any
// failure is returned as an *Error of kind ErrForma.
func (s *Service) Forma250(ctx context.Context, req FormaRequest) (*FormaResult, error) {
	geometry, params, err := s.formaGeometry(req)
	if err != nil {
		return nil, err
	}

	key, err := cache.Key(string(model.RunKindForma), params)
	if err != nil {
		return nil, err
	}

	var cached FormaResult
	if s.lookup(ctx, key, &cached) {
		r := s.startRun(ctx, model.RunKindForma, params)
		r.complete(ctx, cached, true)
		cached.RunID = r.ID()
		cached.Cached = true
		return &cached, nil
	}

	r := s.startRun(ctx, model.RunKindForma, params)
	log := zap.L().With(zap.String("asset", s.cfg.FormaAsset), zap.String("period", req.Period.String()), zap.String("run_id", r.ID()))

	mask := &earthengine.RangeMask{
		Band: formaDateBand,
		Min:  float64(stats.Millis(req.Period.Start)),
		Max:  float64(stats.Millis(req.Period.End)),
	}
	base := earthengine.ReduceRequest{
		Unweighted: true,
		Geometry:   geometry,
		Scale:      formaScale,
		CRS:        earthengine.DefaultCRS,
		MaxPixels:  formaMaxPixels,
		BestEffort: true,
	}

	var areaM2, counts float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sum := base
		sum.Reducer = earthengine.ReducerSum
		sum.Image = earthengine.Image{
			Asset:     s.cfg.FormaAsset,
			Latest:    true,
			Band:      formaBand,
			Mask:      mask,
			Divide:    formaDivisor,
			PixelArea: true,
		}
		v, err := s.client.ReduceRegion(gctx, sum)
		if err != nil {
			return eris.Wrap(err, "forma: area")
		}
		areaM2 = v[formaBand]
		return nil
	})
	g.Go(func() error {
		count := base
		count.Reducer = earthengine.ReducerCount
		count.Image = earthengine.Image{
			Asset:  s.cfg.FormaAsset,
			Latest: true,
			Band:   formaBand,
			Mask:   mask,
		}
		v, err := s.client.ReduceRegion(gctx, count)
		if err != nil {
			return eris.Wrap(err, "forma: counts")
		}
		counts = v[formaBand]
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("forma250 analysis failed", zap.Error(err))
		r.fail(ctx, err)
		return nil, &Error{Kind: ErrForma, Err: err}
	}

	res := FormaResult{
		AreaHa:      stats.SquareMetersToHectares(areaM2),
		AlertCounts: int64(math.Round(counts)),
	}
	log.Info("forma250 analysis complete",
		zap.Int64("alert_counts", res.AlertCounts),
		zap.Float64("area_ha", res.AreaHa),
	)

	s.remember(ctx, key, res)
	r.complete(ctx, res, false)
	res.RunID = r.ID()
	return &res, nil
}

// formaGeometry resolves the request's area of interest into a platform
// geometry plus its canonical parameters.
func (s *Service) formaGeometry(req FormaRequest) (earthengine.Geometry, formaParams, error) {
	params := formaParams{Asset: s.cfg.FormaAsset, Period: req.Period.String()}

	if req.Period.Start.IsZero() || req.Period.End.IsZero() {
		return earthengine.Geometry{}, params, invalid("forma: period is required")
	}
	if req.Period.Start.After(req.Period.End) {
		return earthengine.Geometry{}, params, invalid("forma: period start after end")
	}

	switch {
	case req.Admin != nil && len(req.Regions) > 0:
		return earthengine.Geometry{}, params, invalid("forma: give either regions or an admin area, not both")

	case req.Admin != nil:
		ref, err := s.adminRef(*req.Admin)
		if err != nil {
			return earthengine.Geometry{}, params, err
		}
		params.Admin = &AdminArea{ISO: ref.ISO, Adm1: ref.Adm1}
		return earthengine.Geometry{Admin: ref}, params, nil

	case len(req.Regions) > 0:
		merged, err := region.Merge("aoi", req.Regions)
		if err != nil {
			return earthengine.Geometry{}, params, invalid("forma: %v", err)
		}
		if merged.Empty() {
			return earthengine.Geometry{}, params, invalid("forma: region is empty")
		}
		gj, err := merged.GeoJSON()
		if err != nil {
			return earthengine.Geometry{}, params, err
		}
		params.Geometry = gj
		return earthengine.Geometry{GeoJSON: gj}, params, nil

	default:
		return earthengine.Geometry{}, params, invalid("forma: a region or admin area is required")
	}
}

// adminRef builds the boundary reference for an admin area, applying the
// simplification tolerance known for that boundary.
func (s *Service) adminRef(a AdminArea) (*earthengine.AdminRef, error) {
	iso := strings.ToUpper(strings.TrimSpace(a.ISO))
	if len(iso) != 3 {
		return nil, invalid("forma: iso %q must be a 3-letter code", a.ISO)
	}
	if a.Adm1 < 0 {
		return nil, invalid("forma: adm1 %d must be positive", a.Adm1)
	}
	a.ISO = iso

	if a.Adm1 == 0 {
		tol, _ := region.SimplifyTolerance(iso)
		return &earthengine.AdminRef{Asset: s.cfg.Admin0Asset, ISO: iso, Simplify: tol}, nil
	}
	tol, _ := region.AdminSimplifyTolerance(iso, a.Adm1)
	return &earthengine.AdminRef{Asset: s.cfg.Admin1Asset, ISO: iso, Adm1: a.Adm1, Simplify: tol}, nil
}
