// Package region turns user-supplied boundaries (GeoJSON, shapefiles) into
// polygonal regions and subdivides them into quadrant tiles for remote
// analysis.
package region

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// ErrNotPolygonal is returned when a region is built from a geometry that is
// neither a Polygon nor a MultiPolygon.
var ErrNotPolygonal = eris.New("region: geometry must be a Polygon or MultiPolygon")

// Region is an immutable polygonal boundary built with New, Parse or
// FromShapefile. The zero Region holds no geometry: it is Empty with zero
// Area and Bounds, encodes as GeoJSON null and divides into empty children.
type Region struct {
	name string
	g    geom.T
}

// BBox is an axis-aligned bounding box in lng/lat degrees.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// New builds a region from a Polygon or MultiPolygon. Coordinates are
// normalised to 2D and copied, so later changes to g do not leak in.
func New(name string, g geom.T) (Region, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		if t == nil {
			return Region{}, ErrNotPolygonal
		}
		return Region{name: name, g: polygonXY(t)}, nil
	case *geom.MultiPolygon:
		if t == nil {
			return Region{}, ErrNotPolygonal
		}
		return Region{name: name, g: multiPolygonXY(t)}, nil
	default:
		return Region{}, ErrNotPolygonal
	}
}

// Name returns the region's label. Subdivided regions carry the quadrant
// suffix (t0..t3) of every split that produced them.
func (r Region) Name() string { return r.name }

// Geometry returns a copy of the underlying Polygon or MultiPolygon.
func (r Region) Geometry() geom.T {
	switch t := r.g.(type) {
	case *geom.Polygon:
		return polygonXY(t)
	case *geom.MultiPolygon:
		return multiPolygonXY(t)
	default:
		return nil
	}
}

// Empty reports whether the region covers no area. Subdivision can yield
// empty children when the parent does not reach into a quadrant.
func (r Region) Empty() bool {
	switch t := r.g.(type) {
	case *geom.Polygon:
		return t.NumLinearRings() == 0
	case *geom.MultiPolygon:
		return t.NumPolygons() == 0
	default:
		return true
	}
}

// Bounds returns the region's bounding box.
func (r Region) Bounds() BBox {
	if r.Empty() {
		return BBox{}
	}
	b := r.g.Bounds()
	return BBox{MinLng: b.Min(0), MinLat: b.Min(1), MaxLng: b.Max(0), MaxLat: b.Max(1)}
}

// Centroid returns the planar area centroid as (lng, lat).
func (r Region) Centroid() (float64, float64, error) {
	if r.Empty() {
		return 0, 0, eris.New("region: centroid of empty region")
	}
	c, err := xy.Centroid(r.g)
	if err != nil {
		return 0, 0, eris.Wrap(err, "region: centroid")
	}
	return c.X(), c.Y(), nil
}

// Area returns the planar area in square degrees.
func (r Region) Area() float64 {
	switch t := r.g.(type) {
	case *geom.Polygon:
		return t.Area()
	case *geom.MultiPolygon:
		return t.Area()
	default:
		return 0
	}
}

// GeoJSON encodes the region's geometry as a GeoJSON geometry object.
func (r Region) GeoJSON() (json.RawMessage, error) {
	if r.g == nil {
		return json.RawMessage("null"), nil
	}
	data, err := geojson.Marshal(r.g)
	if err != nil {
		return nil, eris.Wrapf(err, "region: encode %q", r.name)
	}
	return data, nil
}

// Merge combines the polygons of several regions into one MultiPolygon
// region. Overlaps are not dissolved.
func Merge(name string, regions []Region) (Region, error) {
	if len(regions) == 0 {
		return Region{}, ErrNoPolygons
	}
	if len(regions) == 1 {
		return Region{name: name, g: regions[0].Geometry()}, nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for _, r := range regions {
		switch t := r.g.(type) {
		case *geom.Polygon:
			if t.NumLinearRings() > 0 {
				if err := mp.Push(polygonXY(t)); err != nil {
					return Region{}, eris.Wrapf(err, "region: merge %q", r.name)
				}
			}
		case *geom.MultiPolygon:
			for i := 0; i < t.NumPolygons(); i++ {
				if err := mp.Push(polygonXY(t.Polygon(i))); err != nil {
					return Region{}, eris.Wrapf(err, "region: merge %q", r.name)
				}
			}
		}
	}
	return Region{name: name, g: mp}, nil
}

func polygonXY(p *geom.Polygon) *geom.Polygon {
	stride := p.Stride()
	flat, ends := toXY(p.FlatCoords(), p.Ends(), stride)
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

func multiPolygonXY(mp *geom.MultiPolygon) *geom.MultiPolygon {
	stride := mp.Stride()
	src := mp.Endss()
	flat := make([]float64, 0, len(mp.FlatCoords())/max(stride, 1)*2)
	endss := make([][]int, 0, len(src))
	for i := 0; i < mp.NumPolygons(); i++ {
		pf, pe := toXY(mp.Polygon(i).FlatCoords(), mp.Polygon(i).Ends(), stride)
		for j := range pe {
			pe[j] += len(flat)
		}
		flat = append(flat, pf...)
		endss = append(endss, pe)
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, endss)
}

// toXY drops any Z/M ordinates and rebases ring ends to a stride of 2.
func toXY(flat []float64, ends []int, stride int) ([]float64, []int) {
	if stride <= 0 {
		stride = 2
	}
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
	}
	outEnds := make([]int, len(ends))
	for i, e := range ends {
		outEnds[i] = e / stride * 2
	}
	return out, outEnds
}
