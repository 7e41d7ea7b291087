package region

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// ErrNoPolygons is returned when a GeoJSON document contains no Polygon or
// MultiPolygon features.
var ErrNoPolygons = eris.New("region: no polygon features in input")

// rawFeature mirrors a GeoJSON Feature without committing to an id type;
// upstream clients send both numeric and string ids.
type rawFeature struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type rawDocument struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

// Parse converts a GeoJSON FeatureCollection, Feature, or bare geometry into
// regions. Features whose geometry is not polygonal are skipped.
func Parse(data []byte) ([]Region, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, eris.New("region: empty geojson")
	}

	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "region: decode geojson")
	}

	var features []rawFeature
	switch doc.Type {
	case "FeatureCollection":
		features = doc.Features
	case "Feature":
		var f rawFeature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "region: decode feature")
		}
		features = []rawFeature{f}
	case "":
		return nil, eris.New("region: geojson object has no type")
	default:
		features = []rawFeature{{Type: "Feature", Geometry: data}}
	}

	regions := make([]Region, 0, len(features))
	skipped := 0
	for i, f := range features {
		if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
			skipped++
			continue
		}
		var g geom.T
		if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
			return nil, eris.Wrapf(err, "region: decode geometry of feature %d", i)
		}
		r, err := New(featureName(f, i), g)
		if err != nil {
			skipped++
			continue
		}
		regions = append(regions, r)
	}

	if skipped > 0 {
		zap.L().Debug("region: skipped non-polygon features",
			zap.Int("skipped", skipped),
			zap.Int("total", len(features)),
		)
	}
	if len(regions) == 0 {
		return nil, ErrNoPolygons
	}
	return regions, nil
}

// featureName picks a label from the feature's name property or id, falling
// back to its position in the collection.
func featureName(f rawFeature, idx int) string {
	if v, ok := f.Properties["name"].(string); ok && v != "" {
		return v
	}
	if len(f.ID) > 0 && string(f.ID) != "null" {
		return strings.Trim(string(f.ID), `"`)
	}
	return fmt.Sprintf("f%d", idx)
}

// ToFeatureCollection encodes regions as a GeoJSON FeatureCollection with a
// name property per feature.
func ToFeatureCollection(regions []Region) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(regions))}
	for _, r := range regions {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   r.Geometry(),
			Properties: map[string]any{"name": r.Name(), "empty": r.Empty()},
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "region: encode feature collection")
	}
	return data, nil
}
