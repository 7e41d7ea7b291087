package earthengine

import "encoding/json"

// Reducer names a remote aggregation.
type Reducer string

const (
	// ReducerSum totals pixel values.
	ReducerSum Reducer = "sum"
	// ReducerCount counts unmasked pixels.
	ReducerCount Reducer = "count"
)

// DefaultCRS is used for reductions that do not name a CRS.
const DefaultCRS = "EPSG:4326"

// Image is an image expression evaluated remotely before reduction.
type Image struct {
	// Asset is the image or image-collection ID.
	Asset string `json:"asset"`
	// Latest selects the newest image of a collection, ordered by
	// system:time_start.
	Latest bool `json:"latest,omitempty"`
	// Band is the band to reduce.
	Band string `json:"band"`
	// Mask keeps only pixels whose mask band value lies in [Min, Max].
	Mask *RangeMask `json:"mask,omitempty"`
	// Divide scales band values down before reduction when non-zero.
	Divide float64 `json:"divide,omitempty"`
	// PixelArea multiplies each pixel by its area in square meters.
	PixelArea bool `json:"pixelArea,omitempty"`
}

// RangeMask is an inclusive value range on one band.
type RangeMask struct {
	Band string  `json:"band"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Geometry is either inline GeoJSON or a reference to an administrative
// boundary stored on the platform.
type Geometry struct {
	GeoJSON json.RawMessage `json:"geojson,omitempty"`
	Admin   *AdminRef       `json:"admin,omitempty"`
}

// AdminRef selects a country (Adm1 == 0) or an admin-1 unit from a boundary
// asset, optionally simplified by Simplify degrees.
type AdminRef struct {
	Asset    string  `json:"asset"`
	ISO      string  `json:"iso"`
	Adm1     int     `json:"adm1,omitempty"`
	Simplify float64 `json:"simplify,omitempty"`
}

// ReduceRequest reduces one image over one geometry.
type ReduceRequest struct {
	Image      Image    `json:"image"`
	Reducer    Reducer  `json:"reducer"`
	Unweighted bool     `json:"unweighted,omitempty"`
	Geometry   Geometry `json:"geometry"`
	Scale      float64  `json:"scale"`
	CRS        string   `json:"crs,omitempty"`
	MaxPixels  float64  `json:"maxPixels,omitempty"`
	BestEffort bool     `json:"bestEffort,omitempty"`
	TileScale  float64  `json:"tileScale,omitempty"`
}

// Feature is one named geometry in a ReduceRegionsRequest.
type Feature struct {
	ID       string   `json:"id"`
	Geometry Geometry `json:"geometry"`
}

// ReduceRegionsRequest reduces one image over many geometries in a single
// call.
type ReduceRegionsRequest struct {
	Image     Image     `json:"image"`
	Reducer   Reducer   `json:"reducer"`
	Features  []Feature `json:"features"`
	Scale     float64   `json:"scale"`
	CRS       string    `json:"crs,omitempty"`
	TileScale float64   `json:"tileScale,omitempty"`
}

// Values maps band (or reducer output) names to numbers.
type Values map[string]float64

// FeatureValues is the reduction for one feature of a ReduceRegionsRequest.
type FeatureValues struct {
	ID     string `json:"id"`
	Values Values `json:"values"`
}

type reduceResponse struct {
	Result map[string]*float64 `json:"result"`
}

type reduceRegionsResponse struct {
	Features []struct {
		ID     string              `json:"id"`
		Values map[string]*float64 `json:"values"`
	} `json:"features"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// values drops JSON nulls (no unmasked pixels) to zero.
func values(m map[string]*float64) Values {
	out := make(Values, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		} else {
			out[k] = 0
		}
	}
	return out
}
