package region

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeShapefile(t *testing.T, shapes []shp.Shape, names []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plots.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{shp.StringField("NAME", 32)})
	for i, s := range shapes {
		n := w.Write(s)
		w.WriteAttribute(int(n), 0, names[i])
	}
	w.Close()
	return path
}

func polygon(parts ...[]shp.Point) *shp.Polygon {
	p := shp.Polygon(*shp.NewPolyLine(parts))
	return &p
}

func TestFromShapefile(t *testing.T) {
	// Outer rings clockwise, hole counter-clockwise.
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 3}, {X: 1, Y: 3}, {X: 1, Y: 1}}
	small := []shp.Point{{X: 10, Y: 10}, {X: 10, Y: 11}, {X: 11, Y: 11}, {X: 11, Y: 10}, {X: 10, Y: 10}}

	path := writeShapefile(t,
		[]shp.Shape{polygon(outer, hole), polygon(small)},
		[]string{"donut", "square"},
	)

	regions, err := FromShapefile(path)
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, "donut", regions[0].Name())
	assert.InDelta(t, 12.0, regions[0].Area(), 1e-9)
	assert.Equal(t, "square", regions[1].Name())
	assert.InDelta(t, 1.0, regions[1].Area(), 1e-9)
}

func TestFromShapefile_Missing(t *testing.T) {
	_, err := FromShapefile(filepath.Join(t.TempDir(), "nope.shp"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open shapefile")
}

func TestShapePolygon_MultipleShells(t *testing.T) {
	a := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	b := []shp.Point{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 6, Y: 6}, {X: 6, Y: 5}, {X: 5, Y: 5}}

	mp := shapePolygon(polygon(a, b))
	require.NotNil(t, mp)
	assert.Equal(t, 2, mp.NumPolygons())
}

func TestShapePolygon_Empty(t *testing.T) {
	assert.Nil(t, shapePolygon(&shp.Polygon{}))
}
