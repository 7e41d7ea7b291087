package region

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ErrInvalidTiles is returned by Prepare for tile counts other than 1, 4, 16
// or 64.
var ErrInvalidTiles = eris.New("region: tiles must be one of 1, 4, 16, 64")

// splitRounds maps a requested tile count per region to the number of
// quad-split rounds that produce it.
var splitRounds = map[int]int{1: 0, 4: 1, 16: 2, 64: 3}

// QuadrantNames labels the four children of a split in the order Divide
// returns them: south-west, south-east, north-east, north-west.
var QuadrantNames = [4]string{"t0", "t1", "t2", "t3"}

// halfPlane keeps the points where a*x + b*y > c. Divide only builds
// axis-aligned planes, so exactly one of a and b is zero.
type halfPlane struct {
	a, b, c float64
}

// Divide splits r into four regions by intersecting it with the quadrants
// formed by its bounding box and centroid. A quadrant that cuts the parent
// into disjoint pieces yields a MultiPolygon with one polygon per piece. Exactly four regions are always
// returned; a quadrant the parent does not reach yields an empty region.
func Divide(r Region) ([4]Region, error) {
	var out [4]Region
	if r.Empty() {
		for i := range out {
			out[i] = Region{name: childName(r.name, i), g: geom.NewMultiPolygon(geom.XY)}
		}
		return out, nil
	}

	cx, cy, err := r.Centroid()
	if err != nil {
		return out, err
	}

	west, east := halfPlane{-1, 0, -cx}, halfPlane{1, 0, cx}
	south, north := halfPlane{0, -1, -cy}, halfPlane{0, 1, cy}
	quadrants := [4][2]halfPlane{
		{west, south},
		{east, south},
		{east, north},
		{west, north},
	}
	for i, q := range quadrants {
		out[i] = Region{name: childName(r.name, i), g: clip(r.g, q[0], q[1])}
	}
	return out, nil
}

// Prepare subdivides every region until each yields tiles pieces. Empty
// pieces are kept so the output length is always len(regions)*tiles.
func Prepare(regions []Region, tiles int) ([]Region, error) {
	rounds, ok := splitRounds[tiles]
	if !ok {
		return nil, ErrInvalidTiles
	}

	out := regions
	for round := 0; round < rounds; round++ {
		next := make([]Region, 0, len(out)*4)
		for _, r := range out {
			children, err := Divide(r)
			if err != nil {
				return nil, eris.Wrapf(err, "region: divide %q", r.name)
			}
			next = append(next, children[:]...)
		}
		out = next
	}

	if rounds > 0 {
		zap.L().Debug("region: divided geometries",
			zap.Int("inputs", len(regions)),
			zap.Int("tiles", tiles),
			zap.Int("outputs", len(out)),
		)
	}
	return out, nil
}

func childName(parent string, idx int) string {
	if parent == "" {
		return QuadrantNames[idx]
	}
	return parent + "/" + QuadrantNames[idx]
}

// clip intersects a Polygon or MultiPolygon with the given half-planes. The
// result is a Polygon when one piece survives, otherwise a MultiPolygon
// (possibly empty).
func clip(g geom.T, planes ...halfPlane) geom.T {
	var polys [][][]point
	switch t := g.(type) {
	case *geom.Polygon:
		polys = append(polys, polygonRings(t))
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, polygonRings(t.Polygon(i)))
		}
	}

	for _, h := range planes {
		var next [][][]point
		for _, rings := range polys {
			next = append(next, clipPolygon(rings, h)...)
		}
		polys = next
	}

	if len(polys) == 1 {
		return toPolygon(polys[0])
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for _, rings := range polys {
		if err := mp.Push(toPolygon(rings)); err != nil {
			zap.L().Debug("region: skipping malformed clipped polygon", zap.Error(err))
		}
	}
	return mp
}

type point struct{ x, y float64 }

// polygonRings returns the shell and holes of p, shell counter-clockwise and
// holes clockwise. Degenerate rings are dropped; a degenerate shell drops the
// whole polygon.
func polygonRings(p *geom.Polygon) [][]point {
	var rings [][]point
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := dedupe(ringPoints(p.LinearRing(i)))
		area := shoelace(ring)
		if len(ring) < 3 || math.Abs(area) < minRingArea {
			if i == 0 {
				return nil
			}
			continue
		}
		if (i == 0) != (area > 0) {
			reverse(ring)
		}
		rings = append(rings, ring)
	}
	return rings
}

func toPolygon(rings [][]point) *geom.Polygon {
	var flat []float64
	var ends []int
	for _, ring := range rings {
		for _, p := range ring {
			flat = append(flat, p.x, p.y)
		}
		flat = append(flat, ring[0].x, ring[0].y)
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

// minRingArea is twice the smallest ring area kept, in square degrees.
const minRingArea = 1e-15

// chain is a run of ring vertices inside a half-plane. It starts where the
// ring enters the half-plane and ends where it leaves.
type chain struct {
	pts  []point
	next int
}

type crossing struct {
	at    float64
	chain int
	exit  bool
}

// clipPolygon intersects one polygon (oriented as polygonRings returns it)
// with a half-plane and returns the resulting polygons.
//
// Every ring is cut into chains at the boundary line. Walking along the line
// with the kept side on the left, the line runs inside the polygon from each
// exit to the following entry, so pairing crossings in that order and
// following chain -> line -> chain traces one closed shell per piece. Rings
// that never cross stay whole: kept shells become pieces of their own and
// kept holes go to the piece that contains them.
func clipPolygon(rings [][]point, h halfPlane) [][][]point {
	if len(rings) == 0 {
		return nil
	}

	var (
		shells    [][]point
		holes     [][]point
		chains    []chain
		crossings []crossing
	)
	for ri, ring := range rings {
		cs, whole := h.cut(ring)
		if whole {
			if ri == 0 {
				shells = append(shells, ring)
			} else {
				holes = append(holes, ring)
			}
			continue
		}
		for _, c := range cs {
			idx := len(chains)
			chains = append(chains, chain{pts: c, next: idx})
			crossings = append(crossings,
				crossing{at: h.along(c[0]), chain: idx},
				crossing{at: h.along(c[len(c)-1]), chain: idx, exit: true},
			)
		}
	}

	sort.SliceStable(crossings, func(i, j int) bool {
		if crossings[i].at != crossings[j].at {
			return crossings[i].at < crossings[j].at
		}
		return crossings[i].exit && !crossings[j].exit
	})
	pending := -1
	for _, c := range crossings {
		switch {
		case c.exit:
			pending = c.chain
		case pending >= 0:
			chains[pending].next = c.chain
			pending = -1
		}
	}

	visited := make([]bool, len(chains))
	for i := range chains {
		if visited[i] {
			continue
		}
		var ring []point
		for j := i; !visited[j]; j = chains[j].next {
			visited[j] = true
			ring = append(ring, chains[j].pts...)
		}
		ring = dedupe(ring)
		if len(ring) >= 3 && shoelace(ring) > minRingArea {
			shells = append(shells, ring)
		}
	}

	out := make([][][]point, len(shells))
	for i, s := range shells {
		out[i] = [][]point{s}
	}
	for _, hole := range holes {
		for i, s := range shells {
			if containsPoint(s, hole[0]) {
				out[i] = append(out[i], hole)
				break
			}
		}
	}
	return out
}

func (h halfPlane) dist(p point) float64 { return h.a*p.x + h.b*p.y - h.c }

// along orders points on the boundary line in the direction that keeps the
// half-plane on the left.
func (h halfPlane) along(p point) float64 { return h.b*p.x - h.a*p.y }

// cross returns where segment p->q meets the boundary line. Only called when
// p and q lie on opposite sides, so the denominator is non-zero.
func (h halfPlane) cross(p, q point) point {
	dp, dq := h.dist(p), h.dist(q)
	t := dp / (dp - dq)
	out := point{p.x + t*(q.x-p.x), p.y + t*(q.y-p.y)}
	switch {
	case h.b == 0:
		out.x = h.c / h.a
	case h.a == 0:
		out.y = h.c / h.b
	}
	return out
}

// cut splits a ring into the chains lying strictly inside h. whole reports
// that the entire ring is inside; a ring entirely outside yields nothing.
func (h halfPlane) cut(ring []point) (chains [][]point, whole bool) {
	n := len(ring)
	inside := make([]bool, n)
	start := -1
	for i, p := range ring {
		inside[i] = h.dist(p) > 0
	}
	for i := range ring {
		if inside[i] && !inside[(i+n-1)%n] {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, n > 0 && inside[0]
	}

	cur := []point{h.cross(ring[(start+n-1)%n], ring[start])}
	for k := 0; k < n; k++ {
		i := (start + k) % n
		j := (i + 1) % n
		switch {
		case inside[i]:
			cur = append(cur, ring[i])
			if !inside[j] {
				cur = append(cur, h.cross(ring[i], ring[j]))
				chains = append(chains, cur)
				cur = nil
			}
		case inside[j] && j != start:
			cur = []point{h.cross(ring[i], ring[j])}
		}
	}
	return chains, false
}

// containsPoint reports whether p lies inside ring (even-odd rule).
func containsPoint(ring []point, p point) bool {
	in := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.y > p.y) != (b.y > p.y) && p.x < (b.x-a.x)*(p.y-a.y)/(b.y-a.y)+a.x {
			in = !in
		}
	}
	return in
}

// ringPoints returns the ring's vertices without the closing duplicate.
func ringPoints(lr *geom.LinearRing) []point {
	flat := lr.FlatCoords()
	stride := lr.Stride()
	pts := make([]point, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		pts = append(pts, point{flat[i], flat[i+1]})
	}
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	return pts
}

func dedupe(pts []point) []point {
	if len(pts) == 0 {
		return pts
	}
	out := pts[:1]
	for _, p := range pts[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	if n := len(out); n > 1 && out[0] == out[n-1] {
		out = out[:n-1]
	}
	return out
}

func reverse(pts []point) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

// shoelace returns twice the signed area; positive for counter-clockwise.
func shoelace(pts []point) float64 {
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].x*pts[j].y - pts[j].x*pts[i].y
	}
	return sum
}
