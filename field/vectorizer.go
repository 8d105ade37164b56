package field

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// PolygonExtractor: traces each binary mask into polygon geometry in world
// coordinates. Tracing follows pixel *edges*, so ring vertices sit on
// pixel corners and the traced footprint reproduces the positive pixel
// set exactly when rasterized back with the pixel-center rule.
//
// Each 4-connected foreground blob yields one candidate polygon (exterior
// ring plus any enclosed hole rings). A blob that touches itself at a
// corner is decomposed into separate simple loops during tracing, so the
// emitted rings never self-intersect through a shared vertex.

// corner is an integer pixel-corner coordinate. Corner (x, y) is the
// top-left corner of pixel (x, y).
type corner struct{ x, y int }

// cornerEdge is one unit-length directed boundary edge. Walking it keeps
// the blob interior on the left (in image coordinates, y down).
type cornerEdge struct {
	from, to corner
}

// ExtractPolygons traces one mask against its tile. Polygons smaller than
// minAreaM2 (native-CRS square meters, inclusive bound) are discarded as
// tracing fragments. A mask with zero positive pixels yields (nil, true):
// skipped, not an error.
func ExtractPolygons(mask *BinaryMask, tile Tile, minAreaM2 float64) (polys []*FieldPolygon, skipped bool) {
	if mask.PositiveCount() == 0 {
		return nil, true
	}

	labels, nLabels := labelComponents(mask)

	ringIndex := 0
	for label := 1; label <= nLabels; label++ {
		loops := traceComponent(mask, labels, label)

		// Split into exterior candidates and holes. In image coordinates
		// (y down) the interior-on-left convention makes blob outlines
		// wind with negative shoelace sign and cavities positive.
		var exteriors, holes []orb.Ring
		var holeProbes []orb.Point
		for _, loop := range loops {
			ring := loopToRing(loop)
			if shoelace(ring) < 0 {
				exteriors = append(exteriors, ring)
			} else {
				holes = append(holes, ring)
				holeProbes = append(holeProbes, cavityProbe(loop))
			}
		}

		for _, exterior := range exteriors {
			poly := orb.Polygon{exterior}
			for i, hole := range holes {
				if pointInRing(holeProbes[i], exterior) {
					poly = append(poly, hole)
				}
			}

			world := applyTransform(poly, tile.Transform)
			areaM2 := PolygonAreaM2(world, tile.CRS)
			if areaM2 < minAreaM2 {
				continue
			}

			polys = append(polys, &FieldPolygon{
				ID:         fmt.Sprintf("%s_%d_%d", tile.ID, mask.Index, ringIndex),
				SourceTile: tile.ID,
				Geometry:   world,
				CRS:        tile.CRS,
				AreaHa:     areaM2 / 10000.0,
			})
			ringIndex++
		}
	}

	return polys, false
}

// labelComponents assigns a positive label to every 4-connected foreground
// blob. Background pixels stay 0.
func labelComponents(mask *BinaryMask) (labels []int, n int) {
	labels = make([]int, mask.Width*mask.Height)
	var queue []corner

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if !mask.Bits[y*mask.Width+x] || labels[y*mask.Width+x] != 0 {
				continue
			}
			n++
			labels[y*mask.Width+x] = n
			queue = append(queue[:0], corner{x, y})
			for len(queue) > 0 {
				p := queue[0]
				queue = queue[1:]
				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := p.x+d[0], p.y+d[1]
					if nx < 0 || nx >= mask.Width || ny < 0 || ny >= mask.Height {
						continue
					}
					idx := ny*mask.Width + nx
					if mask.Bits[idx] && labels[idx] == 0 {
						labels[idx] = n
						queue = append(queue, corner{nx, ny})
					}
				}
			}
		}
	}
	return labels, n
}

// traceComponent collects the directed boundary edges of one labeled blob
// and stitches them into closed simple loops.
func traceComponent(mask *BinaryMask, labels []int, label int) [][]cornerEdge {
	inBlob := func(x, y int) bool {
		if x < 0 || x >= mask.Width || y < 0 || y >= mask.Height {
			return false
		}
		return labels[y*mask.Width+x] == label
	}

	// Directed edges keyed by their start corner. Interior stays on the
	// left: top edges run west, bottom east, left edges south, right north.
	outgoing := make(map[corner][]cornerEdge)
	addEdge := func(from, to corner) {
		outgoing[from] = append(outgoing[from], cornerEdge{from: from, to: to})
	}

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if !inBlob(x, y) {
				continue
			}
			if !inBlob(x, y-1) {
				addEdge(corner{x + 1, y}, corner{x, y})
			}
			if !inBlob(x, y+1) {
				addEdge(corner{x, y + 1}, corner{x + 1, y + 1})
			}
			if !inBlob(x-1, y) {
				addEdge(corner{x, y}, corner{x, y + 1})
			}
			if !inBlob(x+1, y) {
				addEdge(corner{x + 1, y + 1}, corner{x + 1, y})
			}
		}
	}

	// Deterministic walk order.
	starts := make([]corner, 0, len(outgoing))
	for c := range outgoing {
		starts = append(starts, c)
	}
	sort.Slice(starts, func(i, j int) bool {
		if starts[i].y != starts[j].y {
			return starts[i].y < starts[j].y
		}
		return starts[i].x < starts[j].x
	})

	var loops [][]cornerEdge
	for _, start := range starts {
		for len(outgoing[start]) > 0 {
			loop := walkLoop(start, outgoing)
			loops = append(loops, splitPinches(loop)...)
		}
	}
	return loops
}

// walkLoop follows directed edges from start until the walk returns to
// start. Where a corner offers two outgoing edges (two blob pixels touch
// diagonally), the sharpest left turn is taken, which keeps each loop
// from crossing itself.
func walkLoop(start corner, outgoing map[corner][]cornerEdge) []cornerEdge {
	var loop []cornerEdge
	cur := start
	var dirX, dirY int

	for {
		candidates := outgoing[cur]
		if len(candidates) == 0 {
			break
		}

		pick := 0
		if len(candidates) > 1 && (dirX != 0 || dirY != 0) {
			// Preference order relative to the incoming direction:
			// left turn, straight, right turn.
			bestRank := 4
			for i, e := range candidates {
				dx, dy := e.to.x-e.from.x, e.to.y-e.from.y
				rank := turnRank(dirX, dirY, dx, dy)
				if rank < bestRank {
					bestRank = rank
					pick = i
				}
			}
		}

		e := candidates[pick]
		candidates[pick] = candidates[len(candidates)-1]
		outgoing[cur] = candidates[:len(candidates)-1]
		if len(outgoing[cur]) == 0 {
			delete(outgoing, cur)
		}

		loop = append(loop, e)
		dirX, dirY = e.to.x-e.from.x, e.to.y-e.from.y
		cur = e.to
		if cur == start {
			break
		}
	}
	return loop
}

// turnRank orders candidate directions by how sharply they turn left from
// the incoming direction (y-down coordinates): 0 left, 1 straight,
// 2 right, 3 reverse.
func turnRank(inX, inY, outX, outY int) int {
	leftX, leftY := inY, -inX
	switch {
	case outX == leftX && outY == leftY:
		return 0
	case outX == inX && outY == inY:
		return 1
	case outX == -leftX && outY == -leftY:
		return 2
	default:
		return 3
	}
}

// splitPinches decomposes a loop that visits a corner more than once into
// simple sub-loops. Each sub-loop is closed and shares only the pinch
// vertex with its siblings.
func splitPinches(loop []cornerEdge) [][]cornerEdge {
	seen := make(map[corner]int)
	var out [][]cornerEdge
	path := make([]cornerEdge, 0, len(loop))

	for _, e := range loop {
		path = append(path, e)
		if idx, ok := seen[e.to]; ok {
			sub := make([]cornerEdge, len(path)-idx)
			copy(sub, path[idx:])
			out = append(out, sub)
			for _, removed := range path[idx:] {
				delete(seen, removed.to)
			}
			path = path[:idx]
			if idx > 0 {
				seen[e.to] = idx
			}
			continue
		}
		seen[e.to] = len(path)
	}
	if len(path) > 0 {
		out = append(out, path)
	}
	return out
}

// loopToRing converts an edge loop into a closed ring of corner
// coordinates.
func loopToRing(loop []cornerEdge) orb.Ring {
	ring := make(orb.Ring, 0, len(loop)+1)
	for _, e := range loop {
		ring = append(ring, orb.Point{float64(e.from.x), float64(e.from.y)})
	}
	ring = append(ring, orb.Point{float64(loop[0].from.x), float64(loop[0].from.y)})
	return ring
}

// cavityProbe returns a point guaranteed to lie inside the cavity a hole
// loop encloses: half a pixel to the right of the loop's first edge (the
// background side, since the blob interior is on the left).
func cavityProbe(loop []cornerEdge) orb.Point {
	e := loop[0]
	dx, dy := float64(e.to.x-e.from.x), float64(e.to.y-e.from.y)
	midX := (float64(e.from.x) + float64(e.to.x)) / 2
	midY := (float64(e.from.y) + float64(e.to.y)) / 2
	// Right of (dx, dy) in y-down coordinates is (-dy, dx).
	return orb.Point{midX - dy*0.5, midY + dx*0.5}
}

// applyTransform maps a polygon from pixel-corner space into world
// coordinates.
func applyTransform(poly orb.Polygon, t Affine) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		r := make(orb.Ring, len(ring))
		for j, pt := range ring {
			x, y := t.Apply(pt[0], pt[1])
			r[j] = orb.Point{x, y}
		}
		out[i] = r
	}
	return out
}

// SimplifyRing reduces collinear runs of corner vertices. Tracing emits
// one vertex per pixel step; merging straight runs shrinks rings a lot
// without moving the boundary at all (tolerance 0 keeps exactness).
func SimplifyRing(ring orb.Ring) orb.Ring {
	if len(ring) < 4 {
		return ring
	}
	out := make(orb.Ring, 0, len(ring))
	n := len(ring) - 1 // last repeats first
	for i := 0; i < n; i++ {
		prev := ring[(i-1+n)%n]
		cur := ring[i]
		next := ring[(i+1)%n]
		cross := (cur[0]-prev[0])*(next[1]-prev[1]) - (cur[1]-prev[1])*(next[0]-prev[0])
		if math.Abs(cross) > 1e-12 {
			out = append(out, cur)
		}
	}
	if len(out) < 3 {
		return ring
	}
	out = append(out, out[0])
	return out
}

// SimplifyPolygon applies SimplifyRing to every ring.
func SimplifyPolygon(poly orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		out[i] = SimplifyRing(ring)
	}
	return out
}
