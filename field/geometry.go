package field

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Area helpers. The invariant throughout the pipeline is that a polygon's
// area is computed in the CRS of its current geometry: planar math for
// projected CRSs, spherical math (geo.Area) for geographic ones. The
// spherical model runs a fraction of a percent above ellipsoidal ground
// truth, which is fine at field scale. Hole rings always subtract.

// ringAreaM2 returns the unsigned area of one ring in square meters.
func ringAreaM2(ring orb.Ring, crs CRS) float64 {
	if crs.IsGeographic() {
		return math.Abs(geo.Area(ring))
	}
	return math.Abs(shoelace(ring))
}

// PolygonAreaM2 returns the area of a polygon in square meters: the
// exterior ring minus all holes.
func PolygonAreaM2(poly orb.Polygon, crs CRS) float64 {
	if len(poly) == 0 {
		return 0
	}
	area := ringAreaM2(poly[0], crs)
	for _, hole := range poly[1:] {
		area -= ringAreaM2(hole, crs)
	}
	if area < 0 {
		return 0
	}
	return area
}

// PolygonAreaHa returns the polygon area in hectares.
func PolygonAreaHa(poly orb.Polygon, crs CRS) float64 {
	return PolygonAreaM2(poly, crs) / 10000.0
}

// shoelace returns the signed planar area of a ring. The sign encodes the
// winding direction; callers that only need magnitude take the absolute
// value.
func shoelace(ring orb.Ring) float64 {
	if len(ring) < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	// Close implicitly if the ring is not closed.
	last := len(ring) - 1
	if ring[0] != ring[last] {
		sum += ring[last][0]*ring[0][1] - ring[0][0]*ring[last][1]
	}
	return sum / 2
}

// pointInRing reports whether a point is inside a ring using the even-odd
// ray casting rule. Points exactly on the boundary may land either way;
// the rasterizer avoids that by always testing pixel centers against
// corner-aligned rings.
func pointInRing(pt orb.Point, ring orb.Ring) bool {
	inside := false
	n := len(ring)
	if n < 3 {
		return false
	}
	j := n - 1
	for i := 0; i < n; i++ {
		pi, pj := ring[i], ring[j]
		if (pi[1] > pt[1]) != (pj[1] > pt[1]) {
			xCross := (pj[0]-pi[0])*(pt[1]-pi[1])/(pj[1]-pi[1]) + pi[0]
			if pt[0] < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// pointInPolygon applies the even-odd rule across all rings, so holes
// punch out correctly.
func pointInPolygon(pt orb.Point, poly orb.Polygon) bool {
	inside := false
	for _, ring := range poly {
		if pointInRing(pt, ring) {
			inside = !inside
		}
	}
	return inside
}
