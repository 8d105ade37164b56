package field

import (
	"math"

	"github.com/paulmach/orb"
)

// GeometryRepairer: restores topological validity of traced geometry.
// The only invalidity tracing can produce is a ring that touches itself
// through a repeated vertex (a pinch). Repair is zero-width: the ring is
// split at the pinch and the dominant loop kept, holes are cleaned the
// same way, and the result is accepted only if its area stays within a
// small relative tolerance of the raw traced area. Anything else is a
// per-feature drop, never fatal to the batch.

// DefaultRepairTolerance is the maximum allowed relative area change
// introduced by repair (0.1%).
const DefaultRepairTolerance = 1e-3

// RepairPolygon validates and, if needed, repairs one traced polygon.
// ok=false means the feature must be dropped and counted as a repair
// failure.
func RepairPolygon(poly orb.Polygon, crs CRS, tolerance float64) (repaired orb.Polygon, ok bool) {
	if len(poly) == 0 || len(poly[0]) < 4 {
		return nil, false
	}

	rawArea := PolygonAreaM2(poly, crs)
	if rawArea <= 0 {
		return nil, false
	}

	exterior, ok := repairRing(poly[0])
	if !ok {
		return nil, false
	}

	out := orb.Polygon{exterior}
	for _, hole := range poly[1:] {
		h, hok := repairRing(hole)
		if !hok {
			// A degenerate hole has zero area; dropping it cannot move
			// the area outside tolerance.
			continue
		}
		out = append(out, h)
	}

	repairedArea := PolygonAreaM2(out, crs)
	if repairedArea <= 0 {
		return nil, false
	}
	if math.Abs(repairedArea-rawArea)/rawArea > tolerance {
		return nil, false
	}
	return out, true
}

// repairRing returns a simple, closed version of the ring, or ok=false if
// the ring is degenerate beyond repair.
func repairRing(ring orb.Ring) (orb.Ring, bool) {
	ring = dedupeConsecutive(ring)
	if len(ring) < 4 {
		return nil, false
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}

	if hasPinch(ring) {
		ring = dominantLoop(ring)
		if len(ring) < 4 {
			return nil, false
		}
	}

	if shoelace(ring) == 0 {
		return nil, false
	}
	return ring, true
}

// dedupeConsecutive removes zero-length edges.
func dedupeConsecutive(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(ring))
	for _, pt := range ring {
		if len(out) > 0 && out[len(out)-1] == pt {
			continue
		}
		out = append(out, pt)
	}
	return out
}

// hasPinch reports whether any non-endpoint vertex repeats.
func hasPinch(ring orb.Ring) bool {
	seen := make(map[orb.Point]struct{}, len(ring))
	for _, pt := range ring[:len(ring)-1] {
		if _, dup := seen[pt]; dup {
			return true
		}
		seen[pt] = struct{}{}
	}
	return false
}

// dominantLoop splits a self-touching ring at its repeated vertices and
// returns the sub-loop with the largest absolute area. The discarded
// loops are zero-width slivers when the pinch is a genuine tracing
// artifact; if they carry real area the tolerance check in RepairPolygon
// rejects the repair.
func dominantLoop(ring orb.Ring) orb.Ring {
	open := ring[:len(ring)-1]
	seen := make(map[orb.Point]int, len(open))
	path := make(orb.Ring, 0, len(open))
	var best orb.Ring
	bestArea := -1.0

	consider := func(loop orb.Ring) {
		if len(loop) < 3 {
			return
		}
		closed := make(orb.Ring, len(loop), len(loop)+1)
		copy(closed, loop)
		closed = append(closed, closed[0])
		if a := math.Abs(shoelace(closed)); a > bestArea {
			bestArea = a
			best = closed
		}
	}

	for _, pt := range open {
		if idx, dup := seen[pt]; dup {
			consider(path[idx:])
			for _, removed := range path[idx:] {
				delete(seen, removed)
			}
			path = path[:idx]
		}
		seen[pt] = len(path)
		path = append(path, pt)
	}
	consider(path)
	return best
}
