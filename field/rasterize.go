package field

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Rasterization uses the pixel-center rule: a cell is covered when its
// center lies inside the polygon under even-odd filling. Traced rings sit
// on integer pixel corners and centers sit on half-integers, so a center
// never lands exactly on a ring edge and the rule is unambiguous. This is
// what makes trace-then-rasterize a lossless round trip.

// Pixel addresses one cell of a grid.
type Pixel struct {
	Col, Row int
}

// RasterizeToGrid burns a pixel-space polygon onto a width×height grid.
// The polygon must be in pixel-corner coordinates (the tracer's space
// before the tile transform is applied).
func RasterizeToGrid(poly orb.Polygon, width, height int) []bool {
	bits := make([]bool, width*height)
	forEachCoveredCell(poly, 0, width, 0, height, func(col, row int) {
		bits[row*width+col] = true
	})
	return bits
}

// CoveredCells returns the cells of a raster whose centers fall inside the
// polygon. The polygon must already be in the raster's CRS; the caller
// reprojects first if it is not.
func CoveredCells(poly orb.Polygon, r *Raster) []Pixel {
	pixPoly, ok := toPixelSpace(poly, r.Transform)
	if !ok {
		return nil
	}

	minCol, maxCol, minRow, maxRow := pixelBBox(pixPoly)
	if minCol < 0 {
		minCol = 0
	}
	if minRow < 0 {
		minRow = 0
	}
	if maxCol > r.Width {
		maxCol = r.Width
	}
	if maxRow > r.Height {
		maxRow = r.Height
	}
	if minCol >= maxCol || minRow >= maxRow {
		return nil
	}

	var cells []Pixel
	forEachCoveredCell(pixPoly, minCol, maxCol, minRow, maxRow, func(col, row int) {
		cells = append(cells, Pixel{Col: col, Row: row})
	})
	return cells
}

// forEachCoveredCell scans rows [minRow, maxRow) and calls fn for every
// covered cell with column in [minCol, maxCol).
func forEachCoveredCell(poly orb.Polygon, minCol, maxCol, minRow, maxRow int, fn func(col, row int)) {
	var crossings []float64
	for row := minRow; row < maxRow; row++ {
		yc := float64(row) + 0.5
		crossings = crossings[:0]
		for _, ring := range poly {
			crossings = appendCrossings(crossings, ring, yc)
		}
		if len(crossings) < 2 {
			continue
		}
		sort.Float64s(crossings)
		for i := 0; i+1 < len(crossings); i += 2 {
			x0, x1 := crossings[i], crossings[i+1]
			start := int(math.Floor(x0 + 0.5))
			end := int(math.Ceil(x1-0.5)) - 1
			if start < minCol {
				start = minCol
			}
			if end >= maxCol {
				end = maxCol - 1
			}
			for col := start; col <= end; col++ {
				fn(col, row)
			}
		}
	}
}

// appendCrossings collects the x coordinates where the scanline y=yc
// crosses ring edges.
func appendCrossings(out []float64, ring orb.Ring, yc float64) []float64 {
	n := len(ring)
	if n < 3 {
		return out
	}
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := ring[j], ring[i]
		if (a[1] > yc) != (b[1] > yc) {
			x := a[0] + (yc-a[1])*(b[0]-a[0])/(b[1]-a[1])
			out = append(out, x)
		}
		j = i
	}
	return out
}

// toPixelSpace maps a world polygon into the grid's pixel coordinates via
// the inverse geotransform. ok=false means the transform is degenerate.
func toPixelSpace(poly orb.Polygon, t Affine) (orb.Polygon, bool) {
	inv := t.Invert()
	if inv.IsZero() {
		return nil, false
	}
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		r := make(orb.Ring, len(ring))
		for j, pt := range ring {
			x, y := inv.Apply(pt[0], pt[1])
			r[j] = orb.Point{x, y}
		}
		out[i] = r
	}
	return out, true
}

// pixelBBox returns the half-open cell range covering the polygon's
// pixel-space bounding box.
func pixelBBox(poly orb.Polygon) (minCol, maxCol, minRow, maxRow int) {
	first := true
	var minX, minY, maxX, maxY float64
	for _, ring := range poly {
		for _, pt := range ring {
			if first {
				minX, maxX, minY, maxY = pt[0], pt[0], pt[1], pt[1]
				first = false
				continue
			}
			minX = math.Min(minX, pt[0])
			maxX = math.Max(maxX, pt[0])
			minY = math.Min(minY, pt[1])
			maxY = math.Max(maxY, pt[1])
		}
	}
	return int(math.Floor(minX)), int(math.Ceil(maxX)), int(math.Floor(minY)), int(math.Ceil(maxY))
}
