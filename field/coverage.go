package field

import (
	"math"

	"github.com/paulmach/orb"
)

// CoverageEvaluator scores a segmentation catalog against a reference
// land-cover raster. Both sides are expressed on the reference pixel grid
// and compared pixel-wise: recall is the share of reference-class pixels
// the catalog covers, precision the share of catalog pixels that land on
// the reference class. Working on one shared grid sidesteps polygon
// overlay entirely, so overlapping detections never double count.

// metersPerDegree approximates one degree of latitude on the WGS84
// ellipsoid. Longitude degrees shrink with cos(latitude).
const metersPerDegree = 111320.0

// PixelAreaM2 returns the ground area of one raster cell in square meters.
// For projected CRSs this is the transform determinant; for geographic
// ones the degree lengths are converted at the raster's center latitude.
func PixelAreaM2(r *Raster) float64 {
	if r.CRS.IsGeographic() {
		lat := r.CenterLatitude() * math.Pi / 180
		return r.Transform.ResX() * metersPerDegree * math.Cos(lat) *
			r.Transform.ResY() * metersPerDegree
	}
	return math.Abs(r.Transform.Det())
}

// CoverageEvaluator holds the reference class group to score against.
type CoverageEvaluator struct {
	group ClassGroup
}

// NewCoverageEvaluator builds an evaluator for one class group.
func NewCoverageEvaluator(group ClassGroup) *CoverageEvaluator {
	return &CoverageEvaluator{group: group}
}

// Evaluate compares the catalog against the reference raster inside the
// AOI. A nil AOI means the whole raster extent. An AOI with no
// reference-class pixels is fatal (recall is undefined); an empty catalog
// is not, and yields all-zero metrics over the real reference area.
func (e *CoverageEvaluator) Evaluate(cat *Catalog, ref *Raster, aoi orb.MultiPolygon) (*Metrics, error) {
	inAOI, err := e.aoiMask(ref, aoi)
	if err != nil {
		return nil, err
	}

	refBits := make([]bool, ref.Width*ref.Height)
	refCount := 0
	for row := 0; row < ref.Height; row++ {
		for col := 0; col < ref.Width; col++ {
			idx := row*ref.Width + col
			if inAOI != nil && !inAOI[idx] {
				continue
			}
			v, _ := ref.Value(col, row)
			if ref.IsNoData(v) || !e.group.Contains(int(v)) {
				continue
			}
			refBits[idx] = true
			refCount++
		}
	}
	if refCount == 0 {
		return nil, &ReferenceAreaZeroError{Group: e.group.Name}
	}

	segBits := make([]bool, ref.Width*ref.Height)
	for _, p := range cat.Polygons() {
		geom := p.Geometry
		if !p.CRS.Equal(ref.CRS) {
			g, rerr := ReprojectPolygon(geom, p.CRS, ref.CRS)
			if rerr != nil {
				return nil, rerr
			}
			geom = g
		}
		for _, cell := range CoveredCells(geom, ref) {
			idx := cell.Row*ref.Width + cell.Col
			if inAOI != nil && !inAOI[idx] {
				continue
			}
			segBits[idx] = true
		}
	}

	segCount, interCount := 0, 0
	for idx, s := range segBits {
		if !s {
			continue
		}
		segCount++
		if refBits[idx] {
			interCount++
		}
	}

	haPerPixel := PixelAreaM2(ref) / 10000.0
	m := &Metrics{
		ReferenceAreaHa:    float64(refCount) * haPerPixel,
		SegmentedAreaHa:    float64(segCount) * haPerPixel,
		IntersectionAreaHa: float64(interCount) * haPerPixel,
	}
	m.Recall = 100.0 * float64(interCount) / float64(refCount)
	if segCount > 0 {
		m.Precision = 100.0 * float64(interCount) / float64(segCount)
	}
	return m, nil
}

// aoiMask burns the AOI onto the reference grid. nil mask means no AOI
// restriction.
func (e *CoverageEvaluator) aoiMask(ref *Raster, aoi orb.MultiPolygon) ([]bool, error) {
	if len(aoi) == 0 {
		return nil, nil
	}
	bits := make([]bool, ref.Width*ref.Height)
	covered := false
	for _, poly := range aoi {
		for _, cell := range CoveredCells(poly, ref) {
			bits[cell.Row*ref.Width+cell.Col] = true
			covered = true
		}
	}
	if !covered {
		return nil, ErrNoOverlap
	}
	return bits, nil
}
