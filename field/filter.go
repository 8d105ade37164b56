package field

import "log"

// AttributeFilter reduces a raw catalog to plausible agricultural fields:
// first a size band on the polygon area, then a minimum overlap with the
// target land-cover class group. The cheap size check runs first so the
// raster clip only happens for polygons that could survive. Applying the
// filter twice with the same criteria is a no-op.
type AttributeFilter struct {
	criteria FilterCriteria
	cache    *RasterCache
}

// NewAttributeFilter builds a filter over validated criteria. The cache is
// shared across workers so the reference raster loads once per batch.
func NewAttributeFilter(criteria FilterCriteria, cache *RasterCache) *AttributeFilter {
	if cache == nil {
		cache = NewRasterCache()
	}
	return &AttributeFilter{criteria: criteria, cache: cache}
}

// InSizeBand reports whether the polygon's area lies inside the inclusive
// [AreaMinHa, AreaMaxHa] band.
func (f *AttributeFilter) InSizeBand(p *FieldPolygon) bool {
	return p.AreaHa >= f.criteria.AreaMinHa && p.AreaHa <= f.criteria.AreaMaxHa
}

// Apply filters the polygons against the reference classification raster
// and returns the survivors. Per-polygon raster failures are counted and
// the polygon dropped; the batch never aborts here. Every polygon that
// reaches the overlap test gets its overlap percentage attached, kept or
// not, so dropped features remain explainable.
func (f *AttributeFilter) Apply(polys []*FieldPolygon, referencePath string, sum *RunSummary) []*FieldPolygon {
	kept := make([]*FieldPolygon, 0, len(polys))
	for _, p := range polys {
		if !f.InSizeBand(p) {
			sum.CountDroppedSize()
			continue
		}

		ref, err := f.cache.Open(referencePath)
		if err != nil {
			sum.CountRasterFailure()
			log.Printf("filter: dropping %s: %v", p.ID, err)
			continue
		}

		pct, err := ClassOverlapPct(p, ref, f.criteria.Group)
		if err != nil {
			sum.CountRasterFailure()
			log.Printf("filter: dropping %s: %v", p.ID, err)
			continue
		}
		p.SetMetric(MetricOverlapPct, pct)

		if pct < f.criteria.OverlapMinPct {
			sum.CountDroppedOverlap()
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// ClassOverlapPct returns the percentage of the polygon's valid footprint
// pixels whose reference class belongs to the group. Nodata pixels are
// excluded from the denominator; a footprint with no valid pixels scores
// 0, never NaN.
func ClassOverlapPct(p *FieldPolygon, ref *Raster, group ClassGroup) (float64, error) {
	geom := p.Geometry
	if !p.CRS.Equal(ref.CRS) {
		g, err := ReprojectPolygon(geom, p.CRS, ref.CRS)
		if err != nil {
			return 0, err
		}
		geom = g
	}

	cells := CoveredCells(geom, ref)
	if len(cells) == 0 {
		return 0, nil
	}

	valid, match := 0, 0
	for _, cell := range cells {
		v, ok := ref.Value(cell.Col, cell.Row)
		if !ok || ref.IsNoData(v) {
			continue
		}
		valid++
		if group.Contains(int(v)) {
			match++
		}
	}
	if valid == 0 {
		return 0, nil
	}
	return 100.0 * float64(match) / float64(valid), nil
}
