package field

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// NDVI texture statistics per field. A healthy, homogeneous crop field has
// a high mean and a low coefficient of variation; the stats feed both the
// exported attribute table and the run report.

// ndviEpsilon keeps the ratio finite on zero-reflectance pixels.
const ndviEpsilon = 1e-6

// ndviMinPixels is the minimum number of valid samples below which no
// statistics are reported for a field.
const ndviMinPixels = 10

// NDVIStats summarizes the NDVI distribution under one field footprint.
type NDVIStats struct {
	Mean  float64
	Std   float64
	CV    float64
	P10   float64
	P90   float64
	Count int
}

// ComputeNDVIStats samples red and near-infrared reflectance under the
// polygon footprint and summarizes the NDVI distribution. Returns nil when
// fewer than ndviMinPixels valid samples remain: too little signal to
// characterize the field.
func ComputeNDVIStats(p *FieldPolygon, red, nir *Raster) (*NDVIStats, error) {
	if red.Width != nir.Width || red.Height != nir.Height {
		return nil, fmt.Errorf("band grids disagree: red %dx%d, nir %dx%d",
			red.Width, red.Height, nir.Width, nir.Height)
	}

	geom := p.Geometry
	if !p.CRS.Equal(red.CRS) {
		g, err := ReprojectPolygon(geom, p.CRS, red.CRS)
		if err != nil {
			return nil, err
		}
		geom = g
	}

	cells := CoveredCells(geom, red)
	values := make([]float64, 0, len(cells))
	for _, cell := range cells {
		rv, ok := red.Value(cell.Col, cell.Row)
		if !ok || red.IsNoData(rv) {
			continue
		}
		nv, ok := nir.Value(cell.Col, cell.Row)
		if !ok || nir.IsNoData(nv) {
			continue
		}
		ndvi := (float64(nv) - float64(rv)) / (float64(nv) + float64(rv) + ndviEpsilon)
		if ndvi < -1 || ndvi > 1 {
			continue
		}
		values = append(values, ndvi)
	}

	if len(values) < ndviMinPixels {
		return nil, nil
	}

	sort.Float64s(values)
	mean := stat.Mean(values, nil)
	std := stat.PopStdDev(values, nil)
	cv := 0.0
	if mean != 0 {
		cv = std / mean * 100.0
	}
	return &NDVIStats{
		Mean:  mean,
		Std:   std,
		CV:    cv,
		P10:   stat.Quantile(0.10, stat.LinInterp, values, nil),
		P90:   stat.Quantile(0.90, stat.LinInterp, values, nil),
		Count: len(values),
	}, nil
}

// Attach writes the statistics onto the polygon's metric table.
func (s *NDVIStats) Attach(p *FieldPolygon) {
	p.SetMetric(MetricNDVIMean, s.Mean)
	p.SetMetric(MetricNDVIStd, s.Std)
	p.SetMetric(MetricNDVICV, s.CV)
	p.SetMetric(MetricNDVIP10, s.P10)
	p.SetMetric(MetricNDVIP90, s.P90)
}

// TextureAnalyzer annotates filtered fields with NDVI statistics from the
// per-band reflectance rasters of their source tiles.
type TextureAnalyzer struct {
	bands BandConfig
	cache *RasterCache
}

// NewTextureAnalyzer builds an analyzer over the configured band suffixes.
func NewTextureAnalyzer(bands BandConfig, cache *RasterCache) *TextureAnalyzer {
	if cache == nil {
		cache = NewRasterCache()
	}
	return &TextureAnalyzer{bands: bands, cache: cache}
}

// bandPath resolves a band raster inside the tile raster directory, e.g.
// rasters/S2_XYZ_B08.tif.
func (a *TextureAnalyzer) bandPath(rastersDir, tileID, suffix string) string {
	return filepath.Join(rastersDir, fmt.Sprintf("%s_%s.tif", tileID, suffix))
}

// Annotate computes and attaches NDVI statistics for every polygon and
// returns those that received stats. Fields with too few valid pixels or a
// failing band read are counted and excluded from the returned set; their
// upstream attributes stay intact for diagnostics.
func (a *TextureAnalyzer) Annotate(polys []*FieldPolygon, rastersDir string, sum *RunSummary) []*FieldPolygon {
	kept := make([]*FieldPolygon, 0, len(polys))
	for _, p := range polys {
		red, err := a.cache.Open(a.bandPath(rastersDir, p.SourceTile, a.bands.Red))
		if err != nil {
			sum.CountRasterFailure()
			log.Printf("ndvi: skipping %s: %v", p.ID, err)
			continue
		}
		nir, err := a.cache.Open(a.bandPath(rastersDir, p.SourceTile, a.bands.NIR))
		if err != nil {
			sum.CountRasterFailure()
			log.Printf("ndvi: skipping %s: %v", p.ID, err)
			continue
		}

		stats, err := ComputeNDVIStats(p, red, nir)
		if err != nil {
			sum.CountRasterFailure()
			log.Printf("ndvi: skipping %s: %v", p.ID, err)
			continue
		}
		if stats == nil {
			sum.CountDroppedNoStats()
			continue
		}
		stats.Attach(p)
		kept = append(kept, p)
	}
	return kept
}
