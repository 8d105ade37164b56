package field

import (
	"math"
	"testing"
)

func TestComputeNDVIStatsConstantField(t *testing.T) {
	red := testRaster(10, 10, func(col, row int) int32 { return 100 })
	nir := testRaster(10, 10, func(col, row int) int32 { return 200 })

	// 5x5 pixels -> 25 valid samples.
	p := newTestPolygon("f", utmSquare(0, -50, 50), utmCRS)
	stats, err := ComputeNDVIStats(p, red, nir)
	if err != nil {
		t.Fatalf("ComputeNDVIStats: %v", err)
	}
	if stats == nil {
		t.Fatalf("stats nil for 25 valid pixels")
	}

	want := 100.0 / (300.0 + ndviEpsilon)
	if !almostEqual(stats.Mean, want, 1e-9) {
		t.Errorf("mean = %v, want %v", stats.Mean, want)
	}
	if stats.Std != 0 {
		t.Errorf("std = %v, want 0 for constant field", stats.Std)
	}
	if stats.CV != 0 {
		t.Errorf("cv = %v, want 0", stats.CV)
	}
	if !almostEqual(stats.P10, want, 1e-9) || !almostEqual(stats.P90, want, 1e-9) {
		t.Errorf("percentiles = (%v, %v), want both %v", stats.P10, stats.P90, want)
	}
	if stats.Count != 25 {
		t.Errorf("count = %d, want 25", stats.Count)
	}
}

func TestComputeNDVIStatsTooFewPixels(t *testing.T) {
	red := testRaster(10, 10, func(col, row int) int32 { return 100 })
	nir := testRaster(10, 10, func(col, row int) int32 { return 200 })

	// 3x3 = 9 valid pixels, below the minimum of 10.
	p := newTestPolygon("f", utmSquare(0, -30, 30), utmCRS)
	stats, err := ComputeNDVIStats(p, red, nir)
	if err != nil {
		t.Fatalf("ComputeNDVIStats: %v", err)
	}
	if stats != nil {
		t.Errorf("got stats for %d pixels, want nil", stats.Count)
	}
}

func TestComputeNDVIStatsSkipsNoData(t *testing.T) {
	// Half the red band is nodata; those pixels must not enter the
	// distribution.
	red := testRaster(10, 10, func(col, row int) int32 {
		if col < 5 {
			return 0
		}
		return 100
	})
	nir := testRaster(10, 10, func(col, row int) int32 { return 300 })

	p := newTestPolygon("f", utmSquare(0, -100, 100), utmCRS)
	stats, err := ComputeNDVIStats(p, red, nir)
	if err != nil {
		t.Fatalf("ComputeNDVIStats: %v", err)
	}
	if stats == nil {
		t.Fatalf("stats nil")
	}
	if stats.Count != 50 {
		t.Errorf("count = %d, want 50", stats.Count)
	}
	want := 200.0 / (400.0 + ndviEpsilon)
	if !almostEqual(stats.Mean, want, 1e-9) {
		t.Errorf("mean = %v, want %v", stats.Mean, want)
	}
}

func TestComputeNDVIStatsVariedField(t *testing.T) {
	// Two NDVI populations: (300-100)/400 = 0.5 and (150-100)/250 = 0.2.
	nir := testRaster(10, 10, func(col, row int) int32 {
		if row < 5 {
			return 300
		}
		return 150
	})
	red := testRaster(10, 10, func(col, row int) int32 { return 100 })

	p := newTestPolygon("f", utmSquare(0, -100, 100), utmCRS)
	stats, err := ComputeNDVIStats(p, red, nir)
	if err != nil {
		t.Fatalf("ComputeNDVIStats: %v", err)
	}
	if !almostEqual(stats.Mean, 0.35, 1e-6) {
		t.Errorf("mean = %v, want 0.35", stats.Mean)
	}
	if !almostEqual(stats.Std, 0.15, 1e-6) {
		t.Errorf("std = %v, want 0.15", stats.Std)
	}
	wantCV := 0.15 / 0.35 * 100
	if math.Abs(stats.CV-wantCV) > 1e-6 {
		t.Errorf("cv = %v, want %v", stats.CV, wantCV)
	}
	if stats.P10 < 0.19 || stats.P10 > 0.21 {
		t.Errorf("p10 = %v, want ~0.2", stats.P10)
	}
	if stats.P90 < 0.49 || stats.P90 > 0.51 {
		t.Errorf("p90 = %v, want ~0.5", stats.P90)
	}
}

func TestNDVIStatsAttach(t *testing.T) {
	p := &FieldPolygon{ID: "f"}
	s := &NDVIStats{Mean: 0.4, Std: 0.05, CV: 12.5, P10: 0.3, P90: 0.5, Count: 42}
	s.Attach(p)

	checks := map[string]float64{
		MetricNDVIMean: 0.4,
		MetricNDVIStd:  0.05,
		MetricNDVICV:   12.5,
		MetricNDVIP10:  0.3,
		MetricNDVIP90:  0.5,
	}
	for name, want := range checks {
		if got, ok := p.Metric(name); !ok || got != want {
			t.Errorf("metric %s = %v (present %v), want %v", name, got, ok, want)
		}
	}
}

func TestComputeNDVIStatsBandMismatch(t *testing.T) {
	red := testRaster(10, 10, func(col, row int) int32 { return 100 })
	nir := testRaster(5, 5, func(col, row int) int32 { return 200 })
	p := newTestPolygon("f", utmSquare(0, -50, 50), utmCRS)
	if _, err := ComputeNDVIStats(p, red, nir); err == nil {
		t.Errorf("mismatched band grids accepted")
	}
}
