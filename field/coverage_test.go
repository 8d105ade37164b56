package field

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestEvaluatePerfectMatch(t *testing.T) {
	// Reference class fills the left half of a 10x10 raster with 10 m
	// pixels; the catalog covers exactly that half.
	ref := testRaster(10, 10, func(col, row int) int32 {
		if col < 5 {
			return 18
		}
		return 15
	})
	group := NewClassGroup("agricultura", []int{18})

	cat := NewCatalogWithCRS(utmCRS)
	if err := cat.Append(newTestPolygon("f", utmSquare(0, -100, 50), utmCRS)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// Square is 50x50 m, extend to full height with a second feature.
	if err := cat.Append(newTestPolygon("g", orb.Polygon{{
		{0, -100}, {50, -100}, {50, 0}, {0, 0}, {0, -100},
	}}, utmCRS)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	m, err := NewCoverageEvaluator(group).Evaluate(cat, ref, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Recall != 100 || m.Precision != 100 {
		t.Errorf("recall=%v precision=%v, want 100/100", m.Recall, m.Precision)
	}
	// 50 pixels of 100 m2 = 0.5 ha.
	if !almostEqual(m.ReferenceAreaHa, 0.5, epsilon) {
		t.Errorf("reference area = %v ha, want 0.5", m.ReferenceAreaHa)
	}
	if !almostEqual(m.IntersectionAreaHa, 0.5, epsilon) {
		t.Errorf("intersection area = %v ha, want 0.5", m.IntersectionAreaHa)
	}
}

func TestEvaluatePartialOverlap(t *testing.T) {
	ref := testRaster(10, 10, func(col, row int) int32 {
		if col < 5 {
			return 18
		}
		return 15
	})
	group := NewClassGroup("agricultura", []int{18})

	// Catalog covers the right half: zero intersection with the
	// reference class, 50 segmented pixels.
	cat := NewCatalogWithCRS(utmCRS)
	if err := cat.Append(newTestPolygon("f", orb.Polygon{{
		{50, -100}, {100, -100}, {100, 0}, {50, 0}, {50, -100},
	}}, utmCRS)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	m, err := NewCoverageEvaluator(group).Evaluate(cat, ref, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Recall != 0 || m.Precision != 0 {
		t.Errorf("recall=%v precision=%v, want 0/0", m.Recall, m.Precision)
	}
	if !almostEqual(m.SegmentedAreaHa, 0.5, epsilon) {
		t.Errorf("segmented area = %v ha, want 0.5", m.SegmentedAreaHa)
	}
}

func TestEvaluateEmptyCatalog(t *testing.T) {
	ref := testRaster(10, 10, func(col, row int) int32 { return 18 })
	group := NewClassGroup("agricultura", []int{18})

	m, err := NewCoverageEvaluator(group).Evaluate(NewCatalogWithCRS(utmCRS), ref, nil)
	if err != nil {
		t.Fatalf("empty catalog must evaluate, got %v", err)
	}
	if m.Recall != 0 || m.Precision != 0 {
		t.Errorf("recall=%v precision=%v, want 0/0", m.Recall, m.Precision)
	}
	if m.ReferenceAreaHa != 1 {
		t.Errorf("reference area = %v ha, want 1", m.ReferenceAreaHa)
	}
}

func TestEvaluateZeroReferenceArea(t *testing.T) {
	ref := testRaster(10, 10, func(col, row int) int32 { return 15 })
	group := NewClassGroup("agricultura", []int{18})

	_, err := NewCoverageEvaluator(group).Evaluate(NewCatalogWithCRS(utmCRS), ref, nil)
	var zeroErr *ReferenceAreaZeroError
	if !errors.As(err, &zeroErr) {
		t.Fatalf("got %v, want ReferenceAreaZeroError", err)
	}
	if zeroErr.Group != "agricultura" {
		t.Errorf("error names group %q", zeroErr.Group)
	}
}

func TestEvaluateAOIRestriction(t *testing.T) {
	ref := testRaster(10, 10, func(col, row int) int32 { return 18 })
	group := NewClassGroup("agricultura", []int{18})

	// AOI covers only the top-left quarter (50x50 m).
	aoi := orb.MultiPolygon{utmSquare(0, -50, 50)}

	cat := NewCatalogWithCRS(utmCRS)
	if err := cat.Append(newTestPolygon("f", utmSquare(0, -100, 100), utmCRS)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	m, err := NewCoverageEvaluator(group).Evaluate(cat, ref, aoi)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Recall != 100 || m.Precision != 100 {
		t.Errorf("recall=%v precision=%v, want 100/100", m.Recall, m.Precision)
	}
	// 25 pixels inside the AOI.
	if !almostEqual(m.ReferenceAreaHa, 0.25, epsilon) {
		t.Errorf("reference area = %v ha, want 0.25", m.ReferenceAreaHa)
	}
}

func TestEvaluateDisjointAOI(t *testing.T) {
	ref := testRaster(10, 10, func(col, row int) int32 { return 18 })
	group := NewClassGroup("agricultura", []int{18})
	aoi := orb.MultiPolygon{utmSquare(10000, 10000, 100)}

	_, err := NewCoverageEvaluator(group).Evaluate(NewCatalogWithCRS(utmCRS), ref, aoi)
	if !errors.Is(err, ErrNoOverlap) {
		t.Errorf("got %v, want ErrNoOverlap", err)
	}
}

func TestEvaluateOverlappingDetectionsNoDoubleCount(t *testing.T) {
	ref := testRaster(10, 10, func(col, row int) int32 { return 18 })
	group := NewClassGroup("agricultura", []int{18})

	// Two identical features: the pixel-set union must not count twice.
	cat := NewCatalogWithCRS(utmCRS)
	for _, id := range []string{"a", "b"} {
		if err := cat.Append(newTestPolygon(id, utmSquare(0, -100, 100), utmCRS)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	m, err := NewCoverageEvaluator(group).Evaluate(cat, ref, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if math.Abs(m.SegmentedAreaHa-1) > epsilon {
		t.Errorf("segmented area = %v ha, want 1 (no double count)", m.SegmentedAreaHa)
	}
	if m.Precision != 100 {
		t.Errorf("precision = %v, want 100", m.Precision)
	}
}
