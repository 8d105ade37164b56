package field

import "testing"

func TestVectorizeReference(t *testing.T) {
	// A 6x6 classification grid with one 3x3 block of class 18 and one
	// 2x2 block of class 39, both in the target group, plus pasture.
	ref := testRaster(6, 6, func(col, row int) int32 {
		switch {
		case col < 3 && row < 3:
			return 18
		case col >= 4 && row >= 4:
			return 39
		default:
			return 15
		}
	})
	ref.Path = "/data/mapbiomas_2022.tif"
	group := NewClassGroup("agricultura", []int{18, 39})

	cat, err := VectorizeReference(ref, group, 0)
	if err != nil {
		t.Fatalf("VectorizeReference: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("got %d polygons, want 2", cat.Len())
	}
	if !cat.CRS().Equal(utmCRS) {
		t.Errorf("catalog CRS = %v", cat.CRS())
	}

	// 10 m pixels: 9 cells = 900 m2 and 4 cells = 400 m2.
	areas := map[float64]bool{}
	for _, p := range cat.Polygons() {
		areas[p.AreaHa*10000] = true
		if p.SourceTile != "mapbiomas_2022" {
			t.Errorf("source tile = %q", p.SourceTile)
		}
	}
	if !areas[900] || !areas[400] {
		t.Errorf("areas = %v, want {900, 400}", areas)
	}
}

func TestVectorizeReferenceMinArea(t *testing.T) {
	ref := testRaster(6, 6, func(col, row int) int32 {
		switch {
		case col < 3 && row < 3:
			return 18
		case col == 5 && row == 0:
			return 18
		default:
			return 15
		}
	})
	group := NewClassGroup("agricultura", []int{18})

	cat, err := VectorizeReference(ref, group, 200)
	if err != nil {
		t.Fatalf("VectorizeReference: %v", err)
	}
	if cat.Len() != 1 {
		t.Fatalf("got %d polygons, want the single pixel filtered out", cat.Len())
	}
}

func TestVectorizeReferenceNoClassPixels(t *testing.T) {
	ref := testRaster(4, 4, func(col, row int) int32 { return 15 })
	group := NewClassGroup("agricultura", []int{18})

	cat, err := VectorizeReference(ref, group, 0)
	if err != nil {
		t.Fatalf("VectorizeReference: %v", err)
	}
	if cat.Len() != 0 {
		t.Errorf("got %d polygons, want 0", cat.Len())
	}
}
