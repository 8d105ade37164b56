package field

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestParseCRS(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"EPSG:32721", 32721, false},
		{"epsg:4326", 4326, false},
		{"32722", 32722, false},
		{" EPSG:4674 ", 4674, false},
		{"", 0, true},
		{"WGS84:1", 0, true},
		{"EPSG:abc", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseCRS(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCRS(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got.EPSG != tt.want {
			t.Errorf("ParseCRS(%q) = %d, want %d", tt.in, got.EPSG, tt.want)
		}
	}
}

func TestIsGeographic(t *testing.T) {
	for _, code := range []int{4326, 4674, 4618} {
		if !(CRS{EPSG: code}).IsGeographic() {
			t.Errorf("EPSG:%d should be geographic", code)
		}
	}
	for _, code := range []int{32722, 3857, 0} {
		if (CRS{EPSG: code}).IsGeographic() {
			t.Errorf("EPSG:%d should not be geographic", code)
		}
	}
}

func TestUTMForwardKnownPoint(t *testing.T) {
	// Zone 22 central meridian is -51 degrees, so a point on it must land
	// on the false easting exactly.
	e, n := utmForward(-51.0, -15.0, 22, true)
	if !almostEqual(e, 500000, 0.01) {
		t.Errorf("easting = %v, want 500000", e)
	}
	if n < 8.30e6 || n > 8.36e6 {
		t.Errorf("northing = %v, want ~8.34e6", n)
	}
}

func TestUTMRoundTrip(t *testing.T) {
	points := [][2]float64{
		{-55.3, -15.5},
		{-51.0, -10.0},
		{-48.7, -22.9},
	}
	for _, pt := range points {
		e, n := utmForward(pt[0], pt[1], 22, true)
		lon, lat := utmInverse(e, n, 22, true)
		if !almostEqual(lon, pt[0], 1e-7) || !almostEqual(lat, pt[1], 1e-7) {
			t.Errorf("round trip (%v,%v) -> (%v,%v)", pt[0], pt[1], lon, lat)
		}
	}
}

func TestReprojectPolygonIdentity(t *testing.T) {
	poly := orb.Polygon{{{500000, 8340000}, {500100, 8340000}, {500100, 8340100}, {500000, 8340100}, {500000, 8340000}}}
	got, err := ReprojectPolygon(poly, CRS{EPSG: 32722}, CRS{EPSG: 32722})
	if err != nil {
		t.Fatalf("ReprojectPolygon: %v", err)
	}
	if !got.Equal(poly) {
		t.Errorf("identity reprojection changed geometry")
	}
	// Must be a copy, not the same backing array.
	got[0][0][0] = 0
	if poly[0][0][0] == 0 {
		t.Errorf("identity reprojection aliased the input")
	}
}

func TestReprojectPolygonPreservesArea(t *testing.T) {
	// 1 km square near the zone 22 central meridian. Projected to lon/lat
	// and back the planar area must survive. The geographic area carries
	// the spherical model's overestimate (~0.6% at this latitude) plus the
	// UTM k0 scale, so the intermediate only agrees to about a percent.
	utm := CRS{EPSG: 32722}
	geo := CRS{EPSG: 4326}
	poly := orb.Polygon{{{500000, 8340000}, {501000, 8340000}, {501000, 8341000}, {500000, 8341000}, {500000, 8340000}}}

	wgs, err := ReprojectPolygon(poly, utm, geo)
	if err != nil {
		t.Fatalf("to geographic: %v", err)
	}
	areaGeo := PolygonAreaM2(wgs, geo)
	if math.Abs(areaGeo-1e6)/1e6 > 0.01 {
		t.Errorf("geographic area = %v, want ~1e6", areaGeo)
	}

	back, err := ReprojectPolygon(wgs, geo, utm)
	if err != nil {
		t.Fatalf("back to UTM: %v", err)
	}
	areaBack := PolygonAreaM2(back, utm)
	if math.Abs(areaBack-1e6)/1e6 > 1e-4 {
		t.Errorf("round trip area = %v, want ~1e6", areaBack)
	}
}

func TestReprojectUnsupported(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	if _, err := ReprojectPolygon(poly, CRS{EPSG: 2154}, CRS{EPSG: 4326}); err == nil {
		t.Errorf("expected error for unsupported source CRS")
	}
}
