package field

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
)

// writeTestRaster writes a grayscale TIFF with its .tfw and .prj sidecars.
func writeTestRaster(t *testing.T, dir, name string, values [][]uint8, tfw string, prj string) string {
	t.Helper()
	h := len(values)
	w := len(values[0])
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y, row := range values {
		for x, v := range row {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	path := filepath.Join(dir, name+".tif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating tiff: %v", err)
	}
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatalf("encoding tiff: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing tiff: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, name+".tfw"), []byte(tfw), 0o644); err != nil {
		t.Fatalf("writing tfw: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".prj"), []byte(prj), 0o644); err != nil {
		t.Fatalf("writing prj: %v", err)
	}
	return path
}

// World file anchoring the center of the top-left pixel at (100005, 8499995),
// 10 m pixels: corner at (100000, 8500000).
const testTFW = "10.0\n0.0\n0.0\n-10.0\n100005.0\n8499995.0\n"

func TestOpenRaster(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRaster(t, dir, "tile", [][]uint8{
		{18, 18, 15},
		{15, 18, 15},
	}, testTFW, "EPSG:32722\n")

	r, err := OpenRaster(path)
	if err != nil {
		t.Fatalf("OpenRaster: %v", err)
	}
	if r.Width != 3 || r.Height != 2 {
		t.Errorf("dimensions = %dx%d", r.Width, r.Height)
	}
	if r.CRS.EPSG != 32722 {
		t.Errorf("CRS = %v", r.CRS)
	}

	// Corner-anchored transform.
	x, y := r.Transform.Apply(0, 0)
	if x != 100000 || y != 8500000 {
		t.Errorf("corner = (%v, %v), want (100000, 8500000)", x, y)
	}

	if v, ok := r.Value(0, 0); !ok || v != 18 {
		t.Errorf("value(0,0) = %v, %v", v, ok)
	}
	if v, ok := r.Value(2, 1); !ok || v != 15 {
		t.Errorf("value(2,1) = %v, %v", v, ok)
	}
	if _, ok := r.Value(3, 0); ok {
		t.Errorf("out-of-bounds read succeeded")
	}
	if !r.IsNoData(0) || r.IsNoData(18) {
		t.Errorf("nodata check wrong")
	}
}

func TestOpenRasterMissingSidecars(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRaster(t, dir, "tile", [][]uint8{{1}}, testTFW, "EPSG:32722\n")
	if err := os.Remove(filepath.Join(dir, "tile.tfw")); err != nil {
		t.Fatalf("removing tfw: %v", err)
	}

	_, err := OpenRaster(path)
	var ioErr *RasterIOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("got %v, want RasterIOError", err)
	}
}

func TestReadTileMeta(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRaster(t, dir, "S2_021015", [][]uint8{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
	}, testTFW, "EPSG:32722\n")

	tile, err := ReadTileMeta("S2_021015", path)
	if err != nil {
		t.Fatalf("ReadTileMeta: %v", err)
	}
	if tile.Width != 4 || tile.Height != 2 {
		t.Errorf("dimensions = %dx%d", tile.Width, tile.Height)
	}
	if tile.CRS.EPSG != 32722 {
		t.Errorf("CRS = %v", tile.CRS)
	}
	if x, y := tile.Transform.Apply(0, 0); x != 100000 || y != 8500000 {
		t.Errorf("corner = (%v, %v)", x, y)
	}
}

func TestParsePrjWKT(t *testing.T) {
	wkt := `PROJCS["WGS 84 / UTM zone 22S",GEOGCS["WGS 84",DATUM["WGS_1984",` +
		`SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],` +
		`AUTHORITY["EPSG","6326"]],AUTHORITY["EPSG","4326"]],` +
		`PROJECTION["Transverse_Mercator"],AUTHORITY["EPSG","32722"]]`

	crs, err := parsePrj(wkt)
	if err != nil {
		t.Fatalf("parsePrj: %v", err)
	}
	if crs.EPSG != 32722 {
		t.Errorf("CRS = %v, want EPSG:32722", crs)
	}
}

func TestParsePrjBare(t *testing.T) {
	crs, err := parsePrj("EPSG:4674\n")
	if err != nil {
		t.Fatalf("parsePrj: %v", err)
	}
	if crs.EPSG != 4674 {
		t.Errorf("CRS = %v", crs)
	}
}

func TestRasterCacheCachesFailures(t *testing.T) {
	cache := NewRasterCache()
	missing := filepath.Join(t.TempDir(), "absent.tif")

	_, err1 := cache.Open(missing)
	if err1 == nil {
		t.Fatalf("missing raster opened")
	}
	_, err2 := cache.Open(missing)
	if err2 != err1 {
		t.Errorf("failure not cached: %v vs %v", err1, err2)
	}
}

func TestRasterCacheSharesInstance(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRaster(t, dir, "tile", [][]uint8{{1}}, testTFW, "EPSG:32722\n")

	cache := NewRasterCache()
	a, err := cache.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, err := cache.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if a != b {
		t.Errorf("cache returned distinct instances")
	}
}
