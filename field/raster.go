package field

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/tiff"
)

// Raster is a single-band grid loaded into memory together with its
// georeferencing. Cell values are integer codes for classification rasters
// and raw digital numbers for reflectance bands.
type Raster struct {
	Path      string
	Width     int
	Height    int
	Transform Affine
	CRS       CRS
	NoData    int32
	values    []int32
}

// Value returns the cell at (col, row) and whether the coordinate is
// inside the grid.
func (r *Raster) Value(col, row int) (int32, bool) {
	if col < 0 || col >= r.Width || row < 0 || row >= r.Height {
		return 0, false
	}
	return r.values[row*r.Width+col], true
}

// IsNoData reports whether a cell value is the raster's nodata marker.
func (r *Raster) IsNoData(v int32) bool { return v == r.NoData }

// Res returns the pixel resolution along both axes in CRS units.
func (r *Raster) Res() (resX, resY float64) {
	return r.Transform.ResX(), r.Transform.ResY()
}

// Bounds returns the world-coordinate extent of the raster.
func (r *Raster) Bounds() (minX, minY, maxX, maxY float64) {
	corners := [4][2]float64{{0, 0}, {float64(r.Width), 0}, {0, float64(r.Height)}, {float64(r.Width), float64(r.Height)}}
	for i, c := range corners {
		x, y := r.Transform.Apply(c[0], c[1])
		if i == 0 || x < minX {
			minX = x
		}
		if i == 0 || x > maxX {
			maxX = x
		}
		if i == 0 || y < minY {
			minY = y
		}
		if i == 0 || y > maxY {
			maxY = y
		}
	}
	return minX, minY, maxX, maxY
}

// CenterLatitude returns the latitude at the raster center, in degrees.
// Only meaningful for geographic CRSs.
func (r *Raster) CenterLatitude() float64 {
	_, lat := r.Transform.Apply(float64(r.Width)/2, float64(r.Height)/2)
	return lat
}

// OpenRaster reads a georeferenced single-band TIFF. Pixel data comes from
// the TIFF itself; georeferencing comes from the ESRI world file (.tfw or
// .wld) and a .prj sidecar carrying the EPSG code. The file handle is
// released before returning; the decoded grid lives in memory.
func OpenRaster(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &RasterIOError{Path: path, Err: err}
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, &RasterIOError{Path: path, Err: fmt.Errorf("decoding TIFF: %w", err)}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	values := make([]int32, w*h)

	switch im := img.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				values[y*w+x] = int32(im.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	case *image.Gray16:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				values[y*w+x] = int32(im.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	case *image.Paletted:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				values[y*w+x] = int32(im.ColorIndexAt(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
	default:
		return nil, &RasterIOError{Path: path, Err: fmt.Errorf("unsupported TIFF sample format %T", img)}
	}

	transform, err := readWorldFile(path, w, h)
	if err != nil {
		return nil, &RasterIOError{Path: path, Err: err}
	}
	crs, err := readPrjSidecar(path)
	if err != nil {
		return nil, &RasterIOError{Path: path, Err: err}
	}

	return &Raster{
		Path:      path,
		Width:     w,
		Height:    h,
		Transform: transform,
		CRS:       crs,
		values:    values,
	}, nil
}

// ReadTileMeta reads only the georeferencing of a tile raster: dimensions
// from the TIFF header, transform and CRS from the sidecars. The pixel
// data is not decoded.
func ReadTileMeta(id, path string) (Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tile{}, &RasterIOError{Path: path, Err: err}
	}
	defer f.Close()

	cfg, err := tiff.DecodeConfig(f)
	if err != nil {
		return Tile{}, &RasterIOError{Path: path, Err: fmt.Errorf("decoding TIFF header: %w", err)}
	}
	transform, err := readWorldFile(path, cfg.Width, cfg.Height)
	if err != nil {
		return Tile{}, &RasterIOError{Path: path, Err: err}
	}
	crs, err := readPrjSidecar(path)
	if err != nil {
		return Tile{}, &RasterIOError{Path: path, Err: err}
	}
	return Tile{ID: id, Transform: transform, CRS: crs, Width: cfg.Width, Height: cfg.Height}, nil
}

// readWorldFile loads the six-line ESRI world file next to a raster. The
// world file anchors the *center* of the top-left pixel; the returned
// transform is corner-anchored, matching the pixel-corner convention used
// by the tracer and rasterizer.
func readWorldFile(rasterPath string, width, height int) (Affine, error) {
	var data []byte
	var err error
	for _, ext := range worldFileExtensions(rasterPath) {
		data, err = os.ReadFile(ext)
		if err == nil {
			break
		}
	}
	if err != nil {
		return Affine{}, fmt.Errorf("world file not found for %s", rasterPath)
	}

	fields := strings.Fields(string(data))
	if len(fields) < 6 {
		return Affine{}, fmt.Errorf("world file for %s has %d values, want 6", rasterPath, len(fields))
	}
	v := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v[i], err = strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return Affine{}, fmt.Errorf("world file value %d: %w", i+1, err)
		}
	}

	// World file order: x-scale, y-skew, x-skew, y-scale, center-x, center-y.
	t := Affine{A: v[0], C: v[1], B: v[2], D: v[3]}
	t.Tx = v[4] - (t.A+t.B)/2
	t.Ty = v[5] - (t.C+t.D)/2
	if t.Det() == 0 {
		return Affine{}, fmt.Errorf("world file for %s is degenerate", rasterPath)
	}
	return t, nil
}

func worldFileExtensions(rasterPath string) []string {
	base := strings.TrimSuffix(rasterPath, filepath.Ext(rasterPath))
	return []string{base + ".tfw", base + ".wld"}
}

// readPrjSidecar resolves the CRS of a raster from its .prj sidecar. The
// sidecar may hold a bare EPSG reference ("EPSG:32721") or ESRI/OGC WKT,
// from which the innermost AUTHORITY code is taken.
func readPrjSidecar(rasterPath string) (CRS, error) {
	base := strings.TrimSuffix(rasterPath, filepath.Ext(rasterPath))
	data, err := os.ReadFile(base + ".prj")
	if err != nil {
		return CRS{}, fmt.Errorf("prj sidecar not found for %s", rasterPath)
	}
	return parsePrj(string(data))
}

func parsePrj(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "[]") {
		return ParseCRS(s)
	}
	// WKT: the last AUTHORITY clause names the whole CRS.
	const marker = `AUTHORITY["EPSG",`
	idx := strings.LastIndex(s, marker)
	if idx < 0 {
		return CRS{}, fmt.Errorf("no EPSG authority in projection WKT")
	}
	rest := s[idx+len(marker):]
	rest = strings.Trim(rest, `"`)
	end := strings.IndexAny(rest, `"]`)
	if end < 0 {
		return CRS{}, fmt.Errorf("malformed EPSG authority in projection WKT")
	}
	return ParseCRS(rest[:end])
}

// RasterCache shares read-only rasters across workers for the lifetime of
// a batch. The attribute filter clips the same reference raster thousands
// of times; loading it once avoids the reopen cost.
type RasterCache struct {
	mu      sync.Mutex
	entries map[string]*Raster
	errs    map[string]error
}

// NewRasterCache creates an empty cache.
func NewRasterCache() *RasterCache {
	return &RasterCache{
		entries: make(map[string]*Raster),
		errs:    make(map[string]error),
	}
}

// Open returns the cached raster for path, loading it on first use.
// Failures are cached too, so a broken path is not retried per polygon.
func (c *RasterCache) Open(path string) (*Raster, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.entries[path]; ok {
		return r, nil
	}
	if err, ok := c.errs[path]; ok {
		return nil, err
	}
	r, err := OpenRaster(path)
	if err != nil {
		c.errs[path] = err
		return nil, err
	}
	c.entries[path] = r
	return r, nil
}
