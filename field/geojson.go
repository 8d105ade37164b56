package field

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Export: the catalog leaves the pipeline as GeoJSON plus the sidecars GIS
// tools expect, bundled into one zip per run. Feature order and property
// keys are deterministic so reruns produce byte-identical archives.

// ExportFeatureCollection converts the catalog into a GeoJSON feature
// collection sorted by feature ID.
func ExportFeatureCollection(cat *Catalog) *geojson.FeatureCollection {
	cat.Sort()
	fc := geojson.NewFeatureCollection()
	for _, p := range cat.Polygons() {
		f := geojson.NewFeature(p.Geometry)
		f.ID = p.ID
		f.Properties["id"] = p.ID
		f.Properties["source_tile"] = p.SourceTile
		f.Properties["area_ha"] = p.AreaHa
		for _, name := range p.MetricNames() {
			f.Properties[name] = p.Metrics[name]
		}
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes the catalog to a .geojson file plus a .prj sidecar
// naming the CRS, since the coordinates stay in the catalog's native
// frame. An empty catalog is not written: the caller gets ErrEmptyResult
// and decides how to surface it.
func WriteGeoJSON(cat *Catalog, path string) error {
	if cat.Len() == 0 {
		return ErrEmptyResult
	}
	data, err := ExportFeatureCollection(cat).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding GeoJSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if err := os.WriteFile(prj, []byte(cat.CRS().String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", prj, err)
	}
	return nil
}

// ReadGeoJSON loads a catalog previously written by WriteGeoJSON. The CRS
// comes from the .prj sidecar; without one the coordinates are taken as
// WGS84 per the GeoJSON spec.
func ReadGeoJSON(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingInputError{Kind: "catalog file", Path: path}
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	crs := CRS{EPSG: 4326}
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if sidecar, err := os.ReadFile(prj); err == nil {
		if parsed, err := parsePrj(string(sidecar)); err == nil {
			crs = parsed
		}
	}

	cat := NewCatalogWithCRS(crs)
	for i, f := range fc.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			continue
		}
		p := &FieldPolygon{
			ID:       fmt.Sprintf("feature_%d", i),
			Geometry: poly,
			CRS:      crs,
			AreaHa:   PolygonAreaHa(poly, crs),
		}
		for key, raw := range f.Properties {
			switch key {
			case "id":
				if s, ok := raw.(string); ok {
					p.ID = s
				}
			case "source_tile":
				if s, ok := raw.(string); ok {
					p.SourceTile = s
				}
			case "area_ha":
				if v, ok := toFloat(raw); ok {
					p.AreaHa = v
				}
			default:
				if v, ok := toFloat(raw); ok {
					p.SetMetric(key, v)
				}
			}
		}
		if err := cat.Append(p); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path, err)
		}
	}
	return cat, nil
}

func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// WritePackage bundles the catalog into a zip archive holding the GeoJSON
// plus .prj and .cpg sidecars, named after the archive base name.
func WritePackage(cat *Catalog, path string) error {
	if cat.Len() == 0 {
		return ErrEmptyResult
	}
	data, err := ExportFeatureCollection(cat).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding GeoJSON: %w", err)
	}

	var buf bytes.Buffer
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	zw := zip.NewWriter(&buf)
	entries := []struct {
		name string
		body []byte
	}{
		{base + ".geojson", data},
		{base + ".prj", []byte(cat.CRS().String() + "\n")},
		{base + ".cpg", []byte("UTF-8\n")},
	}
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", e.name, err)
		}
		if _, err := w.Write(e.body); err != nil {
			return fmt.Errorf("zip entry %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing zip %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
