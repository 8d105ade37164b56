package field

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// The AOI (area of interest) restricts evaluation to the ground actually
// surveyed. It arrives as GeoJSON, which is WGS84 lon/lat by definition
// (RFC 7946); callers reproject into the reference raster's frame with
// ReprojectAOI before burning it onto the grid.

// AOICRS is the CRS of every loaded AOI geometry.
var AOICRS = CRS{EPSG: 4326}

// LoadAOI reads an AOI file and returns its polygons. Accepts a
// FeatureCollection, a single Feature or a bare geometry; every Polygon
// and MultiPolygon member contributes. A missing file is a fatal input
// error; a file with no polygonal geometry is rejected.
func LoadAOI(path string) (orb.MultiPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingInputError{Kind: "AOI file", Path: path}
		}
		return nil, fmt.Errorf("reading AOI %s: %w", path, err)
	}

	var geoms []orb.Geometry
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	} else if f, err := geojson.UnmarshalFeature(data); err == nil {
		geoms = append(geoms, f.Geometry)
	} else if g, err := geojson.UnmarshalGeometry(data); err == nil {
		geoms = append(geoms, g.Geometry())
	} else {
		return nil, fmt.Errorf("parsing AOI %s: not valid GeoJSON", path)
	}

	var aoi orb.MultiPolygon
	for _, g := range geoms {
		switch geom := g.(type) {
		case orb.Polygon:
			aoi = append(aoi, geom)
		case orb.MultiPolygon:
			aoi = append(aoi, geom...)
		}
	}
	if len(aoi) == 0 {
		return nil, fmt.Errorf("AOI %s contains no polygon geometry", path)
	}
	return aoi, nil
}

// ReprojectAOI converts an AOI into the target CRS.
func ReprojectAOI(aoi orb.MultiPolygon, to CRS) (orb.MultiPolygon, error) {
	if AOICRS.Equal(to) {
		return aoi, nil
	}
	out := make(orb.MultiPolygon, len(aoi))
	for i, poly := range aoi {
		p, err := ReprojectPolygon(poly, AOICRS, to)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
