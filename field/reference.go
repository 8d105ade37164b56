package field

import (
	"path/filepath"
	"strings"
)

// VectorizeReference traces the reference raster's class-group pixels into
// a polygon catalog. This turns the land-cover product itself into vector
// truth, useful for visual comparison against the segmentation output and
// for building training regions. The same tracer as the mask pipeline
// runs here, so reference polygons obey the identical round-trip contract.
func VectorizeReference(ref *Raster, group ClassGroup, minAreaM2 float64) (*Catalog, error) {
	mask := BinaryMask{
		TileID: referenceTileID(ref.Path),
		Index:  0,
		Width:  ref.Width,
		Height: ref.Height,
		Bits:   make([]bool, ref.Width*ref.Height),
	}
	for row := 0; row < ref.Height; row++ {
		for col := 0; col < ref.Width; col++ {
			v, _ := ref.Value(col, row)
			if !ref.IsNoData(v) && group.Contains(int(v)) {
				mask.Bits[row*ref.Width+col] = true
			}
		}
	}

	tile := Tile{
		ID:        mask.TileID,
		Transform: ref.Transform,
		CRS:       ref.CRS,
		Width:     ref.Width,
		Height:    ref.Height,
	}

	cat := NewCatalogWithCRS(ref.CRS)
	polys, skipped := ExtractPolygons(&mask, tile, minAreaM2)
	if skipped {
		return cat, nil
	}
	if err := cat.AppendAll(polys); err != nil {
		return nil, err
	}
	return cat, nil
}

func referenceTileID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
