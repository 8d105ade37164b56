package field

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb"
)

// Pipeline wires the stages together: extract traces masks into a raw
// catalog, filter keeps plausible fields, ndvi annotates texture,
// evaluate scores coverage. Each stage takes and returns plain values so
// the CLI can run any prefix of the chain.
type Pipeline struct {
	Config    *Config
	Summary   *RunSummary
	Cache     *RasterCache
	Publisher *Publisher
}

// NewPipeline builds a pipeline over a validated configuration.
func NewPipeline(cfg *Config) *Pipeline {
	return &Pipeline{
		Config:  cfg,
		Summary: NewRunSummary(),
		Cache:   NewRasterCache(),
	}
}

// publish emits a stage event if a publisher is attached.
func (p *Pipeline) publish(stage string) {
	if p.Publisher != nil {
		p.Publisher.PublishStage(p.Summary.RunID, stage, p.Summary.Counts())
	}
}

// tileRasterPath resolves the georeferenced raster of a tile, e.g.
// rasters/S2_XYZ.tif. Its sidecars carry the transform and CRS the masks
// inherit.
func tileRasterPath(rastersDir, tileID string) string {
	return filepath.Join(rastersDir, tileID+".tif")
}

// Extract traces every mask archive in masksDir into a catalog. Tiles
// whose raster metadata cannot be read are skipped with a warning; a
// missing mask directory aborts. Archives are processed in parallel,
// appended under one lock, then sorted so the result is deterministic.
func (p *Pipeline) Extract(masksDir, rastersDir string) (*Catalog, error) {
	archives, err := ListMaskArchives(masksDir)
	if err != nil {
		return nil, err
	}

	cat := NewCatalog()
	var mu sync.Mutex
	var firstErr error

	ForEachParallel(len(archives), p.Config.Workers, func(i int) {
		archive := archives[i]
		tileID := TileIDFromArchive(archive)

		tile, err := ReadTileMeta(tileID, tileRasterPath(rastersDir, tileID))
		if err != nil {
			p.Summary.CountSkippedTile()
			log.Printf("extract: skipping tile %s: %v", tileID, err)
			return
		}

		masks, err := ReadMaskArchive(archive)
		if err != nil {
			p.Summary.CountSkippedTile()
			log.Printf("extract: skipping tile %s: %v", tileID, err)
			return
		}

		var polys []*FieldPolygon
		for m := range masks {
			traced, skipped := ExtractPolygons(&masks[m], tile, p.Config.Extract.MinAreaM2)
			if skipped {
				p.Summary.CountSkippedMask()
				continue
			}
			p.Summary.AddExtracted(len(traced))
			for _, poly := range traced {
				repaired, ok := RepairPolygon(poly.Geometry, poly.CRS, DefaultRepairTolerance)
				if !ok {
					p.Summary.CountRepairFailure()
					continue
				}
				poly.Geometry = SimplifyPolygon(repaired)
				poly.AreaHa = PolygonAreaHa(repaired, poly.CRS)
				p.Summary.AddRepaired(1)
				polys = append(polys, poly)
			}
		}

		mu.Lock()
		defer mu.Unlock()
		if firstErr != nil {
			return
		}
		if err := cat.AppendAll(polys); err != nil {
			firstErr = fmt.Errorf("tile %s: %w", tileID, err)
		}
	})

	if firstErr != nil {
		return nil, firstErr
	}
	cat.Sort()
	p.publish("extract")
	return cat, nil
}

// Filter applies the configured size and class-overlap criteria against
// the reference classification raster.
func (p *Pipeline) Filter(cat *Catalog, referencePath string) (*Catalog, error) {
	crit, err := p.Config.Criteria()
	if err != nil {
		return nil, err
	}

	filter := NewAttributeFilter(crit, p.Cache)
	kept := filter.Apply(cat.Polygons(), referencePath, p.Summary)

	out := NewCatalogWithCRS(cat.CRS())
	if err := out.AppendAll(kept); err != nil {
		return nil, err
	}
	p.publish("filter")
	return out, nil
}

// AnnotateNDVI attaches NDVI statistics from the per-tile reflectance
// bands and drops fields without enough valid signal.
func (p *Pipeline) AnnotateNDVI(cat *Catalog, rastersDir string) (*Catalog, error) {
	analyzer := NewTextureAnalyzer(p.Config.Bands, p.Cache)
	kept := analyzer.Annotate(cat.Polygons(), rastersDir, p.Summary)

	out := NewCatalogWithCRS(cat.CRS())
	if err := out.AppendAll(kept); err != nil {
		return nil, err
	}
	p.publish("ndvi")
	return out, nil
}

// Evaluate scores the catalog against the reference raster. aoiPath may
// be empty, meaning the full raster extent.
func (p *Pipeline) Evaluate(cat *Catalog, referencePath, aoiPath string) (*Metrics, error) {
	ref, err := p.Cache.Open(referencePath)
	if err != nil {
		return nil, err
	}

	group, err := p.Config.Group(p.Config.Filter.ClassGroup)
	if err != nil {
		return nil, err
	}

	var aoiGeom orb.MultiPolygon
	if aoiPath != "" {
		loaded, err := LoadAOI(aoiPath)
		if err != nil {
			return nil, err
		}
		aoiGeom, err = ReprojectAOI(loaded, ref.CRS)
		if err != nil {
			return nil, err
		}
	}

	metrics, err := NewCoverageEvaluator(group).Evaluate(cat, ref, aoiGeom)
	if err != nil {
		return nil, err
	}
	p.publish("evaluate")
	return metrics, nil
}
