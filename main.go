package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kwv/fieldseg/field"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile = flag.String("config", "", "Path to YAML configuration file (defaults built in)")
	masksDir   = flag.String("masks-dir", "masks", "Directory of <tileID>_masks.zip archives")
	rastersDir = flag.String("rasters-dir", "rasters", "Directory of tile rasters and band files")
	reference  = flag.String("reference", "", "Reference land-cover classification raster (TIFF)")
	aoiFile    = flag.String("aoi", "", "AOI GeoJSON restricting evaluation")
	inputFile  = flag.String("input", "", "Input catalog GeoJSON for single-stage modes")
	outputFile = flag.String("output", "fields.geojson", "Output catalog path (.geojson, or .zip for a package)")
	renderFile = flag.String("render", "", "Also write a quicklook (.svg or .png)")
	reportFile = flag.String("report", "", "Also write an HTML run report")
	force      = flag.Bool("force", false, "Overwrite existing outputs instead of skipping")
	workers    = flag.Int("workers", 0, "Worker goroutines (0 = one per CPU)")

	areaMin    = flag.Float64("area-min", -1, "Override minimum field area in hectares")
	areaMax    = flag.Float64("area-max", -1, "Override maximum field area in hectares")
	overlapMin = flag.Float64("overlap-min", -1, "Override minimum class overlap percent")
	classGroup = flag.String("class-group", "", "Override filter/evaluation class group")

	extractMode  = flag.Bool("extract", false, "Trace mask archives into a raw catalog and exit")
	filterMode   = flag.Bool("filter", false, "Filter an input catalog by size and class overlap")
	ndviMode     = flag.Bool("ndvi", false, "Annotate an input catalog with NDVI statistics")
	evaluateMode = flag.Bool("evaluate", false, "Score an input catalog against the reference raster")
	vectorizeRef = flag.Bool("vectorize-ref", false, "Trace the reference raster's class group into polygons")
	allMode      = flag.Bool("all", false, "Run extract, filter, ndvi and evaluate in sequence")
)

func main() {
	flag.Parse()
	fmt.Printf("fieldseg version: %s\n", Version)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pipe := field.NewPipeline(cfg)
	pub, err := field.ConnectPublisher(cfg.MQTT)
	if err != nil {
		log.Printf("Warning: %v (continuing without progress events)", err)
	} else {
		pipe.Publisher = pub
		defer pub.Disconnect()
	}

	switch {
	case *extractMode:
		err = runExtract(pipe)
	case *filterMode:
		err = runFilter(pipe)
	case *ndviMode:
		err = runNDVI(pipe)
	case *evaluateMode:
		err = runEvaluate(pipe)
	case *vectorizeRef:
		err = runVectorizeRef(pipe)
	case *allMode:
		err = runAll(pipe)
	default:
		fmt.Println("Select a mode:")
		fmt.Println("  --extract        trace mask archives into a raw catalog")
		fmt.Println("  --filter         filter a catalog by size and class overlap")
		fmt.Println("  --ndvi           annotate a catalog with NDVI statistics")
		fmt.Println("  --evaluate       score a catalog against the reference raster")
		fmt.Println("  --vectorize-ref  trace the reference class group into polygons")
		fmt.Println("  --all            run the full pipeline")
		os.Exit(1)
	}

	pipe.Summary.Log()
	if err != nil {
		if errors.Is(err, field.ErrEmptyResult) {
			log.Printf("no features survived: %v", err)
			os.Exit(2)
		}
		log.Fatalf("Error: %v", err)
	}
}

// loadConfig resolves the effective configuration: file or defaults, then
// CLI overrides on top.
func loadConfig() (*field.Config, error) {
	cfg := field.DefaultConfig()
	if *configFile != "" {
		loaded, err := field.LoadConfig(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *areaMin >= 0 {
		cfg.Filter.AreaMinHa = *areaMin
	}
	if *areaMax >= 0 {
		cfg.Filter.AreaMaxHa = *areaMax
	}
	if *overlapMin >= 0 {
		cfg.Filter.OverlapMinPct = *overlapMin
	}
	if *classGroup != "" {
		cfg.Filter.ClassGroup = *classGroup
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	return cfg, cfg.Validate()
}

// outputExists implements idempotent reruns: an existing output is left
// alone unless --force is given.
func outputExists(path string) bool {
	if *force {
		return false
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Output %s already exists, skipping (use --force to overwrite)\n", path)
		return true
	}
	return false
}

// writeCatalog writes either a bare GeoJSON or a zip package, by
// extension.
func writeCatalog(cat *field.Catalog, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return field.WritePackage(cat, path)
	}
	return field.WriteGeoJSON(cat, path)
}

// writeExtras renders the optional quicklook and report.
func writeExtras(pipe *field.Pipeline, cat *field.Catalog, metrics *field.Metrics) error {
	if *renderFile != "" {
		if err := field.NewQuicklookRenderer().RenderFile(cat, *renderFile); err != nil {
			return fmt.Errorf("quicklook: %w", err)
		}
		fmt.Printf("Created quicklook: %s\n", *renderFile)
	}
	if *reportFile != "" {
		if err := field.WriteReport(*reportFile, cat, metrics, pipe.Summary); err != nil {
			return fmt.Errorf("report: %w", err)
		}
		fmt.Printf("Created report: %s\n", *reportFile)
	}
	return nil
}

// catalogStats summarizes a catalog for stage logging.
func catalogStats(cat *field.Catalog) string {
	total := cat.TotalAreaHa()
	mean := 0.0
	if cat.Len() > 0 {
		mean = total / float64(cat.Len())
	}
	return fmt.Sprintf("%d fields, %.1f ha total, %.1f ha mean", cat.Len(), total, mean)
}

func readInputCatalog() (*field.Catalog, error) {
	if *inputFile == "" {
		return nil, fmt.Errorf("--input catalog is required for this mode")
	}
	return field.ReadGeoJSON(*inputFile)
}

func runExtract(pipe *field.Pipeline) error {
	if outputExists(*outputFile) {
		return nil
	}
	cat, err := pipe.Extract(*masksDir, *rastersDir)
	if err != nil {
		return err
	}
	pipe.Summary.SetFinal(cat.Len())
	if err := writeCatalog(cat, *outputFile); err != nil {
		return err
	}
	fmt.Printf("Extracted %s -> %s\n", catalogStats(cat), *outputFile)
	return writeExtras(pipe, cat, nil)
}

func runFilter(pipe *field.Pipeline) error {
	if *reference == "" {
		return fmt.Errorf("--reference raster is required for --filter")
	}
	if outputExists(*outputFile) {
		return nil
	}
	cat, err := readInputCatalog()
	if err != nil {
		return err
	}
	filtered, err := pipe.Filter(cat, *reference)
	if err != nil {
		return err
	}
	pipe.Summary.SetFinal(filtered.Len())
	if err := writeCatalog(filtered, *outputFile); err != nil {
		return err
	}
	fmt.Printf("Filtered %d -> %s -> %s\n", cat.Len(), catalogStats(filtered), *outputFile)
	return writeExtras(pipe, filtered, nil)
}

func runNDVI(pipe *field.Pipeline) error {
	if outputExists(*outputFile) {
		return nil
	}
	cat, err := readInputCatalog()
	if err != nil {
		return err
	}
	annotated, err := pipe.AnnotateNDVI(cat, *rastersDir)
	if err != nil {
		return err
	}
	pipe.Summary.SetFinal(annotated.Len())
	if err := writeCatalog(annotated, *outputFile); err != nil {
		return err
	}
	fmt.Printf("Annotated with NDVI: %s -> %s\n", catalogStats(annotated), *outputFile)
	return writeExtras(pipe, annotated, nil)
}

func runEvaluate(pipe *field.Pipeline) error {
	if *reference == "" {
		return fmt.Errorf("--reference raster is required for --evaluate")
	}
	cat, err := readInputCatalog()
	if err != nil {
		return err
	}
	metrics, err := pipe.Evaluate(cat, *reference, *aoiFile)
	if err != nil {
		return err
	}
	printMetrics(metrics)
	return writeExtras(pipe, cat, metrics)
}

func runVectorizeRef(pipe *field.Pipeline) error {
	if *reference == "" {
		return fmt.Errorf("--reference raster is required for --vectorize-ref")
	}
	if outputExists(*outputFile) {
		return nil
	}
	ref, err := pipe.Cache.Open(*reference)
	if err != nil {
		return err
	}
	group, err := pipe.Config.Group(pipe.Config.Filter.ClassGroup)
	if err != nil {
		return err
	}
	cat, err := field.VectorizeReference(ref, group, pipe.Config.Extract.MinAreaM2)
	if err != nil {
		return err
	}
	pipe.Summary.SetFinal(cat.Len())
	if err := writeCatalog(cat, *outputFile); err != nil {
		return err
	}
	fmt.Printf("Vectorized reference: %s -> %s\n", catalogStats(cat), *outputFile)
	return writeExtras(pipe, cat, nil)
}

func runAll(pipe *field.Pipeline) error {
	if *reference == "" {
		return fmt.Errorf("--reference raster is required for --all")
	}
	if outputExists(*outputFile) {
		return nil
	}

	cat, err := pipe.Extract(*masksDir, *rastersDir)
	if err != nil {
		return err
	}
	fmt.Printf("Extracted %s\n", catalogStats(cat))

	cat, err = pipe.Filter(cat, *reference)
	if err != nil {
		return err
	}
	fmt.Printf("Filter kept %s\n", catalogStats(cat))

	cat, err = pipe.AnnotateNDVI(cat, *rastersDir)
	if err != nil {
		return err
	}
	fmt.Printf("NDVI annotated %d fields\n", cat.Len())

	pipe.Summary.SetFinal(cat.Len())

	metrics, err := pipe.Evaluate(cat, *reference, *aoiFile)
	if err != nil {
		return err
	}
	printMetrics(metrics)

	if err := writeCatalog(cat, *outputFile); err != nil {
		return err
	}
	fmt.Printf("Wrote catalog: %s\n", *outputFile)
	return writeExtras(pipe, cat, metrics)
}

func printMetrics(m *field.Metrics) {
	fmt.Println("Coverage:")
	fmt.Printf("  recall:       %6.2f %%\n", m.Recall)
	fmt.Printf("  precision:    %6.2f %%\n", m.Precision)
	fmt.Printf("  reference:    %10.2f ha\n", m.ReferenceAreaHa)
	fmt.Printf("  segmented:    %10.2f ha\n", m.SegmentedAreaHa)
	fmt.Printf("  intersection: %10.2f ha\n", m.IntersectionAreaHa)
}
