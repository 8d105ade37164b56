package field

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// RunSummary accumulates per-unit outcomes across a batch. All counters
// are safe for concurrent use by pool workers; nothing is silently
// discarded without a count landing here.
type RunSummary struct {
	RunID string

	mu             sync.Mutex
	extracted      int
	repaired       int
	droppedRepair  int
	droppedSize    int
	droppedOverlap int
	droppedNoStats int
	skippedTiles   int
	skippedMasks   int
	rasterFailures int
	final          int
}

// NewRunSummary creates a summary with a fresh run identifier.
func NewRunSummary() *RunSummary {
	return &RunSummary{RunID: uuid.NewString()}
}

func (s *RunSummary) add(field *int, n int) {
	s.mu.Lock()
	*field += n
	s.mu.Unlock()
}

// AddExtracted records n successfully traced polygons.
func (s *RunSummary) AddExtracted(n int) { s.add(&s.extracted, n) }

// AddRepaired records n polygons that passed validity repair.
func (s *RunSummary) AddRepaired(n int) { s.add(&s.repaired, n) }

// CountRepairFailure records one polygon dropped by GeometryRepairer.
func (s *RunSummary) CountRepairFailure() { s.add(&s.droppedRepair, 1) }

// CountDroppedSize records one polygon outside the area band.
func (s *RunSummary) CountDroppedSize() { s.add(&s.droppedSize, 1) }

// CountDroppedOverlap records one polygon below the class-overlap minimum.
func (s *RunSummary) CountDroppedOverlap() { s.add(&s.droppedOverlap, 1) }

// CountDroppedNoStats records one polygon excluded for missing NDVI stats.
func (s *RunSummary) CountDroppedNoStats() { s.add(&s.droppedNoStats, 1) }

// CountSkippedTile records one tile skipped (missing raster metadata etc.).
func (s *RunSummary) CountSkippedTile() { s.add(&s.skippedTiles, 1) }

// CountSkippedMask records one mask skipped (no positive pixels).
func (s *RunSummary) CountSkippedMask() { s.add(&s.skippedMasks, 1) }

// CountRasterFailure records one recoverable raster I/O failure.
func (s *RunSummary) CountRasterFailure() { s.add(&s.rasterFailures, 1) }

// SetFinal records the surviving feature count of the batch.
func (s *RunSummary) SetFinal(n int) {
	s.mu.Lock()
	s.final = n
	s.mu.Unlock()
}

// Counts returns a snapshot of all counters keyed by name.
func (s *RunSummary) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		"extracted":       s.extracted,
		"repaired":        s.repaired,
		"dropped_repair":  s.droppedRepair,
		"dropped_size":    s.droppedSize,
		"dropped_overlap": s.droppedOverlap,
		"dropped_nostats": s.droppedNoStats,
		"skipped_tiles":   s.skippedTiles,
		"skipped_masks":   s.skippedMasks,
		"raster_failures": s.rasterFailures,
		"final":           s.final,
	}
}

// Final returns the surviving feature count.
func (s *RunSummary) Final() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final
}

// Log writes the summary through the standard logger.
func (s *RunSummary) Log() {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Printf("run %s: extracted=%d repaired=%d dropped(repair=%d size=%d overlap=%d nostats=%d) skipped(tiles=%d masks=%d) raster_failures=%d final=%d",
		s.RunID, s.extracted, s.repaired, s.droppedRepair, s.droppedSize,
		s.droppedOverlap, s.droppedNoStats, s.skippedTiles, s.skippedMasks,
		s.rasterFailures, s.final)
}
