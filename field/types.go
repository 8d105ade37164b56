package field

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
)

// Tile describes the georeferencing of one imagery patch: its identifier,
// the affine pixel-to-world transform, the coordinate reference system and
// the pixel dimensions. Tiles are produced by the external imagery pipeline
// and are immutable once read.
type Tile struct {
	ID        string
	Transform Affine
	CRS       CRS
	Width     int
	Height    int
}

// BinaryMask is a single detected object on one tile: a 2D boolean grid in
// the tile's pixel space. A tile archive typically carries many masks.
type BinaryMask struct {
	TileID string
	Index  int
	Width  int
	Height int
	Bits   []bool // row-major, len = Width*Height
}

// At reports whether the pixel at (x, y) is foreground. Out-of-bounds
// coordinates are background.
func (m *BinaryMask) At(x, y int) bool {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return false
	}
	return m.Bits[y*m.Width+x]
}

// PositiveCount returns the number of foreground pixels.
func (m *BinaryMask) PositiveCount() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Metric name constants used as attribute keys on FieldPolygon and as
// column names in the exported attribute table.
const (
	MetricOverlapPct = "class_overlap_pct"
	MetricNDVIMean   = "ndvi_mean"
	MetricNDVIStd    = "ndvi_std"
	MetricNDVICV     = "ndvi_cv"
	MetricNDVIP10    = "ndvi_p10"
	MetricNDVIP90    = "ndvi_p90"
)

// FieldPolygon is one candidate agricultural field. The ID is globally
// unique by construction: "<tileID>_<maskIndex>_<ringIndex>". Geometry and
// CRS always travel together; AreaHa is computed against the CRS of the
// current geometry and recomputed whenever the geometry is reprojected.
type FieldPolygon struct {
	ID         string
	SourceTile string
	Geometry   orb.Polygon
	CRS        CRS
	AreaHa     float64
	Metrics    map[string]float64
}

// SetMetric attaches a named scalar metric to the polygon.
func (p *FieldPolygon) SetMetric(name string, v float64) {
	if p.Metrics == nil {
		p.Metrics = make(map[string]float64)
	}
	p.Metrics[name] = v
}

// Metric returns a named metric and whether it has been attached.
func (p *FieldPolygon) Metric(name string) (float64, bool) {
	v, ok := p.Metrics[name]
	return v, ok
}

// MetricNames returns the attached metric names in sorted order, for
// deterministic attribute export.
func (p *FieldPolygon) MetricNames() []string {
	names := make([]string, 0, len(p.Metrics))
	for name := range p.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassGroup is a named set of land-cover class codes treated as equivalent
// for filtering and evaluation (e.g. "agricultura" -> soy, cane, rice, ...).
type ClassGroup struct {
	Name  string
	codes map[int]struct{}
}

// NewClassGroup builds a ClassGroup from a code list.
func NewClassGroup(name string, codes []int) ClassGroup {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return ClassGroup{Name: name, codes: set}
}

// Contains reports whether the class code belongs to the group.
func (g ClassGroup) Contains(code int) bool {
	_, ok := g.codes[code]
	return ok
}

// Codes returns the group's class codes in ascending order.
func (g ClassGroup) Codes() []int {
	out := make([]int, 0, len(g.codes))
	for c := range g.codes {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// Empty reports whether the group has no codes.
func (g ClassGroup) Empty() bool { return len(g.codes) == 0 }

// FilterCriteria parameterizes AttributeFilter. Area bounds are in hectares
// and inclusive at both ends; OverlapMinPct is the minimum percentage of a
// polygon's footprint that must fall on the target class group.
type FilterCriteria struct {
	AreaMinHa     float64
	AreaMaxHa     float64
	OverlapMinPct float64
	Group         ClassGroup
}

// Validate checks the criteria for internal consistency.
func (c FilterCriteria) Validate() error {
	if c.AreaMinHa < 0 {
		return fmt.Errorf("area_min_ha must be >= 0, got %g", c.AreaMinHa)
	}
	if c.AreaMaxHa < c.AreaMinHa {
		return fmt.Errorf("area_max_ha (%g) must be >= area_min_ha (%g)", c.AreaMaxHa, c.AreaMinHa)
	}
	if c.OverlapMinPct < 0 || c.OverlapMinPct > 100 {
		return fmt.Errorf("overlap_min_pct must be in [0,100], got %g", c.OverlapMinPct)
	}
	if c.Group.Empty() {
		return fmt.Errorf("filter class group is empty")
	}
	return nil
}

// Metrics is the corpus-level evaluation result. Recall and Precision are
// percentages in [0,100] and are 0 (never NaN) when their denominator is
// zero.
type Metrics struct {
	Recall             float64
	Precision          float64
	ReferenceAreaHa    float64
	SegmentedAreaHa    float64
	IntersectionAreaHa float64
}
