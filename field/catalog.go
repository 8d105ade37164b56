package field

import (
	"fmt"
	"sort"
)

// Catalog collects field polygons from many tiles into one coherent set.
// The first appended polygon fixes the catalog's canonical CRS; later
// polygons arriving in a different CRS are reprojected on entry and their
// area recomputed, so geometry, CRS and area never drift apart. Feature
// IDs are unique across the whole catalog.
type Catalog struct {
	crs   CRS
	polys []*FieldPolygon
	ids   map[string]struct{}
}

// NewCatalog creates an empty catalog. The CRS is fixed by the first
// Append.
func NewCatalog() *Catalog {
	return &Catalog{ids: make(map[string]struct{})}
}

// NewCatalogWithCRS creates an empty catalog pinned to a CRS up front.
func NewCatalogWithCRS(crs CRS) *Catalog {
	return &Catalog{crs: crs, ids: make(map[string]struct{})}
}

// CRS returns the canonical CRS. Zero until the first polygon arrives on
// a catalog built with NewCatalog.
func (c *Catalog) CRS() CRS { return c.crs }

// Len returns the number of polygons held.
func (c *Catalog) Len() int { return len(c.polys) }

// Polygons returns the backing slice. Callers must not reorder it while
// workers are still appending.
func (c *Catalog) Polygons() []*FieldPolygon { return c.polys }

// Append adds one polygon, reprojecting into the canonical CRS when
// needed. A duplicate ID is a programming error upstream and is rejected.
func (c *Catalog) Append(p *FieldPolygon) error {
	if _, dup := c.ids[p.ID]; dup {
		return fmt.Errorf("duplicate feature id %q", p.ID)
	}
	if !c.crs.Valid() {
		c.crs = p.CRS
	}
	if !p.CRS.Equal(c.crs) {
		geom, err := ReprojectPolygon(p.Geometry, p.CRS, c.crs)
		if err != nil {
			return fmt.Errorf("feature %s: %w", p.ID, err)
		}
		q := *p
		q.Geometry = geom
		q.CRS = c.crs
		q.AreaHa = PolygonAreaHa(geom, c.crs)
		p = &q
	}
	c.ids[p.ID] = struct{}{}
	c.polys = append(c.polys, p)
	return nil
}

// AppendAll adds a batch of polygons, stopping at the first failure.
func (c *Catalog) AppendAll(ps []*FieldPolygon) error {
	for _, p := range ps {
		if err := c.Append(p); err != nil {
			return err
		}
	}
	return nil
}

// Reproject converts the whole catalog to a new canonical CRS, recomputing
// every area. Used before evaluation so catalog and reference raster share
// a frame.
func (c *Catalog) Reproject(to CRS) error {
	if !to.Valid() {
		return fmt.Errorf("reproject target CRS is unset")
	}
	if c.crs.Equal(to) || len(c.polys) == 0 {
		c.crs = to
		return nil
	}
	for _, p := range c.polys {
		geom, err := ReprojectPolygon(p.Geometry, p.CRS, to)
		if err != nil {
			return fmt.Errorf("feature %s: %w", p.ID, err)
		}
		p.Geometry = geom
		p.CRS = to
		p.AreaHa = PolygonAreaHa(geom, to)
	}
	c.crs = to
	return nil
}

// Sort orders polygons by ID for deterministic export.
func (c *Catalog) Sort() {
	sort.Slice(c.polys, func(i, j int) bool { return c.polys[i].ID < c.polys[j].ID })
}

// TotalAreaHa sums the area of every polygon.
func (c *Catalog) TotalAreaHa() float64 {
	sum := 0.0
	for _, p := range c.polys {
		sum += p.AreaHa
	}
	return sum
}
