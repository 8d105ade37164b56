package field

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// CRS identifies a coordinate reference system by EPSG code. The zero
// value means "unknown".
type CRS struct {
	EPSG int
}

// ParseCRS accepts "EPSG:32721", "epsg:32721" or a bare numeric code.
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CRS{}, fmt.Errorf("empty CRS string")
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		if !strings.EqualFold(s[:i], "EPSG") {
			return CRS{}, fmt.Errorf("unsupported CRS authority %q", s[:i])
		}
		s = s[i+1:]
	}
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return CRS{}, fmt.Errorf("parsing CRS code %q: %w", s, err)
	}
	return CRS{EPSG: code}, nil
}

func (c CRS) String() string {
	if c.EPSG == 0 {
		return "EPSG:unknown"
	}
	return fmt.Sprintf("EPSG:%d", c.EPSG)
}

// Valid reports whether a CRS has been assigned.
func (c CRS) Valid() bool { return c.EPSG != 0 }

// Equal reports whether two CRS refer to the same system.
func (c CRS) Equal(o CRS) bool { return c.EPSG == o.EPSG }

// IsGeographic reports whether coordinates in this CRS are degrees of
// longitude/latitude. Covers WGS84 plus the SIRGAS 2000 and SAD69 systems
// common on South American land-cover products.
func (c CRS) IsGeographic() bool {
	switch c.EPSG {
	case 4326, 4674, 4618:
		return true
	}
	return false
}

// utmZone decodes a WGS84 UTM EPSG code. Codes 326zz are northern
// hemisphere zones, 327zz southern.
func (c CRS) utmZone() (zone int, south bool, ok bool) {
	switch {
	case c.EPSG >= 32601 && c.EPSG <= 32660:
		return c.EPSG - 32600, false, true
	case c.EPSG >= 32701 && c.EPSG <= 32760:
		return c.EPSG - 32700, true, true
	}
	return 0, false, false
}

// supported reports whether the CRS participates in reprojection.
func (c CRS) supported() bool {
	if c.IsGeographic() || c.EPSG == 3857 {
		return true
	}
	_, _, ok := c.utmZone()
	return ok
}

// ReprojectPolygon returns a new polygon with every vertex converted from
// one CRS to another. The input geometry is never modified: reprojection
// is a pure transform step, and the caller re-binds geometry, CRS and area
// together.
//
// Geographic CRSs are treated as a shared lon/lat frame; the sub-meter
// datum shifts between WGS84, SIRGAS 2000 and SAD69 are below the pixel
// sizes this pipeline works at.
func ReprojectPolygon(poly orb.Polygon, from, to CRS) (orb.Polygon, error) {
	if from.Equal(to) {
		return poly.Clone(), nil
	}
	if !from.supported() {
		return nil, fmt.Errorf("reprojection from %s not supported", from)
	}
	if !to.supported() {
		return nil, fmt.Errorf("reprojection to %s not supported", to)
	}

	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		r := make(orb.Ring, len(ring))
		for j, pt := range ring {
			lonlat, err := toLonLat(pt, from)
			if err != nil {
				return nil, err
			}
			p, err := fromLonLat(lonlat, to)
			if err != nil {
				return nil, err
			}
			r[j] = p
		}
		out[i] = r
	}
	return out, nil
}

// ReprojectPoint converts a single coordinate between CRSs.
func ReprojectPoint(pt orb.Point, from, to CRS) (orb.Point, error) {
	if from.Equal(to) {
		return pt, nil
	}
	lonlat, err := toLonLat(pt, from)
	if err != nil {
		return orb.Point{}, err
	}
	return fromLonLat(lonlat, to)
}

func toLonLat(pt orb.Point, from CRS) (orb.Point, error) {
	switch {
	case from.IsGeographic():
		return pt, nil
	case from.EPSG == 3857:
		return project.Point(pt, project.Mercator.ToWGS84), nil
	default:
		zone, south, ok := from.utmZone()
		if !ok {
			return orb.Point{}, fmt.Errorf("reprojection from %s not supported", from)
		}
		lon, lat := utmInverse(pt[0], pt[1], zone, south)
		return orb.Point{lon, lat}, nil
	}
}

func fromLonLat(pt orb.Point, to CRS) (orb.Point, error) {
	switch {
	case to.IsGeographic():
		return pt, nil
	case to.EPSG == 3857:
		return project.Point(pt, project.WGS84.ToMercator), nil
	default:
		zone, south, ok := to.utmZone()
		if !ok {
			return orb.Point{}, fmt.Errorf("reprojection to %s not supported", to)
		}
		e, n := utmForward(pt[0], pt[1], zone, south)
		return orb.Point{e, n}, nil
	}
}

// WGS84 ellipsoid and UTM constants.
const (
	wgs84A        = 6378137.0
	wgs84F        = 1.0 / 298.257223563
	utmK0         = 0.9996
	utmFalseEast  = 500000.0
	utmFalseNorth = 10000000.0
)

// utmForward converts lon/lat degrees to UTM easting/northing using the
// standard transverse Mercator series expansion.
func utmForward(lonDeg, latDeg float64, zone int, south bool) (easting, northing float64) {
	e2 := wgs84F * (2 - wgs84F)
	ep2 := e2 / (1 - e2)

	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	lon0 := float64(zone*6-183) * math.Pi / 180

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	tanLat := math.Tan(lat)

	n := wgs84A / math.Sqrt(1-e2*sinLat*sinLat)
	t := tanLat * tanLat
	c := ep2 * cosLat * cosLat
	a := cosLat * (lon - lon0)

	m := meridianArc(lat, e2)

	easting = utmK0*n*(a+(1-t+c)*a*a*a/6+
		(5-18*t+t*t+72*c-58*ep2)*a*a*a*a*a/120) + utmFalseEast

	northing = utmK0 * (m + n*tanLat*(a*a/2+
		(5-t+9*c+4*c*c)*a*a*a*a/24+
		(61-58*t+t*t+600*c-330*ep2)*a*a*a*a*a*a/720))
	if south {
		northing += utmFalseNorth
	}
	return easting, northing
}

// utmInverse converts UTM easting/northing back to lon/lat degrees.
func utmInverse(easting, northing float64, zone int, south bool) (lonDeg, latDeg float64) {
	e2 := wgs84F * (2 - wgs84F)
	ep2 := e2 / (1 - e2)
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	x := easting - utmFalseEast
	y := northing
	if south {
		y -= utmFalseNorth
	}
	lon0 := float64(zone*6-183) * math.Pi / 180

	m := y / utmK0
	mu := m / (wgs84A * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	// Footprint latitude.
	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sinPhi1 := math.Sin(phi1)
	cosPhi1 := math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := wgs84A / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := wgs84A * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := x / (n1 * utmK0)

	lat := phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d*d*d*d/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d*d*d*d*d*d/720)

	lon := lon0 + (d-(1+2*t1+c1)*d*d*d/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d*d*d*d*d/120)/cosPhi1

	return lon * 180 / math.Pi, lat * 180 / math.Pi
}

// meridianArc returns the ellipsoidal distance from the equator to the
// given latitude (radians).
func meridianArc(lat, e2 float64) float64 {
	return wgs84A * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*lat -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*lat) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*lat) -
		(35*e2*e2*e2/3072)*math.Sin(6*lat))
}
