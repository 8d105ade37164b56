package field

import "math"

// Affine is a pixel-to-world geotransform:
//
//	X = A*col + B*row + Tx
//	Y = C*col + D*row + Ty
//
// (col, row) address pixel corners: (0, 0) is the outer corner of the
// top-left pixel, so pixel (i, j) covers the square [i,i+1)x[j,j+1) in
// pixel space. For the usual north-up raster B and C are zero, A is the
// x resolution and D is the negative y resolution.
type Affine struct {
	A, B, Tx float64
	C, D, Ty float64
}

// NorthUp builds the common axis-aligned transform from the world
// coordinate of the top-left raster corner and the pixel resolutions.
func NorthUp(originX, originY, resX, resY float64) Affine {
	return Affine{A: resX, B: 0, Tx: originX, C: 0, D: -resY, Ty: originY}
}

// Apply maps a pixel coordinate to world coordinates.
func (t Affine) Apply(col, row float64) (x, y float64) {
	return t.A*col + t.B*row + t.Tx, t.C*col + t.D*row + t.Ty
}

// Det returns the transform determinant. Its absolute value is the world
// area covered by one pixel.
func (t Affine) Det() float64 {
	return t.A*t.D - t.B*t.C
}

// ResX returns the world length of one pixel step along the column axis.
func (t Affine) ResX() float64 { return math.Hypot(t.A, t.C) }

// ResY returns the world length of one pixel step along the row axis.
func (t Affine) ResY() float64 { return math.Hypot(t.B, t.D) }

// Invert returns the world-to-pixel transform. A singular transform
// (degenerate raster) inverts to the zero transform; callers validate
// rasters before use, so this only arises on corrupt inputs.
func (t Affine) Invert() Affine {
	det := t.Det()
	if math.Abs(det) < 1e-12 {
		return Affine{}
	}
	inv := 1.0 / det
	return Affine{
		A:  t.D * inv,
		B:  -t.B * inv,
		Tx: (t.B*t.Ty - t.D*t.Tx) * inv,
		C:  -t.C * inv,
		D:  t.A * inv,
		Ty: (t.C*t.Tx - t.A*t.Ty) * inv,
	}
}

// Mul composes two transforms: applying the result is equivalent to
// applying u first, then t.
func (t Affine) Mul(u Affine) Affine {
	return Affine{
		A:  t.A*u.A + t.B*u.C,
		B:  t.A*u.B + t.B*u.D,
		Tx: t.A*u.Tx + t.B*u.Ty + t.Tx,
		C:  t.C*u.A + t.D*u.C,
		D:  t.C*u.B + t.D*u.D,
		Ty: t.C*u.Tx + t.D*u.Ty + t.Ty,
	}
}

// IsZero reports whether the transform is the zero value, i.e. no
// georeferencing is attached.
func (t Affine) IsZero() bool {
	return t == Affine{}
}
