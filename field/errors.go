package field

import (
	"errors"
	"fmt"
)

// The pipeline distinguishes failures by scope. Anything scoped to a
// single unit (tile, mask, polygon) is counted and skipped; only missing
// required inputs and a zero reference-area denominator abort a stage.

// MissingInputError is fatal to a stage: a required top-level input (mask
// directory, reference raster, AOI file) is absent.
type MissingInputError struct {
	Kind string
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing required %s: %s", e.Kind, e.Path)
}

// RasterIOError is a per-tile or per-polygon failure while opening or
// reading a raster. The unit is skipped and counted; the batch continues.
type RasterIOError struct {
	Path string
	Err  error
}

func (e *RasterIOError) Error() string {
	return fmt.Sprintf("raster i/o on %s: %v", e.Path, e.Err)
}

func (e *RasterIOError) Unwrap() error { return e.Err }

// ReferenceAreaZeroError is fatal to the evaluation stage only: the AOI
// contains no reference-class area, so recall is undefined. It is distinct
// from an empty polygon catalog, which evaluates to zero metrics instead.
type ReferenceAreaZeroError struct {
	Group string
}

func (e *ReferenceAreaZeroError) Error() string {
	return fmt.Sprintf("reference raster has no %q area inside the AOI", e.Group)
}

// ErrEmptyResult signals that a stage completed without producing any
// feature. Downstream packaging is skipped and the condition is surfaced
// to the caller (distinct process exit status), not treated as success.
var ErrEmptyResult = errors.New("stage produced no features")

// ErrNoOverlap marks a clip request whose geometry does not intersect the
// raster at all. It is a recoverable condition: the caller treats it as a
// zero contribution.
var ErrNoOverlap = errors.New("geometry does not overlap raster")
