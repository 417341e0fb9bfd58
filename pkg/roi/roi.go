// Package roi derives a 3D bounding box from two user-drawn 2D
// rectangles. Each rectangle is drawn on one axial slice; the two slice
// indices become the Z-bounding planes of the combined box, and the X/Y
// extents are the union of the two rectangles' extents.
package roi

import (
	"errors"
	"fmt"

	"volseg/pkg/volume"
)

// ErrMissingRoi is returned by Combine when one or both rectangles have
// not been set.
var ErrMissingRoi = errors.New("roi: both rectangles must be set")

// MinRectSize is the smallest rectangle extent, in voxels, accepted by
// the interactive drawing layer. Rectangles narrower than this on either
// axis never reach the combiner.
const MinRectSize = 5

// Rect is one user-drawn axis-aligned rectangle, tagged with the axial
// slice it was drawn on. Bounds are inclusive voxel indices.
type Rect struct {
	Slice int
	XMin  int
	XMax  int
	YMin  int
	YMax  int
}

// LargeEnough reports whether the rectangle meets the minimum drawing
// size on both axes.
func (r Rect) LargeEnough() bool {
	return r.XMax-r.XMin >= MinRectSize && r.YMax-r.YMin >= MinRectSize
}

func (r Rect) String() string {
	return fmt.Sprintf("z=%d, x=[%d:%d], y=[%d:%d]", r.Slice, r.XMin, r.XMax, r.YMin, r.YMax)
}

// Box is a 3D bounding box with inclusive bounds on every axis, clipped
// to the volume grid and normalized so lo ≤ hi per axis.
type Box struct {
	Z0, Z1 int
	Y0, Y1 int
	X0, X1 int
}

// Shape returns the grid dimensions of the box.
func (b Box) Shape() volume.Shape {
	return volume.Shape{Z: b.Z1 - b.Z0 + 1, Y: b.Y1 - b.Y0 + 1, X: b.X1 - b.X0 + 1}
}

func (b Box) String() string {
	return fmt.Sprintf("z=[%d:%d], y=[%d:%d], x=[%d:%d]", b.Z0, b.Z1, b.Y0, b.Y1, b.X0, b.X1)
}

// Combiner holds up to two rectangles and merges them into one Box.
// The zero value is ready to use.
type Combiner struct {
	first  *Rect
	second *Rect
}

// SetFirst records the first rectangle, replacing any previous one.
func (c *Combiner) SetFirst(r Rect) {
	c.first = &r
}

// SetSecond records the second rectangle, replacing any previous one.
func (c *Combiner) SetSecond(r Rect) {
	c.second = &r
}

// Reset forgets both rectangles.
func (c *Combiner) Reset() {
	c.first = nil
	c.second = nil
}

// HasBoth reports whether both rectangles have been set.
func (c *Combiner) HasBoth() bool {
	return c.first != nil && c.second != nil
}

// Combine merges the two rectangles into a 3D box clipped to the given
// volume shape. X/Y extents are the union of the rectangle extents; the
// Z extent spans the two drawn slices. Combine is commutative in the two
// rectangles and always yields 0 ≤ lo ≤ hi < dim on every axis, even for
// rectangles that lie partly or wholly outside the grid.
func (c *Combiner) Combine(shape volume.Shape) (Box, error) {
	if !c.HasBoth() {
		return Box{}, ErrMissingRoi
	}
	b := Box{
		X0: min(c.first.XMin, c.second.XMin),
		X1: max(c.first.XMax, c.second.XMax),
		Y0: min(c.first.YMin, c.second.YMin),
		Y1: max(c.first.YMax, c.second.YMax),
		Z0: min(c.first.Slice, c.second.Slice),
		Z1: max(c.first.Slice, c.second.Slice),
	}
	// Guard against inverted input rectangles before clipping.
	b.X0, b.X1 = min(b.X0, b.X1), max(b.X0, b.X1)
	b.Y0, b.Y1 = min(b.Y0, b.Y1), max(b.Y0, b.Y1)

	b.Z0 = clamp(b.Z0, 0, shape.Z-1)
	b.Z1 = clamp(b.Z1, 0, shape.Z-1)
	b.Y0 = clamp(b.Y0, 0, shape.Y-1)
	b.Y1 = clamp(b.Y1, 0, shape.Y-1)
	b.X0 = clamp(b.X0, 0, shape.X-1)
	b.X1 = clamp(b.X1, 0, shape.X-1)
	return b, nil
}

// Describe returns a short human-readable summary of the stored
// rectangles for status displays.
func (c *Combiner) Describe() string {
	if c.first == nil && c.second == nil {
		return "no ROI defined"
	}
	out := ""
	if c.first != nil {
		out += fmt.Sprintf("ROI1: %s", c.first)
	}
	if c.second != nil {
		if out != "" {
			out += "\n"
		}
		out += fmt.Sprintf("ROI2: %s", c.second)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
