// Package volume provides the voxel-grid data model shared by the
// segmentation and refinement pipelines: an immutable scalar intensity
// volume, a mutable binary mask, and the geometry metadata (spacing,
// origin, direction) that ties voxel indices to physical space.
package volume

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when a mask and a volume with different
// grid dimensions are combined.
var ErrShapeMismatch = errors.New("volume: mask and volume shapes differ")

// Shape holds the grid dimensions in (depth, height, width) order,
// matching the slice-major layout of CT/MRI series.
type Shape struct {
	Z, Y, X int
}

// Len returns the total number of voxels in the grid.
func (s Shape) Len() int {
	return s.Z * s.Y * s.X
}

// Equal reports whether two shapes describe the same grid.
func (s Shape) Equal(o Shape) bool {
	return s.Z == o.Z && s.Y == o.Y && s.X == o.X
}

// Index converts (z, y, x) coordinates to a flat row-major index.
func (s Shape) Index(z, y, x int) int {
	return z*s.Y*s.X + y*s.X + x
}

// Contains reports whether (z, y, x) lies inside the grid bounds.
func (s Shape) Contains(z, y, x int) bool {
	return z >= 0 && z < s.Z && y >= 0 && y < s.Y && x >= 0 && x < s.X
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.Z, s.Y, s.X)
}

// Spacing is the physical size of one voxel in mm along each axis.
type Spacing struct {
	X, Y, Z float64
}

// VoxelVolume returns the physical volume of a single voxel in mm³.
func (sp Spacing) VoxelVolume() float64 {
	return sp.X * sp.Y * sp.Z
}

// Origin is the physical coordinate of the first voxel in mm.
type Origin struct {
	X, Y, Z float64
}

// Direction is a 3x3 orientation matrix stored row-major, mapping voxel
// axes to physical axes.
type Direction [9]float64

// IdentityDirection is the axis-aligned orientation.
var IdentityDirection = Direction{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Volume is a 3D scalar intensity grid (Hounsfield-like units for CT
// data). The data is stored flat in row-major order, indexed as
// z*Y*X + y*X + x. A Volume is treated as immutable once loaded; the
// processing pipelines only ever read it.
type Volume struct {
	Data      []float64
	Shape     Shape
	Spacing   Spacing
	Origin    Origin
	Direction Direction
}

// NewVolume allocates a zero-filled volume with the given geometry.
func NewVolume(shape Shape, spacing Spacing, origin Origin, direction Direction) *Volume {
	return &Volume{
		Data:      make([]float64, shape.Len()),
		Shape:     shape,
		Spacing:   spacing,
		Origin:    origin,
		Direction: direction,
	}
}

// At returns the intensity at (z, y, x). Bounds are not checked.
func (v *Volume) At(z, y, x int) float64 {
	return v.Data[v.Shape.Index(z, y, x)]
}

// Extract copies the inclusive sub-grid [z0:z1, y0:y1, x0:x1] into a new
// volume. The sub-volume's origin is shifted along the direction matrix
// so physical coordinates are preserved.
func (v *Volume) Extract(z0, z1, y0, y1, x0, x1 int) *Volume {
	shape := Shape{Z: z1 - z0 + 1, Y: y1 - y0 + 1, X: x1 - x0 + 1}
	sub := NewVolume(shape, v.Spacing, v.offsetOrigin(z0, y0, x0), v.Direction)
	for z := 0; z < shape.Z; z++ {
		for y := 0; y < shape.Y; y++ {
			srcRow := v.Shape.Index(z0+z, y0+y, x0)
			dstRow := shape.Index(z, y, 0)
			copy(sub.Data[dstRow:dstRow+shape.X], v.Data[srcRow:srcRow+shape.X])
		}
	}
	return sub
}

// offsetOrigin translates the origin to the physical position of voxel
// (z0, y0, x0), applying the direction matrix to the voxel offset.
func (v *Volume) offsetOrigin(z0, y0, x0 int) Origin {
	dx := float64(x0) * v.Spacing.X
	dy := float64(y0) * v.Spacing.Y
	dz := float64(z0) * v.Spacing.Z
	d := v.Direction
	return Origin{
		X: v.Origin.X + d[0]*dx + d[1]*dy + d[2]*dz,
		Y: v.Origin.Y + d[3]*dx + d[4]*dy + d[5]*dz,
		Z: v.Origin.Z + d[6]*dx + d[7]*dy + d[8]*dz,
	}
}

// SliceZ copies the XY plane at depth z into a flat []float64 of length
// Y*X. Slice browsing in a viewer works off these planes.
func (v *Volume) SliceZ(z int) ([]float64, error) {
	if z < 0 || z >= v.Shape.Z {
		return nil, fmt.Errorf("volume: slice %d exceeds depth %d", z, v.Shape.Z)
	}
	plane := make([]float64, v.Shape.Y*v.Shape.X)
	copy(plane, v.Data[v.Shape.Index(z, 0, 0):v.Shape.Index(z, 0, 0)+len(plane)])
	return plane, nil
}
