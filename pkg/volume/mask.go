package volume

// Mask is a binary voxel grid with the same layout as its source Volume.
// Values are constrained to {0, 1}. Pipeline stages follow copy-on-write
// semantics: a stage produces a fresh Mask and never aliases its input
// buffer, so callers keep the pre-stage mask until they discard it.
type Mask struct {
	Data  []uint8
	Shape Shape
}

// NewMask allocates an all-background mask for the given shape.
func NewMask(shape Shape) *Mask {
	return &Mask{
		Data:  make([]uint8, shape.Len()),
		Shape: shape,
	}
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := NewMask(m.Shape)
	copy(out.Data, m.Data)
	return out
}

// At reports whether the voxel at (z, y, x) is foreground.
func (m *Mask) At(z, y, x int) bool {
	return m.Data[m.Shape.Index(z, y, x)] != 0
}

// Set marks the voxel at (z, y, x) as foreground or background.
func (m *Mask) Set(z, y, x int, on bool) {
	if on {
		m.Data[m.Shape.Index(z, y, x)] = 1
	} else {
		m.Data[m.Shape.Index(z, y, x)] = 0
	}
}

// Count returns the number of foreground voxels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Any reports whether the mask has at least one foreground voxel.
func (m *Mask) Any() bool {
	for _, v := range m.Data {
		if v != 0 {
			return true
		}
	}
	return false
}

// SliceAny reports whether the XY plane at depth z has any foreground.
func (m *Mask) SliceAny(z int) bool {
	start := m.Shape.Index(z, 0, 0)
	for _, v := range m.Data[start : start+m.Shape.Y*m.Shape.X] {
		if v != 0 {
			return true
		}
	}
	return false
}

// Paste writes src into m starting at (z0, y0, x0). The source must fit
// inside m at that offset; used to place a ROI-sized mask back into a
// full-size grid.
func (m *Mask) Paste(src *Mask, z0, y0, x0 int) {
	for z := 0; z < src.Shape.Z; z++ {
		for y := 0; y < src.Shape.Y; y++ {
			srcRow := src.Shape.Index(z, y, 0)
			dstRow := m.Shape.Index(z0+z, y0+y, x0)
			copy(m.Data[dstRow:dstRow+src.Shape.X], src.Data[srcRow:srcRow+src.Shape.X])
		}
	}
}
