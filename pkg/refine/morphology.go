package refine

import (
	"volseg/pkg/volume"
)

// tissueMask marks every voxel whose intensity lies in [lo, hi].
func tissueMask(v *volume.Volume, lo, hi float64) *volume.Mask {
	out := volume.NewMask(v.Shape)
	for i, val := range v.Data {
		if val >= lo && val <= hi {
			out.Data[i] = 1
		}
	}
	return out
}

// dilate6 performs n iterations of binary dilation with the 6-connected
// cross structuring element (face neighbours only). Out-of-bounds
// neighbours are treated as background.
func dilate6(m *volume.Mask, iterations int) *volume.Mask {
	cur := m.Clone()
	shape := m.Shape
	strideZ := shape.Y * shape.X
	strideY := shape.X
	for it := 0; it < iterations; it++ {
		next := cur.Clone()
		for z := 0; z < shape.Z; z++ {
			for y := 0; y < shape.Y; y++ {
				base := shape.Index(z, y, 0)
				for x := 0; x < shape.X; x++ {
					i := base + x
					if cur.Data[i] != 0 {
						continue
					}
					if x > 0 && cur.Data[i-1] != 0 ||
						x < shape.X-1 && cur.Data[i+1] != 0 ||
						y > 0 && cur.Data[i-strideY] != 0 ||
						y < shape.Y-1 && cur.Data[i+strideY] != 0 ||
						z > 0 && cur.Data[i-strideZ] != 0 ||
						z < shape.Z-1 && cur.Data[i+strideZ] != 0 {
						next.Data[i] = 1
					}
				}
			}
		}
		cur = next
	}
	return cur
}

// intersect returns the voxel-wise AND of two same-shape masks.
func intersect(a, b *volume.Mask) *volume.Mask {
	out := volume.NewMask(a.Shape)
	for i := range a.Data {
		if a.Data[i] != 0 && b.Data[i] != 0 {
			out.Data[i] = 1
		}
	}
	return out
}

// closing applies binary closing (dilation then erosion) with a cubic
// structuring element of the given side. The cube is separable, so each
// pass runs one 1-D window per axis. Out-of-bounds voxels count as
// background in both passes, so closing does not grow the mask through
// the grid boundary.
func closing(m *volume.Mask, size int) *volume.Mask {
	// Element of side s covers offsets [-s/2, (s-1)/2] around the origin.
	// The erosion pass uses the reflected element, so closing contains its
	// input for even sizes too instead of translating the mask.
	dilated := axisWindow(m, -(size / 2), (size-1)/2, false)
	return axisWindow(dilated, -((size - 1) / 2), size/2, true)
}

// axisWindow runs a 1-D sliding-window pass along each of the three axes
// in turn. With erode=false a voxel becomes foreground if any voxel in
// the window is foreground (dilation); with erode=true it stays
// foreground only if every voxel in the window is foreground (erosion,
// with out-of-bounds counting as background).
func axisWindow(m *volume.Mask, lo, hi int, erode bool) *volume.Mask {
	shape := m.Shape
	cur := m
	strides := []struct {
		length int
		stride int
	}{
		{shape.Z, shape.Y * shape.X},
		{shape.Y, shape.X},
		{shape.X, 1},
	}
	for _, ax := range strides {
		next := volume.NewMask(shape)
		for i := range cur.Data {
			// Position of this voxel along the current axis.
			pos := (i / ax.stride) % ax.length
			hit := erode
			for off := lo; off <= hi; off++ {
				p := pos + off
				if p < 0 || p >= ax.length {
					if erode {
						hit = false
						break
					}
					continue
				}
				set := cur.Data[i+off*ax.stride] != 0
				if erode && !set {
					hit = false
					break
				}
				if !erode && set {
					hit = true
					break
				}
			}
			if hit {
				next.Data[i] = 1
			}
		}
		cur = next
	}
	return cur
}
