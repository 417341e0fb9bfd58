package refine

import (
	"testing"

	"volseg/pkg/volume"
)

func newMaskAt(shape volume.Shape, voxels ...[3]int) *volume.Mask {
	m := volume.NewMask(shape)
	for _, v := range voxels {
		m.Set(v[0], v[1], v[2], true)
	}
	return m
}

func uniformVolume(shape volume.Shape, value float64) *volume.Volume {
	v := volume.NewVolume(shape, volume.Spacing{X: 1, Y: 1, Z: 1}, volume.Origin{}, volume.IdentityDirection)
	for i := range v.Data {
		v.Data[i] = value
	}
	return v
}

// TestDilate6 verifies one iteration of cross dilation around a single
// seed voxel.
func TestDilate6(t *testing.T) {
	shape := volume.Shape{Z: 5, Y: 5, X: 5}
	m := newMaskAt(shape, [3]int{2, 2, 2})

	d := dilate6(m, 1)

	if d.Count() != 7 {
		t.Fatalf("expected 7 voxels (seed + 6 faces), got %d", d.Count())
	}
	for _, v := range [][3]int{{2, 2, 2}, {1, 2, 2}, {3, 2, 2}, {2, 1, 2}, {2, 3, 2}, {2, 2, 1}, {2, 2, 3}} {
		if !d.At(v[0], v[1], v[2]) {
			t.Errorf("face neighbour (%d,%d,%d) not dilated", v[0], v[1], v[2])
		}
	}
	if d.At(1, 1, 2) {
		t.Error("edge neighbour must not be reached by the 6-connected cross")
	}

	if m.Count() != 1 {
		t.Error("dilation must not mutate its input")
	}
}

// TestDilate6AtBoundary verifies that dilation does not wrap or panic at
// the grid edge.
func TestDilate6AtBoundary(t *testing.T) {
	shape := volume.Shape{Z: 3, Y: 3, X: 3}
	m := newMaskAt(shape, [3]int{0, 0, 0})

	d := dilate6(m, 1)

	if d.Count() != 4 {
		t.Fatalf("corner seed should dilate to 4 voxels, got %d", d.Count())
	}
	if d.At(2, 2, 2) {
		t.Error("dilation leaked across the grid boundary")
	}
}

// TestDilate6Iterations verifies iterated dilation grows a diamond.
func TestDilate6Iterations(t *testing.T) {
	shape := volume.Shape{Z: 7, Y: 7, X: 7}
	m := newMaskAt(shape, [3]int{3, 3, 3})

	d := dilate6(m, 2)

	// Voxels within Manhattan distance 2 of the seed: 1 + 6 + 18 = 25.
	if d.Count() != 25 {
		t.Errorf("expected 25 voxels after 2 iterations, got %d", d.Count())
	}
	if !d.At(1, 3, 3) || !d.At(3, 3, 5) {
		t.Error("distance-2 voxels along an axis should be set")
	}
	if d.At(3, 0, 3) {
		t.Error("distance-3 voxel must not be set")
	}
}

// TestTissueMaskAndIntersect verifies that HU gating removes dilated
// voxels outside the range, including the original seed.
func TestTissueMaskAndIntersect(t *testing.T) {
	shape := volume.Shape{Z: 1, Y: 1, X: 5}
	vol := uniformVolume(shape, -500)
	vol.Data[2] = 100 // seed sits on a voxel outside the tissue range
	vol.Data[4] = 100

	m := newMaskAt(shape, [3]int{0, 0, 2})
	tissue := tissueMask(vol, -1000, -300)
	gated := intersect(dilate6(m, 1), tissue)

	if gated.At(0, 0, 2) {
		t.Error("seed voxel outside the HU range must be removed")
	}
	if !gated.At(0, 0, 1) || !gated.At(0, 0, 3) {
		t.Error("in-range neighbours should survive the gate")
	}
	if gated.Count() != 2 {
		t.Errorf("expected 2 voxels after gating, got %d", gated.Count())
	}
}

// TestClosingBridgesGap verifies that closing with a size-3 element
// fills a one-voxel gap between two interior blocks.
func TestClosingBridgesGap(t *testing.T) {
	shape := volume.Shape{Z: 5, Y: 7, X: 9}
	m := volume.NewMask(shape)
	// Two 3x3x3 blocks separated by a single background plane at x=4.
	for z := 1; z <= 3; z++ {
		for y := 2; y <= 4; y++ {
			for x := 1; x <= 3; x++ {
				m.Set(z, y, x, true)
			}
			for x := 5; x <= 7; x++ {
				m.Set(z, y, x, true)
			}
		}
	}

	closed := closing(m, 3)

	for z := 1; z <= 3; z++ {
		for y := 2; y <= 4; y++ {
			if !closed.At(z, y, 4) {
				t.Errorf("gap at (%d,%d,4) should be closed", z, y)
			}
		}
	}
	// Original interior foreground survives.
	for i := range m.Data {
		if m.Data[i] != 0 && closed.Data[i] == 0 {
			t.Fatal("closing must not remove original foreground in the interior")
		}
	}
}

// TestClosingEvenSizeContainsInput verifies that an even element size
// does not translate the mask: every input voxel survives closing, and
// a lone voxel comes back unchanged.
func TestClosingEvenSizeContainsInput(t *testing.T) {
	shape := volume.Shape{Z: 6, Y: 6, X: 6}

	single := newMaskAt(shape, [3]int{2, 2, 2})
	closed := closing(single, 2)
	if !closed.At(2, 2, 2) {
		t.Fatal("closing removed the original voxel")
	}
	if closed.Count() != 1 {
		t.Errorf("closing a lone voxel with size 2 should be a no-op, got %d voxels", closed.Count())
	}

	blob := volume.NewMask(shape)
	for z := 1; z <= 3; z++ {
		for y := 1; y <= 3; y++ {
			for x := 1; x <= 3; x++ {
				blob.Set(z, y, x, true)
			}
		}
	}
	blob.Set(4, 2, 2, true)
	closedBlob := closing(blob, 2)
	for i := range blob.Data {
		if blob.Data[i] != 0 && closedBlob.Data[i] == 0 {
			t.Fatal("closing must contain its input")
		}
	}
}

// TestClosingSolidBlockStable verifies closing is idempotent-ish on a
// block away from the boundary: nothing is added or removed.
func TestClosingSolidBlockStable(t *testing.T) {
	shape := volume.Shape{Z: 9, Y: 9, X: 9}
	m := volume.NewMask(shape)
	for z := 3; z <= 5; z++ {
		for y := 3; y <= 5; y++ {
			for x := 3; x <= 5; x++ {
				m.Set(z, y, x, true)
			}
		}
	}

	closed := closing(m, 3)

	if closed.Count() != m.Count() {
		t.Fatalf("closing changed a solid block: %d -> %d voxels", m.Count(), closed.Count())
	}
	for i := range m.Data {
		if m.Data[i] != closed.Data[i] {
			t.Fatal("closing moved voxels of a solid interior block")
		}
	}
}
