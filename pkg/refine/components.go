package refine

import (
	"volseg/pkg/volume"
)

// smallComponentRatio is the size threshold for noise removal: any
// connected component no larger than 1% of the largest component is
// dropped.
const smallComponentRatio = 0.01

// removeSmallComponents labels the 6-connected components of the mask
// (face neighbours only), finds the largest component, and discards
// every component whose size is at most 1% of it. The comparison is
// strict: a component is kept only if size > maxSize * 0.01. An empty
// mask is a no-op reporting zero components.
func removeSmallComponents(m *volume.Mask) (*volume.Mask, StageStats) {
	stats := StageStats{
		Name:         "Noise Removal",
		VoxelsBefore: m.Count(),
	}

	labels, sizes := labelComponents(m)
	if len(sizes) == 0 {
		stats.VoxelsAfter = 0
		return m.Clone(), stats
	}

	maxSize := 0
	for _, s := range sizes {
		if s > maxSize {
			maxSize = s
		}
	}
	threshold := float64(maxSize) * smallComponentRatio

	keep := make([]bool, len(sizes)+1)
	kept := 0
	for label, s := range sizes {
		if float64(s) > threshold {
			keep[label+1] = true
			kept++
		}
	}

	out := volume.NewMask(m.Shape)
	after := 0
	for i, label := range labels {
		if label > 0 && keep[label] {
			out.Data[i] = 1
			after++
		}
	}

	stats.VoxelsAfter = after
	stats.VoxelsRemoved = stats.VoxelsBefore - after
	stats.ComponentsTotal = len(sizes)
	stats.ComponentsKept = kept
	stats.ComponentsRemoved = len(sizes) - kept
	return out, stats
}

// labelComponents assigns a positive label to every 6-connected
// foreground component and returns the per-voxel labels alongside the
// component sizes (sizes[label-1] is the voxel count of that label).
func labelComponents(m *volume.Mask) ([]int32, []int) {
	shape := m.Shape
	strideZ := shape.Y * shape.X
	strideY := shape.X
	labels := make([]int32, len(m.Data))
	var sizes []int
	var stack []int

	next := int32(0)
	for start, v := range m.Data {
		if v == 0 || labels[start] != 0 {
			continue
		}
		next++
		size := 0
		stack = append(stack[:0], start)
		labels[start] = next
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++

			z := i / strideZ
			rem := i % strideZ
			y := rem / strideY
			x := rem % strideY

			if x > 0 {
				pushIfForeground(m, labels, &stack, i-1, next)
			}
			if x < shape.X-1 {
				pushIfForeground(m, labels, &stack, i+1, next)
			}
			if y > 0 {
				pushIfForeground(m, labels, &stack, i-strideY, next)
			}
			if y < shape.Y-1 {
				pushIfForeground(m, labels, &stack, i+strideY, next)
			}
			if z > 0 {
				pushIfForeground(m, labels, &stack, i-strideZ, next)
			}
			if z < shape.Z-1 {
				pushIfForeground(m, labels, &stack, i+strideZ, next)
			}
		}
		sizes = append(sizes, size)
	}
	return labels, sizes
}

func pushIfForeground(m *volume.Mask, labels []int32, stack *[]int, i int, label int32) {
	if m.Data[i] != 0 && labels[i] == 0 {
		labels[i] = label
		*stack = append(*stack, i)
	}
}
