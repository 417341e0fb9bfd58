package refine

import (
	"volseg/pkg/volume"
)

// fillHoles2D fills topological holes slice by slice along the depth
// axis. A hole is a background region fully enclosed by foreground
// within a single 2D slice; background connected to the slice border
// (4-connectivity) is left alone. Holes spanning multiple slices are
// deliberately not filled. Only slices containing foreground are
// processed; onSlice, if non-nil, is called per processed slice for
// progress accounting.
func fillHoles2D(m *volume.Mask, onSlice func(z, total int)) (*volume.Mask, StageStats) {
	stats := StageStats{
		Name:         "Hole Filling",
		VoxelsBefore: m.Count(),
	}

	shape := m.Shape
	out := m.Clone()
	w, h := shape.X, shape.Y
	outside := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))

	for z := 0; z < shape.Z; z++ {
		if !m.SliceAny(z) {
			continue
		}
		if onSlice != nil {
			onSlice(z, shape.Z)
		}
		stats.SlicesProcessed++

		base := shape.Index(z, 0, 0)
		for i := range outside {
			outside[i] = false
		}
		queue = queue[:0]

		// Seed the flood fill from every background border pixel.
		for x := 0; x < w; x++ {
			queue = seedBackground(out.Data, base, outside, queue, x)
			queue = seedBackground(out.Data, base, outside, queue, (h-1)*w+x)
		}
		for y := 0; y < h; y++ {
			queue = seedBackground(out.Data, base, outside, queue, y*w)
			queue = seedBackground(out.Data, base, outside, queue, y*w+w-1)
		}

		// 4-connected flood fill of border-reachable background.
		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x := p % w
			y := p / w
			if x > 0 {
				queue = seedBackground(out.Data, base, outside, queue, p-1)
			}
			if x < w-1 {
				queue = seedBackground(out.Data, base, outside, queue, p+1)
			}
			if y > 0 {
				queue = seedBackground(out.Data, base, outside, queue, p-w)
			}
			if y < h-1 {
				queue = seedBackground(out.Data, base, outside, queue, p+w)
			}
		}

		// Whatever background the border fill never reached is a hole.
		for p := 0; p < w*h; p++ {
			if out.Data[base+p] == 0 && !outside[p] {
				out.Data[base+p] = 1
			}
		}
	}

	stats.VoxelsAfter = out.Count()
	stats.VoxelsAdded = stats.VoxelsAfter - stats.VoxelsBefore
	return out, stats
}

// seedBackground marks the in-slice pixel p as border-reachable
// background and queues it, if it is background and not yet visited.
func seedBackground(data []uint8, base int, outside []bool, queue []int, p int) []int {
	if data[base+p] == 0 && !outside[p] {
		outside[p] = true
		queue = append(queue, p)
	}
	return queue
}
