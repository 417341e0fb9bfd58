package refine

import (
	"fmt"
	"time"

	"volseg/pkg/volume"
)

// Pipeline runs the fixed four-stage refinement sequence. It is
// stateless and safe to share; each Refine call is an independent,
// synchronous, single-threaded computation.
type Pipeline struct{}

// NewPipeline returns a refinement pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Refine produces a refined copy of mask. The stages run unconditionally
// in this order, each gated by the parameters except stage 3:
//
//  1. HU-gated dilation (DilationIter > 0): dilate with the 6-connected
//     cross, then intersect with the voxels whose intensity lies in
//     [HuMin, HuMax]. The intersection applies to the whole dilated
//     mask, so seed voxels outside the range are removed as well.
//  2. Morphological closing (ClosingSize > 1) with a cubic element.
//  3. Small-component removal (always): drop every 6-connected component
//     no larger than 1% of the largest one.
//  4. Slice-wise 2D hole filling (FillHoles).
//
// The caller's mask is never mutated. Progress is reported through sink
// (which may be nil) with non-decreasing percentages; 100 is reported
// exactly once, at completion. Spacing is taken as an explicit argument
// so callers can override the volume's stored geometry.
func (p *Pipeline) Refine(mask *volume.Mask, vol *volume.Volume, spacing volume.Spacing, params Params, sink ProgressSink) (*volume.Mask, Result, error) {
	if !mask.Shape.Equal(vol.Shape) {
		return nil, Result{}, fmt.Errorf("%w: mask %s, volume %s", volume.ErrShapeMismatch, mask.Shape, vol.Shape)
	}
	if err := params.Validate(); err != nil {
		return nil, Result{}, err
	}

	start := time.Now()
	runner := &stageRunner{sink: sink}
	runner.report(5, "Starting refinement...")

	work := mask.Clone()
	result := Result{
		BaseCount: work.Count(),
		Params:    params,
	}

	// Stage 1: dilation gated by the HU tissue range.
	if params.DilationIter > 0 {
		runner.report(20, fmt.Sprintf("Dilating within HU range [%.0f, %.0f]...", params.HuMin, params.HuMax))
		stats := StageStats{Name: "HU Dilation", VoxelsBefore: work.Count()}
		tissue := tissueMask(vol, params.HuMin, params.HuMax)
		work = intersect(dilate6(work, params.DilationIter), tissue)
		stats.VoxelsAfter = work.Count()
		stats.VoxelsAdded = stats.VoxelsAfter - stats.VoxelsBefore
		result.Steps = append(result.Steps, stats)
	}

	// Stage 2: morphological closing.
	if params.ClosingSize > 1 {
		runner.report(40, "Applying morphological closing...")
		stats := StageStats{Name: "Morphological Closing", VoxelsBefore: work.Count()}
		work = closing(work, params.ClosingSize)
		stats.VoxelsAfter = work.Count()
		stats.VoxelsAdded = stats.VoxelsAfter - stats.VoxelsBefore
		result.Steps = append(result.Steps, stats)
	}

	// Stage 3: small-component removal, always executed.
	runner.report(60, "Removing small components...")
	var componentStats StageStats
	work, componentStats = removeSmallComponents(work)
	result.Steps = append(result.Steps, componentStats)

	// Stage 4: slice-wise hole filling.
	if params.FillHoles {
		var holeStats StageStats
		work, holeStats = fillHoles2D(work, func(z, total int) {
			if z%10 == 0 {
				pct := 80 + int(float64(z)/float64(total)*15)
				runner.report(pct, fmt.Sprintf("Filling holes: slice %d/%d", z, total))
			}
		})
		result.Steps = append(result.Steps, holeStats)
	}

	runner.report(95, "Finalizing...")

	result.FinalCount = work.Count()
	if result.BaseCount > 0 {
		result.ImprovementPercent = float64(result.FinalCount-result.BaseCount) / float64(result.BaseCount) * 100
	}
	result.VolumeML = float64(result.FinalCount) * spacing.VoxelVolume() / 1000.0
	result.Elapsed = time.Since(start)
	result.Timestamp = time.Now()

	runner.report(100, fmt.Sprintf("Done: %d voxels", result.FinalCount))
	return work, result, nil
}
