package segment

import (
	"time"

	"volseg/pkg/refine"
	"volseg/pkg/roi"
	"volseg/pkg/volume"
)

// ThresholdName is the registry name of the built-in classical backend.
const ThresholdName = "hu-threshold"

func init() {
	Register(ThresholdName, func() Segmenter {
		return NewThreshold(DefaultThresholdLow, DefaultThresholdHigh)
	})
}

// Default HU window for the built-in backend: aerated lung parenchyma.
const (
	DefaultThresholdLow  = -1000.0
	DefaultThresholdHigh = -300.0
)

// Threshold is a classical intensity-window segmenter: every voxel whose
// intensity falls in [Low, High] becomes foreground. It exists so the
// Segmenter contract has an in-tree implementation; learned models plug
// in through the same interface from outside.
type Threshold struct {
	Low  float64
	High float64
}

// NewThreshold returns a threshold backend for the given HU window.
func NewThreshold(low, high float64) *Threshold {
	return &Threshold{Low: low, High: high}
}

// Name implements Segmenter.
func (t *Threshold) Name() string { return ThresholdName }

// Segment implements Segmenter. When box is non-nil only the sub-volume
// inside the box is thresholded; the returned mask always has the full
// volume shape.
func (t *Threshold) Segment(vol *volume.Volume, spacing volume.Spacing, origin volume.Origin,
	direction volume.Direction, box *roi.Box, sink refine.ProgressSink) (*volume.Mask, Stats, error) {

	start := time.Now()
	report(sink, 10, "Preparing data...")

	work := vol
	if box != nil {
		work = vol.Extract(box.Z0, box.Z1, box.Y0, box.Y1, box.X0, box.X1)
	}

	report(sink, 20, "Thresholding...")
	sub := volume.NewMask(work.Shape)
	for i, val := range work.Data {
		if val >= t.Low && val <= t.High {
			sub.Data[i] = 1
		}
	}

	report(sink, 90, "Finalizing mask...")
	mask := sub
	if box != nil {
		mask = volume.NewMask(vol.Shape)
		mask.Paste(sub, box.Z0, box.Y0, box.X0)
	}

	stats := Stats{
		VoxelCount: mask.Count(),
		Elapsed:    time.Since(start),
		Backend:    t.Name(),
		RoiShape:   work.Shape,
		Roi:        box,
	}
	report(sink, 100, "Segmentation complete")
	return mask, stats, nil
}

func report(sink refine.ProgressSink, pct int, msg string) {
	if sink != nil {
		sink.Report(pct, msg)
	}
}
