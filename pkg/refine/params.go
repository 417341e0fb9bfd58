// Package refine implements the four-stage morphological mask refinement
// pipeline: HU-range-gated dilation, morphological closing, small
// connected-component removal and slice-wise hole filling. The pipeline
// is a pure function of (mask, volume, spacing, params); it reports
// progress through a caller-supplied sink and records per-stage
// statistics.
package refine

import (
	"fmt"
	"time"
)

// Params controls which stages run and how aggressive they are.
type Params struct {
	// HuMin and HuMax bound the intensity range considered plausible
	// tissue during gated dilation.
	HuMin float64 `yaml:"huMin"`
	HuMax float64 `yaml:"huMax"`

	// DilationIter is the number of binary dilation iterations. Zero
	// disables the dilation stage.
	DilationIter int `yaml:"dilationIter"`

	// ClosingSize is the side of the cubic structuring element used for
	// morphological closing. A size of 1 disables the stage (a 1-voxel
	// element is a no-op).
	ClosingSize int `yaml:"closingSize"`

	// FillHoles enables slice-wise 2D hole filling.
	FillHoles bool `yaml:"fillHoles"`
}

// Validate checks the parameter invariants.
func (p Params) Validate() error {
	if p.HuMin > p.HuMax {
		return fmt.Errorf("refine: huMin %.1f exceeds huMax %.1f", p.HuMin, p.HuMax)
	}
	if p.DilationIter < 0 {
		return fmt.Errorf("refine: dilationIter must be >= 0, got %d", p.DilationIter)
	}
	if p.ClosingSize < 1 {
		return fmt.Errorf("refine: closingSize must be >= 1, got %d", p.ClosingSize)
	}
	return nil
}

// StageStats records what one executed stage did to the mask. Fields
// beyond the before/after counts are stage-specific and left zero by
// stages that do not produce them.
type StageStats struct {
	Name          string
	VoxelsBefore  int
	VoxelsAfter   int
	VoxelsAdded   int
	VoxelsRemoved int

	// Component-removal specifics.
	ComponentsTotal   int
	ComponentsKept    int
	ComponentsRemoved int

	// Hole-filling specifics.
	SlicesProcessed int
}

// Result is the full accounting of one pipeline invocation.
type Result struct {
	BaseCount          int
	FinalCount         int
	ImprovementPercent float64
	VolumeML           float64

	// Steps holds one entry per executed stage, in execution order.
	// Stages disabled by the parameters contribute no entry.
	Steps []StageStats

	// Params is a snapshot of the parameters the pipeline ran with.
	Params Params

	Elapsed   time.Duration
	Timestamp time.Time
}
