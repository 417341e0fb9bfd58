package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Dice computes the Dice similarity coefficient 2|A∩B| / (|A|+|B|)
// between two masks of the same shape. Two empty masks are defined as a
// perfect match (1.0).
func Dice(a, b *Mask) (float64, error) {
	if !a.Shape.Equal(b.Shape) {
		return 0, fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, a.Shape, b.Shape)
	}
	intersection := 0
	total := 0
	for i := range a.Data {
		av := a.Data[i] != 0
		bv := b.Data[i] != 0
		if av && bv {
			intersection++
		}
		if av {
			total++
		}
		if bv {
			total++
		}
	}
	if total == 0 {
		return 1.0, nil
	}
	return 2.0 * float64(intersection) / float64(total), nil
}

// Difference summarises how two masks differ voxel by voxel.
type Difference struct {
	Mask1Count int
	Mask2Count int
	Added      int // foreground in mask2 only
	Removed    int // foreground in mask1 only
	Unchanged  int // foreground in both
	Dice       float64
}

// Compare computes the voxel-wise difference between two masks, typically
// a base mask and its refined successor.
func Compare(m1, m2 *Mask) (Difference, error) {
	if !m1.Shape.Equal(m2.Shape) {
		return Difference{}, fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, m1.Shape, m2.Shape)
	}
	var d Difference
	intersection := 0
	for i := range m1.Data {
		a := m1.Data[i] != 0
		b := m2.Data[i] != 0
		switch {
		case a && b:
			d.Unchanged++
			intersection++
		case b:
			d.Added++
		case a:
			d.Removed++
		}
		if a {
			d.Mask1Count++
		}
		if b {
			d.Mask2Count++
		}
	}
	total := d.Mask1Count + d.Mask2Count
	if total == 0 {
		d.Dice = 1.0
	} else {
		d.Dice = 2.0 * float64(intersection) / float64(total)
	}
	return d, nil
}

// IntensityStats describes the intensity distribution of the voxels
// covered by a mask. Mean HU of a segmented region is a quick sanity
// check that the mask landed on the intended tissue.
type IntensityStats struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// MaskedIntensity gathers the volume samples under the mask and computes
// their distribution statistics.
func MaskedIntensity(v *Volume, m *Mask) (IntensityStats, error) {
	if !v.Shape.Equal(m.Shape) {
		return IntensityStats{}, fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, m.Shape, v.Shape)
	}
	samples := make([]float64, 0, 1024)
	min := math.Inf(1)
	max := math.Inf(-1)
	for i, on := range m.Data {
		if on == 0 {
			continue
		}
		val := v.Data[i]
		samples = append(samples, val)
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}
	if len(samples) == 0 {
		return IntensityStats{}, nil
	}
	stddev := 0.0
	if len(samples) > 1 {
		stddev = stat.StdDev(samples, nil)
	}
	return IntensityStats{
		Count:  len(samples),
		Mean:   stat.Mean(samples, nil),
		StdDev: stddev,
		Min:    min,
		Max:    max,
	}, nil
}
