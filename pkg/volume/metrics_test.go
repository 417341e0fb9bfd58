package volume

import (
	"errors"
	"math"
	"testing"
)

func maskWith(shape Shape, voxels ...[3]int) *Mask {
	m := NewMask(shape)
	for _, v := range voxels {
		m.Set(v[0], v[1], v[2], true)
	}
	return m
}

// TestDice checks the Dice coefficient edge cases the callers rely on.
func TestDice(t *testing.T) {
	shape := Shape{Z: 3, Y: 3, X: 3}

	t.Run("SelfIsOne", func(t *testing.T) {
		m := maskWith(shape, [3]int{0, 0, 0}, [3]int{1, 2, 2}, [3]int{2, 1, 0})
		d, err := Dice(m, m)
		if err != nil {
			t.Fatalf("Dice failed: %v", err)
		}
		if d != 1.0 {
			t.Errorf("Dice of a mask with itself: expected 1.0, got %v", d)
		}
	})

	t.Run("DisjointIsZero", func(t *testing.T) {
		a := maskWith(shape, [3]int{0, 0, 0})
		b := maskWith(shape, [3]int{2, 2, 2})
		d, err := Dice(a, b)
		if err != nil {
			t.Fatalf("Dice failed: %v", err)
		}
		if d != 0.0 {
			t.Errorf("Dice of disjoint masks: expected 0.0, got %v", d)
		}
	})

	t.Run("BothEmptyIsOne", func(t *testing.T) {
		d, err := Dice(NewMask(shape), NewMask(shape))
		if err != nil {
			t.Fatalf("Dice failed: %v", err)
		}
		if d != 1.0 {
			t.Errorf("Dice of two empty masks: expected 1.0, got %v", d)
		}
	})

	t.Run("HalfOverlap", func(t *testing.T) {
		a := maskWith(shape, [3]int{0, 0, 0}, [3]int{0, 0, 1})
		b := maskWith(shape, [3]int{0, 0, 1}, [3]int{0, 0, 2})
		d, err := Dice(a, b)
		if err != nil {
			t.Fatalf("Dice failed: %v", err)
		}
		if math.Abs(d-0.5) > 1e-12 {
			t.Errorf("expected Dice 0.5, got %v", d)
		}
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		_, err := Dice(NewMask(shape), NewMask(Shape{Z: 2, Y: 3, X: 3}))
		if !errors.Is(err, ErrShapeMismatch) {
			t.Errorf("expected ErrShapeMismatch, got %v", err)
		}
	})
}

// TestCompare verifies the voxel-wise difference accounting.
func TestCompare(t *testing.T) {
	shape := Shape{Z: 2, Y: 2, X: 2}
	before := maskWith(shape, [3]int{0, 0, 0}, [3]int{0, 0, 1}, [3]int{1, 1, 1})
	after := maskWith(shape, [3]int{0, 0, 1}, [3]int{1, 1, 1}, [3]int{1, 0, 0})

	diff, err := Compare(before, after)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if diff.Mask1Count != 3 || diff.Mask2Count != 3 {
		t.Errorf("unexpected counts: %+v", diff)
	}
	if diff.Added != 1 || diff.Removed != 1 || diff.Unchanged != 2 {
		t.Errorf("unexpected difference breakdown: %+v", diff)
	}
	wantDice := 2.0 * 2 / 6
	if math.Abs(diff.Dice-wantDice) > 1e-12 {
		t.Errorf("expected dice %v, got %v", wantDice, diff.Dice)
	}
}

// TestMaskedIntensity verifies intensity statistics under a mask.
func TestMaskedIntensity(t *testing.T) {
	shape := Shape{Z: 1, Y: 1, X: 4}
	vol := NewVolume(shape, Spacing{X: 1, Y: 1, Z: 1}, Origin{}, IdentityDirection)
	vol.Data = []float64{-1000, -500, -200, 300}

	m := maskWith(shape, [3]int{0, 0, 1}, [3]int{0, 0, 2})

	stats, err := MaskedIntensity(vol, m)
	if err != nil {
		t.Fatalf("MaskedIntensity failed: %v", err)
	}
	if stats.Count != 2 {
		t.Fatalf("expected 2 samples, got %d", stats.Count)
	}
	if stats.Mean != -350 {
		t.Errorf("expected mean -350, got %v", stats.Mean)
	}
	if stats.Min != -500 || stats.Max != -200 {
		t.Errorf("unexpected min/max: %+v", stats)
	}

	empty, err := MaskedIntensity(vol, NewMask(shape))
	if err != nil {
		t.Fatalf("MaskedIntensity on empty mask failed: %v", err)
	}
	if empty.Count != 0 {
		t.Errorf("expected zero samples for empty mask, got %d", empty.Count)
	}
}
