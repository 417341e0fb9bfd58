package roi

import (
	"errors"
	"strings"
	"testing"

	"volseg/pkg/volume"
)

// TestRectLargeEnough verifies the minimum drawing size on both axes.
func TestRectLargeEnough(t *testing.T) {
	testCases := []struct {
		name     string
		rect     Rect
		expected bool
	}{
		{"WideAndTall", Rect{XMin: 0, XMax: 10, YMin: 0, YMax: 10}, true},
		{"ExactMinimum", Rect{XMin: 0, XMax: MinRectSize, YMin: 0, YMax: MinRectSize}, true},
		{"TooNarrow", Rect{XMin: 0, XMax: MinRectSize - 1, YMin: 0, YMax: 10}, false},
		{"TooShort", Rect{XMin: 0, XMax: 10, YMin: 0, YMax: MinRectSize - 1}, false},
		{"Degenerate", Rect{}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rect.LargeEnough(); got != tc.expected {
				t.Errorf("LargeEnough(%s): expected %v, got %v", tc.rect, tc.expected, got)
			}
		})
	}
}

// TestCombine verifies the union of two rectangles into a 3D box.
func TestCombine(t *testing.T) {
	shape := volume.Shape{Z: 50, Y: 100, X: 100}
	r1 := Rect{Slice: 10, XMin: 20, XMax: 40, YMin: 30, YMax: 50}
	r2 := Rect{Slice: 25, XMin: 35, XMax: 60, YMin: 10, YMax: 45}

	var c Combiner
	c.SetFirst(r1)
	c.SetSecond(r2)

	box, err := c.Combine(shape)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	want := Box{Z0: 10, Z1: 25, Y0: 10, Y1: 50, X0: 20, X1: 60}
	if box != want {
		t.Errorf("expected %s, got %s", want, box)
	}

	wantShape := volume.Shape{Z: 16, Y: 41, X: 41}
	if !box.Shape().Equal(wantShape) {
		t.Errorf("expected box shape %s, got %s", wantShape, box.Shape())
	}
}

// TestCombineCommutative verifies that the rectangle order does not
// matter.
func TestCombineCommutative(t *testing.T) {
	shape := volume.Shape{Z: 50, Y: 100, X: 100}
	r1 := Rect{Slice: 40, XMin: 5, XMax: 15, YMin: 60, YMax: 80}
	r2 := Rect{Slice: 12, XMin: 50, XMax: 70, YMin: 20, YMax: 30}

	var a, b Combiner
	a.SetFirst(r1)
	a.SetSecond(r2)
	b.SetFirst(r2)
	b.SetSecond(r1)

	boxA, err := a.Combine(shape)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	boxB, err := b.Combine(shape)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if boxA != boxB {
		t.Errorf("combine is order-dependent: %s vs %s", boxA, boxB)
	}
}

// TestCombineClipsToGrid verifies that out-of-bounds rectangles produce
// a box fully inside the volume with lo <= hi on every axis.
func TestCombineClipsToGrid(t *testing.T) {
	shape := volume.Shape{Z: 20, Y: 64, X: 64}

	testCases := []struct {
		name   string
		r1, r2 Rect
	}{
		{
			"PartiallyOutside",
			Rect{Slice: -3, XMin: -10, XMax: 30, YMin: 5, YMax: 70},
			Rect{Slice: 25, XMin: 40, XMax: 100, YMin: -2, YMax: 20},
		},
		{
			"WhollyOutside",
			Rect{Slice: 100, XMin: 200, XMax: 300, YMin: 200, YMax: 300},
			Rect{Slice: 150, XMin: 250, XMax: 350, YMin: 250, YMax: 350},
		},
		{
			"AllNegative",
			Rect{Slice: -5, XMin: -30, XMax: -10, YMin: -30, YMax: -10},
			Rect{Slice: -2, XMin: -20, XMax: -5, YMin: -20, YMax: -5},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var c Combiner
			c.SetFirst(tc.r1)
			c.SetSecond(tc.r2)
			box, err := c.Combine(shape)
			if err != nil {
				t.Fatalf("Combine failed: %v", err)
			}
			if box.Z0 < 0 || box.Z1 >= shape.Z || box.Z0 > box.Z1 {
				t.Errorf("Z bounds out of range: %s", box)
			}
			if box.Y0 < 0 || box.Y1 >= shape.Y || box.Y0 > box.Y1 {
				t.Errorf("Y bounds out of range: %s", box)
			}
			if box.X0 < 0 || box.X1 >= shape.X || box.X0 > box.X1 {
				t.Errorf("X bounds out of range: %s", box)
			}
		})
	}
}

// TestCombineMissingRect verifies the error when rectangles are absent.
func TestCombineMissingRect(t *testing.T) {
	shape := volume.Shape{Z: 10, Y: 10, X: 10}

	var c Combiner
	if _, err := c.Combine(shape); !errors.Is(err, ErrMissingRoi) {
		t.Errorf("expected ErrMissingRoi with no rectangles, got %v", err)
	}

	c.SetFirst(Rect{Slice: 1, XMax: 8, YMax: 8})
	if _, err := c.Combine(shape); !errors.Is(err, ErrMissingRoi) {
		t.Errorf("expected ErrMissingRoi with one rectangle, got %v", err)
	}

	c.SetSecond(Rect{Slice: 5, XMax: 8, YMax: 8})
	if !c.HasBoth() {
		t.Fatal("HasBoth should be true after both rectangles")
	}
	if _, err := c.Combine(shape); err != nil {
		t.Errorf("Combine with both rectangles failed: %v", err)
	}

	c.Reset()
	if c.HasBoth() {
		t.Error("HasBoth should be false after Reset")
	}
}

// TestDescribe verifies the status summary.
func TestDescribe(t *testing.T) {
	var c Combiner
	if got := c.Describe(); got != "no ROI defined" {
		t.Errorf("unexpected empty description: %q", got)
	}

	c.SetFirst(Rect{Slice: 3, XMin: 1, XMax: 9, YMin: 2, YMax: 8})
	if got := c.Describe(); !strings.Contains(got, "ROI1") || strings.Contains(got, "ROI2") {
		t.Errorf("expected only ROI1 in description, got %q", got)
	}

	c.SetSecond(Rect{Slice: 7, XMin: 1, XMax: 9, YMin: 2, YMax: 8})
	got := c.Describe()
	if !strings.Contains(got, "ROI1") || !strings.Contains(got, "ROI2") {
		t.Errorf("expected both rectangles in description, got %q", got)
	}
}
