package compute

import (
	"math"
	"testing"

	"github.com/urbanveg/vcover/internal/raster"
)

func gridFrom(width int, values []float32, valid []bool) *raster.Grid {
	g := raster.New(width, len(values)/width)
	copy(g.Data, values)
	copy(g.Valid, valid)
	return g
}

func TestNDVIBounds(t *testing.T) {
	tests := []struct {
		name     string
		red, nir float32
		want     float64
	}{
		{"pure vegetation", 0.05, 0.45, 0.8},
		{"bare soil", 0.3, 0.35, 0.076923},
		{"water", 0.2, 0.1, -0.333333},
		{"all nir", 0, 0.5, 1},
		{"all red", 0.5, 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			red := gridFrom(1, []float32{tt.red}, []bool{true})
			nir := gridFrom(1, []float32{tt.nir}, []bool{true})
			out, err := NDVI(red, nir)
			if err != nil {
				t.Fatalf("NDVI: %v", err)
			}
			if !out.Valid[0] {
				t.Fatal("pixel invalid, want valid")
			}
			got := float64(out.Data[0])
			if math.Abs(got-tt.want) > 1e-5 {
				t.Errorf("NDVI = %f, want %f", got, tt.want)
			}
			if got < -1 || got > 1 {
				t.Errorf("NDVI = %f outside [-1, 1]", got)
			}
		})
	}
}

func TestNDVIZeroDenominatorMasked(t *testing.T) {
	red := gridFrom(2, []float32{0, 0.1}, []bool{true, true})
	nir := gridFrom(2, []float32{0, 0.3}, []bool{true, true})
	out, err := NDVI(red, nir)
	if err != nil {
		t.Fatalf("NDVI: %v", err)
	}
	if out.Valid[0] {
		t.Error("zero-denominator pixel is valid, want masked")
	}
	if v := out.Data[0]; v != 0 || math.IsNaN(float64(v)) {
		t.Errorf("masked pixel carries %f, want 0", v)
	}
	if !out.Valid[1] {
		t.Error("normal pixel masked, want valid")
	}
}

func TestNDVIInvalidInputPropagates(t *testing.T) {
	red := gridFrom(2, []float32{0.1, 0.1}, []bool{false, true})
	nir := gridFrom(2, []float32{0.3, 0.3}, []bool{true, false})
	out, err := NDVI(red, nir)
	if err != nil {
		t.Fatalf("NDVI: %v", err)
	}
	if out.Valid[0] || out.Valid[1] {
		t.Error("pixel with invalid input is valid, want masked")
	}
}

func TestNDVIShapeMismatch(t *testing.T) {
	red := raster.New(2, 2)
	nir := raster.New(3, 2)
	if _, err := NDVI(red, nir); err == nil {
		t.Error("NDVI = nil error, want shape mismatch")
	}
}

func TestThresholdMonotonic(t *testing.T) {
	values := []float32{-0.5, 0, 0.1, 0.15, 0.2, 0.5, 0.9}
	valid := make([]bool, len(values))
	for i := range valid {
		valid[i] = true
	}
	ndvi := gridFrom(len(values), values, valid)

	count := func(vc *raster.Grid) int {
		n := 0
		for i := range vc.Data {
			if vc.Valid[i] && vc.Data[i] == 1 {
				n++
			}
		}
		return n
	}

	// Raising the threshold must never increase the vegetated pixel count.
	prev := len(values) + 1
	for _, thr := range []float64{-1, 0, 0.1, 0.15, 0.2, 0.5, 1} {
		got := count(Threshold(ndvi, thr))
		if got > prev {
			t.Errorf("threshold %g: count %d > previous %d", thr, got, prev)
		}
		prev = got
	}
}

func TestThresholdBoundaryInclusive(t *testing.T) {
	ndvi := gridFrom(1, []float32{0.15}, []bool{true})
	vc := Threshold(ndvi, 0.15)
	if !vc.Valid[0] || vc.Data[0] != 1 {
		t.Errorf("pixel at threshold = %f (valid=%v), want 1", vc.Data[0], vc.Valid[0])
	}
}

func TestThresholdPreservesMask(t *testing.T) {
	ndvi := gridFrom(2, []float32{0.5, 0.5}, []bool{true, false})
	vc := Threshold(ndvi, 0.15)
	if !vc.Valid[0] {
		t.Error("valid pixel masked")
	}
	if vc.Valid[1] {
		t.Error("invalid pixel unmasked")
	}
}

func TestSummarize(t *testing.T) {
	ndvi := gridFrom(4, []float32{0.1, 0.2, 0.3, 0}, []bool{true, true, true, false})
	vc := Threshold(ndvi, 0.15)
	s := Summarize(ndvi, vc)

	if math.Abs(s.ValidFraction-0.75) > 1e-9 {
		t.Errorf("ValidFraction = %f, want 0.75", s.ValidFraction)
	}
	if math.Abs(s.NDVIMin-0.1) > 1e-6 || math.Abs(s.NDVIMax-0.3) > 1e-6 {
		t.Errorf("NDVI range = [%f, %f], want [0.1, 0.3]", s.NDVIMin, s.NDVIMax)
	}
	if math.Abs(s.NDVIMean-0.2) > 1e-6 {
		t.Errorf("NDVIMean = %f, want 0.2", s.NDVIMean)
	}
	if math.Abs(s.CoverFraction-2.0/3.0) > 1e-6 {
		t.Errorf("CoverFraction = %f, want 2/3", s.CoverFraction)
	}
}

func TestSummarizeAllInvalid(t *testing.T) {
	ndvi := raster.New(2, 2)
	vc := raster.New(2, 2)
	s := Summarize(ndvi, vc)
	if s != (Stats{}) {
		t.Errorf("Stats = %+v, want zero value", s)
	}
}
