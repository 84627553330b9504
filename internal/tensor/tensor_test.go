package tensor_test

import (
	"math"
	"testing"

	"github.com/reid-ml/osnet/internal/backend/cpu"
	"github.com/reid-ml/osnet/internal/tensor"
)

// TestShape_Basics tests element counts and equality.
func TestShape_Basics(t *testing.T) {
	s := tensor.Shape{2, 3, 4}
	if s.NumElements() != 24 {
		t.Errorf("NumElements: got %d, want 24", s.NumElements())
	}
	if !s.Equal(tensor.Shape{2, 3, 4}) {
		t.Error("Equal: identical shapes reported unequal")
	}
	if s.Equal(tensor.Shape{2, 3}) {
		t.Error("Equal: different ranks reported equal")
	}
}

// TestFromSlice_LengthMismatch tests that data length must match the
// shape.
func TestFromSlice_LengthMismatch(t *testing.T) {
	b := cpu.New()
	_, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2}, b)
	if err == nil {
		t.Fatal("expected error for 3 elements in a 2x2 shape")
	}
}

// TestCreation tests Zeros, Ones and Full.
func TestCreation(t *testing.T) {
	b := cpu.New()

	z := tensor.Zeros[float32](tensor.Shape{2, 2}, b)
	for i, v := range z.Data() {
		if v != 0 {
			t.Errorf("Zeros element %d: got %v", i, v)
		}
	}

	o := tensor.Ones[float32](tensor.Shape{3}, b)
	for i, v := range o.Data() {
		if v != 1 {
			t.Errorf("Ones element %d: got %v", i, v)
		}
	}

	f := tensor.Full[float32](tensor.Shape{2}, 7.5, b)
	for i, v := range f.Data() {
		if v != 7.5 {
			t.Errorf("Full element %d: got %v", i, v)
		}
	}
}

// TestArithmeticChain tests that method chaining produces the expected
// values.
func TestArithmeticChain(t *testing.T) {
	b := cpu.New()

	x, err := tensor.FromSlice([]float32{1, -2, 3, -4}, tensor.Shape{2, 2}, b)
	if err != nil {
		t.Fatal(err)
	}

	// relu(x) * 2 + 1
	out := x.ReLU().Scale(2).Shift(1)
	want := []float32{3, 1, 7, 1}
	for i, v := range out.Data() {
		if v != want[i] {
			t.Errorf("element %d: got %v, want %v", i, v, want[i])
		}
	}
}

// TestReshape_SharesBuffer tests that reshape is a view over the same
// data.
func TestReshape_SharesBuffer(t *testing.T) {
	b := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, b)
	if err != nil {
		t.Fatal(err)
	}
	y := x.Reshape(4)
	if !y.Shape().Equal(tensor.Shape{4}) {
		t.Fatalf("shape: got %v", y.Shape())
	}

	y.Data()[0] = 99
	if x.Data()[0] != 99 {
		t.Error("reshape did not share the underlying buffer")
	}
}

// TestItem tests scalar extraction.
func TestItem(t *testing.T) {
	b := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, b)
	if err != nil {
		t.Fatal(err)
	}
	if got := x.Sum().Item(); got != 6 {
		t.Errorf("Sum().Item(): got %v, want 6", got)
	}
}

// TestCat tests tensor-level concatenation.
func TestCat(t *testing.T) {
	b := cpu.New()

	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2}, b)
	y, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{1, 2}, b)

	out := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{x, y}, 1)
	if !out.Shape().Equal(tensor.Shape{1, 4}) {
		t.Fatalf("shape: got %v", out.Shape())
	}
	want := []float32{1, 2, 3, 4}
	for i, v := range out.Data() {
		if v != want[i] {
			t.Errorf("element %d: got %v, want %v", i, v, want[i])
		}
	}
}

// TestRandn_Finite tests that Box-Muller sampling never produces
// non-finite values.
func TestRandn_Finite(t *testing.T) {
	b := cpu.New()
	x := tensor.Randn(tensor.Shape{100, 100}, b)
	for i, v := range x.Data() {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("sample %d: got %v", i, v)
		}
	}
}
