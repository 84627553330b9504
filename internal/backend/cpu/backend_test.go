package cpu_test

import (
	"math"
	"testing"

	"github.com/reid-ml/osnet/internal/backend/cpu"
	"github.com/reid-ml/osnet/internal/tensor"
)

func raw(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	tt, err := tensor.FromSlice(data, shape, cpu.New())
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	return tt.Raw()
}

func assertFloats(t *testing.T, got, want []float32, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > tol {
			t.Errorf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

// TestAdd_Broadcast tests elementwise addition with shape broadcasting.
func TestAdd_Broadcast(t *testing.T) {
	b := cpu.New()

	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	v := raw(t, []float32{10, 20, 30}, tensor.Shape{3})

	out := b.Add(a, v)
	if !out.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("shape: got %v", out.Shape())
	}
	assertFloats(t, out.AsFloat32(), []float32{11, 22, 33, 14, 25, 36}, 0)
}

// TestMul_BroadcastGateShape tests the [N,C,H,W] * [N,C,1,1] broadcast
// pattern channel gating relies on.
func TestMul_BroadcastGateShape(t *testing.T) {
	b := cpu.New()

	x := raw(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 2, 2, 2})
	g := raw(t, []float32{2, 10}, tensor.Shape{1, 2, 1, 1})

	out := b.Mul(x, g)
	assertFloats(t, out.AsFloat32(), []float32{2, 4, 6, 8, 50, 60, 70, 80}, 0)
}

// TestMatMul tests 2D matrix multiplication against a hand-computed
// result.
func TestMatMul(t *testing.T) {
	b := cpu.New()

	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	m := raw(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	out := b.MatMul(a, m)
	if !out.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("shape: got %v", out.Shape())
	}
	assertFloats(t, out.AsFloat32(), []float32{58, 64, 139, 154}, 1e-5)
}

// TestConv2D tests a plain convolution against hand-computed values.
func TestConv2D(t *testing.T) {
	b := cpu.New()

	// 3x3 input, 2x2 kernel of ones, stride 1, no padding.
	input := raw(t, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 1, 3, 3})
	kernel := raw(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	out := b.Conv2D(input, kernel, 1, 0, 1)
	if !out.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("shape: got %v", out.Shape())
	}
	assertFloats(t, out.AsFloat32(), []float32{12, 16, 24, 28}, 1e-5)
}

// TestConv2D_Padding tests zero padding around the input border.
func TestConv2D_Padding(t *testing.T) {
	b := cpu.New()

	input := raw(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	kernel := raw(t, []float32{1}, tensor.Shape{1, 1, 1, 1})

	out := b.Conv2D(input, kernel, 1, 1, 1)
	if !out.Shape().Equal(tensor.Shape{1, 1, 4, 4}) {
		t.Fatalf("shape: got %v", out.Shape())
	}
	want := []float32{
		0, 0, 0, 0,
		0, 1, 2, 0,
		0, 3, 4, 0,
		0, 0, 0, 0,
	}
	assertFloats(t, out.AsFloat32(), want, 0)
}

// TestConv2D_Depthwise tests grouped convolution with groups equal to
// the channel count: each channel is filtered independently.
func TestConv2D_Depthwise(t *testing.T) {
	b := cpu.New()

	input := raw(t, []float32{
		1, 2, 3, 4, // channel 0
		5, 6, 7, 8, // channel 1
	}, tensor.Shape{1, 2, 2, 2})
	// One 1x1 kernel per channel: x2 for channel 0, x10 for channel 1.
	kernel := raw(t, []float32{2, 10}, tensor.Shape{2, 1, 1, 1})

	out := b.Conv2D(input, kernel, 1, 0, 2)
	assertFloats(t, out.AsFloat32(), []float32{2, 4, 6, 8, 50, 60, 70, 80}, 1e-5)
}

// TestMaxPool2D tests max pooling including padded borders, which must
// never win over real values.
func TestMaxPool2D(t *testing.T) {
	b := cpu.New()

	input := raw(t, []float32{
		-1, -2, -3, -4,
		-5, -6, -7, -8,
		-9, -10, -11, -12,
		-13, -14, -15, -16,
	}, tensor.Shape{1, 1, 4, 4})

	out := b.MaxPool2D(input, 2, 2, 0)
	assertFloats(t, out.AsFloat32(), []float32{-1, -3, -9, -11}, 0)

	// With padding 1 and stride 2 the corner windows are mostly padding;
	// the result must still be the (negative) input maximum, not zero.
	padded := b.MaxPool2D(input, 3, 2, 1)
	if padded.AsFloat32()[0] != -1 {
		t.Errorf("padded corner: got %v, want -1", padded.AsFloat32()[0])
	}
}

// TestAvgPool2D tests average pooling.
func TestAvgPool2D(t *testing.T) {
	b := cpu.New()

	input := raw(t, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, tensor.Shape{1, 1, 4, 4})

	out := b.AvgPool2D(input, 2, 2)
	assertFloats(t, out.AsFloat32(), []float32{3.5, 5.5, 11.5, 13.5}, 1e-5)
}

// TestReductions tests Sum, SumDim, MeanDim and Argmax.
func TestReductions(t *testing.T) {
	b := cpu.New()

	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	sum := b.Sum(x)
	assertFloats(t, sum.AsFloat32(), []float32{21}, 1e-5)

	rows := b.SumDim(x, 1, false)
	if !rows.Shape().Equal(tensor.Shape{2}) {
		t.Fatalf("SumDim shape: got %v", rows.Shape())
	}
	assertFloats(t, rows.AsFloat32(), []float32{6, 15}, 1e-5)

	keep := b.SumDim(x, 1, true)
	if !keep.Shape().Equal(tensor.Shape{2, 1}) {
		t.Fatalf("SumDim keepDim shape: got %v", keep.Shape())
	}

	mean := b.MeanDim(x, 0, false)
	assertFloats(t, mean.AsFloat32(), []float32{2.5, 3.5, 4.5}, 1e-5)

	arg := b.Argmax(x, 1)
	if arg.DType() != tensor.Int32 {
		t.Fatalf("Argmax dtype: got %v", arg.DType())
	}
	got := arg.AsInt32()
	if got[0] != 2 || got[1] != 2 {
		t.Errorf("Argmax: got %v, want [2 2]", got)
	}
}

// TestTranspose tests axis permutation.
func TestTranspose(t *testing.T) {
	b := cpu.New()

	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	out := b.Transpose(x, 1, 0)
	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("shape: got %v", out.Shape())
	}
	assertFloats(t, out.AsFloat32(), []float32{1, 4, 2, 5, 3, 6}, 0)
}

// TestCat tests concatenation along both dimensions of a matrix.
func TestCat(t *testing.T) {
	b := cpu.New()

	x := raw(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	y := raw(t, []float32{5, 6, 7, 8}, tensor.Shape{2, 2})

	rows := b.Cat([]*tensor.RawTensor{x, y}, 0)
	if !rows.Shape().Equal(tensor.Shape{4, 2}) {
		t.Fatalf("dim 0 shape: got %v", rows.Shape())
	}
	assertFloats(t, rows.AsFloat32(), []float32{1, 2, 3, 4, 5, 6, 7, 8}, 0)

	cols := b.Cat([]*tensor.RawTensor{x, y}, 1)
	if !cols.Shape().Equal(tensor.Shape{2, 4}) {
		t.Fatalf("dim 1 shape: got %v", cols.Shape())
	}
	assertFloats(t, cols.AsFloat32(), []float32{1, 2, 5, 6, 3, 4, 7, 8}, 0)
}

// TestIndexSelect tests row gathering.
func TestIndexSelect(t *testing.T) {
	b := cpu.New()

	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})
	idxT, err := tensor.FromSlice([]int32{2, 0, 2}, tensor.Shape{3}, b)
	if err != nil {
		t.Fatal(err)
	}

	out := b.IndexSelect(x, idxT.Raw())
	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("shape: got %v", out.Shape())
	}
	assertFloats(t, out.AsFloat32(), []float32{5, 6, 1, 2, 5, 6}, 0)
}

// TestMaxPool2DIndices tests the flat argmax indices used by the
// backward pass.
func TestMaxPool2DIndices(t *testing.T) {
	b := cpu.New()
	input := raw(t, []float32{
		1, 5,
		3, 2,
	}, tensor.Shape{1, 1, 2, 2})

	idx := b.MaxPool2DIndices(input, 2, 2, 0)
	if len(idx) != 1 || idx[0] != 1 {
		t.Errorf("indices: got %v, want [1]", idx)
	}
}
