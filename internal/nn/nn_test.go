package nn

import (
	"math"
	"testing"

	"github.com/reid-ml/osnet/internal/backend/cpu"
	"github.com/reid-ml/osnet/internal/tensor"
)

func approx(got, want, tol float32) bool {
	return float32(math.Abs(float64(got-want))) <= tol
}

// TestConv2D_Shapes tests weight and output shapes, with and without
// grouping.
func TestConv2D_Shapes(t *testing.T) {
	backend := cpu.New()

	conv := NewConv2D(3, 8, 3, 1, 1, 1, false, backend)
	if !conv.Weight().Tensor().Shape().Equal(tensor.Shape{8, 3, 3, 3}) {
		t.Errorf("weight shape: got %v", conv.Weight().Tensor().Shape())
	}
	if conv.Bias() != nil {
		t.Error("bias requested off but present")
	}

	x := tensor.Zeros[float32](tensor.Shape{2, 3, 8, 8}, backend)
	out := conv.Forward(x)
	if !out.Shape().Equal(tensor.Shape{2, 8, 8, 8}) {
		t.Errorf("output shape: got %v", out.Shape())
	}

	// Depthwise: one kernel slice per channel.
	dw := NewConv2D(8, 8, 3, 1, 1, 8, false, backend)
	if !dw.Weight().Tensor().Shape().Equal(tensor.Shape{8, 1, 3, 3}) {
		t.Errorf("depthwise weight shape: got %v", dw.Weight().Tensor().Shape())
	}
}

// TestConv2D_Bias tests that the bias broadcasts over space.
func TestConv2D_Bias(t *testing.T) {
	backend := cpu.New()

	conv := NewConv2D(1, 2, 1, 1, 0, 1, true, backend)
	wData := conv.Weight().Tensor().Data()
	for i := range wData {
		wData[i] = 0
	}
	bData := conv.Bias().Tensor().Data()
	bData[0], bData[1] = 3, -1

	x := tensor.Zeros[float32](tensor.Shape{1, 1, 2, 2}, backend)
	out := conv.Forward(x).Data()
	want := []float32{3, 3, 3, 3, -1, -1, -1, -1}
	for i := range out {
		if out[i] != want[i] {
			t.Errorf("element %d: got %v, want %v", i, out[i], want[i])
		}
	}
}

// TestLinear_Forward tests y = xWᵀ + b with hand-set weights.
func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()

	lin := NewLinear(2, 2, true, backend)
	copy(lin.Weight().Tensor().Data(), []float32{1, 2, 3, 4}) // [out, in]
	copy(lin.Bias().Tensor().Data(), []float32{10, 20})

	x, err := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 2}, backend)
	if err != nil {
		t.Fatal(err)
	}
	out := lin.Forward(x).Data()
	if out[0] != 13 || out[1] != 27 {
		t.Errorf("forward: got %v, want [13 27]", out)
	}
}

// TestBatchNorm2D_TrainingNormalizes tests that training mode output
// has zero mean and unit variance per channel.
func TestBatchNorm2D_TrainingNormalizes(t *testing.T) {
	backend := cpu.New()

	bn := NewBatchNorm2D(1, backend)
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 1, 2, 2}, backend)
	if err != nil {
		t.Fatal(err)
	}
	out := bn.Forward(x).Data()

	var sum, sumSq float32
	for _, v := range out {
		sum += v
		sumSq += v * v
	}
	n := float32(len(out))
	mean := sum / n
	variance := sumSq/n - mean*mean

	if !approx(mean, 0, 1e-4) {
		t.Errorf("output mean: got %v", mean)
	}
	if !approx(variance, 1, 1e-2) {
		t.Errorf("output variance: got %v", variance)
	}
}

// TestBatchNorm2D_RunningStats tests the momentum update of the
// running estimates.
func TestBatchNorm2D_RunningStats(t *testing.T) {
	backend := cpu.New()

	bn := NewBatchNorm2D(1, backend)
	// All values 10: batch mean 10, batch variance 0.
	x := tensor.Full[float32](tensor.Shape{2, 1, 2, 2}, 10, backend)
	bn.Forward(x)

	mean, variance := bn.RunningStats()
	if !approx(mean[0], 1, 1e-5) { // 0.9*0 + 0.1*10
		t.Errorf("running mean: got %v, want 1", mean[0])
	}
	if !approx(variance[0], 0.9, 1e-5) { // 0.9*1 + 0.1*0
		t.Errorf("running variance: got %v, want 0.9", variance[0])
	}
}

// TestBatchNorm2D_EvalUsesRunningStats tests that evaluation mode is a
// fixed affine transform from the running estimates.
func TestBatchNorm2D_EvalUsesRunningStats(t *testing.T) {
	backend := cpu.New()

	bn := NewBatchNorm2D(1, backend)
	bn.SetTraining(false)

	// Fresh running stats are mean 0, var 1: eval is near identity.
	x, err := tensor.FromSlice([]float32{-2, 0, 2, 4}, tensor.Shape{1, 1, 2, 2}, backend)
	if err != nil {
		t.Fatal(err)
	}
	out := bn.Forward(x).Data()
	for i, v := range out {
		if !approx(v, x.Data()[i], 1e-3) {
			t.Errorf("element %d: got %v, want %v", i, v, x.Data()[i])
		}
	}
}

// TestBatchNorm1D_Training tests per-feature normalization of vectors.
func TestBatchNorm1D_Training(t *testing.T) {
	backend := cpu.New()

	bn := NewBatchNorm1D(2, backend)
	x, err := tensor.FromSlice([]float32{
		1, 100,
		3, 300,
	}, tensor.Shape{2, 2}, backend)
	if err != nil {
		t.Fatal(err)
	}
	out := bn.Forward(x).Data()

	// Both features normalize to ±1 (variance 1 per feature).
	want := []float32{-1, -1, 1, 1}
	for i := range out {
		if !approx(out[i], want[i], 1e-2) {
			t.Errorf("element %d: got %v, want %v", i, out[i], want[i])
		}
	}
}

// TestInstanceNorm2D tests per-sample, per-channel normalization.
func TestInstanceNorm2D(t *testing.T) {
	backend := cpu.New()

	in := NewInstanceNorm2D(1, backend)
	x, err := tensor.FromSlice([]float32{
		1, 2, 3, 4, // sample 0
		100, 200, 300, 400, // sample 1
	}, tensor.Shape{2, 1, 2, 2}, backend)
	if err != nil {
		t.Fatal(err)
	}
	out := in.Forward(x).Data()

	// Each sample normalizes independently to the same values.
	for i := 0; i < 4; i++ {
		if !approx(out[i], out[i+4], 1e-3) {
			t.Errorf("samples diverge at %d: %v vs %v", i, out[i], out[i+4])
		}
	}
	var mean float32
	for i := 0; i < 4; i++ {
		mean += out[i]
	}
	if !approx(mean/4, 0, 1e-4) {
		t.Errorf("sample mean: got %v", mean/4)
	}
}

// TestGlobalAvgPool tests spatial mean pooling to [N,C].
func TestGlobalAvgPool(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{
		1, 2, 3, 4, // channel 0
		10, 20, 30, 40, // channel 1
	}, tensor.Shape{1, 2, 2, 2}, backend)
	if err != nil {
		t.Fatal(err)
	}
	out := GlobalAvgPool(x)
	if !out.Shape().Equal(tensor.Shape{1, 2}) {
		t.Fatalf("shape: got %v", out.Shape())
	}
	data := out.Data()
	if !approx(data[0], 2.5, 1e-5) || !approx(data[1], 25, 1e-4) {
		t.Errorf("pooled: got %v, want [2.5 25]", data)
	}
}

// TestMaxPool2D_Module tests the module wrapper output shape.
func TestMaxPool2D_Module(t *testing.T) {
	backend := cpu.New()

	pool := NewMaxPool2D(3, 2, 1, backend)
	x := tensor.Zeros[float32](tensor.Shape{1, 4, 16, 16}, backend)
	out := pool.Forward(x)
	if !out.Shape().Equal(tensor.Shape{1, 4, 8, 8}) {
		t.Errorf("shape: got %v", out.Shape())
	}
}

// TestKaimingNormal_Shape tests initializer output shape and that the
// values are not all zero.
func TestKaimingNormal_Shape(t *testing.T) {
	backend := cpu.New()

	w := KaimingNormal(64, tensor.Shape{8, 8}, backend)
	if !w.Shape().Equal(tensor.Shape{8, 8}) {
		t.Fatalf("shape: got %v", w.Shape())
	}
	allZero := true
	for _, v := range w.Data() {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Error("initializer produced all zeros")
	}
}

// TestParameter_Freeze tests the trainable flag.
func TestParameter_Freeze(t *testing.T) {
	backend := cpu.New()

	p := NewParameter("w", tensor.Ones[float32](tensor.Shape{2}, backend))
	if !p.Trainable() {
		t.Error("parameters must default to trainable")
	}
	p.SetTrainable(false)
	if p.Trainable() {
		t.Error("SetTrainable(false) did not freeze")
	}
}
