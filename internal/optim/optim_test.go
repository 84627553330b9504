package optim

import (
	"math"
	"testing"

	"github.com/reid-ml/osnet/internal/backend/cpu"
	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/tensor"
)

func newParam(t *testing.T, data []float32) *nn.Parameter[*cpu.CPUBackend] {
	t.Helper()
	tt, err := tensor.FromSlice(data, tensor.Shape{len(data)}, cpu.New())
	if err != nil {
		t.Fatal(err)
	}
	return nn.NewParameter("w", tt)
}

func gradsFor(t *testing.T, p *nn.Parameter[*cpu.CPUBackend], data []float32) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	g, err := tensor.FromSlice(data, tensor.Shape{len(data)}, cpu.New())
	if err != nil {
		t.Fatal(err)
	}
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor().Raw(): g.Raw()}
}

// TestSGD_Step tests the vanilla update w -= lr * g.
func TestSGD_Step(t *testing.T) {
	p := newParam(t, []float32{1, 2})
	opt := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, SGDConfig{LR: 0.1})

	opt.Step(gradsFor(t, p, []float32{1, -1}))

	want := []float32{0.9, 2.1}
	for i, v := range p.Tensor().Data() {
		if math.Abs(float64(v-want[i])) > 1e-6 {
			t.Errorf("element %d: got %v, want %v", i, v, want[i])
		}
	}
}

// TestSGD_Momentum tests velocity accumulation over two steps.
func TestSGD_Momentum(t *testing.T) {
	p := newParam(t, []float32{0})
	opt := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, SGDConfig{LR: 1, Momentum: 0.5})

	// Step 1: v = 1, w = -1. Step 2: v = 0.5 + 1 = 1.5, w = -2.5.
	opt.Step(gradsFor(t, p, []float32{1}))
	opt.Step(gradsFor(t, p, []float32{1}))

	if got := p.Tensor().Data()[0]; math.Abs(float64(got+2.5)) > 1e-6 {
		t.Errorf("got %v, want -2.5", got)
	}
}

// TestSGD_WeightDecay tests the L2 term g + wd*w.
func TestSGD_WeightDecay(t *testing.T) {
	p := newParam(t, []float32{10})
	opt := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, SGDConfig{LR: 0.1, WeightDecay: 0.1})

	// g_eff = 0 + 0.1*10 = 1, w = 10 - 0.1 = 9.9
	opt.Step(gradsFor(t, p, []float32{0}))

	if got := p.Tensor().Data()[0]; math.Abs(float64(got-9.9)) > 1e-5 {
		t.Errorf("got %v, want 9.9", got)
	}
}

// TestSGD_SkipsFrozen tests that frozen parameters are not updated.
func TestSGD_SkipsFrozen(t *testing.T) {
	p := newParam(t, []float32{1})
	p.SetTrainable(false)
	opt := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, SGDConfig{LR: 1})

	opt.Step(gradsFor(t, p, []float32{100}))

	if got := p.Tensor().Data()[0]; got != 1 {
		t.Errorf("frozen parameter moved to %v", got)
	}
}

// TestSGD_MissingGradient tests that parameters outside the gradient
// map are left alone.
func TestSGD_MissingGradient(t *testing.T) {
	p := newParam(t, []float32{1})
	opt := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, SGDConfig{LR: 1})

	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{})

	if got := p.Tensor().Data()[0]; got != 1 {
		t.Errorf("parameter without gradient moved to %v", got)
	}
}

// TestAdam_FirstStep tests the bias-corrected first update, which
// equals -lr * sign(g) regardless of gradient magnitude.
func TestAdam_FirstStep(t *testing.T) {
	p := newParam(t, []float32{1, 1})
	opt := NewAdam([]*nn.Parameter[*cpu.CPUBackend]{p}, AdamConfig{LR: 0.1})

	opt.Step(gradsFor(t, p, []float32{3, -0.001}))

	want := []float32{0.9, 1.1}
	for i, v := range p.Tensor().Data() {
		if math.Abs(float64(v-want[i])) > 1e-3 {
			t.Errorf("element %d: got %v, want %v", i, v, want[i])
		}
	}
}

// TestStepLR tests geometric decay every stepSize epochs.
func TestStepLR(t *testing.T) {
	p := newParam(t, []float32{0})
	opt := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, SGDConfig{LR: 1})
	sched := NewStepLR(opt, 2, 0.1)

	wantLRs := []float32{1, 0.1, 0.1, 0.01}
	for i, want := range wantLRs {
		sched.Step()
		if got := opt.GetLR(); math.Abs(float64(got-want)) > 1e-7 {
			t.Errorf("after step %d: lr %v, want %v", i+1, got, want)
		}
	}
}

// TestMultiStepLR tests milestone decay.
func TestMultiStepLR(t *testing.T) {
	p := newParam(t, []float32{0})
	opt := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, SGDConfig{LR: 1})
	sched := NewMultiStepLR(opt, []int{2, 4}, 0.1)

	wantLRs := []float32{1, 0.1, 0.1, 0.01, 0.01}
	for i, want := range wantLRs {
		sched.Step()
		if got := opt.GetLR(); math.Abs(float64(got-want)) > 1e-7 {
			t.Errorf("after step %d: lr %v, want %v", i+1, got, want)
		}
	}
}

// TestAddParameters tests late registration of extra parameters.
func TestAddParameters(t *testing.T) {
	p1 := newParam(t, []float32{1})
	opt := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p1}, SGDConfig{LR: 1})

	p2 := newParam(t, []float32{5})
	opt.AddParameters([]*nn.Parameter[*cpu.CPUBackend]{p2})

	opt.Step(gradsFor(t, p2, []float32{1}))
	if got := p2.Tensor().Data()[0]; got != 4 {
		t.Errorf("late parameter: got %v, want 4", got)
	}
}
