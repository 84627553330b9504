// Package autodiff provides reverse-mode automatic differentiation as a
// backend decorator. AutodiffBackend wraps any tensor.Backend, delegates
// the forward computation to it, and records each operation on a
// GradientTape for the backward pass.
package autodiff

import (
	"github.com/reid-ml/osnet/internal/autodiff/ops"
	"github.com/reid-ml/osnet/internal/tensor"
)

// AutodiffBackend decorates a backend with gradient tracking.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates an autodiff decorator around a backend.
func New[B tensor.Backend](inner B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{inner: inner, tape: NewGradientTape()}
}

// Tape returns the gradient tape.
func (b *AutodiffBackend[B]) Tape() *GradientTape { return b.tape }

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B { return b.inner }

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string { return "Autodiff(" + b.inner.Name() + ")" }

// Device returns the compute device of the wrapped backend.
func (b *AutodiffBackend[B]) Device() tensor.Device { return b.inner.Device() }

func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Add(x, y)
	b.tape.Record(ops.NewAddOp(x, y, out))
	return out
}

func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sub(x, y)
	b.tape.Record(ops.NewSubOp(x, y, out))
	return out
}

func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Mul(x, y)
	b.tape.Record(ops.NewMulOp(x, y, out))
	return out
}

func (b *AutodiffBackend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Div(x, y)
	b.tape.Record(ops.NewDivOp(x, y, out))
	return out
}

func (b *AutodiffBackend[B]) Scale(x *tensor.RawTensor, scale float32) *tensor.RawTensor {
	out := b.inner.Scale(x, scale)
	b.tape.Record(ops.NewScaleOp(x, out, scale))
	return out
}

func (b *AutodiffBackend[B]) Shift(x *tensor.RawTensor, offset float32) *tensor.RawTensor {
	out := b.inner.Shift(x, offset)
	b.tape.Record(ops.NewShiftOp(x, out))
	return out
}

func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.MatMul(x, y)
	b.tape.Record(ops.NewMatMulOp(x, y, out))
	return out
}

func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	out := b.inner.Conv2D(input, kernel, stride, padding, groups)
	b.tape.Record(ops.NewConv2DOp(input, kernel, out, stride, padding, groups))
	return out
}

func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding, groups)
}

func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding, groups)
}

func (b *AutodiffBackend[B]) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	out := b.inner.MaxPool2D(input, kernelSize, stride, padding)
	if b.tape.IsRecording() {
		indices := b.inner.MaxPool2DIndices(input, kernelSize, stride, padding)
		b.tape.Record(ops.NewMaxPool2DOp(input, out, indices))
	}
	return out
}

func (b *AutodiffBackend[B]) MaxPool2DIndices(input *tensor.RawTensor, kernelSize, stride, padding int) []int {
	return b.inner.MaxPool2DIndices(input, kernelSize, stride, padding)
}

func (b *AutodiffBackend[B]) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int) *tensor.RawTensor {
	return b.inner.MaxPool2DBackward(input, grad, maxIndices)
}

func (b *AutodiffBackend[B]) AvgPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	out := b.inner.AvgPool2D(input, kernelSize, stride)
	b.tape.Record(ops.NewAvgPool2DOp(input, out, kernelSize, stride))
	return out
}

func (b *AutodiffBackend[B]) AvgPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	return b.inner.AvgPool2DBackward(input, grad, kernelSize, stride)
}

func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.ReLU(x)
	b.tape.Record(ops.NewReLUOp(x, out))
	return out
}

func (b *AutodiffBackend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sigmoid(x)
	b.tape.Record(ops.NewSigmoidOp(x, out))
	return out
}

func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Exp(x)
	b.tape.Record(ops.NewExpOp(x, out))
	return out
}

func (b *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sqrt(x)
	b.tape.Record(ops.NewSqrtOp(x, out))
	return out
}

func (b *AutodiffBackend[B]) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Rsqrt(x)
	b.tape.Record(ops.NewRsqrtOp(x, out))
	return out
}

func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sum(x)
	b.tape.Record(ops.NewSumOp(x, out))
	return out
}

func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	out := b.inner.SumDim(x, dim, keepDim)
	b.tape.Record(ops.NewSumDimOp(x, out, dim))
	return out
}

func (b *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	out := b.inner.MeanDim(x, dim, keepDim)
	b.tape.Record(ops.NewMeanDimOp(x, out, dim))
	return out
}

// Argmax is not differentiable and is never recorded.
func (b *AutodiffBackend[B]) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.inner.Argmax(x, dim)
}

func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	out := b.inner.Reshape(t, newShape)
	b.tape.Record(ops.NewReshapeOp(t, out))
	return out
}

func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	rank := len(t.Shape())
	resolved := axes
	if len(resolved) == 0 {
		resolved = make([]int, rank)
		for i := range resolved {
			resolved[i] = rank - 1 - i
		}
	}
	out := b.inner.Transpose(t, resolved...)
	b.tape.Record(ops.NewTransposeOp(t, out, resolved))
	return out
}

func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	out := b.inner.Cat(tensors, dim)
	b.tape.Record(ops.NewCatOp(tensors, out, dim))
	return out
}

func (b *AutodiffBackend[B]) IndexSelect(x, index *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.IndexSelect(x, index)
	b.tape.Record(ops.NewIndexSelectOp(x, index, out))
	return out
}

// CrossEntropy computes fused softmax cross-entropy with label
// smoothing over [batch, classes] logits and [batch] int32 targets,
// returning a single-element loss tensor.
func (b *AutodiffBackend[B]) CrossEntropy(logits, targets *tensor.RawTensor, smoothing float32) *tensor.RawTensor {
	op := ops.NewCrossEntropyOp(logits, targets, smoothing)
	b.tape.Record(op)
	return op.Output()
}
