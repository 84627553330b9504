package ops

import "github.com/reid-ml/osnet/internal/tensor"

// ReLUOp records the rectified linear unit:
// d(ReLU(x))/dx = 1 if x > 0, else 0.
type ReLUOp struct {
	input, output *tensor.RawTensor
}

// NewReLUOp creates a ReLU activation record.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{input: input, output: output}
}

func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := tensor.MustNewRaw(op.input.Shape(), op.input.DType(), op.input.Device())
	in, g, out := op.input.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()
	for i := range in {
		if in[i] > 0 {
			out[i] = g[i]
		}
	}
	return []*tensor.RawTensor{grad}
}

func (op *ReLUOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *ReLUOp) Output() *tensor.RawTensor   { return op.output }

// SigmoidOp records the logistic sigmoid:
// d(σ(x))/dx = σ(x)(1-σ(x)), computed from the saved output.
type SigmoidOp struct {
	input, output *tensor.RawTensor
}

// NewSigmoidOp creates a sigmoid activation record.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{input: input, output: output}
}

func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := tensor.MustNewRaw(op.input.Shape(), op.input.DType(), op.input.Device())
	y, g, out := op.output.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()
	for i := range y {
		out[i] = g[i] * y[i] * (1 - y[i])
	}
	return []*tensor.RawTensor{grad}
}

func (op *SigmoidOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *SigmoidOp) Output() *tensor.RawTensor   { return op.output }

// ExpOp records the exponential: d(exp(x))/dx = exp(x).
type ExpOp struct {
	input, output *tensor.RawTensor
}

// NewExpOp creates an exponential record.
func NewExpOp(input, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{input: input, output: output}
}

func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}

func (op *ExpOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *ExpOp) Output() *tensor.RawTensor   { return op.output }

// SqrtOp records the square root: d(√x)/dx = 1/(2√x).
type SqrtOp struct {
	input, output *tensor.RawTensor
}

// NewSqrtOp creates a square root record.
func NewSqrtOp(input, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{input: input, output: output}
}

func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(backend.Scale(outputGrad, 0.5), op.output)}
}

func (op *SqrtOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *SqrtOp) Output() *tensor.RawTensor   { return op.output }

// RsqrtOp records the reciprocal square root:
// d(x^-1/2)/dx = -x^-3/2/2 = -y³/2 where y is the saved output.
type RsqrtOp struct {
	input, output *tensor.RawTensor
}

// NewRsqrtOp creates a reciprocal square root record.
func NewRsqrtOp(input, output *tensor.RawTensor) *RsqrtOp {
	return &RsqrtOp{input: input, output: output}
}

func (op *RsqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	yCubed := backend.Mul(backend.Mul(op.output, op.output), op.output)
	return []*tensor.RawTensor{backend.Scale(backend.Mul(outputGrad, yCubed), -0.5)}
}

func (op *RsqrtOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *RsqrtOp) Output() *tensor.RawTensor   { return op.output }
