package ops

import "github.com/reid-ml/osnet/internal/tensor"

// ScaleOp records multiplication by a scalar: d(s*x)/dx = s.
type ScaleOp struct {
	input, output *tensor.RawTensor
	scale         float32
}

// NewScaleOp creates a scalar multiplication record.
func NewScaleOp(input, output *tensor.RawTensor, scale float32) *ScaleOp {
	return &ScaleOp{input: input, output: output, scale: scale}
}

func (op *ScaleOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Scale(outputGrad, op.scale)}
}

func (op *ScaleOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *ScaleOp) Output() *tensor.RawTensor   { return op.output }

// ShiftOp records addition of a scalar: d(x+c)/dx = 1.
type ShiftOp struct {
	input, output *tensor.RawTensor
}

// NewShiftOp creates a scalar addition record.
func NewShiftOp(input, output *tensor.RawTensor) *ShiftOp {
	return &ShiftOp{input: input, output: output}
}

func (op *ShiftOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad.Clone()}
}

func (op *ShiftOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *ShiftOp) Output() *tensor.RawTensor   { return op.output }
