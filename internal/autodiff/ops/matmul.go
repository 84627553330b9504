package ops

import "github.com/reid-ml/osnet/internal/tensor"

// MatMulOp records matrix multiplication:
// d(A@B)/dA = grad @ Bᵀ, d(A@B)/dB = Aᵀ @ grad.
type MatMulOp struct {
	a, b, output *tensor.RawTensor
}

// NewMatMulOp creates a matrix multiplication record.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{a: a, b: b, output: output}
}

func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradA := backend.MatMul(outputGrad, backend.Transpose(op.b, 1, 0))
	gradB := backend.MatMul(backend.Transpose(op.a, 1, 0), outputGrad)
	return []*tensor.RawTensor{gradA, gradB}
}

func (op *MatMulOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *MatMulOp) Output() *tensor.RawTensor   { return op.output }
