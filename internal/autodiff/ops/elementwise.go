package ops

import "github.com/reid-ml/osnet/internal/tensor"

// AddOp records element-wise addition: d(a+b)/da = 1, d(a+b)/db = 1.
type AddOp struct {
	a, b, output *tensor.RawTensor
}

// NewAddOp creates an addition operation record.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{a: a, b: b, output: output}
}

func (op *AddOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.a.Shape(), backend),
		reduceBroadcast(outputGrad, op.b.Shape(), backend),
	}
}

func (op *AddOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *AddOp) Output() *tensor.RawTensor   { return op.output }

// SubOp records element-wise subtraction.
type SubOp struct {
	a, b, output *tensor.RawTensor
}

// NewSubOp creates a subtraction operation record.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{a: a, b: b, output: output}
}

func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.a.Shape(), backend),
		reduceBroadcast(negate(outputGrad, backend), op.b.Shape(), backend),
	}
}

func (op *SubOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *SubOp) Output() *tensor.RawTensor   { return op.output }

// MulOp records element-wise multiplication: d(a*b)/da = b, d(a*b)/db = a.
type MulOp struct {
	a, b, output *tensor.RawTensor
}

// NewMulOp creates a multiplication operation record.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{a: a, b: b, output: output}
}

func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradA := backend.Mul(outputGrad, op.b)
	gradB := backend.Mul(outputGrad, op.a)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, op.a.Shape(), backend),
		reduceBroadcast(gradB, op.b.Shape(), backend),
	}
}

func (op *MulOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *MulOp) Output() *tensor.RawTensor   { return op.output }

// DivOp records element-wise division:
// d(a/b)/da = 1/b, d(a/b)/db = -a/b².
type DivOp struct {
	a, b, output *tensor.RawTensor
}

// NewDivOp creates a division operation record.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{a: a, b: b, output: output}
}

func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradA := backend.Div(outputGrad, op.b)
	// -a/b² = -(a/b)/b = -output/b
	gradB := negate(backend.Mul(outputGrad, backend.Div(op.output, op.b)), backend)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, op.a.Shape(), backend),
		reduceBroadcast(gradB, op.b.Shape(), backend),
	}
}

func (op *DivOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *DivOp) Output() *tensor.RawTensor   { return op.output }
