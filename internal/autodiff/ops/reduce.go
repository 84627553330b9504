package ops

import "github.com/reid-ml/osnet/internal/tensor"

// SumOp records a full reduction to a single element. The gradient of
// every input element is the output gradient.
type SumOp struct {
	input, output *tensor.RawTensor
}

// NewSumOp creates a full-sum record.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

func (op *SumOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := tensor.MustNewRaw(op.input.Shape(), op.input.DType(), op.input.Device())
	gv := outputGrad.AsFloat32()[0]
	data := grad.AsFloat32()
	for i := range data {
		data[i] = gv
	}
	return []*tensor.RawTensor{grad}
}

func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *SumOp) Output() *tensor.RawTensor   { return op.output }

// SumDimOp records a sum along one dimension. The backward pass repeats
// the output gradient along the reduced dimension.
type SumDimOp struct {
	input, output *tensor.RawTensor
	dim           int
}

// NewSumDimOp creates a dimension-sum record.
func NewSumDimOp(input, output *tensor.RawTensor, dim int) *SumDimOp {
	if dim < 0 {
		dim += len(input.Shape())
	}
	return &SumDimOp{input: input, output: output, dim: dim}
}

func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandDim(outputGrad, op.input.Shape(), op.dim, backend)}
}

func (op *SumDimOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *SumDimOp) Output() *tensor.RawTensor   { return op.output }

// MeanDimOp records an average along one dimension.
type MeanDimOp struct {
	input, output *tensor.RawTensor
	dim           int
}

// NewMeanDimOp creates a dimension-mean record.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int) *MeanDimOp {
	if dim < 0 {
		dim += len(input.Shape())
	}
	return &MeanDimOp{input: input, output: output, dim: dim}
}

func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	expanded := expandDim(outputGrad, op.input.Shape(), op.dim, backend)
	norm := float32(1) / float32(op.input.Shape()[op.dim])
	return []*tensor.RawTensor{backend.Scale(expanded, norm)}
}

func (op *MeanDimOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *MeanDimOp) Output() *tensor.RawTensor   { return op.output }
