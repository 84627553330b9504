package ops

import "github.com/reid-ml/osnet/internal/tensor"

// ReshapeOp records a shape change. The gradient is the output gradient
// reshaped back to the input shape.
type ReshapeOp struct {
	input, output *tensor.RawTensor
}

// NewReshapeOp creates a reshape record.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{input: input, output: output}
}

func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad.Clone(), op.input.Shape())}
}

func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *ReshapeOp) Output() *tensor.RawTensor   { return op.output }

// TransposeOp records a dimension permutation. The gradient is the
// output gradient permuted by the inverse axes.
type TransposeOp struct {
	input, output *tensor.RawTensor
	axes          []int
}

// NewTransposeOp creates a transpose record. axes must be the resolved
// permutation actually applied in the forward pass.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{input: input, output: output, axes: axes}
}

func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}

func (op *TransposeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *TransposeOp) Output() *tensor.RawTensor   { return op.output }

// CatOp records concatenation along a dimension. The backward pass
// slices the output gradient back into per-input pieces.
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp creates a concatenation record.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	if dim < 0 {
		dim += len(output.Shape())
	}
	return &CatOp{inputs: inputs, output: output, dim: dim}
}

func (op *CatOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	outShape := op.output.Shape()
	outer, inner := 1, 1
	for d := 0; d < op.dim; d++ {
		outer *= outShape[d]
	}
	for d := op.dim + 1; d < len(outShape); d++ {
		inner *= outShape[d]
	}
	total := outShape[op.dim]
	gData := outputGrad.AsFloat32()

	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		dimSize := in.Shape()[op.dim]
		grad := tensor.MustNewRaw(in.Shape(), in.DType(), in.Device())
		dst := grad.AsFloat32()
		rowLen := dimSize * inner
		for o := 0; o < outer; o++ {
			src := (o*total + offset) * inner
			copy(dst[o*rowLen:(o+1)*rowLen], gData[src:src+rowLen])
		}
		grads[i] = grad
		offset += dimSize
	}
	return grads
}

func (op *CatOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *CatOp) Output() *tensor.RawTensor   { return op.output }

// IndexSelectOp records a row gather along dim 0. The backward pass
// scatter-adds gradient rows back to the selected source rows; no
// gradient flows to the integer index.
type IndexSelectOp struct {
	input, index, output *tensor.RawTensor
}

// NewIndexSelectOp creates a gather record.
func NewIndexSelectOp(input, index, output *tensor.RawTensor) *IndexSelectOp {
	return &IndexSelectOp{input: input, index: index, output: output}
}

func (op *IndexSelectOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad := tensor.MustNewRaw(op.input.Shape(), op.input.DType(), op.input.Device())
	rowLen := 1
	for _, d := range op.input.Shape()[1:] {
		rowLen *= d
	}
	gData, dst := outputGrad.AsFloat32(), grad.AsFloat32()
	for i, r := range op.index.AsInt32() {
		src := gData[i*rowLen : (i+1)*rowLen]
		row := dst[int(r)*rowLen : (int(r)+1)*rowLen]
		for j := range row {
			row[j] += src[j]
		}
	}
	return []*tensor.RawTensor{grad}
}

func (op *IndexSelectOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *IndexSelectOp) Output() *tensor.RawTensor   { return op.output }
