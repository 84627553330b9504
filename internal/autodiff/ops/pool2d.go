package ops

import "github.com/reid-ml/osnet/internal/tensor"

// MaxPool2DOp records 2D max pooling. The flat input index of each
// window maximum is captured at construction so the backward pass can
// route gradients without recomputing the forward scan.
type MaxPool2DOp struct {
	input, output *tensor.RawTensor
	maxIndices    []int
}

// NewMaxPool2DOp creates a max pooling record.
func NewMaxPool2DOp(input, output *tensor.RawTensor, maxIndices []int) *MaxPool2DOp {
	return &MaxPool2DOp{input: input, output: output, maxIndices: maxIndices}
}

func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPool2DBackward(op.input, outputGrad, op.maxIndices)}
}

func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *MaxPool2DOp) Output() *tensor.RawTensor   { return op.output }

// AvgPool2DOp records 2D average pooling.
type AvgPool2DOp struct {
	input, output      *tensor.RawTensor
	kernelSize, stride int
}

// NewAvgPool2DOp creates an average pooling record.
func NewAvgPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *AvgPool2DOp {
	return &AvgPool2DOp{input: input, output: output, kernelSize: kernelSize, stride: stride}
}

func (op *AvgPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.AvgPool2DBackward(op.input, outputGrad, op.kernelSize, op.stride)}
}

func (op *AvgPool2DOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }
func (op *AvgPool2DOp) Output() *tensor.RawTensor   { return op.output }
