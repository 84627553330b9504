package ops

import "github.com/reid-ml/osnet/internal/tensor"

// Conv2DOp records a grouped 2D convolution. The backward pass
// delegates to the backend's dedicated convolution gradient kernels.
type Conv2DOp struct {
	input, kernel, output   *tensor.RawTensor
	stride, padding, groups int
}

// NewConv2DOp creates a convolution record.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding, groups int) *Conv2DOp {
	return &Conv2DOp{
		input:   input,
		kernel:  kernel,
		output:  output,
		stride:  stride,
		padding: padding,
		groups:  groups,
	}
}

func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradInput := backend.Conv2DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding, op.groups)
	gradKernel := backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding, op.groups)
	return []*tensor.RawTensor{gradInput, gradKernel}
}

func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

func (op *Conv2DOp) Output() *tensor.RawTensor { return op.output }
