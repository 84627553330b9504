package tensor

// Backend defines the interface that compute backends must implement.
// The CPU backend provides the reference kernels; the autodiff decorator
// wraps any Backend and records operations on a gradient tape.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar affine: x*scale and x+offset.
	Scale(x *RawTensor, scale float32) *RawTensor
	Shift(x *RawTensor, offset float32) *RawTensor

	// MatMul performs 2D matrix multiplication: [M,K] @ [K,N] -> [M,N].
	MatMul(a, b *RawTensor) *RawTensor

	// Conv2D performs grouped 2D convolution.
	// Input [N,C_in,H,W], kernel [C_out,C_in/groups,K_h,K_w].
	Conv2D(input, kernel *RawTensor, stride, padding, groups int) *RawTensor
	// Conv2DInputBackward computes the input gradient of Conv2D.
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding, groups int) *RawTensor
	// Conv2DKernelBackward computes the kernel gradient of Conv2D.
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding, groups int) *RawTensor

	// Pooling. MaxPool2D ignores padded positions when selecting maxima.
	MaxPool2D(input *RawTensor, kernelSize, stride, padding int) *RawTensor
	// MaxPool2DIndices returns the flat input index of the maximum for
	// each output position, consumed by MaxPool2DBackward.
	MaxPool2DIndices(input *RawTensor, kernelSize, stride, padding int) []int
	MaxPool2DBackward(input, grad *RawTensor, maxIndices []int) *RawTensor
	AvgPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	AvgPool2DBackward(input, grad *RawTensor, kernelSize, stride int) *RawTensor

	// Element-wise math and activations.
	ReLU(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Exp(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	// Shape manipulation.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor
	// IndexSelect selects rows of x along dim 0 by int32 index.
	IndexSelect(x, index *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
