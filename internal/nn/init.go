package nn

import (
	"math"

	"github.com/reid-ml/osnet/internal/tensor"
)

// KaimingNormal initializes weights from N(0, sqrt(2/fanOut)).
//
// Fan-out mode preserves the magnitude of gradients through ReLU
// networks. For a convolution, fanOut = out_channels * kernel_h *
// kernel_w / groups.
func KaimingNormal[B tensor.Backend](fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	std := float32(math.Sqrt(2.0 / float64(fanOut)))
	t := tensor.Randn(shape, backend)
	data := t.Data()
	for i := range data {
		data[i] *= std
	}
	return t
}

// Normal initializes weights from N(0, std).
func Normal[B tensor.Backend](std float32, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Randn(shape, backend)
	data := t.Data()
	for i := range data {
		data[i] *= std
	}
	return t
}

// Zeros creates a zero-filled tensor. Commonly used for biases.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a one-filled tensor. Commonly used for norm scales.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
