package nn

import (
	"github.com/reid-ml/osnet/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    int
	backend    B
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *MaxPool2D[B] {
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride, padding: padding, backend: backend}
}

// Forward pools [N,C,H,W] down spatially.
func (p *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	raw := p.backend.MaxPool2D(input.Raw(), p.kernelSize, p.stride, p.padding)
	return tensor.New[float32, B](raw, p.backend)
}

// Parameters returns an empty slice: pooling has no parameters.
func (p *MaxPool2D[B]) Parameters() []*Parameter[B] { return nil }

// AvgPool2D is a 2D average pooling layer (no padding).
type AvgPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	backend    B
}

// NewAvgPool2D creates an average pooling layer.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride int, backend B) *AvgPool2D[B] {
	return &AvgPool2D[B]{kernelSize: kernelSize, stride: stride, backend: backend}
}

// Forward pools [N,C,H,W] down spatially.
func (p *AvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	raw := p.backend.AvgPool2D(input.Raw(), p.kernelSize, p.stride)
	return tensor.New[float32, B](raw, p.backend)
}

// Parameters returns an empty slice: pooling has no parameters.
func (p *AvgPool2D[B]) Parameters() []*Parameter[B] { return nil }

// GlobalAvgPool collapses [N,C,H,W] to [N,C] by spatial averaging.
func GlobalAvgPool[B tensor.Backend](input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.MeanDim(3, false).MeanDim(2, false)
}
