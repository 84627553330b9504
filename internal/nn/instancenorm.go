package nn

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/tensor"
)

// InstanceNorm2D normalizes each sample's channels independently over
// the spatial dimensions. Affine, no running statistics: the same
// normalization applies in training and evaluation.
type InstanceNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float32

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewInstanceNorm2D creates an instance normalization layer.
func NewInstanceNorm2D[B tensor.Backend](numFeatures int, backend B) *InstanceNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("instancenorm2d: invalid feature count %d", numFeatures))
	}
	return &InstanceNorm2D[B]{
		numFeatures: numFeatures,
		eps:         1e-5,
		weight:      NewParameter("weight", Ones(tensor.Shape{numFeatures}, backend)),
		bias:        NewParameter("bias", Zeros(tensor.Shape{numFeatures}, backend)),
		backend:     backend,
	}
}

// Forward normalizes each [C,H,W] slice per channel.
func (in *InstanceNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("instancenorm2d: expected 4D input, got %v", shape))
	}
	if shape[1] != in.numFeatures {
		panic(fmt.Sprintf("instancenorm2d: input channels %d != expected %d", shape[1], in.numFeatures))
	}

	mean := input.MeanDim(2, true).MeanDim(3, true)
	diff := input.Sub(mean)
	variance := diff.Mul(diff).MeanDim(2, true).MeanDim(3, true)

	normalized := diff.Mul(variance.Shift(in.eps).Rsqrt())
	return normalized.
		Mul(in.weight.Tensor().Reshape(1, in.numFeatures, 1, 1)).
		Add(in.bias.Tensor().Reshape(1, in.numFeatures, 1, 1))
}

// Parameters returns the affine scale and shift.
func (in *InstanceNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{in.weight, in.bias}
}

// Weight returns the scale parameter.
func (in *InstanceNorm2D[B]) Weight() *Parameter[B] { return in.weight }

// Bias returns the shift parameter.
func (in *InstanceNorm2D[B]) Bias() *Parameter[B] { return in.bias }
