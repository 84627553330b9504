package nn

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/tensor"
)

// Linear is a fully connected layer: output = input @ weightᵀ + bias.
//
// Input shape:  [batch, in_features]
// Weight shape: [out_features, in_features]
// Output shape: [batch, out_features]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	useBias     bool

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewLinear creates a fully connected layer. Weights are drawn from
// N(0, 0.01), the classifier initialization; bias starts at zero.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, useBias bool, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weight := NewParameter("weight", Normal(0.01, tensor.Shape{outFeatures, inFeatures}, backend))
	var bias *Parameter[B]
	if useBias {
		bias = NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend))
	}

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		useBias:     useBias,
		weight:      weight,
		bias:        bias,
		backend:     backend,
	}
}

// Forward computes input @ weightᵀ + bias.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("linear: expected 2D input [batch, features], got %dD", len(inputShape)))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: input features %d != expected %d", inputShape[1], l.inFeatures))
	}

	output := input.MatMul(l.weight.Tensor().T())
	if l.useBias {
		output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	}
	return output
}

// Parameters returns all trainable parameters.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.useBias {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] { return l.weight }

// Bias returns the bias parameter, or nil without bias.
func (l *Linear[B]) Bias() *Parameter[B] { return l.bias }

// OutFeatures returns the output width.
func (l *Linear[B]) OutFeatures() int { return l.outFeatures }
