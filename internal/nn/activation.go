package nn

import (
	"github.com/reid-ml/osnet/internal/tensor"
)

// ReLU is the rectified linear unit activation module.
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] { return &ReLU[B]{} }

// Forward applies max(0, x).
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns an empty slice: activations have no parameters.
func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

// Sigmoid is the logistic sigmoid activation module.
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a sigmoid activation.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] { return &Sigmoid[B]{} }

// Forward applies 1/(1+exp(-x)).
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Sigmoid()
}

// Parameters returns an empty slice: activations have no parameters.
func (s *Sigmoid[B]) Parameters() []*Parameter[B] { return nil }
