package nn

import (
	"github.com/reid-ml/osnet/internal/tensor"
)

// Parameter is a trainable tensor: a layer weight or bias.
//
// The gradient is populated from the tape after a backward pass. The
// trainable flag supports staged training where a subset of layers is
// frozen; optimizers skip parameters with trainable == false.
type Parameter[B tensor.Backend] struct {
	name      string
	tensor    *tensor.Tensor[float32, B]
	grad      *tensor.Tensor[float32, B]
	trainable bool
}

// NewParameter creates a trainable parameter from an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t, trainable: true}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string { return p.name }

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] { return p.tensor }

// Grad returns the gradient tensor, or nil before the first backward pass.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] { return p.grad }

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) { p.grad = grad }

// ZeroGrad clears the gradient. Call before each training iteration.
func (p *Parameter[B]) ZeroGrad() { p.grad = nil }

// Trainable reports whether the parameter receives optimizer updates.
func (p *Parameter[B]) Trainable() bool { return p.trainable }

// SetTrainable freezes or unfreezes the parameter.
func (p *Parameter[B]) SetTrainable(trainable bool) { p.trainable = trainable }
