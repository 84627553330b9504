// Package nn implements neural network modules.
//
// Building blocks follow the PyTorch nn.Module shape, adapted for Go
// generics: a Module interface, Parameter values with gradient and
// trainability tracking, and layers as generic structs over a backend.
package nn

import (
	"github.com/reid-ml/osnet/internal/tensor"
)

// Module is the base interface for neural network components.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module for an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested module parameters. Modules without parameters
	// return an empty slice.
	Parameters() []*Parameter[B]
}

// TrainableModule is implemented by modules whose forward pass differs
// between training and evaluation (batch statistics vs running
// estimates).
type TrainableModule interface {
	SetTraining(training bool)
}
