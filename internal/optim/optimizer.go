// Package optim implements optimization algorithms and learning-rate
// schedules for training.
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.065, Momentum: 0.9})
//	scheduler := optim.NewStepLR(optimizer, 20, 0.1)
//
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
//	optimizer.ZeroGrad()
package optim

import (
	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/tensor"
)

// Optimizer is the interface all optimization algorithms implement.
// Frozen parameters (Trainable() == false) are never updated.
type Optimizer interface {
	// Step applies gradient updates to all trainable parameters, using
	// the gradient map produced by a backward pass.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate. Schedulers call this.
	SetLR(lr float32)
}

// getGradient retrieves the gradient for a parameter, or nil when the
// parameter did not participate in the forward pass.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
