package optim

import (
	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/tensor"
)

// SGD implements stochastic gradient descent with momentum and weight
// decay.
//
// Update rule:
//
//	g = grad + weight_decay * param
//	v = momentum * v + g
//	param -= lr * v
type SGD[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	momentum    float32
	weightDecay float32
	velocities  map[*nn.Parameter[B]][]float32
}

// SGDConfig holds SGD hyperparameters.
type SGDConfig struct {
	LR          float32 // learning rate (default 0.01)
	Momentum    float32 // momentum factor in [0, 1)
	WeightDecay float32 // L2 penalty coefficient
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter[B]][]float32),
	}
}

// AddParameters registers extra parameters, e.g. loss criteria with
// their own trainable state.
func (s *SGD[B]) AddParameters(params []*nn.Parameter[B]) {
	s.params = append(s.params, params...)
}

// Step updates all trainable parameters that received a gradient.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		if !param.Trainable() {
			continue
		}
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		paramData := param.Tensor().Data()
		gradData := grad.AsFloat32()

		if s.momentum == 0 {
			for i := range paramData {
				g := gradData[i] + s.weightDecay*paramData[i]
				paramData[i] -= s.lr * g
			}
			continue
		}

		velocity, exists := s.velocities[param]
		if !exists {
			velocity = make([]float32, len(paramData))
			s.velocities[param] = velocity
		}
		for i := range paramData {
			g := gradData[i] + s.weightDecay*paramData[i]
			velocity[i] = s.momentum*velocity[i] + g
			paramData[i] -= s.lr * velocity[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 { return s.lr }

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) { s.lr = lr }
