package optim

import (
	"math"

	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/tensor"
)

// Adam implements adaptive moment estimation with bias correction and
// optional weight decay.
type Adam[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	beta1       float32
	beta2       float32
	eps         float32
	weightDecay float32
	step        int

	m map[*nn.Parameter[B]][]float32 // first moment
	v map[*nn.Parameter[B]][]float32 // second moment
}

// AdamConfig holds Adam hyperparameters.
type AdamConfig struct {
	LR          float32 // learning rate (default 0.001)
	Beta1       float32 // first moment decay (default 0.9)
	Beta2       float32 // second moment decay (default 0.999)
	Eps         float32 // numerical stability (default 1e-8)
	WeightDecay float32 // L2 penalty coefficient
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Beta1 == 0 {
		config.Beta1 = 0.9
	}
	if config.Beta2 == 0 {
		config.Beta2 = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam[B]{
		params:      params,
		lr:          config.LR,
		beta1:       config.Beta1,
		beta2:       config.Beta2,
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		m:           make(map[*nn.Parameter[B]][]float32),
		v:           make(map[*nn.Parameter[B]][]float32),
	}
}

// AddParameters registers extra parameters, e.g. loss criteria with
// their own trainable state.
func (a *Adam[B]) AddParameters(params []*nn.Parameter[B]) {
	a.params = append(a.params, params...)
}

// Step updates all trainable parameters that received a gradient.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.step++
	correction1 := 1 - float32(math.Pow(float64(a.beta1), float64(a.step)))
	correction2 := 1 - float32(math.Pow(float64(a.beta2), float64(a.step)))

	for _, param := range a.params {
		if !param.Trainable() {
			continue
		}
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		paramData := param.Tensor().Data()
		gradData := grad.AsFloat32()

		m, exists := a.m[param]
		if !exists {
			m = make([]float32, len(paramData))
			a.m[param] = m
		}
		v := a.v[param]
		if v == nil {
			v = make([]float32, len(paramData))
			a.v[param] = v
		}

		for i := range paramData {
			g := gradData[i] + a.weightDecay*paramData[i]
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			mHat := m[i] / correction1
			vHat := v[i] / correction2
			paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 { return a.lr }

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) { a.lr = lr }
