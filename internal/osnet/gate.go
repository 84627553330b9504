package osnet

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/tensor"
)

// GateActivation selects the non-linearity applied to channel gate
// values. It is a closed set fixed at construction.
type GateActivation int

const (
	// GateSigmoid squashes gates into (0, 1).
	GateSigmoid GateActivation = iota
	// GateReLU clips gates at zero, leaving them unbounded above.
	GateReLU
	// GateLinear applies no activation.
	GateLinear
)

// String returns the configuration tag for the activation.
func (g GateActivation) String() string {
	switch g {
	case GateSigmoid:
		return "sigmoid"
	case GateReLU:
		return "relu"
	case GateLinear:
		return "linear"
	default:
		return fmt.Sprintf("GateActivation(%d)", int(g))
	}
}

// ParseGateActivation converts a configuration tag into a
// GateActivation. Unknown tags are a construction error.
func ParseGateActivation(s string) (GateActivation, error) {
	switch s {
	case "sigmoid":
		return GateSigmoid, nil
	case "relu":
		return GateReLU, nil
	case "linear":
		return GateLinear, nil
	default:
		return 0, fmt.Errorf("unknown gate activation: %q", s)
	}
}

// GateConfig tunes a ChannelGate beyond its channel count.
type GateConfig struct {
	// NumGates defaults to the input channel count.
	NumGates int
	// ReturnGates makes Forward return the gate tensor instead of the
	// gated input.
	ReturnGates bool
	// Activation applied to the raw gate values.
	Activation GateActivation
	// Reduction for the squeeze layer. Defaults to 16.
	Reduction int
	// LayerNorm normalizes the squeezed vector before the expansion.
	LayerNorm bool
}

// ChannelGate computes per-channel multiplicative gates from globally
// pooled statistics: squeeze (1x1 conv), optional layer norm, relu,
// expand (1x1 conv), activation.
type ChannelGate[B tensor.Backend] struct {
	inChannels  int
	numGates    int
	returnGates bool
	activation  GateActivation

	fc1   *nn.Conv2D[B]
	norm1 *gateLayerNorm[B]
	fc2   *nn.Conv2D[B]

	backend B
}

// NewChannelGate creates a channel gate over inChannels.
func NewChannelGate[B tensor.Backend](inChannels int, cfg GateConfig, backend B) (*ChannelGate[B], error) {
	if inChannels <= 0 {
		return nil, fmt.Errorf("channel gate: invalid channel count %d", inChannels)
	}
	reduction := cfg.Reduction
	if reduction == 0 {
		reduction = 16
	}
	if inChannels%reduction != 0 {
		return nil, fmt.Errorf("channel gate: channels %d not divisible by reduction %d", inChannels, reduction)
	}
	numGates := cfg.NumGates
	if numGates == 0 {
		numGates = inChannels
	}

	mid := inChannels / reduction
	g := &ChannelGate[B]{
		inChannels:  inChannels,
		numGates:    numGates,
		returnGates: cfg.ReturnGates,
		activation:  cfg.Activation,
		fc1:         nn.NewConv2D(inChannels, mid, 1, 1, 0, 1, true, backend),
		fc2:         nn.NewConv2D(mid, numGates, 1, 1, 0, 1, true, backend),
		backend:     backend,
	}
	if cfg.LayerNorm {
		g.norm1 = newGateLayerNorm[B](mid, backend)
	}
	return g, nil
}

// Forward gates the input channels. Input [N,C,H,W]; the gate tensor is
// [N,numGates,1,1] and broadcasts over the spatial dimensions.
func (g *ChannelGate[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	gates := x.MeanDim(3, true).MeanDim(2, true)
	gates = g.fc1.Forward(gates)
	if g.norm1 != nil {
		gates = g.norm1.Forward(gates)
	}
	gates = gates.ReLU()
	gates = g.fc2.Forward(gates)

	switch g.activation {
	case GateSigmoid:
		gates = gates.Sigmoid()
	case GateReLU:
		gates = gates.ReLU()
	case GateLinear:
		// Raw gate values pass through, including negatives.
	}

	if g.returnGates {
		return gates
	}
	return x.Mul(gates)
}

// Parameters returns all trainable parameters.
func (g *ChannelGate[B]) Parameters() []*nn.Parameter[B] {
	params := append(g.fc1.Parameters(), g.fc2.Parameters()...)
	if g.norm1 != nil {
		params = append(params, g.norm1.weight, g.norm1.bias)
	}
	return params
}

func (g *ChannelGate[B]) register(r *registry[B], prefix string) {
	r.add(prefix+".fc1.weight", g.fc1.Weight())
	r.add(prefix+".fc1.bias", g.fc1.Bias())
	if g.norm1 != nil {
		r.add(prefix+".norm1.weight", g.norm1.weight)
		r.add(prefix+".norm1.bias", g.norm1.bias)
	}
	r.add(prefix+".fc2.weight", g.fc2.Weight())
	r.add(prefix+".fc2.bias", g.fc2.Bias())
}

// gateLayerNorm normalizes the squeezed [N,C,1,1] gate vector over its
// channels, with affine parameters.
type gateLayerNorm[B tensor.Backend] struct {
	weight *nn.Parameter[B]
	bias   *nn.Parameter[B]
	eps    float32
}

func newGateLayerNorm[B tensor.Backend](numFeatures int, backend B) *gateLayerNorm[B] {
	return &gateLayerNorm[B]{
		weight: nn.NewParameter("weight", nn.Ones(tensor.Shape{numFeatures}, backend)),
		bias:   nn.NewParameter("bias", nn.Zeros(tensor.Shape{numFeatures}, backend)),
		eps:    1e-5,
	}
}

func (ln *gateLayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	mean := x.MeanDim(1, true)
	diff := x.Sub(mean)
	variance := diff.Mul(diff).MeanDim(1, true)
	normalized := diff.Mul(variance.Shift(ln.eps).Rsqrt())

	c := ln.weight.Tensor().Shape()[0]
	return normalized.
		Mul(ln.weight.Tensor().Reshape(1, c, 1, 1)).
		Add(ln.bias.Tensor().Reshape(1, c, 1, 1))
}
