package osnet

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/tensor"
)

// BlockConfig tunes an OSBlock.
type BlockConfig struct {
	// InstanceNorm normalizes the residual sum per sample before the
	// final activation.
	InstanceNorm bool
	// BottleneckReduction divides the output width to get the
	// bottleneck width. Defaults to 4; must divide out channels.
	BottleneckReduction int
	// GateActivation for all four branch gates.
	GateActivation GateActivation
}

// BlockOutput carries both results of an OSBlock forward pass: the
// post-activation block output and the pre-projection gated branch sum.
// The fused tensor is what the auxiliary heads tap.
type BlockOutput[B tensor.Backend] struct {
	Out   *tensor.Tensor[float32, B]
	Fused *tensor.Tensor[float32, B]
}

// OSBlock is the omni-scale residual block: a 1x1 bottleneck feeding
// four branches of stacked lightweight 3x3 convolutions with receptive
// fields of 3, 5, 7 and 9, each gated by its own channel gate, summed,
// projected back up and added to the (possibly projected) identity.
type OSBlock[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	midChannels int

	conv1    *Conv1x1[B]
	branches [4][]*LightConv3x3[B]
	gates    [4]*ChannelGate[B]
	conv3    *Conv1x1Linear[B]

	downsample *Conv1x1Linear[B]
	in         *nn.InstanceNorm2D[B]
}

// NewOSBlock creates an omni-scale block mapping inChannels to
// outChannels. Returns an error when the bottleneck reduction does not
// divide the output width exactly.
func NewOSBlock[B tensor.Backend](inChannels, outChannels int, cfg BlockConfig, backend B) (*OSBlock[B], error) {
	reduction := cfg.BottleneckReduction
	if reduction == 0 {
		reduction = 4
	}
	if outChannels%reduction != 0 {
		return nil, fmt.Errorf("osblock: out channels %d not divisible by bottleneck reduction %d", outChannels, reduction)
	}
	mid := outChannels / reduction

	b := &OSBlock[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		midChannels: mid,
		conv1:       NewConv1x1(inChannels, mid, 1, 1, backend),
		conv3:       NewConv1x1Linear(mid, outChannels, 1, backend),
	}

	for branch := 0; branch < 4; branch++ {
		depth := branch + 1
		convs := make([]*LightConv3x3[B], depth)
		for i := range convs {
			convs[i] = NewLightConv3x3(mid, mid, backend)
		}
		b.branches[branch] = convs

		gate, err := NewChannelGate(mid, GateConfig{Activation: cfg.GateActivation}, backend)
		if err != nil {
			return nil, err
		}
		b.gates[branch] = gate
	}

	if inChannels != outChannels {
		b.downsample = NewConv1x1Linear(inChannels, outChannels, 1, backend)
	}
	if cfg.InstanceNorm {
		b.in = nn.NewInstanceNorm2D(outChannels, backend)
	}
	return b, nil
}

// Forward computes the block output and the fused branch sum.
func (b *OSBlock[B]) Forward(x *tensor.Tensor[float32, B]) BlockOutput[B] {
	identity := x
	x1 := b.conv1.Forward(x)

	var fused *tensor.Tensor[float32, B]
	for branch := 0; branch < 4; branch++ {
		h := x1
		for _, conv := range b.branches[branch] {
			h = conv.Forward(h)
		}
		gated := b.gates[branch].Forward(h)
		if fused == nil {
			fused = gated
		} else {
			fused = fused.Add(gated)
		}
	}

	x3 := b.conv3.Forward(fused)
	if b.downsample != nil {
		identity = b.downsample.Forward(identity)
	}
	out := x3.Add(identity)
	if b.in != nil {
		out = b.in.Forward(out)
	}
	return BlockOutput[B]{Out: out.ReLU(), Fused: fused}
}

// MidChannels returns the bottleneck width, which is also the width of
// the fused output.
func (b *OSBlock[B]) MidChannels() int { return b.midChannels }

// Parameters returns all trainable parameters.
func (b *OSBlock[B]) Parameters() []*nn.Parameter[B] {
	params := b.conv1.Parameters()
	for branch := 0; branch < 4; branch++ {
		for _, conv := range b.branches[branch] {
			params = append(params, conv.Parameters()...)
		}
		params = append(params, b.gates[branch].Parameters()...)
	}
	params = append(params, b.conv3.Parameters()...)
	if b.downsample != nil {
		params = append(params, b.downsample.Parameters()...)
	}
	if b.in != nil {
		params = append(params, b.in.Parameters()...)
	}
	return params
}

var branchNames = [4]string{"conv2a", "conv2b", "conv2c", "conv2d"}
var gateNames = [4]string{"gate_a", "gate_b", "gate_c", "gate_d"}

func (b *OSBlock[B]) register(r *registry[B], prefix string) {
	b.conv1.register(r, prefix+".conv1")
	for branch := 0; branch < 4; branch++ {
		convs := b.branches[branch]
		if len(convs) == 1 {
			convs[0].register(r, prefix+"."+branchNames[branch])
		} else {
			for i, conv := range convs {
				conv.register(r, fmt.Sprintf("%s.%s.%d", prefix, branchNames[branch], i))
			}
		}
		b.gates[branch].register(r, prefix+"."+gateNames[branch])
	}
	b.conv3.register(r, prefix+".conv3")
	if b.downsample != nil {
		b.downsample.register(r, prefix+".downsample")
	}
	if b.in != nil {
		r.add(prefix+".IN.weight", b.in.Weight())
		r.add(prefix+".IN.bias", b.in.Bias())
	}
}

func (b *OSBlock[B]) setTraining(training bool) {
	b.conv1.setTraining(training)
	for branch := 0; branch < 4; branch++ {
		for _, conv := range b.branches[branch] {
			conv.setTraining(training)
		}
	}
	b.conv3.setTraining(training)
	if b.downsample != nil {
		b.downsample.setTraining(training)
	}
}
