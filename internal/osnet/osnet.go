package osnet

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/tensor"
)

// LossMode selects what the training forward pass returns. It is fixed
// at construction.
type LossMode int

const (
	// LossSoftmax trains with classification logits only.
	LossSoftmax LossMode = iota
	// LossTriplet additionally returns the pre-batchnorm pooled
	// features for metric losses.
	LossTriplet
)

// String returns the configuration tag for the loss mode.
func (m LossMode) String() string {
	switch m {
	case LossSoftmax:
		return "softmax"
	case LossTriplet:
		return "triplet"
	default:
		return fmt.Sprintf("LossMode(%d)", int(m))
	}
}

// ParseLossMode converts a configuration tag into a LossMode. Unknown
// tags are a construction error.
func ParseLossMode(s string) (LossMode, error) {
	switch s {
	case "softmax":
		return LossSoftmax, nil
	case "triplet":
		return LossTriplet, nil
	default:
		return 0, fmt.Errorf("unsupported loss: %q", s)
	}
}

// Config describes an OSNet instance.
type Config struct {
	// NumClasses is the identity count for the classifier heads.
	NumClasses int
	// Layers is the number of omni-scale blocks per stage. Defaults to
	// [2, 2, 2]. Exactly three stages are supported.
	Layers []int
	// Channels lists the stem width followed by each stage's output
	// width. Must have exactly one more entry than Layers. Defaults to
	// [64, 256, 384, 512].
	Channels []int
	// Loss selects the training forward contract.
	Loss LossMode
	// InstanceNorm switches the stem and blocks to per-sample
	// normalization.
	InstanceNorm bool
	// GateActivation for every channel gate.
	GateActivation GateActivation
}

// FeatureMaps bundles the four spatial feature maps the network
// produces: the main path X at full depth and the three auxiliary taps
// A, B, C at increasing depth and decreasing resolution.
type FeatureMaps[B tensor.Backend] struct {
	X *tensor.Tensor[float32, B]
	A *tensor.Tensor[float32, B]
	B *tensor.Tensor[float32, B]
	C *tensor.Tensor[float32, B]
}

// TrainOutput is the training forward result: classification logits for
// each of the four heads and, in triplet mode, the pre-batchnorm pooled
// feature vectors the metric loss operates on.
type TrainOutput[B tensor.Backend] struct {
	Logits   []*tensor.Tensor[float32, B]
	Features []*tensor.Tensor[float32, B]
}

type stage[B tensor.Backend] struct {
	blocks []*OSBlock[B]
	mix    *Conv1x1[B]
	pool   *nn.AvgPool2D[B]
}

// OSNet is an omni-scale feature learning network with a four-head
// fan-out: the 512-wide main path plus auxiliary heads tapping the
// fused output of each stage's last block at widths 64, 96 and 128.
// The evaluation descriptor concatenates all four L2-normalized heads
// into an 832-wide vector.
type OSNet[B tensor.Backend] struct {
	cfg      Config
	training bool

	conv1   *ConvLayer[B]
	maxpool *nn.MaxPool2D[B]
	stages  [3]*stage[B]

	convA *Conv1x1[B]
	convB *Conv1x1[B]
	convC *Conv1x1[B]
	conv5 *Conv1x1[B]

	bn  *nn.BatchNorm1D[B]
	bnA *nn.BatchNorm1D[B]
	bnB *nn.BatchNorm1D[B]
	bnC *nn.BatchNorm1D[B]

	classifier  *nn.Linear[B]
	classifierA *nn.Linear[B]
	classifierB *nn.Linear[B]
	classifierC *nn.Linear[B]

	reg     *registry[B]
	backend B
}

// New builds an OSNet from a config, validating it. The parameter
// registry is populated at construction with dotted names matching the
// layer structure (conv2_0.conv1.conv.weight, bn_a.weight, ...).
func New[B tensor.Backend](cfg Config, backend B) (*OSNet[B], error) {
	if cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("osnet: invalid class count %d", cfg.NumClasses)
	}
	if cfg.Layers == nil {
		cfg.Layers = []int{2, 2, 2}
	}
	if cfg.Channels == nil {
		cfg.Channels = []int{64, 256, 384, 512}
	}
	if len(cfg.Layers) != 3 {
		return nil, fmt.Errorf("osnet: expected 3 stages, got %d", len(cfg.Layers))
	}
	if len(cfg.Channels) != len(cfg.Layers)+1 {
		return nil, fmt.Errorf("osnet: channel list needs %d entries for %d stages, got %d",
			len(cfg.Layers)+1, len(cfg.Layers), len(cfg.Channels))
	}
	for s, n := range cfg.Layers {
		if n < 1 {
			return nil, fmt.Errorf("osnet: stage %d has no blocks", s)
		}
	}

	m := &OSNet[B]{
		cfg:      cfg,
		training: true,
		conv1:    NewConvLayer(3, cfg.Channels[0], 7, 2, 3, 1, cfg.InstanceNorm, backend),
		maxpool:  nn.NewMaxPool2D(3, 2, 1, backend),
		reg:      newRegistry[B](),
		backend:  backend,
	}

	blockCfg := BlockConfig{
		InstanceNorm:   cfg.InstanceNorm,
		GateActivation: cfg.GateActivation,
	}
	in := cfg.Channels[0]
	for s, numBlocks := range cfg.Layers {
		out := cfg.Channels[s+1]
		st := &stage[B]{mix: NewConv1x1(out, out, 1, 1, backend)}
		for i := 0; i < numBlocks; i++ {
			blockIn := out
			if i == 0 {
				blockIn = in
			}
			block, err := NewOSBlock(blockIn, out, blockCfg, backend)
			if err != nil {
				return nil, err
			}
			st.blocks = append(st.blocks, block)
		}
		if s < len(cfg.Layers)-1 {
			st.pool = nn.NewAvgPool2D(2, 2, backend)
		}
		m.stages[s] = st
		in = out
	}

	auxA := m.stages[0].blocks[len(m.stages[0].blocks)-1].MidChannels()
	auxB := m.stages[1].blocks[len(m.stages[1].blocks)-1].MidChannels()
	auxC := m.stages[2].blocks[len(m.stages[2].blocks)-1].MidChannels()
	featureDim := cfg.Channels[len(cfg.Channels)-1]

	m.convA = NewConv1x1(auxA, auxA, 1, 1, backend)
	m.convB = NewConv1x1(auxB, auxB, 1, 1, backend)
	m.convC = NewConv1x1(auxC, auxC, 1, 1, backend)
	m.conv5 = NewConv1x1(featureDim, featureDim, 1, 1, backend)

	m.bn = nn.NewBatchNorm1D(featureDim, backend)
	m.bnA = nn.NewBatchNorm1D(auxA, backend)
	m.bnB = nn.NewBatchNorm1D(auxB, backend)
	m.bnC = nn.NewBatchNorm1D(auxC, backend)

	m.classifier = nn.NewLinear(featureDim, cfg.NumClasses, true, backend)
	m.classifierA = nn.NewLinear(auxA, cfg.NumClasses, true, backend)
	m.classifierB = nn.NewLinear(auxB, cfg.NumClasses, true, backend)
	m.classifierC = nn.NewLinear(auxC, cfg.NumClasses, true, backend)

	m.buildRegistry()
	return m, nil
}

func (m *OSNet[B]) buildRegistry() {
	m.conv1.register(m.reg, "conv1")
	for s, st := range m.stages {
		stagePrefix := fmt.Sprintf("conv%d", s+2)
		for i, block := range st.blocks {
			block.register(m.reg, fmt.Sprintf("%s_%d", stagePrefix, i))
		}
		st.mix.register(m.reg, fmt.Sprintf("%s_%d", stagePrefix, len(st.blocks)))
	}
	m.convA.register(m.reg, "conv_a")
	m.convB.register(m.reg, "conv_b")
	m.convC.register(m.reg, "conv_c")
	m.conv5.register(m.reg, "conv5")

	m.reg.add("bn.weight", m.bn.Weight())
	m.reg.add("bn.bias", m.bn.Bias())
	m.reg.add("bn_a.weight", m.bnA.Weight())
	m.reg.add("bn_a.bias", m.bnA.Bias())
	m.reg.add("bn_b.weight", m.bnB.Weight())
	m.reg.add("bn_b.bias", m.bnB.Bias())
	m.reg.add("bn_c.weight", m.bnC.Weight())
	m.reg.add("bn_c.bias", m.bnC.Bias())

	m.reg.add("classifier.weight", m.classifier.Weight())
	m.reg.add("classifier.bias", m.classifier.Bias())
	m.reg.add("classifier_a.weight", m.classifierA.Weight())
	m.reg.add("classifier_a.bias", m.classifierA.Bias())
	m.reg.add("classifier_b.weight", m.classifierB.Weight())
	m.reg.add("classifier_b.bias", m.classifierB.Bias())
	m.reg.add("classifier_c.weight", m.classifierC.Weight())
	m.reg.add("classifier_c.bias", m.classifierC.Bias())
}

// Featuremaps runs the convolutional trunk and returns the four spatial
// feature maps. Input is [N,3,H,W] with H and W divisible by 32.
func (m *OSNet[B]) Featuremaps(x *tensor.Tensor[float32, B]) FeatureMaps[B] {
	x = m.conv1.Forward(x)
	x = m.maxpool.Forward(x)

	var taps [3]*tensor.Tensor[float32, B]
	for s, st := range m.stages {
		var out BlockOutput[B]
		for _, block := range st.blocks {
			out = block.Forward(x)
			x = out.Out
		}
		taps[s] = out.Fused
		x = st.mix.Forward(x)
		if st.pool != nil {
			x = st.pool.Forward(x)
		}
	}

	return FeatureMaps[B]{
		X: m.conv5.Forward(x),
		A: m.convA.Forward(taps[0]),
		B: m.convB.Forward(taps[1]),
		C: m.convC.Forward(taps[2]),
	}
}

// ActivationMap returns the refined deepest auxiliary tap, the feature
// map used for activation visualization.
func (m *OSNet[B]) ActivationMap(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.Featuremaps(x).C
}

// Forward computes the evaluation descriptor: each head is globally
// pooled, batch-normalized, L2-normalized and the four heads are
// concatenated ([N, 832] at default widths).
func (m *OSNet[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	maps := m.Featuremaps(x)

	v := m.bn.Forward(nn.GlobalAvgPool(maps.X))
	va := m.bnA.Forward(nn.GlobalAvgPool(maps.A))
	vb := m.bnB.Forward(nn.GlobalAvgPool(maps.B))
	vc := m.bnC.Forward(nn.GlobalAvgPool(maps.C))

	heads := []*tensor.Tensor[float32, B]{
		l2Normalize(v),
		l2Normalize(va),
		l2Normalize(vb),
		l2Normalize(vc),
	}
	return tensor.Cat(heads, 1)
}

// ForwardTrain computes per-head classification logits. In triplet mode
// the pre-batchnorm pooled features are returned alongside for the
// metric loss; in softmax mode Features is nil.
func (m *OSNet[B]) ForwardTrain(x *tensor.Tensor[float32, B]) TrainOutput[B] {
	maps := m.Featuremaps(x)

	v := nn.GlobalAvgPool(maps.X)
	va := nn.GlobalAvgPool(maps.A)
	vb := nn.GlobalAvgPool(maps.B)
	vc := nn.GlobalAvgPool(maps.C)

	out := TrainOutput[B]{
		Logits: []*tensor.Tensor[float32, B]{
			m.classifier.Forward(m.bn.Forward(v)),
			m.classifierA.Forward(m.bnA.Forward(va)),
			m.classifierB.Forward(m.bnB.Forward(vb)),
			m.classifierC.Forward(m.bnC.Forward(vc)),
		},
	}
	if m.cfg.Loss == LossTriplet {
		out.Features = []*tensor.Tensor[float32, B]{v, va, vb, vc}
	}
	return out
}

// l2Normalize scales each row of [N,D] to unit Euclidean norm.
func l2Normalize[B tensor.Backend](v *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	norm := v.Mul(v).SumDim(1, true).Shift(1e-12).Sqrt()
	return v.Div(norm)
}

// SetTraining switches the network between training and evaluation
// behavior for all normalization layers.
func (m *OSNet[B]) SetTraining(training bool) {
	m.training = training
	m.conv1.setTraining(training)
	for _, st := range m.stages {
		for _, block := range st.blocks {
			block.setTraining(training)
		}
		st.mix.setTraining(training)
	}
	m.convA.setTraining(training)
	m.convB.setTraining(training)
	m.convC.setTraining(training)
	m.conv5.setTraining(training)
	m.bn.SetTraining(training)
	m.bnA.SetTraining(training)
	m.bnB.SetTraining(training)
	m.bnC.SetTraining(training)
}

// Training reports the current mode.
func (m *OSNet[B]) Training() bool { return m.training }

// Loss returns the loss mode fixed at construction.
func (m *OSNet[B]) Loss() LossMode { return m.cfg.Loss }

// NumClasses returns the classifier identity count.
func (m *OSNet[B]) NumClasses() int { return m.cfg.NumClasses }

// HeadDims returns the feature width of each head in forward order:
// main path, then the three auxiliary taps.
func (m *OSNet[B]) HeadDims() []int {
	return []int{
		m.cfg.Channels[len(m.cfg.Channels)-1],
		m.stages[0].blocks[len(m.stages[0].blocks)-1].MidChannels(),
		m.stages[1].blocks[len(m.stages[1].blocks)-1].MidChannels(),
		m.stages[2].blocks[len(m.stages[2].blocks)-1].MidChannels(),
	}
}

// Parameters returns all trainable parameters in registry order.
func (m *OSNet[B]) Parameters() []*nn.Parameter[B] { return m.reg.all() }

// NamedParameters returns all parameters with their dotted names in
// registration order.
func (m *OSNet[B]) NamedParameters() []NamedParameter[B] { return m.reg.named() }

// StateDict snapshots the parameter tensors by name.
func (m *OSNet[B]) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(m.reg.names))
	for _, np := range m.reg.named() {
		out[np.Name] = np.Parameter.Tensor().Raw()
	}
	return out
}

// OpenLayers unfreezes only the parameters under the named top-level
// layers (e.g. "classifier", "conv5") and freezes everything else.
func (m *OSNet[B]) OpenLayers(layers []string) {
	m.reg.setTrainableByPrefix(layers)
}

// OpenAllLayers unfreezes every parameter.
func (m *OSNet[B]) OpenAllLayers() {
	m.reg.setAllTrainable(true)
}
