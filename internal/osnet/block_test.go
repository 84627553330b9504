package osnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reid-ml/osnet/internal/backend/cpu"
	"github.com/reid-ml/osnet/internal/tensor"
)

func TestOSBlock_BadReduction(t *testing.T) {
	backend := cpu.New()

	_, err := NewOSBlock(64, 66, BlockConfig{}, backend)
	assert.Error(t, err, "output width must divide by the bottleneck reduction")
}

func TestOSBlock_ForwardShapes(t *testing.T) {
	backend := cpu.New()

	block, err := NewOSBlock(64, 64, BlockConfig{}, backend)
	require.NoError(t, err)
	assert.Equal(t, 16, block.MidChannels())

	x := tensor.Rand(tensor.Shape{2, 64, 8, 8}, backend)
	out := block.Forward(x)

	assert.True(t, out.Out.Shape().Equal(tensor.Shape{2, 64, 8, 8}), "block output keeps width and resolution")
	assert.True(t, out.Fused.Shape().Equal(tensor.Shape{2, 16, 8, 8}), "fused output has bottleneck width")
}

func TestOSBlock_Downsample(t *testing.T) {
	backend := cpu.New()

	same, err := NewOSBlock(64, 64, BlockConfig{}, backend)
	require.NoError(t, err)
	assert.Nil(t, same.downsample, "identity shortcut when widths match")

	widen, err := NewOSBlock(16, 64, BlockConfig{}, backend)
	require.NoError(t, err)
	require.NotNil(t, widen.downsample, "projection shortcut when widths differ")

	x := tensor.Rand(tensor.Shape{1, 16, 4, 4}, backend)
	out := widen.Forward(x)
	assert.True(t, out.Out.Shape().Equal(tensor.Shape{1, 64, 4, 4}))
}

func TestOSBlock_OutputNonNegative(t *testing.T) {
	backend := cpu.New()

	block, err := NewOSBlock(64, 64, BlockConfig{}, backend)
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{1, 64, 4, 4}, backend)
	out := block.Forward(x)
	for _, v := range out.Out.Data() {
		assert.GreaterOrEqual(t, v, float32(0), "block output passes through a final relu")
	}
}

func TestOSBlock_IndependentGates(t *testing.T) {
	backend := cpu.New()

	block, err := NewOSBlock(64, 64, BlockConfig{}, backend)
	require.NoError(t, err)

	// Every branch carries its own gate with its own parameters.
	seen := make(map[*tensor.RawTensor]bool)
	for branch := 0; branch < 4; branch++ {
		for _, p := range block.gates[branch].Parameters() {
			raw := p.Tensor().Raw()
			assert.False(t, seen[raw], "gate parameters shared between branches")
			seen[raw] = true
		}
	}
}

func TestOSBlock_RegistryNames(t *testing.T) {
	backend := cpu.New()

	block, err := NewOSBlock(64, 64, BlockConfig{}, backend)
	require.NoError(t, err)

	r := newRegistry[*cpu.CPUBackend]()
	block.register(r, "blk")

	names := make(map[string]bool, len(r.names))
	for _, n := range r.names {
		names[n] = true
	}

	for _, want := range []string{
		"blk.conv1.conv.weight",
		"blk.conv2a.conv1.weight", // single conv branch, unindexed
		"blk.conv2d.0.conv1.weight",
		"blk.conv2d.3.conv2.weight",
		"blk.gate_a.fc1.weight",
		"blk.gate_d.fc2.bias",
		"blk.conv3.conv.weight",
	} {
		assert.True(t, names[want], "missing registry name %s", want)
	}
	assert.False(t, names["blk.downsample.conv.weight"], "no downsample for equal widths")
}
