package osnet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reid-ml/osnet/internal/backend/cpu"
)

func TestRemapLegacyName(t *testing.T) {
	cases := map[string]string{
		"module.conv1.conv.weight":    "conv1.conv.weight",
		"conv2.0.conv1.conv.weight":   "conv2_0.conv1.conv.weight",
		"conv2.1.gate_a.fc1.weight":   "conv2_1.gate_a.fc1.weight",
		"conv2.2.0.conv.weight":       "conv2_2.conv.weight",
		"conv3.2.0.bn.weight":         "conv3_2.bn.weight",
		"conv4.1.conv3.bn.bias":       "conv4_1.conv3.bn.bias",
		"module.conv3.0.conv1.weight": "conv3_0.conv1.weight",
		"classifier.weight":           "classifier.weight",
	}
	for in, want := range cases {
		assert.Equal(t, want, RemapLegacyName(in), "remap of %s", in)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "model.snapshot")

	src, err := New(smallConfig(), backend)
	require.NoError(t, err)
	require.NoError(t, SaveSnapshot(src, path))

	dst, err := New(smallConfig(), backend)
	require.NoError(t, err)

	matched, discarded, err := LoadPretrained(dst, path)
	require.NoError(t, err)
	assert.Empty(t, discarded)
	assert.Len(t, matched, len(src.Parameters()))

	srcNamed := src.NamedParameters()
	dstNamed := dst.NamedParameters()
	require.Equal(t, len(srcNamed), len(dstNamed))
	for i := range srcNamed {
		assert.Equal(t,
			srcNamed[i].Parameter.Tensor().Data(),
			dstNamed[i].Parameter.Tensor().Data(),
			"parameter %s", srcNamed[i].Name)
	}
}

func TestLoadPretrained_DiscardsMismatches(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "model.snapshot")

	src, err := New(smallConfig(), backend)
	require.NoError(t, err)
	require.NoError(t, SaveSnapshot(src, path))

	// Different classifier width: trunk matches, heads do not.
	cfg := smallConfig()
	cfg.NumClasses = 7
	dst, err := New(cfg, backend)
	require.NoError(t, err)

	matched, discarded, err := LoadPretrained(dst, path)
	require.NoError(t, err)
	assert.NotEmpty(t, matched)
	// Exactly the classifier weights and biases change shape.
	assert.Len(t, discarded, 8)
}
