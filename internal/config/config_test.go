package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reid-ml/osnet/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  num_classes: 751
  loss: triplet
data:
  root: /data/market1501
  batch_size: 32
  num_instances: 4
optim:
  name: adam
  lr: 0.0003
train:
  max_epoch: 10
  weight_c: 0.0005
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 751, cfg.Model.NumClasses)
	assert.Equal(t, "adam", cfg.Optim.Name)
	assert.InDelta(t, 0.0003, float64(cfg.Optim.LR), 1e-9)
	assert.Equal(t, 10, cfg.Train.MaxEpoch)
	assert.InDelta(t, 0.0005, float64(cfg.Train.WeightC), 1e-9)

	// Untouched fields keep their defaults.
	assert.Equal(t, 256, cfg.Data.Height)
	assert.Equal(t, "multistep", cfg.Scheduler.Name)
	assert.True(t, cfg.Train.LabelSmooth)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
model:
  num_classes: 10
  learning_rate: 0.1
train:
  max_epoch: 1
`)

	_, err := config.Load(path)
	assert.Error(t, err, "unknown keys must be rejected")
}

func TestValidate(t *testing.T) {
	base := config.Default()
	base.Model.NumClasses = 10

	cfg := base
	cfg.Data.BatchSize = 30
	cfg.Data.NumInstances = 4
	assert.Error(t, cfg.Validate(), "batch size must divide by instances")

	cfg = base
	cfg.Data.Height = 100
	assert.Error(t, cfg.Validate(), "input size must be a multiple of 32")

	cfg = base
	cfg.Optim.Name = "lbfgs"
	assert.Error(t, cfg.Validate(), "unsupported optimizer")

	cfg = base
	cfg.Model.NumClasses = 0
	assert.Error(t, cfg.Validate(), "class count required")

	assert.NoError(t, base.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
