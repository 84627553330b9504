// Package config loads experiment configuration from YAML files.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full experiment configuration. Zero values fall back
// to the defaults set by Default.
type Config struct {
	Model     Model     `yaml:"model"`
	Data      Data      `yaml:"data"`
	Optim     Optim     `yaml:"optim"`
	Scheduler Scheduler `yaml:"scheduler"`
	Train     Train     `yaml:"train"`
}

// Model selects the network variant.
type Model struct {
	NumClasses     int    `yaml:"num_classes"`
	Loss           string `yaml:"loss"`            // "softmax" or "triplet"
	GateActivation string `yaml:"gate_activation"` // "sigmoid", "relu" or "linear"
	InstanceNorm   bool   `yaml:"instance_norm"`
	Pretrained     string `yaml:"pretrained"` // snapshot path, empty for random init
}

// Data describes the dataset and batch composition.
type Data struct {
	Root         string `yaml:"root"`
	Height       int    `yaml:"height"`
	Width        int    `yaml:"width"`
	BatchSize    int    `yaml:"batch_size"`
	NumInstances int    `yaml:"num_instances"` // images per identity per batch
	Seed         int64  `yaml:"seed"`
}

// Optim selects the optimizer.
type Optim struct {
	Name        string  `yaml:"name"` // "sgd" or "adam"
	LR          float32 `yaml:"lr"`
	Momentum    float32 `yaml:"momentum"`
	WeightDecay float32 `yaml:"weight_decay"`
}

// Scheduler selects the learning rate schedule.
type Scheduler struct {
	Name       string  `yaml:"name"` // "step", "multistep" or "" for constant
	StepSize   int     `yaml:"step_size"`
	Milestones []int   `yaml:"milestones"`
	Gamma      float32 `yaml:"gamma"`
}

// Train tunes the training loop and loss combination.
type Train struct {
	MaxEpoch     int      `yaml:"max_epoch"`
	WeightT      float32  `yaml:"weight_t"`
	WeightX      float32  `yaml:"weight_x"`
	WeightC      float32  `yaml:"weight_c"`
	Margin       float32  `yaml:"margin"`
	LabelSmooth  bool     `yaml:"label_smooth"`
	FixbaseEpoch int      `yaml:"fixbase_epoch"`
	OpenLayers   []string `yaml:"open_layers"`
	PrintFreq    int      `yaml:"print_freq"`
	LogPath      string   `yaml:"log_path"`  // JSONL scalar log, empty disables
	SavePath     string   `yaml:"save_path"` // snapshot output, empty disables
}

// Default returns the configuration used when a field is left unset.
func Default() Config {
	return Config{
		Model: Model{
			Loss:           "triplet",
			GateActivation: "sigmoid",
		},
		Data: Data{
			Height:       256,
			Width:        128,
			BatchSize:    64,
			NumInstances: 4,
			Seed:         1,
		},
		Optim: Optim{
			Name:        "sgd",
			LR:          0.065,
			Momentum:    0.9,
			WeightDecay: 5e-4,
		},
		Scheduler: Scheduler{
			Name:       "multistep",
			Milestones: []int{150, 225},
			Gamma:      0.1,
		},
		Train: Train{
			MaxEpoch:    250,
			WeightT:     1,
			WeightX:     1,
			Margin:      0.3,
			LabelSmooth: true,
			PrintFreq:   10,
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the YAML schema cannot.
func (c Config) Validate() error {
	if c.Model.NumClasses <= 0 {
		return fmt.Errorf("config: model.num_classes must be positive, got %d", c.Model.NumClasses)
	}
	if c.Data.BatchSize <= 0 || c.Data.NumInstances <= 0 {
		return fmt.Errorf("config: batch_size and num_instances must be positive")
	}
	if c.Data.BatchSize%c.Data.NumInstances != 0 {
		return fmt.Errorf("config: batch_size %d not divisible by num_instances %d",
			c.Data.BatchSize, c.Data.NumInstances)
	}
	if c.Data.Height%32 != 0 || c.Data.Width%32 != 0 {
		return fmt.Errorf("config: input size %dx%d must be a multiple of 32",
			c.Data.Height, c.Data.Width)
	}
	switch c.Optim.Name {
	case "sgd", "adam":
	default:
		return fmt.Errorf("config: unsupported optimizer %q", c.Optim.Name)
	}
	switch c.Scheduler.Name {
	case "", "step", "multistep":
	default:
		return fmt.Errorf("config: unsupported scheduler %q", c.Scheduler.Name)
	}
	if c.Train.MaxEpoch <= 0 {
		return fmt.Errorf("config: train.max_epoch must be positive, got %d", c.Train.MaxEpoch)
	}
	return nil
}
