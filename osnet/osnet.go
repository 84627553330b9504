// Copyright 2026 The reid-ml Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package osnet provides the omni-scale re-identification network.
//
// The network aggregates multi-scale features through gated residual
// blocks and exposes four embedding heads: the main path plus three
// auxiliary taps at increasing depth. In eval mode Forward returns the
// concatenated L2-normalized descriptor; ForwardTrain returns per-head
// logits and, in triplet mode, the pooled features for metric losses.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model, err := osnet.New(osnet.Config{NumClasses: 751}, backend)
package osnet

import (
	"github.com/reid-ml/osnet/internal/osnet"
	"github.com/reid-ml/osnet/internal/tensor"
)

// Config selects the network variant.
type Config = osnet.Config

// OSNet is the multi-head re-identification network.
type OSNet[B tensor.Backend] = osnet.OSNet[B]

// New builds the network from its configuration.
func New[B tensor.Backend](cfg Config, backend B) (*OSNet[B], error) {
	return osnet.New(cfg, backend)
}

// LossMode selects the training objective the network prepares
// outputs for.
type LossMode = osnet.LossMode

// Loss modes.
const (
	LossSoftmax LossMode = osnet.LossSoftmax
	LossTriplet LossMode = osnet.LossTriplet
)

// ParseLossMode parses a loss mode name.
func ParseLossMode(s string) (LossMode, error) {
	return osnet.ParseLossMode(s)
}

// GateActivation selects the channel gate's output activation.
type GateActivation = osnet.GateActivation

// Gate activations.
const (
	GateSigmoid GateActivation = osnet.GateSigmoid
	GateReLU    GateActivation = osnet.GateReLU
	GateLinear  GateActivation = osnet.GateLinear
)

// ParseGateActivation parses a gate activation name.
func ParseGateActivation(s string) (GateActivation, error) {
	return osnet.ParseGateActivation(s)
}

// FeatureMaps holds the intermediate activations of the trunk.
type FeatureMaps[B tensor.Backend] = osnet.FeatureMaps[B]

// TrainOutput holds the training-mode forward results.
type TrainOutput[B tensor.Backend] = osnet.TrainOutput[B]

// NamedParameter pairs a parameter with its registry name.
type NamedParameter[B tensor.Backend] = osnet.NamedParameter[B]

// SaveSnapshot writes the model's named parameters to a snapshot file.
func SaveSnapshot[B tensor.Backend](m *OSNet[B], path string) error {
	return osnet.SaveSnapshot(m, path)
}

// LoadPretrained loads a snapshot into the model, matching parameters
// by name and shape. It returns the matched and discarded names.
func LoadPretrained[B tensor.Backend](m *OSNet[B], path string) (matched, discarded []string, err error) {
	return osnet.LoadPretrained(m, path)
}

// RemapLegacyName translates parameter names from older snapshot
// layouts to the current registry naming.
func RemapLegacyName(name string) string {
	return osnet.RemapLegacyName(name)
}
