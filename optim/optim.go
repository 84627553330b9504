// Copyright 2026 The reid-ml Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the public optimizer and scheduler API.
package optim

import (
	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/optim"
	"github.com/reid-ml/osnet/internal/tensor"
)

// Optimizer is the common optimizer interface.
type Optimizer = optim.Optimizer

// Parameter is a named trainable tensor, as produced by a model's
// Parameters method.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// SGD is stochastic gradient descent with momentum and weight decay.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig holds SGD hyperparameters.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	return optim.NewSGD(params, config)
}

// Adam is adaptive moment estimation with bias correction.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig holds Adam hyperparameters.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	return optim.NewAdam(params, config)
}

// Scheduler adjusts an optimizer's learning rate once per epoch.
type Scheduler = optim.Scheduler

// StepLR decays the learning rate by gamma every stepSize epochs.
type StepLR = optim.StepLR

// NewStepLR creates a step decay schedule.
func NewStepLR(optimizer Optimizer, stepSize int, gamma float32) *StepLR {
	return optim.NewStepLR(optimizer, stepSize, gamma)
}

// MultiStepLR decays the learning rate by gamma at each milestone.
type MultiStepLR = optim.MultiStepLR

// NewMultiStepLR creates a milestone decay schedule.
func NewMultiStepLR(optimizer Optimizer, milestones []int, gamma float32) *MultiStepLR {
	return optim.NewMultiStepLR(optimizer, milestones, gamma)
}
