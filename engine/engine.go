// Copyright 2026 The reid-ml Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine provides the public training loop API.
//
// Example:
//
//	eng := engine.New(model, loader, optimizer, scheduler, engine.Config{
//	    WeightT: 1,
//	    WeightX: 1,
//	    Margin:  0.3,
//	}, backend)
//	avgLoss, err := eng.Train(epoch, maxEpoch, writer, engine.TrainOptions{})
package engine

import (
	"github.com/reid-ml/osnet/internal/engine"
	"github.com/reid-ml/osnet/internal/optim"
)

// Backend is the compute contract the engine requires.
type Backend = engine.Backend

// Config holds the loss combination and its hyperparameters.
type Config = engine.Config

// TrainOptions tunes one epoch of training.
type TrainOptions = engine.TrainOptions

// ImageTripletEngine trains a multi-head re-identification model with
// the weighted triplet + cross-entropy (+ center) objective.
type ImageTripletEngine[B engine.Backend] = engine.ImageTripletEngine[B]

// Model is the training contract the network must satisfy.
type Model[B engine.Backend] = engine.Model[B]

// TrainLoader supplies a fixed number of batches per epoch.
type TrainLoader[B engine.Backend] = engine.TrainLoader[B]

// New creates the engine.
func New[B engine.Backend](
	model engine.Model[B],
	loader engine.TrainLoader[B],
	optimizer optim.Optimizer,
	scheduler optim.Scheduler,
	cfg Config,
	backend B,
) *ImageTripletEngine[B] {
	return engine.New(model, loader, optimizer, scheduler, cfg, backend)
}

// MetricWriter receives scalar training metrics.
type MetricWriter = engine.MetricWriter

// NopWriter discards all metrics.
type NopWriter = engine.NopWriter

// JSONLWriter appends scalar metrics to a JSON Lines file.
type JSONLWriter = engine.JSONLWriter

// NewJSONLWriter opens (or creates) the metrics file for appending.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	return engine.NewJSONLWriter(path)
}

// AverageMeter tracks the running average of a scalar.
type AverageMeter = engine.AverageMeter

// NewAverageMeter creates a zeroed meter.
func NewAverageMeter() *AverageMeter {
	return engine.NewAverageMeter()
}
