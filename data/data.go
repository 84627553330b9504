// Copyright 2026 The reid-ml Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package data provides the public dataset and batch loading API.
//
// Datasets follow the common re-identification directory convention:
// image files named "<pid>_c<camid>...", one directory per split.
//
// Example:
//
//	ds, err := data.LoadDirectory("market1501/bounding_box_train")
//	sampler, err := data.NewRandomIdentitySampler(ds, 64, 4, 1)
//	loader := data.NewLoader(ds, sampler, 256, 128, backend)
package data

import (
	"github.com/reid-ml/osnet/internal/data"
	"github.com/reid-ml/osnet/internal/tensor"
)

// Item is a single dataset entry.
type Item = data.Item

// Dataset is an in-memory image index with contiguous identity labels.
type Dataset = data.Dataset

// LoadDirectory indexes a directory of re-identification images.
func LoadDirectory(dir string) (*Dataset, error) {
	return data.LoadDirectory(dir)
}

// RandomIdentitySampler produces epoch orderings where every batch
// holds P identities with K instances each.
type RandomIdentitySampler = data.RandomIdentitySampler

// NewRandomIdentitySampler creates a sampler over the dataset.
func NewRandomIdentitySampler(ds *Dataset, batchSize, numInstances int, seed int64) (*RandomIdentitySampler, error) {
	return data.NewRandomIdentitySampler(ds, batchSize, numInstances, seed)
}

// Batch is one training batch of images and identity labels.
type Batch[B tensor.Backend] = data.Batch[B]

// Loader materializes identity-balanced batches from a dataset.
type Loader[B tensor.Backend] = data.Loader[B]

// NewLoader creates a loader producing batches at the given input
// resolution.
func NewLoader[B tensor.Backend](ds *Dataset, sampler *RandomIdentitySampler, height, width int, backend B) *Loader[B] {
	return data.NewLoader(ds, sampler, height, width, backend)
}

// LoadImage decodes, resizes and normalizes an image into CHW float32
// layout.
func LoadImage(path string, height, width int) ([]float32, error) {
	return data.LoadImage(path, height, width)
}
