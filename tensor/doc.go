// Copyright 2026 The reid-ml Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of the training stack.
//
// The package re-exports the core types for type-safe tensor work:
//   - Tensor[T, B]: high-level generic tensor
//   - RawTensor: untyped tensor storage for backend implementations
//   - Backend: interface for device-specific compute
//   - Shape, DataType, Device: core definitions
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)
package tensor
