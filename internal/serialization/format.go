// Package serialization implements the flat snapshot format used for
// model checkpoints and pretrained weights: a magic tag, a JSON header
// describing the tensors, then the raw little-endian tensor data.
package serialization

import (
	"time"

	"github.com/reid-ml/osnet/internal/tensor"
)

// Format constants.
const (
	MagicBytes    = "OSNT"
	FormatVersion = 1
)

// Data type string tags used in the header.
const (
	DTypeFloat32 = "float32"
	DTypeInt32   = "int32"
)

// Header is the JSON header of a snapshot file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	RunID         string            `json:"run_id"`     // UUID of the run that produced the snapshot
	ModelType     string            `json:"model_type"` // e.g. "OSNet"
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TensorMeta describes one tensor record.
type TensorMeta struct {
	Name   string `json:"name"`  // dotted parameter path (e.g. "conv2_0.conv1.conv.weight")
	DType  string `json:"dtype"` // "float32" or "int32"
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Int32:
		return DTypeInt32
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeInt32:
		return tensor.Int32, true
	default:
		return 0, false
	}
}
