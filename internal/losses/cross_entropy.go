// Package losses implements the training criteria: label-smoothed
// cross-entropy, batch-hard triplet loss and center loss. All losses
// build on recorded tape operations so gradients are exact.
package losses

import (
	"github.com/reid-ml/osnet/internal/tensor"
)

// CrossEntropyCapable is a backend with a fused cross-entropy kernel.
// The autodiff decorator provides it.
type CrossEntropyCapable interface {
	tensor.Backend
	CrossEntropy(logits, targets *tensor.RawTensor, smoothing float32) *tensor.RawTensor
}

// CrossEntropy is softmax cross-entropy over [batch, classes] logits,
// optionally label-smoothed.
type CrossEntropy[B CrossEntropyCapable] struct {
	smoothing float32
	backend   B
}

// DefaultLabelSmoothing is the smoothing mass used when smoothing is
// enabled.
const DefaultLabelSmoothing = 0.1

// NewCrossEntropy creates the criterion. With labelSmooth the target
// distribution gives DefaultLabelSmoothing mass to the uniform
// distribution.
func NewCrossEntropy[B CrossEntropyCapable](labelSmooth bool, backend B) *CrossEntropy[B] {
	smoothing := float32(0)
	if labelSmooth {
		smoothing = DefaultLabelSmoothing
	}
	return &CrossEntropy[B]{smoothing: smoothing, backend: backend}
}

// Forward computes the mean loss over the batch.
func (c *CrossEntropy[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	raw := c.backend.CrossEntropy(logits.Raw(), targets.Raw(), c.smoothing)
	return tensor.New[float32, B](raw, c.backend)
}
