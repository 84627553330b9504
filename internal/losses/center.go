package losses

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/tensor"
)

// Center is the center loss: each class keeps a learnable center in
// feature space and the loss is the mean squared distance from each
// sample to its class center. The centers are a trainable parameter
// updated by the optimizer like any other.
type Center[B tensor.Backend] struct {
	numClasses int
	featureDim int
	centers    *nn.Parameter[B]
	backend    B
}

// NewCenter creates the criterion with randomly initialized centers.
func NewCenter[B tensor.Backend](numClasses, featureDim int, backend B) *Center[B] {
	if numClasses <= 0 || featureDim <= 0 {
		panic(fmt.Sprintf("center: invalid dimensions classes=%d dim=%d", numClasses, featureDim))
	}
	centers := nn.NewParameter("centers", tensor.Randn(tensor.Shape{numClasses, featureDim}, backend))
	return &Center[B]{
		numClasses: numClasses,
		featureDim: featureDim,
		centers:    centers,
		backend:    backend,
	}
}

// Forward computes the mean squared sample-to-center distance.
func (c *Center[B]) Forward(features *tensor.Tensor[float32, B], pids []int32) *tensor.Tensor[float32, B] {
	shape := features.Shape()
	if len(shape) != 2 || shape[1] != c.featureDim {
		panic(fmt.Sprintf("center: expected [batch, %d] features, got %v", c.featureDim, shape))
	}

	index := mustIndex(pids, c.backend)
	assigned := c.centers.Tensor().IndexSelect(index) // [N, D]
	diff := features.Sub(assigned)
	return diff.Mul(diff).SumDim(1, false).MeanDim(0, false)
}

// Centers returns the trainable centers parameter so it can be handed
// to an optimizer.
func (c *Center[B]) Centers() *nn.Parameter[B] { return c.centers }
