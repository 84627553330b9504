package losses

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/tensor"
)

// Triplet is the batch-hard triplet loss: for every anchor the hardest
// positive (same identity, farthest) and hardest negative (different
// identity, closest) are mined from the batch distance matrix, and the
// margin ranking loss is averaged over anchors.
//
// Batches must contain several instances per identity for positive
// pairs to exist; the identity sampler guarantees that.
type Triplet[B tensor.Backend] struct {
	margin  float32
	backend B
}

// NewTriplet creates the criterion with the given margin.
func NewTriplet[B tensor.Backend](margin float32, backend B) *Triplet[B] {
	return &Triplet[B]{margin: margin, backend: backend}
}

// Forward computes the loss over [batch, dim] features and their
// identity labels. Mining is done off-tape on the realized distance
// matrix; the selected distances are gathered through recorded
// operations so gradients flow to the features.
func (t *Triplet[B]) Forward(features *tensor.Tensor[float32, B], pids []int32) *tensor.Tensor[float32, B] {
	shape := features.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("triplet: expected 2D features, got %v", shape))
	}
	n := shape[0]
	if len(pids) != n {
		panic(fmt.Sprintf("triplet: %d feature rows but %d labels", n, len(pids)))
	}

	// Pairwise Euclidean distances:
	// dist² = |a|² + |b|² - 2a·b, clamped before the root.
	sq := features.Mul(features).SumDim(1, true) // [N,1]
	inner := features.MatMul(features.T())       // [N,N]
	dist2 := sq.Add(sq.Transpose(1, 0)).Sub(inner.Scale(2))
	dist := dist2.ReLU().Shift(1e-12).Sqrt()

	// Hardest positive and negative per anchor, mined on the values.
	distData := dist.Data()
	posIdx := make([]int32, n)
	negIdx := make([]int32, n)
	for i := 0; i < n; i++ {
		hardestPos, hardestNeg := int32(-1), int32(-1)
		for j := 0; j < n; j++ {
			d := distData[i*n+j]
			if pids[j] == pids[i] {
				if hardestPos < 0 || d > distData[i*n+int(hardestPos)] {
					hardestPos = int32(j)
				}
			} else {
				if hardestNeg < 0 || d < distData[i*n+int(hardestNeg)] {
					hardestNeg = int32(j)
				}
			}
		}
		if hardestPos < 0 || hardestNeg < 0 {
			panic(fmt.Sprintf("triplet: anchor %d has no positive or no negative in batch", i))
		}
		posIdx[i] = int32(i)*int32(n) + hardestPos
		negIdx[i] = int32(i)*int32(n) + hardestNeg
	}

	flat := dist.Reshape(n * n)
	posIndex := mustIndex(posIdx, t.backend)
	negIndex := mustIndex(negIdx, t.backend)
	dAP := flat.IndexSelect(posIndex) // [N]
	dAN := flat.IndexSelect(negIndex) // [N]

	// mean(max(0, d_ap - d_an + margin))
	return dAP.Sub(dAN).Shift(t.margin).ReLU().MeanDim(0, false)
}

func mustIndex[B tensor.Backend](idx []int32, backend B) *tensor.Tensor[int32, B] {
	t, err := tensor.FromSlice(idx, tensor.Shape{len(idx)}, backend)
	if err != nil {
		panic(err)
	}
	return t
}
