// Package metrics provides training-time evaluation metrics.
package metrics

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/tensor"
)

// Accuracy computes top-k classification accuracy in percent over
// [batch, classes] logits. A prediction counts when the target class is
// among the k highest logits.
func Accuracy(logits *tensor.RawTensor, targets []int32, k int) float32 {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("accuracy: expected 2D logits, got %v", shape))
	}
	batch, classes := shape[0], shape[1]
	if len(targets) != batch {
		panic(fmt.Sprintf("accuracy: %d logit rows but %d targets", batch, len(targets)))
	}
	if k < 1 || k > classes {
		panic(fmt.Sprintf("accuracy: invalid k=%d for %d classes", k, classes))
	}

	data := logits.AsFloat32()
	correct := 0
	for b := 0; b < batch; b++ {
		row := data[b*classes : (b+1)*classes]
		target := int(targets[b])
		// The target is in the top k iff fewer than k classes score
		// strictly higher.
		higher := 0
		for c := 0; c < classes; c++ {
			if row[c] > row[target] {
				higher++
			}
		}
		if higher < k {
			correct++
		}
	}
	return 100 * float32(correct) / float32(batch)
}
