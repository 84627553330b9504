package data

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/tensor"
)

// Batch is one training batch: images in [N,3,H,W] layout plus the
// identity label of each image.
type Batch[B tensor.Backend] struct {
	Images *tensor.Tensor[float32, B]
	PIDs   []int32
}

// Loader materializes identity-balanced batches from a dataset. The
// epoch ordering comes from the sampler; Reset draws a new one.
type Loader[B tensor.Backend] struct {
	dataset *Dataset
	sampler *RandomIdentitySampler
	height  int
	width   int
	order   []int
	backend B
}

// NewLoader creates a loader producing batches at the given input
// resolution. The first epoch ordering is drawn immediately.
func NewLoader[B tensor.Backend](ds *Dataset, sampler *RandomIdentitySampler, height, width int, backend B) *Loader[B] {
	l := &Loader[B]{
		dataset: ds,
		sampler: sampler,
		height:  height,
		width:   width,
		backend: backend,
	}
	l.Reset()
	return l
}

// Reset draws a fresh epoch ordering.
func (l *Loader[B]) Reset() {
	l.order = l.sampler.Epoch()
}

// Len returns the number of batches in the current epoch.
func (l *Loader[B]) Len() int {
	return len(l.order) / l.sampler.BatchSize()
}

// Batch loads and assembles batch i of the current epoch.
func (l *Loader[B]) Batch(i int) (Batch[B], error) {
	batchSize := l.sampler.BatchSize()
	if i < 0 || i >= l.Len() {
		return Batch[B]{}, fmt.Errorf("loader: batch index %d out of range [0,%d)", i, l.Len())
	}

	plane := 3 * l.height * l.width
	images := make([]float32, batchSize*plane)
	pids := make([]int32, batchSize)

	for j, idx := range l.order[i*batchSize : (i+1)*batchSize] {
		item := l.dataset.Items[idx]
		pixels, err := LoadImage(item.Path, l.height, l.width)
		if err != nil {
			return Batch[B]{}, err
		}
		copy(images[j*plane:(j+1)*plane], pixels)
		pids[j] = item.PID
	}

	t, err := tensor.FromSlice(images, tensor.Shape{batchSize, 3, l.height, l.width}, l.backend)
	if err != nil {
		return Batch[B]{}, err
	}
	return Batch[B]{Images: t, PIDs: pids}, nil
}
