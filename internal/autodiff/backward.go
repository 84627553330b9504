package autodiff

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/tensor"
)

// BackwardCapable is a backend that exposes a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable).
func (b *AutodiffBackend[B]) GetTape() *GradientTape { return b.tape }

// Backward seeds the output gradient with ones and walks the tape,
// returning a map from RawTensor to its gradient.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := x.Mul(x)
//	grads := autodiff.Backward(y, backend)
//	dx := grads[x.Raw()]
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("backward: unsupported dtype %s", t.DType()))
	}

	outputGrad := tensor.MustNewRaw(t.Shape(), t.DType(), backend.Device())
	data := outputGrad.AsFloat32()
	for i := range data {
		data[i] = 1.0
	}
	return tape.Backward(outputGrad, backend)
}
