package ops

import (
	"github.com/reid-ml/osnet/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to a target shape, undoing
// broadcasting from the forward pass.
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		// Clone so accumulation never mutates a shared gradient.
		return grad.Clone()
	}

	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}
	for d := 0; d < len(targetShape); d++ {
		if targetShape[d] == 1 && result.Shape()[d] > 1 {
			result = backend.SumDim(result, d, true)
		}
	}
	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// negate returns -grad.
func negate(grad *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	return backend.Scale(grad, -1)
}

// expandDim repeats a reduced gradient back along one dimension so it
// matches the pre-reduction shape. grad must have size 1 (or the dim
// removed) at position dim relative to target.
func expandDim(grad *tensor.RawTensor, target tensor.Shape, dim int, backend tensor.Backend) *tensor.RawTensor {
	keepDimShape := target.Clone()
	keepDimShape[dim] = 1
	g := grad
	if !g.Shape().Equal(keepDimShape) {
		g = backend.Reshape(g, keepDimShape)
	}

	out := tensor.MustNewRaw(target, grad.DType(), grad.Device())
	gData, outData := g.AsFloat32(), out.AsFloat32()

	outer, inner := 1, 1
	for d := 0; d < dim; d++ {
		outer *= target[d]
	}
	for d := dim + 1; d < len(target); d++ {
		inner *= target[d]
	}
	dimSize := target[dim]

	for o := 0; o < outer; o++ {
		src := gData[o*inner : (o+1)*inner]
		for d := 0; d < dimSize; d++ {
			copy(outData[(o*dimSize+d)*inner:(o*dimSize+d+1)*inner], src)
		}
	}
	return out
}
