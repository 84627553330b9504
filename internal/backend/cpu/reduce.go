package cpu

import (
	"fmt"
	"math"

	"github.com/reid-ml/osnet/internal/tensor"
)

// Sum reduces all elements to a single-element tensor of shape [1].
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out := tensor.MustNewRaw(tensor.Shape{1}, x.DType(), cpu.device)
	var acc float32
	for _, v := range x.AsFloat32() {
		acc += v
	}
	out.AsFloat32()[0] = acc
	return out
}

// SumDim sums along one dimension.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	outer, dimSize, inner, outShape := reduceLayout(x.Shape(), dim, keepDim)
	out := tensor.MustNewRaw(outShape, x.DType(), cpu.device)
	xData, outData := x.AsFloat32(), out.AsFloat32()

	for o := 0; o < outer; o++ {
		for d := 0; d < dimSize; d++ {
			base := (o*dimSize + d) * inner
			outBase := o * inner
			for in := 0; in < inner; in++ {
				outData[outBase+in] += xData[base+in]
			}
		}
	}
	return out
}

// MeanDim averages along one dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	out := cpu.SumDim(x, dim, keepDim)
	norm := float32(1) / float32(x.Shape()[normalizeDim(dim, len(x.Shape()))])
	data := out.AsFloat32()
	for i := range data {
		data[i] *= norm
	}
	return out
}

// Argmax returns the int32 indices of the maxima along a dimension.
// The reduced dimension is removed from the output shape.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	outer, dimSize, inner, outShape := reduceLayout(x.Shape(), dim, false)
	out := tensor.MustNewRaw(outShape, tensor.Int32, cpu.device)
	xData, outData := x.AsFloat32(), out.AsInt32()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			best := float32(math.Inf(-1))
			bestIdx := int32(0)
			for d := 0; d < dimSize; d++ {
				v := xData[(o*dimSize+d)*inner+in]
				if v > best {
					best = v
					bestIdx = int32(d)
				}
			}
			outData[o*inner+in] = bestIdx
		}
	}
	return out
}

// reduceLayout splits a shape into [outer, dim, inner] around the
// reduction dimension and builds the output shape.
func reduceLayout(shape tensor.Shape, dim int, keepDim bool) (outer, dimSize, inner int, outShape tensor.Shape) {
	dim = normalizeDim(dim, len(shape))
	outer, inner = 1, 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	dimSize = shape[dim]
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}

	outShape = tensor.Shape{}
	for d, s := range shape {
		if d == dim {
			if keepDim {
				outShape = append(outShape, 1)
			}
			continue
		}
		outShape = append(outShape, s)
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}
	return outer, dimSize, inner, outShape
}

func normalizeDim(dim, rank int) int {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("dimension %d out of range for rank %d", dim, rank))
	}
	return dim
}
