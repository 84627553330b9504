package cpu

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/tensor"
)

// Reshape returns a view of t under a new shape. The element count must
// be unchanged; the buffer is shared.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}
	return t.WithShape(newShape)
}

// Transpose permutes dimensions into a freshly allocated tensor. With
// no axes it reverses all dimensions.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	rank := len(shape)
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", rank, len(axes)))
	}

	outShape := make(tensor.Shape, rank)
	for i, ax := range axes {
		outShape[i] = shape[ax]
	}
	out := tensor.MustNewRaw(outShape, t.DType(), cpu.device)

	inStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	inData, outData := t.AsFloat32(), out.AsFloat32()

	coords := make([]int, rank)
	for i := range outData {
		rem := i
		for d := 0; d < rank; d++ {
			coords[d] = rem / outStrides[d]
			rem %= outStrides[d]
		}
		srcIdx := 0
		for d := 0; d < rank; d++ {
			srcIdx += coords[d] * inStrides[axes[d]]
		}
		outData[i] = inData[srcIdx]
	}
	return out
}

// Cat concatenates tensors along one dimension. All other dimensions
// must match.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: empty tensor list")
	}
	first := tensors[0].Shape()
	dim = normalizeDim(dim, len(first))

	total := 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("cat: rank mismatch: %v vs %v", first, s))
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				panic(fmt.Sprintf("cat: shape mismatch on dim %d: %v vs %v", d, first, s))
			}
		}
		total += s[dim]
	}

	outShape := first.Clone()
	outShape[dim] = total
	out := tensor.MustNewRaw(outShape, tensors[0].DType(), cpu.device)
	outData := out.AsFloat32()

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= first[d]
	}
	inner := 1
	for d := dim + 1; d < len(first); d++ {
		inner *= first[d]
	}

	offset := 0
	for _, t := range tensors {
		dimSize := t.Shape()[dim]
		tData := t.AsFloat32()
		rowLen := dimSize * inner
		for o := 0; o < outer; o++ {
			dst := (o*total + offset) * inner
			copy(outData[dst:dst+rowLen], tData[o*rowLen:(o+1)*rowLen])
		}
		offset += dimSize
	}
	return out
}

// IndexSelect gathers rows of x along dim 0 by an int32 index vector.
func (cpu *CPUBackend) IndexSelect(x, index *tensor.RawTensor) *tensor.RawTensor {
	xShape := x.Shape()
	if len(index.Shape()) != 1 {
		panic(fmt.Sprintf("index_select: expected 1D index, got %v", index.Shape()))
	}
	rows := xShape[0]
	rowLen := 1
	for _, d := range xShape[1:] {
		rowLen *= d
	}

	idx := index.AsInt32()
	outShape := append(tensor.Shape{len(idx)}, xShape[1:]...)
	out := tensor.MustNewRaw(outShape, x.DType(), cpu.device)
	xData, outData := x.AsFloat32(), out.AsFloat32()

	for i, r := range idx {
		if int(r) < 0 || int(r) >= rows {
			panic(fmt.Sprintf("index_select: index %d out of range [0,%d)", r, rows))
		}
		copy(outData[i*rowLen:(i+1)*rowLen], xData[int(r)*rowLen:(int(r)+1)*rowLen])
	}
	return out
}
