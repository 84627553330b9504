package cpu

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [M,K] @ [K,N] -> [M,N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v and %v", aShape, bShape))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("matmul: inner dimensions mismatch: %v @ %v", aShape, bShape))
	}
	m, k, n := aShape[0], aShape[1], bShape[1]

	out := tensor.MustNewRaw(tensor.Shape{m, n}, a.DType(), cpu.device)
	aData, bData, outData := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	// ikj loop order keeps the inner loop sequential over both b and out.
	for i := 0; i < m; i++ {
		aRow := aData[i*k : (i+1)*k]
		outRow := outData[i*n : (i+1)*n]
		for kk := 0; kk < k; kk++ {
			av := aRow[kk]
			if av == 0 {
				continue
			}
			bRow := bData[kk*n : (kk+1)*n]
			for j := 0; j < n; j++ {
				outRow[j] += av * bRow[j]
			}
		}
	}
	return out
}
