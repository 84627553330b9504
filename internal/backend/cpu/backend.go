// Package cpu implements the pure-Go CPU backend.
package cpu

import (
	"fmt"
	"math"

	"github.com/reid-ml/osnet/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{device: tensor.CPU}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b, func(x, y float32) float32 { return x / y })
}

// binaryOp applies fn element-wise with NumPy-style broadcasting.
func (cpu *CPUBackend) binaryOp(name string, a, b *tensor.RawTensor, fn func(x, y float32) float32) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	out := tensor.MustNewRaw(outShape, a.DType(), cpu.device)

	aData, bData, outData := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	if !needsBroadcast {
		for i := range outData {
			outData[i] = fn(aData[i], bData[i])
		}
		return out
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	outStrides := outShape.ComputeStrides()

	coords := make([]int, len(outShape))
	for i := range outData {
		// Decompose flat index into coordinates.
		rem := i
		for d := range outShape {
			coords[d] = rem / outStrides[d]
			rem %= outStrides[d]
		}
		aIdx, bIdx := 0, 0
		for d := range outShape {
			aIdx += coords[d] * aStrides[d]
			bIdx += coords[d] * bStrides[d]
		}
		outData[i] = fn(aData[aIdx], bData[bIdx])
	}
	return out
}

// broadcastStrides computes the per-output-dimension stride into a tensor
// of shape `in` broadcast up to shape `out`. Broadcast dimensions get
// stride 0 so the same element is reused.
func broadcastStrides(in, out tensor.Shape) []int {
	inStrides := in.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(in)
	for d := range out {
		src := d - offset
		if src < 0 || in[src] == 1 {
			strides[d] = 0
		} else {
			strides[d] = inStrides[src]
		}
	}
	return strides
}

// Scale multiplies every element by a scalar.
func (cpu *CPUBackend) Scale(x *tensor.RawTensor, scale float32) *tensor.RawTensor {
	return cpu.unaryOp(x, func(v float32) float32 { return v * scale })
}

// Shift adds a scalar to every element.
func (cpu *CPUBackend) Shift(x *tensor.RawTensor, offset float32) *tensor.RawTensor {
	return cpu.unaryOp(x, func(v float32) float32 { return v + offset })
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp(x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Sigmoid applies 1/(1+exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp(x, func(v float32) float32 {
		return float32(1.0 / (1.0 + math.Exp(float64(-v))))
	})
}

// Exp applies the element-wise exponential.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp(x, func(v float32) float32 {
		return float32(math.Exp(float64(v)))
	})
}

// Sqrt applies the element-wise square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp(x, func(v float32) float32 {
		return float32(math.Sqrt(float64(v)))
	})
}

// Rsqrt applies the element-wise reciprocal square root.
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp(x, func(v float32) float32 {
		return float32(1.0 / math.Sqrt(float64(v)))
	})
}

func (cpu *CPUBackend) unaryOp(x *tensor.RawTensor, fn func(v float32) float32) *tensor.RawTensor {
	out := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	xData, outData := x.AsFloat32(), out.AsFloat32()
	for i, v := range xData {
		outData[i] = fn(v)
	}
	return out
}
