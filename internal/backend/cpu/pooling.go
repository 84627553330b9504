package cpu

import (
	"fmt"
	"math"

	"github.com/reid-ml/osnet/internal/tensor"
)

// MaxPool2D performs 2D max pooling. Padded positions are never
// selected as maxima.
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	out, _ := maxPool2DWithIndices(cpu.device, input, kernelSize, stride, padding)
	return out
}

// MaxPool2DIndices returns the flat input index of the maximum for each
// output position, for use by the backward pass.
func (cpu *CPUBackend) MaxPool2DIndices(input *tensor.RawTensor, kernelSize, stride, padding int) []int {
	_, indices := maxPool2DWithIndices(cpu.device, input, kernelSize, stride, padding)
	return indices
}

func maxPool2DWithIndices(device tensor.Device, input *tensor.RawTensor, kernelSize, stride, padding int) (*tensor.RawTensor, []int) {
	inShape := input.Shape()
	if len(inShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input, got %v", inShape))
	}
	batch, channels, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	hOut := (h+2*padding-kernelSize)/stride + 1
	wOut := (w+2*padding-kernelSize)/stride + 1

	out := tensor.MustNewRaw(tensor.Shape{batch, channels, hOut, wOut}, input.DType(), device)
	inData, outData := input.AsFloat32(), out.AsFloat32()
	indices := make([]int, len(outData))

	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					maxVal := float32(math.Inf(-1))
					maxIdx := -1
					for fh := 0; fh < kernelSize; fh++ {
						ih := oh*stride - padding + fh
						if ih < 0 || ih >= h {
							continue
						}
						for fw := 0; fw < kernelSize; fw++ {
							iw := ow*stride - padding + fw
							if iw < 0 || iw >= w {
								continue
							}
							idx := ((n*channels+c)*h+ih)*w + iw
							if inData[idx] > maxVal {
								maxVal = inData[idx]
								maxIdx = idx
							}
						}
					}
					outIdx := ((n*channels+c)*hOut+oh)*wOut + ow
					outData[outIdx] = maxVal
					indices[outIdx] = maxIdx
				}
			}
		}
	}
	return out, indices
}

// MaxPool2DBackward routes each output gradient to the input position
// that was the maximum in the forward pass.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int) *tensor.RawTensor {
	out := tensor.MustNewRaw(input.Shape(), input.DType(), cpu.device)
	gData, outData := grad.AsFloat32(), out.AsFloat32()
	for i, idx := range maxIndices {
		if idx >= 0 {
			outData[idx] += gData[i]
		}
	}
	return out
}

// AvgPool2D performs 2D average pooling without padding.
func (cpu *CPUBackend) AvgPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	inShape := input.Shape()
	if len(inShape) != 4 {
		panic(fmt.Sprintf("avgpool2d: expected 4D input, got %v", inShape))
	}
	batch, channels, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	hOut := (h-kernelSize)/stride + 1
	wOut := (w-kernelSize)/stride + 1
	norm := float32(1) / float32(kernelSize*kernelSize)

	out := tensor.MustNewRaw(tensor.Shape{batch, channels, hOut, wOut}, input.DType(), cpu.device)
	inData, outData := input.AsFloat32(), out.AsFloat32()

	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					var acc float32
					for fh := 0; fh < kernelSize; fh++ {
						ih := oh*stride + fh
						for fw := 0; fw < kernelSize; fw++ {
							iw := ow*stride + fw
							acc += inData[((n*channels+c)*h+ih)*w+iw]
						}
					}
					outData[((n*channels+c)*hOut+oh)*wOut+ow] = acc * norm
				}
			}
		}
	}
	return out
}

// AvgPool2DBackward distributes each output gradient uniformly over the
// window that produced it.
func (cpu *CPUBackend) AvgPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	inShape, gShape := input.Shape(), grad.Shape()
	batch, channels, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	hOut, wOut := gShape[2], gShape[3]
	norm := float32(1) / float32(kernelSize*kernelSize)

	out := tensor.MustNewRaw(inShape, input.DType(), cpu.device)
	gData, outData := grad.AsFloat32(), out.AsFloat32()

	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					gv := gData[((n*channels+c)*hOut+oh)*wOut+ow] * norm
					for fh := 0; fh < kernelSize; fh++ {
						ih := oh*stride + fh
						for fw := 0; fw < kernelSize; fw++ {
							iw := ow*stride + fw
							outData[((n*channels+c)*h+ih)*w+iw] += gv
						}
					}
				}
			}
		}
	}
	return out
}
