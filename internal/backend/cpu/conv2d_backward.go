package cpu

import (
	"github.com/reid-ml/osnet/internal/tensor"
)

// Conv2DInputBackward computes dL/dInput for Conv2D: every output
// gradient is scattered back through the kernel taps that produced it.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	inShape, kShape, gShape := input.Shape(), kernel.Shape(), grad.Shape()
	batch, cIn, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	cOut, cInPerGroup, kh, kw := kShape[0], kShape[1], kShape[2], kShape[3]
	hOut, wOut := gShape[2], gShape[3]
	cOutPerGroup := cOut / groups

	out := tensor.MustNewRaw(inShape, input.DType(), cpu.device)
	kData, gData, outData := kernel.AsFloat32(), grad.AsFloat32(), out.AsFloat32()

	for n := 0; n < batch; n++ {
		for oc := 0; oc < cOut; oc++ {
			g := oc / cOutPerGroup
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					gv := gData[((n*cOut+oc)*hOut+oh)*wOut+ow]
					if gv == 0 {
						continue
					}
					for ic := 0; ic < cInPerGroup; ic++ {
						inCh := g*cInPerGroup + ic
						for fh := 0; fh < kh; fh++ {
							ih := oh*stride - padding + fh
							if ih < 0 || ih >= h {
								continue
							}
							for fw := 0; fw < kw; fw++ {
								iw := ow*stride - padding + fw
								if iw < 0 || iw >= w {
									continue
								}
								kIdx := ((oc*cInPerGroup+ic)*kh+fh)*kw + fw
								outData[((n*cIn+inCh)*h+ih)*w+iw] += gv * kData[kIdx]
							}
						}
					}
				}
			}
		}
	}
	return out
}

// Conv2DKernelBackward computes dL/dKernel for Conv2D.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	inShape, kShape, gShape := input.Shape(), kernel.Shape(), grad.Shape()
	batch, cIn, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	cOut, cInPerGroup, kh, kw := kShape[0], kShape[1], kShape[2], kShape[3]
	hOut, wOut := gShape[2], gShape[3]
	cOutPerGroup := cOut / groups

	out := tensor.MustNewRaw(kShape, kernel.DType(), cpu.device)
	inData, gData, outData := input.AsFloat32(), grad.AsFloat32(), out.AsFloat32()

	for n := 0; n < batch; n++ {
		for oc := 0; oc < cOut; oc++ {
			g := oc / cOutPerGroup
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					gv := gData[((n*cOut+oc)*hOut+oh)*wOut+ow]
					if gv == 0 {
						continue
					}
					for ic := 0; ic < cInPerGroup; ic++ {
						inCh := g*cInPerGroup + ic
						for fh := 0; fh < kh; fh++ {
							ih := oh*stride - padding + fh
							if ih < 0 || ih >= h {
								continue
							}
							for fw := 0; fw < kw; fw++ {
								iw := ow*stride - padding + fw
								if iw < 0 || iw >= w {
									continue
								}
								inIdx := ((n*cIn+inCh)*h+ih)*w + iw
								outData[((oc*cInPerGroup+ic)*kh+fh)*kw+fw] += gv * inData[inIdx]
							}
						}
					}
				}
			}
		}
	}
	return out
}
