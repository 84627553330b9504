package cpu

import (
	"fmt"

	"github.com/reid-ml/osnet/internal/tensor"
)

// Conv2D performs grouped 2D convolution with a direct loop nest.
//
// Input [N,C_in,H,W], kernel [C_out,C_in/groups,K_h,K_w], output
// [N,C_out,H_out,W_out] where H_out = (H + 2*padding - K_h)/stride + 1.
// groups=1 is a dense convolution; groups=C_in with C_out=C_in is
// depthwise.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	inShape, kShape := input.Shape(), kernel.Shape()
	if len(inShape) != 4 || len(kShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D tensors, got input %v kernel %v", inShape, kShape))
	}
	batch, cIn, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	cOut, cInPerGroup, kh, kw := kShape[0], kShape[1], kShape[2], kShape[3]
	if cIn%groups != 0 || cOut%groups != 0 {
		panic(fmt.Sprintf("conv2d: channels (%d in, %d out) not divisible by groups %d", cIn, cOut, groups))
	}
	if cInPerGroup != cIn/groups {
		panic(fmt.Sprintf("conv2d: kernel expects %d input channels per group, input has %d", cInPerGroup, cIn/groups))
	}

	hOut := (h+2*padding-kh)/stride + 1
	wOut := (w+2*padding-kw)/stride + 1
	cOutPerGroup := cOut / groups

	out := tensor.MustNewRaw(tensor.Shape{batch, cOut, hOut, wOut}, input.DType(), cpu.device)
	inData, kData, outData := input.AsFloat32(), kernel.AsFloat32(), out.AsFloat32()

	for n := 0; n < batch; n++ {
		for oc := 0; oc < cOut; oc++ {
			g := oc / cOutPerGroup
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					var acc float32
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
								kIdx := ((oc*cInPerGroup+ic)*kh+fh)*kw + fw
								acc += inData[inIdx] * kData[kIdx]
							}
						}
					}
					outData[((n*cOut+oc)*hOut+oh)*wOut+ow] = acc
				}
			}
		}
	}
	return out
}
