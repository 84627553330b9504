// Package osnet implements an omni-scale convolutional network for
// person re-identification, with multi-resolution auxiliary feature
// heads and a combined classification/metric-learning training surface.
package osnet

import (
	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/tensor"
)

// ConvLayer is conv + norm + relu. With instanceNorm the normalization
// is per-sample instance norm instead of batch norm.
type ConvLayer[B tensor.Backend] struct {
	conv *nn.Conv2D[B]
	bn   *nn.BatchNorm2D[B]
	in   *nn.InstanceNorm2D[B]
}

// NewConvLayer creates a conv + norm + relu unit. Convolutions carry no
// bias: the following normalization absorbs it.
func NewConvLayer[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding, groups int, instanceNorm bool, backend B) *ConvLayer[B] {
	l := &ConvLayer[B]{
		conv: nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, groups, false, backend),
	}
	if instanceNorm {
		l.in = nn.NewInstanceNorm2D(outChannels, backend)
	} else {
		l.bn = nn.NewBatchNorm2D(outChannels, backend)
	}
	return l
}

// Forward applies conv, normalization, relu.
func (l *ConvLayer[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = l.conv.Forward(x)
	if l.in != nil {
		x = l.in.Forward(x)
	} else {
		x = l.bn.Forward(x)
	}
	return x.ReLU()
}

// Parameters returns all trainable parameters.
func (l *ConvLayer[B]) Parameters() []*nn.Parameter[B] {
	params := l.conv.Parameters()
	if l.in != nil {
		return append(params, l.in.Parameters()...)
	}
	return append(params, l.bn.Parameters()...)
}

func (l *ConvLayer[B]) register(r *registry[B], prefix string) {
	r.add(prefix+".conv.weight", l.conv.Weight())
	if l.in != nil {
		r.add(prefix+".bn.weight", l.in.Weight())
		r.add(prefix+".bn.bias", l.in.Bias())
	} else {
		r.add(prefix+".bn.weight", l.bn.Weight())
		r.add(prefix+".bn.bias", l.bn.Bias())
	}
}

func (l *ConvLayer[B]) setTraining(training bool) {
	if l.bn != nil {
		l.bn.SetTraining(training)
	}
}

// Conv1x1 is a pointwise conv + bn + relu.
type Conv1x1[B tensor.Backend] struct {
	conv *nn.Conv2D[B]
	bn   *nn.BatchNorm2D[B]
}

// NewConv1x1 creates a 1x1 conv + bn + relu unit.
func NewConv1x1[B tensor.Backend](inChannels, outChannels, stride, groups int, backend B) *Conv1x1[B] {
	return &Conv1x1[B]{
		conv: nn.NewConv2D(inChannels, outChannels, 1, stride, 0, groups, false, backend),
		bn:   nn.NewBatchNorm2D(outChannels, backend),
	}
}

// Forward applies conv, batch norm, relu.
func (l *Conv1x1[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return l.bn.Forward(l.conv.Forward(x)).ReLU()
}

// Parameters returns all trainable parameters.
func (l *Conv1x1[B]) Parameters() []*nn.Parameter[B] {
	return append(l.conv.Parameters(), l.bn.Parameters()...)
}

func (l *Conv1x1[B]) register(r *registry[B], prefix string) {
	r.add(prefix+".conv.weight", l.conv.Weight())
	r.add(prefix+".bn.weight", l.bn.Weight())
	r.add(prefix+".bn.bias", l.bn.Bias())
}

func (l *Conv1x1[B]) setTraining(training bool) {
	l.bn.SetTraining(training)
}

// Conv1x1Linear is a pointwise conv + bn with no non-linearity. Used
// for residual projections and for the post-gate mixing convolution.
type Conv1x1Linear[B tensor.Backend] struct {
	conv *nn.Conv2D[B]
	bn   *nn.BatchNorm2D[B]
}

// NewConv1x1Linear creates a 1x1 conv + bn unit.
func NewConv1x1Linear[B tensor.Backend](inChannels, outChannels, stride int, backend B) *Conv1x1Linear[B] {
	return &Conv1x1Linear[B]{
		conv: nn.NewConv2D(inChannels, outChannels, 1, stride, 0, 1, false, backend),
		bn:   nn.NewBatchNorm2D(outChannels, backend),
	}
}

// Forward applies conv then batch norm.
func (l *Conv1x1Linear[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return l.bn.Forward(l.conv.Forward(x))
}

// Parameters returns all trainable parameters.
func (l *Conv1x1Linear[B]) Parameters() []*nn.Parameter[B] {
	return append(l.conv.Parameters(), l.bn.Parameters()...)
}

func (l *Conv1x1Linear[B]) register(r *registry[B], prefix string) {
	r.add(prefix+".conv.weight", l.conv.Weight())
	r.add(prefix+".bn.weight", l.bn.Weight())
	r.add(prefix+".bn.bias", l.bn.Bias())
}

func (l *Conv1x1Linear[B]) setTraining(training bool) {
	l.bn.SetTraining(training)
}

// Conv3x3 is a 3x3 conv (padding 1) + bn + relu.
type Conv3x3[B tensor.Backend] struct {
	conv *nn.Conv2D[B]
	bn   *nn.BatchNorm2D[B]
}

// NewConv3x3 creates a 3x3 conv + bn + relu unit.
func NewConv3x3[B tensor.Backend](inChannels, outChannels, stride, groups int, backend B) *Conv3x3[B] {
	return &Conv3x3[B]{
		conv: nn.NewConv2D(inChannels, outChannels, 3, stride, 1, groups, false, backend),
		bn:   nn.NewBatchNorm2D(outChannels, backend),
	}
}

// Forward applies conv, batch norm, relu.
func (l *Conv3x3[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return l.bn.Forward(l.conv.Forward(x)).ReLU()
}

// Parameters returns all trainable parameters.
func (l *Conv3x3[B]) Parameters() []*nn.Parameter[B] {
	return append(l.conv.Parameters(), l.bn.Parameters()...)
}

func (l *Conv3x3[B]) register(r *registry[B], prefix string) {
	r.add(prefix+".conv.weight", l.conv.Weight())
	r.add(prefix+".bn.weight", l.bn.Weight())
	r.add(prefix+".bn.bias", l.bn.Bias())
}

func (l *Conv3x3[B]) setTraining(training bool) {
	l.bn.SetTraining(training)
}

// LightConv3x3 factorizes a 3x3 convolution into a linear 1x1 channel
// mix followed by a depthwise 3x3, then bn + relu. The 1x1 comes first
// so the depthwise stage sees the mixed channels.
type LightConv3x3[B tensor.Backend] struct {
	conv1 *nn.Conv2D[B] // 1x1, linear
	conv2 *nn.Conv2D[B] // depthwise 3x3
	bn    *nn.BatchNorm2D[B]
}

// NewLightConv3x3 creates a factorized 3x3 unit.
func NewLightConv3x3[B tensor.Backend](inChannels, outChannels int, backend B) *LightConv3x3[B] {
	return &LightConv3x3[B]{
		conv1: nn.NewConv2D(inChannels, outChannels, 1, 1, 0, 1, false, backend),
		conv2: nn.NewConv2D(outChannels, outChannels, 3, 1, 1, outChannels, false, backend),
		bn:    nn.NewBatchNorm2D(outChannels, backend),
	}
}

// Forward applies the 1x1 mix, depthwise 3x3, batch norm, relu.
func (l *LightConv3x3[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return l.bn.Forward(l.conv2.Forward(l.conv1.Forward(x))).ReLU()
}

// Parameters returns all trainable parameters.
func (l *LightConv3x3[B]) Parameters() []*nn.Parameter[B] {
	params := append(l.conv1.Parameters(), l.conv2.Parameters()...)
	return append(params, l.bn.Parameters()...)
}

func (l *LightConv3x3[B]) register(r *registry[B], prefix string) {
	r.add(prefix+".conv1.weight", l.conv1.Weight())
	r.add(prefix+".conv2.weight", l.conv2.Weight())
	r.add(prefix+".bn.weight", l.bn.Weight())
	r.add(prefix+".bn.bias", l.bn.Bias())
}

func (l *LightConv3x3[B]) setTraining(training bool) {
	l.bn.SetTraining(training)
}
