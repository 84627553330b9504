package ops

import (
	"fmt"
	"math"

	"github.com/reid-ml/osnet/internal/tensor"
)

// CrossEntropyOp is a fused softmax + negative log-likelihood with
// optional label smoothing. Fusing keeps the backward pass a single
// numerically stable expression: dL/dlogits = (softmax - target)/batch.
type CrossEntropyOp struct {
	logits, targets, output *tensor.RawTensor
	probs                   []float32
	smoothing               float32
}

// NewCrossEntropyOp computes the loss and creates its record.
// logits is [batch, classes] float32, targets is [batch] int32.
// smoothing in [0,1) redistributes that much target mass uniformly.
func NewCrossEntropyOp(logits, targets *tensor.RawTensor, smoothing float32) *CrossEntropyOp {
	lShape := logits.Shape()
	if len(lShape) != 2 {
		panic(fmt.Sprintf("cross_entropy: expected 2D logits, got %v", lShape))
	}
	batch, classes := lShape[0], lShape[1]
	tData := targets.AsInt32()
	if len(tData) != batch {
		panic(fmt.Sprintf("cross_entropy: %d logit rows but %d targets", batch, len(tData)))
	}

	lData := logits.AsFloat32()
	probs := make([]float32, batch*classes)
	var totalLoss float64

	for b := 0; b < batch; b++ {
		row := lData[b*classes : (b+1)*classes]

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(float64(v - maxVal))
		}
		logSumExp := math.Log(sumExp)

		target := int(tData[b])
		if target < 0 || target >= classes {
			panic(fmt.Sprintf("cross_entropy: target %d out of range [0,%d)", target, classes))
		}

		uniform := float64(smoothing) / float64(classes)
		onTarget := float64(1-smoothing) + uniform
		for c := 0; c < classes; c++ {
			logP := float64(row[c]-maxVal) - logSumExp
			probs[b*classes+c] = float32(math.Exp(logP))
			q := uniform
			if c == target {
				q = onTarget
			}
			totalLoss -= q * logP
		}
	}

	output := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, logits.Device())
	output.AsFloat32()[0] = float32(totalLoss / float64(batch))

	return &CrossEntropyOp{
		logits:    logits,
		targets:   targets,
		output:    output,
		probs:     probs,
		smoothing: smoothing,
	}
}

func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	lShape := op.logits.Shape()
	batch, classes := lShape[0], lShape[1]
	tData := op.targets.AsInt32()
	gv := outputGrad.AsFloat32()[0]

	grad := tensor.MustNewRaw(lShape, tensor.Float32, op.logits.Device())
	gData := grad.AsFloat32()

	uniform := op.smoothing / float32(classes)
	onTarget := (1 - op.smoothing) + uniform
	scale := gv / float32(batch)

	for b := 0; b < batch; b++ {
		target := int(tData[b])
		for c := 0; c < classes; c++ {
			q := uniform
			if c == target {
				q = onTarget
			}
			gData[b*classes+c] = (op.probs[b*classes+c] - q) * scale
		}
	}
	return []*tensor.RawTensor{grad}
}

func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.logits} }
func (op *CrossEntropyOp) Output() *tensor.RawTensor   { return op.output }

// Probs returns the softmax probabilities computed in the forward pass,
// laid out as [batch*classes]. Useful for accuracy metrics without a
// second softmax.
func (op *CrossEntropyOp) Probs() []float32 { return op.probs }
