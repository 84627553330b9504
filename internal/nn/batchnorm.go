package nn

import (
	"fmt"
	"math"

	"github.com/reid-ml/osnet/internal/tensor"
)

// BatchNorm2D normalizes [N,C,H,W] activations per channel.
//
// In training mode the batch mean and variance are computed through
// recorded tape operations so gradients flow through the statistics,
// and running estimates are updated off-tape. In evaluation mode the
// running estimates are used.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32
	training    bool

	weight *Parameter[B] // scale, init 1
	bias   *Parameter[B] // shift, init 0

	runningMean []float32
	runningVar  []float32

	backend B
}

// NewBatchNorm2D creates a batch normalization layer with affine
// parameters (scale 1, shift 0) and running statistics (mean 0, var 1).
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid feature count %d", numFeatures))
	}
	runningVar := make([]float32, numFeatures)
	for i := range runningVar {
		runningVar[i] = 1
	}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         1e-5,
		momentum:    0.1,
		training:    true,
		weight:      NewParameter("weight", Ones(tensor.Shape{numFeatures}, backend)),
		bias:        NewParameter("bias", Zeros(tensor.Shape{numFeatures}, backend)),
		runningMean: make([]float32, numFeatures),
		runningVar:  runningVar,
		backend:     backend,
	}
}

// SetTraining switches between batch statistics and running estimates.
func (bn *BatchNorm2D[B]) SetTraining(training bool) { bn.training = training }

// Forward normalizes the input per channel.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input, got %v", shape))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", shape[1], bn.numFeatures))
	}

	if !bn.training {
		return bn.evalForward(input, tensor.Shape{1, bn.numFeatures, 1, 1})
	}

	mean := input.MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)
	diff := input.Sub(mean)
	variance := diff.Mul(diff).MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)

	bn.updateRunningStats(mean.Data(), variance.Data(), shape[0]*shape[2]*shape[3])

	normalized := diff.Mul(variance.Shift(bn.eps).Rsqrt())
	return normalized.
		Mul(bn.weight.Tensor().Reshape(1, bn.numFeatures, 1, 1)).
		Add(bn.bias.Tensor().Reshape(1, bn.numFeatures, 1, 1))
}

func (bn *BatchNorm2D[B]) evalForward(input *tensor.Tensor[float32, B], statShape tensor.Shape) *tensor.Tensor[float32, B] {
	scaleData := make([]float32, bn.numFeatures)
	shiftData := make([]float32, bn.numFeatures)
	gamma, beta := bn.weight.Tensor().Data(), bn.bias.Tensor().Data()
	for c := 0; c < bn.numFeatures; c++ {
		scaleData[c] = gamma[c] / float32(math.Sqrt(float64(bn.runningVar[c]+bn.eps)))
		shiftData[c] = beta[c] - bn.runningMean[c]*scaleData[c]
	}
	scale, err := tensor.FromSlice(scaleData, statShape, bn.backend)
	if err != nil {
		panic(err)
	}
	shift, err := tensor.FromSlice(shiftData, statShape, bn.backend)
	if err != nil {
		panic(err)
	}
	return input.Mul(scale).Add(shift)
}

func (bn *BatchNorm2D[B]) updateRunningStats(mean, biasedVar []float32, n int) {
	// Running variance uses the unbiased estimator.
	correction := float32(1)
	if n > 1 {
		correction = float32(n) / float32(n-1)
	}
	for c := 0; c < bn.numFeatures; c++ {
		bn.runningMean[c] = (1-bn.momentum)*bn.runningMean[c] + bn.momentum*mean[c]
		bn.runningVar[c] = (1-bn.momentum)*bn.runningVar[c] + bn.momentum*biasedVar[c]*correction
	}
}

// Parameters returns the affine scale and shift.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// Weight returns the scale parameter.
func (bn *BatchNorm2D[B]) Weight() *Parameter[B] { return bn.weight }

// Bias returns the shift parameter.
func (bn *BatchNorm2D[B]) Bias() *Parameter[B] { return bn.bias }

// RunningStats returns the running mean and variance slices.
func (bn *BatchNorm2D[B]) RunningStats() (mean, variance []float32) {
	return bn.runningMean, bn.runningVar
}

// BatchNorm1D normalizes [N,C] feature vectors per feature.
type BatchNorm1D[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32
	training    bool

	weight *Parameter[B]
	bias   *Parameter[B]

	runningMean []float32
	runningVar  []float32

	backend B
}

// NewBatchNorm1D creates a 1D batch normalization layer.
func NewBatchNorm1D[B tensor.Backend](numFeatures int, backend B) *BatchNorm1D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm1d: invalid feature count %d", numFeatures))
	}
	runningVar := make([]float32, numFeatures)
	for i := range runningVar {
		runningVar[i] = 1
	}
	return &BatchNorm1D[B]{
		numFeatures: numFeatures,
		eps:         1e-5,
		momentum:    0.1,
		training:    true,
		weight:      NewParameter("weight", Ones(tensor.Shape{numFeatures}, backend)),
		bias:        NewParameter("bias", Zeros(tensor.Shape{numFeatures}, backend)),
		runningMean: make([]float32, numFeatures),
		runningVar:  runningVar,
		backend:     backend,
	}
}

// SetTraining switches between batch statistics and running estimates.
func (bn *BatchNorm1D[B]) SetTraining(training bool) { bn.training = training }

// Forward normalizes the input per feature.
func (bn *BatchNorm1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("batchnorm1d: expected 2D input, got %v", shape))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm1d: input features %d != expected %d", shape[1], bn.numFeatures))
	}

	if !bn.training {
		scaleData := make([]float32, bn.numFeatures)
		shiftData := make([]float32, bn.numFeatures)
		gamma, beta := bn.weight.Tensor().Data(), bn.bias.Tensor().Data()
		for c := 0; c < bn.numFeatures; c++ {
			scaleData[c] = gamma[c] / float32(math.Sqrt(float64(bn.runningVar[c]+bn.eps)))
			shiftData[c] = beta[c] - bn.runningMean[c]*scaleData[c]
		}
		scale, err := tensor.FromSlice(scaleData, tensor.Shape{1, bn.numFeatures}, bn.backend)
		if err != nil {
			panic(err)
		}
		shift, err := tensor.FromSlice(shiftData, tensor.Shape{1, bn.numFeatures}, bn.backend)
		if err != nil {
			panic(err)
		}
		return input.Mul(scale).Add(shift)
	}

	mean := input.MeanDim(0, true)
	diff := input.Sub(mean)
	variance := diff.Mul(diff).MeanDim(0, true)

	n := shape[0]
	correction := float32(1)
	if n > 1 {
		correction = float32(n) / float32(n-1)
	}
	meanData, varData := mean.Data(), variance.Data()
	for c := 0; c < bn.numFeatures; c++ {
		bn.runningMean[c] = (1-bn.momentum)*bn.runningMean[c] + bn.momentum*meanData[c]
		bn.runningVar[c] = (1-bn.momentum)*bn.runningVar[c] + bn.momentum*varData[c]*correction
	}

	normalized := diff.Mul(variance.Shift(bn.eps).Rsqrt())
	return normalized.
		Mul(bn.weight.Tensor().Reshape(1, bn.numFeatures)).
		Add(bn.bias.Tensor().Reshape(1, bn.numFeatures))
}

// Parameters returns the affine scale and shift.
func (bn *BatchNorm1D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// Weight returns the scale parameter.
func (bn *BatchNorm1D[B]) Weight() *Parameter[B] { return bn.weight }

// Bias returns the shift parameter.
func (bn *BatchNorm1D[B]) Bias() *Parameter[B] { return bn.bias }
