package engine_test

import (
	"bufio"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reid-ml/osnet/internal/autodiff"
	"github.com/reid-ml/osnet/internal/backend/cpu"
	"github.com/reid-ml/osnet/internal/data"
	"github.com/reid-ml/osnet/internal/engine"
	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/optim"
	"github.com/reid-ml/osnet/internal/osnet"
	"github.com/reid-ml/osnet/internal/tensor"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// linearModel is a minimal training model: flatten, one linear map to
// logits, the flattened input doubling as the metric feature.
type linearModel struct {
	weight  *nn.Parameter[testBackend]
	classes int
	inDim   int

	openedLayers []string
	openedAll    bool

	backend testBackend
}

func newLinearModel(inDim, classes int, backend testBackend) *linearModel {
	return &linearModel{
		weight:  nn.NewParameter("weight", nn.Normal(0.01, tensor.Shape{inDim, classes}, backend)),
		classes: classes,
		inDim:   inDim,
		backend: backend,
	}
}

func (m *linearModel) SetTraining(bool) {}

func (m *linearModel) ForwardTrain(x *tensor.Tensor[float32, testBackend]) osnet.TrainOutput[testBackend] {
	n := x.Shape()[0]
	flat := x.Reshape(n, m.inDim)
	logits := flat.MatMul(m.weight.Tensor())
	return osnet.TrainOutput[testBackend]{
		Logits:   []*tensor.Tensor[float32, testBackend]{logits},
		Features: []*tensor.Tensor[float32, testBackend]{flat},
	}
}

func (m *linearModel) Parameters() []*nn.Parameter[testBackend] {
	return []*nn.Parameter[testBackend]{m.weight}
}

func (m *linearModel) OpenLayers(layers []string) { m.openedLayers = layers }
func (m *linearModel) OpenAllLayers()             { m.openedAll = true }
func (m *linearModel) HeadDims() []int            { return []int{m.inDim} }
func (m *linearModel) NumClasses() int            { return m.classes }

// sliceLoader serves fixed pre-built batches.
type sliceLoader struct {
	batches []data.Batch[testBackend]
}

func (l *sliceLoader) Len() int { return len(l.batches) }
func (l *sliceLoader) Batch(i int) (data.Batch[testBackend], error) {
	return l.batches[i], nil
}

// makeBatches builds deterministic identity-balanced batches where each
// identity occupies a distinct region of input space.
func makeBatches(t *testing.T, backend testBackend, numBatches, batchSize, inDim int) *sliceLoader {
	t.Helper()
	loader := &sliceLoader{}
	for b := 0; b < numBatches; b++ {
		images := make([]float32, batchSize*inDim)
		pids := make([]int32, batchSize)
		for i := 0; i < batchSize; i++ {
			pid := int32(i / 2) // two instances per identity
			pids[i] = pid
			for d := 0; d < inDim; d++ {
				images[i*inDim+d] = float32(pid)*2 + float32(i%2)*0.1
			}
		}
		x, err := tensor.FromSlice(images, tensor.Shape{batchSize, 1, 2, inDim / 2}, backend)
		require.NoError(t, err)
		loader.batches = append(loader.batches, data.Batch[testBackend]{Images: x, PIDs: pids})
	}
	return loader
}

func TestEngine_TrainEpoch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	const inDim, classes, batchSize = 4, 4, 8

	model := newLinearModel(inDim, classes, backend)
	before := append([]float32(nil), model.weight.Tensor().Data()...)

	loader := makeBatches(t, backend, 2, batchSize, inDim)
	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01})

	eng := engine.New[testBackend](model, loader, opt, nil, engine.Config{
		WeightT: 1,
		WeightX: 1,
		Margin:  0.3,
	}, backend)

	avgLoss, err := eng.Train(0, 1, nil, engine.TrainOptions{PrintFreq: 100})
	require.NoError(t, err)

	assert.True(t, model.openedAll, "without fixbase all layers open")
	assert.False(t, math.IsNaN(float64(avgLoss)), "loss is NaN")
	assert.Greater(t, avgLoss, float32(0))
	assert.NotEqual(t, before, model.weight.Tensor().Data(), "weights did not move")
}

func TestEngine_Fixbase(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newLinearModel(4, 4, backend)
	loader := makeBatches(t, backend, 1, 8, 4)
	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01})

	eng := engine.New[testBackend](model, loader, opt, nil, engine.Config{WeightX: 1}, backend)

	opts := engine.TrainOptions{FixbaseEpoch: 2, OpenLayers: []string{"weight"}, PrintFreq: 100}
	_, err := eng.Train(0, 3, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"weight"}, model.openedLayers, "epoch 1 trains only the open layers")
	assert.False(t, model.openedAll)

	_, err = eng.Train(2, 3, nil, opts)
	require.NoError(t, err)
	assert.True(t, model.openedAll, "after the fixbase window everything opens")
}

func TestEngine_SchedulerSteps(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newLinearModel(4, 4, backend)
	loader := makeBatches(t, backend, 1, 8, 4)
	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 1})
	sched := optim.NewStepLR(opt, 1, 0.1)

	eng := engine.New[testBackend](model, loader, opt, sched, engine.Config{WeightX: 1}, backend)

	_, err := eng.Train(0, 2, nil, engine.TrainOptions{PrintFreq: 100})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, opt.GetLR(), 1e-6, "scheduler must step once per epoch")
}

func TestEngine_CenterLoss(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newLinearModel(4, 4, backend)
	loader := makeBatches(t, backend, 1, 8, 4)
	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01})

	eng := engine.New[testBackend](model, loader, opt, nil, engine.Config{
		WeightT: 1,
		WeightX: 1,
		WeightC: 0.0005,
		Margin:  0.3,
	}, backend)

	centers := eng.CenterParameters()
	require.Len(t, centers, 1, "one center table per head")
	opt.AddParameters(centers)
	centersBefore := append([]float32(nil), centers[0].Tensor().Data()...)

	_, err := eng.Train(0, 1, nil, engine.TrainOptions{PrintFreq: 100})
	require.NoError(t, err)
	assert.NotEqual(t, centersBefore, centers[0].Tensor().Data(), "centers did not move")
}

func TestEngine_MetricsWritten(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newLinearModel(4, 4, backend)
	loader := makeBatches(t, backend, 2, 8, 4)
	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01})

	eng := engine.New[testBackend](model, loader, opt, nil, engine.Config{WeightX: 1}, backend)

	path := filepath.Join(t.TempDir(), "scalars.jsonl")
	writer, err := engine.NewJSONLWriter(path)
	require.NoError(t, err)

	_, err = eng.Train(0, 1, writer, engine.TrainOptions{PrintFreq: 100})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	tags := make(map[string]int)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record struct {
			Tag   string  `json:"tag"`
			Value float32 `json:"value"`
			Step  int     `json:"step"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		tags[record.Tag]++
	}
	for _, tag := range []string{"Train/Loss_x", "Train/Acc", "Train/Lr"} {
		assert.Equal(t, 2, tags[tag], "tag %s written once per batch", tag)
	}
}

// TestEngine_LossComposition tests that with center loss disabled the
// reported epoch loss is exactly the weighted sum of the triplet and
// cross-entropy averages.
func TestEngine_LossComposition(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newLinearModel(4, 4, backend)
	loader := makeBatches(t, backend, 2, 8, 4)
	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01})

	const weightT, weightX = 0.7, 0.3
	eng := engine.New[testBackend](model, loader, opt, nil, engine.Config{
		WeightT: weightT,
		WeightX: weightX,
		Margin:  0.3,
	}, backend)
	assert.Empty(t, eng.CenterParameters(), "no center tables when weight_c is zero")

	path := filepath.Join(t.TempDir(), "scalars.jsonl")
	writer, err := engine.NewJSONLWriter(path)
	require.NoError(t, err)

	avgLoss, err := eng.Train(0, 1, writer, engine.TrainOptions{PrintFreq: 100})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	// The writer logs running averages; the last record per tag is the
	// epoch average.
	last := make(map[string]float32)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record struct {
			Tag   string  `json:"tag"`
			Value float32 `json:"value"`
			Step  int     `json:"step"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		last[record.Tag] = record.Value
	}
	require.NoError(t, scanner.Err())
	assert.NotContains(t, last, "Train/Loss_c", "center loss disabled")

	want := weightT*last["Train/Loss_t"] + weightX*last["Train/Loss_x"]
	assert.InDelta(t, want, avgLoss, 1e-4)
}
