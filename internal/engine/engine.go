// Package engine runs the combined classification plus metric-learning
// training loop over identity-balanced image batches.
package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/reid-ml/osnet/internal/autodiff"
	"github.com/reid-ml/osnet/internal/data"
	"github.com/reid-ml/osnet/internal/losses"
	"github.com/reid-ml/osnet/internal/metrics"
	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/optim"
	"github.com/reid-ml/osnet/internal/osnet"
	"github.com/reid-ml/osnet/internal/tensor"
)

// Backend is the compute backend the engine requires: gradient
// recording plus the fused cross-entropy kernel.
type Backend interface {
	autodiff.BackwardCapable
	CrossEntropy(logits, targets *tensor.RawTensor, smoothing float32) *tensor.RawTensor
}

// Model is the training contract of the network: multi-head training
// forward, parameter access and staged freezing.
type Model[B Backend] interface {
	SetTraining(training bool)
	ForwardTrain(x *tensor.Tensor[float32, B]) osnet.TrainOutput[B]
	Parameters() []*nn.Parameter[B]
	OpenLayers(layers []string)
	OpenAllLayers()
	HeadDims() []int
	NumClasses() int
}

// TrainLoader supplies a fixed number of batches per epoch.
type TrainLoader[B tensor.Backend] interface {
	Len() int
	Batch(i int) (data.Batch[B], error)
}

// Config holds the loss combination and its hyperparameters. The
// total batch loss is WeightT*triplet + WeightX*crossEntropy +
// WeightC*center, each term averaged over the heads it applies to.
type Config struct {
	WeightT     float32 // triplet loss weight
	WeightX     float32 // cross-entropy loss weight
	WeightC     float32 // center loss weight; zero disables center loss entirely
	Margin      float32 // triplet margin
	LabelSmooth bool    // label-smoothed cross-entropy
}

// TrainOptions tunes one epoch of training.
type TrainOptions struct {
	// FixbaseEpoch freezes everything except OpenLayers for the first
	// FixbaseEpoch epochs. No effect when OpenLayers is empty.
	FixbaseEpoch int
	OpenLayers   []string
	// PrintFreq is the progress logging interval in batches.
	// Defaults to 10.
	PrintFreq int
}

// ImageTripletEngine trains a multi-head re-identification model with
// the weighted triplet + cross-entropy (+ center) objective.
type ImageTripletEngine[B Backend] struct {
	model     Model[B]
	loader    TrainLoader[B]
	optimizer optim.Optimizer
	scheduler optim.Scheduler // may be nil
	cfg       Config

	triplet *losses.Triplet[B]
	xent    *losses.CrossEntropy[B]
	centers []*losses.Center[B] // one per head; nil when WeightC == 0

	backend B
}

// New creates the engine. Center-loss criteria exist only when
// WeightC is non-zero; their centers are registered as extra
// optimizer parameters by the caller via CenterParameters.
func New[B Backend](
	model Model[B],
	loader TrainLoader[B],
	optimizer optim.Optimizer,
	scheduler optim.Scheduler,
	cfg Config,
	backend B,
) *ImageTripletEngine[B] {
	e := &ImageTripletEngine[B]{
		model:     model,
		loader:    loader,
		optimizer: optimizer,
		scheduler: scheduler,
		cfg:       cfg,
		triplet:   losses.NewTriplet[B](cfg.Margin, backend),
		xent:      losses.NewCrossEntropy(cfg.LabelSmooth, backend),
		backend:   backend,
	}
	if cfg.WeightC != 0 {
		for _, dim := range model.HeadDims() {
			e.centers = append(e.centers, losses.NewCenter[B](model.NumClasses(), dim, backend))
		}
	}
	return e
}

// CenterParameters returns the trainable center tensors, empty when
// center loss is disabled. Hand these to the optimizer alongside the
// model parameters.
func (e *ImageTripletEngine[B]) CenterParameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, len(e.centers))
	for _, c := range e.centers {
		params = append(params, c.Centers())
	}
	return params
}

// Train runs one epoch and returns the average total loss.
func (e *ImageTripletEngine[B]) Train(epoch, maxEpoch int, writer MetricWriter, opts TrainOptions) (float32, error) {
	if writer == nil {
		writer = NopWriter{}
	}
	printFreq := opts.PrintFreq
	if printFreq <= 0 {
		printFreq = 10
	}

	e.model.SetTraining(true)
	if epoch+1 <= opts.FixbaseEpoch && len(opts.OpenLayers) > 0 {
		log.Printf("* only train %v (epoch: %d/%d)", opts.OpenLayers, epoch+1, maxEpoch)
		e.model.OpenLayers(opts.OpenLayers)
	} else {
		e.model.OpenAllLayers()
	}

	batchTime := NewAverageMeter()
	dataTime := NewAverageMeter()
	lossTMeter := NewAverageMeter()
	lossXMeter := NewAverageMeter()
	lossCMeter := NewAverageMeter()
	accMeter := NewAverageMeter()
	totalMeter := NewAverageMeter()

	numBatches := e.loader.Len()
	tape := e.backend.GetTape()
	end := time.Now()

	for batchIdx := 0; batchIdx < numBatches; batchIdx++ {
		batch, err := e.loader.Batch(batchIdx)
		if err != nil {
			return 0, fmt.Errorf("load batch %d: %w", batchIdx, err)
		}
		dataTime.Update(float32(time.Since(end).Seconds()), 1)

		e.optimizer.ZeroGrad()
		tape.Clear()
		tape.StartRecording()

		out := e.model.ForwardTrain(batch.Images)
		total, parts := e.computeLoss(out, batch.PIDs)

		grads := autodiff.Backward(total, e.backend)
		tape.StopRecording()
		e.optimizer.Step(grads)

		n := len(batch.PIDs)
		lossTMeter.Update(parts.t, n)
		lossXMeter.Update(parts.x, n)
		lossCMeter.Update(parts.c, n)
		totalMeter.Update(total.Item(), n)
		acc := metrics.Accuracy(out.Logits[0].Raw(), batch.PIDs, 1)
		accMeter.Update(acc, n)

		batchTime.Update(float32(time.Since(end).Seconds()), 1)
		end = time.Now()

		if (batchIdx+1)%printFreq == 0 {
			remaining := float64(batchTime.Avg) * float64(numBatches-(batchIdx+1)+(maxEpoch-(epoch+1))*numBatches)
			eta := time.Duration(remaining * float64(time.Second)).Round(time.Second)
			log.Printf("epoch: [%d/%d][%d/%d]  time %.3f (%.3f)  data %.3f (%.3f)  loss_t %.4f (%.4f)  loss_x %.4f (%.4f)  acc %.2f (%.2f)  lr %.6f  eta %s",
				epoch+1, maxEpoch, batchIdx+1, numBatches,
				batchTime.Val, batchTime.Avg,
				dataTime.Val, dataTime.Avg,
				lossTMeter.Val, lossTMeter.Avg,
				lossXMeter.Val, lossXMeter.Avg,
				accMeter.Val, accMeter.Avg,
				e.optimizer.GetLR(), eta)
		}

		step := epoch*numBatches + batchIdx
		writer.AddScalar("Train/Time", batchTime.Avg, step)
		writer.AddScalar("Train/Data", dataTime.Avg, step)
		writer.AddScalar("Train/Loss_t", lossTMeter.Avg, step)
		writer.AddScalar("Train/Loss_x", lossXMeter.Avg, step)
		if e.centers != nil {
			writer.AddScalar("Train/Loss_c", lossCMeter.Avg, step)
		}
		writer.AddScalar("Train/Acc", accMeter.Avg, step)
		writer.AddScalar("Train/Lr", e.optimizer.GetLR(), step)
	}

	if e.scheduler != nil {
		e.scheduler.Step()
	}
	return totalMeter.Avg, nil
}

type lossParts struct {
	t, x, c float32
}

// computeLoss builds the weighted objective on the tape. Head losses
// are averaged (deep supervision) before weighting.
func (e *ImageTripletEngine[B]) computeLoss(out osnet.TrainOutput[B], pids []int32) (*tensor.Tensor[float32, B], lossParts) {
	var parts lossParts
	var total *tensor.Tensor[float32, B]

	addTerm := func(term *tensor.Tensor[float32, B], weight float32) {
		weighted := term.Scale(weight)
		if total == nil {
			total = weighted
		} else {
			total = total.Add(weighted)
		}
	}

	if e.cfg.WeightT != 0 && out.Features != nil {
		var lossT *tensor.Tensor[float32, B]
		for _, f := range out.Features {
			l := e.triplet.Forward(f, pids)
			if lossT == nil {
				lossT = l
			} else {
				lossT = lossT.Add(l)
			}
		}
		lossT = lossT.Scale(1 / float32(len(out.Features)))
		parts.t = lossT.Item()
		addTerm(lossT, e.cfg.WeightT)
	}

	if e.cfg.WeightX != 0 {
		targets := mustTargets(pids, e.backend)
		var lossX *tensor.Tensor[float32, B]
		for _, logits := range out.Logits {
			l := e.xent.Forward(logits, targets)
			if lossX == nil {
				lossX = l
			} else {
				lossX = lossX.Add(l)
			}
		}
		lossX = lossX.Scale(1 / float32(len(out.Logits)))
		parts.x = lossX.Item()
		addTerm(lossX, e.cfg.WeightX)
	}

	if e.centers != nil && out.Features != nil {
		var lossC *tensor.Tensor[float32, B]
		for i, f := range out.Features {
			l := e.centers[i].Forward(f, pids)
			if lossC == nil {
				lossC = l
			} else {
				lossC = lossC.Add(l)
			}
		}
		parts.c = lossC.Item()
		addTerm(lossC, e.cfg.WeightC)
	}

	if total == nil {
		panic("engine: no loss terms enabled")
	}
	return total, parts
}

func mustTargets[B tensor.Backend](pids []int32, backend B) *tensor.Tensor[int32, B] {
	t, err := tensor.FromSlice(pids, tensor.Shape{len(pids)}, backend)
	if err != nil {
		panic(err)
	}
	return t
}
