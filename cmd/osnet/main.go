// Command osnet trains an omni-scale re-identification network from a
// YAML experiment configuration.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/reid-ml/osnet/internal/autodiff"
	"github.com/reid-ml/osnet/internal/backend/cpu"
	"github.com/reid-ml/osnet/internal/config"
	"github.com/reid-ml/osnet/internal/data"
	"github.com/reid-ml/osnet/internal/engine"
	"github.com/reid-ml/osnet/internal/optim"
	"github.com/reid-ml/osnet/internal/osnet"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("osnet %s\n", version)
	case "train":
		if err := train(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  osnet train -config <file.yaml>")
	fmt.Fprintln(os.Stderr, "  osnet version")
}

func train(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML experiment configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return fmt.Errorf("train: -config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	backend := autodiff.New(cpu.New())

	loss, err := osnet.ParseLossMode(cfg.Model.Loss)
	if err != nil {
		return err
	}
	gate, err := osnet.ParseGateActivation(cfg.Model.GateActivation)
	if err != nil {
		return err
	}

	model, err := osnet.New(osnet.Config{
		NumClasses:     cfg.Model.NumClasses,
		Loss:           loss,
		InstanceNorm:   cfg.Model.InstanceNorm,
		GateActivation: gate,
	}, backend)
	if err != nil {
		return err
	}
	if cfg.Model.Pretrained != "" {
		matched, discarded, err := osnet.LoadPretrained(model, cfg.Model.Pretrained)
		if err != nil {
			return fmt.Errorf("load pretrained: %w", err)
		}
		log.Printf("loaded pretrained weights: %d matched, %d discarded", len(matched), len(discarded))
	}

	ds, err := data.LoadDirectory(cfg.Data.Root)
	if err != nil {
		return err
	}
	log.Printf("dataset: %d images, %d identities, %d cameras", len(ds.Items), ds.NumPIDs, ds.NumCams)
	if ds.NumPIDs != cfg.Model.NumClasses {
		return fmt.Errorf("model has %d classes but dataset has %d identities", cfg.Model.NumClasses, ds.NumPIDs)
	}

	sampler, err := data.NewRandomIdentitySampler(ds, cfg.Data.BatchSize, cfg.Data.NumInstances, cfg.Data.Seed)
	if err != nil {
		return err
	}
	loader := data.NewLoader(ds, sampler, cfg.Data.Height, cfg.Data.Width, backend)

	var (
		opt       optim.Optimizer
		addParams func(eng *engine.ImageTripletEngine[*autodiff.AutodiffBackend[*cpu.CPUBackend]])
	)
	switch cfg.Optim.Name {
	case "sgd":
		sgd := optim.NewSGD(model.Parameters(), optim.SGDConfig{
			LR:          cfg.Optim.LR,
			Momentum:    cfg.Optim.Momentum,
			WeightDecay: cfg.Optim.WeightDecay,
		})
		opt = sgd
		addParams = func(eng *engine.ImageTripletEngine[*autodiff.AutodiffBackend[*cpu.CPUBackend]]) {
			sgd.AddParameters(eng.CenterParameters())
		}
	case "adam":
		adam := optim.NewAdam(model.Parameters(), optim.AdamConfig{
			LR:          cfg.Optim.LR,
			WeightDecay: cfg.Optim.WeightDecay,
		})
		opt = adam
		addParams = func(eng *engine.ImageTripletEngine[*autodiff.AutodiffBackend[*cpu.CPUBackend]]) {
			adam.AddParameters(eng.CenterParameters())
		}
	}

	var scheduler optim.Scheduler
	switch cfg.Scheduler.Name {
	case "step":
		scheduler = optim.NewStepLR(opt, cfg.Scheduler.StepSize, cfg.Scheduler.Gamma)
	case "multistep":
		scheduler = optim.NewMultiStepLR(opt, cfg.Scheduler.Milestones, cfg.Scheduler.Gamma)
	}

	eng := engine.New(model, loader, opt, scheduler, engine.Config{
		WeightT:     cfg.Train.WeightT,
		WeightX:     cfg.Train.WeightX,
		WeightC:     cfg.Train.WeightC,
		Margin:      cfg.Train.Margin,
		LabelSmooth: cfg.Train.LabelSmooth,
	}, backend)
	addParams(eng)

	var writer engine.MetricWriter = engine.NopWriter{}
	if cfg.Train.LogPath != "" {
		jw, err := engine.NewJSONLWriter(cfg.Train.LogPath)
		if err != nil {
			return err
		}
		defer jw.Close()
		writer = jw
	}

	opts := engine.TrainOptions{
		FixbaseEpoch: cfg.Train.FixbaseEpoch,
		OpenLayers:   cfg.Train.OpenLayers,
		PrintFreq:    cfg.Train.PrintFreq,
	}
	for epoch := 0; epoch < cfg.Train.MaxEpoch; epoch++ {
		avgLoss, err := eng.Train(epoch, cfg.Train.MaxEpoch, writer, opts)
		if err != nil {
			return fmt.Errorf("epoch %d: %w", epoch+1, err)
		}
		log.Printf("epoch %d/%d done, avg loss %.4f", epoch+1, cfg.Train.MaxEpoch, avgLoss)
		loader.Reset()
	}

	if cfg.Train.SavePath != "" {
		if err := osnet.SaveSnapshot(model, cfg.Train.SavePath); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		log.Printf("saved model to %s", cfg.Train.SavePath)
	}
	return nil
}
