package metrics_test

import (
	"testing"

	"github.com/reid-ml/osnet/internal/backend/cpu"
	"github.com/reid-ml/osnet/internal/metrics"
	"github.com/reid-ml/osnet/internal/tensor"
)

// TestAccuracy_TopK tests top-1 and top-2 accuracy on known logits.
func TestAccuracy_TopK(t *testing.T) {
	backend := cpu.New()

	logits, err := tensor.FromSlice([]float32{
		0.1, 0.9, 0.0, // predicted 1
		0.8, 0.1, 0.1, // predicted 0
		0.2, 0.3, 0.5, // predicted 2
	}, tensor.Shape{3, 3}, backend)
	if err != nil {
		t.Fatal(err)
	}

	targets := []int32{1, 2, 1}

	if got := metrics.Accuracy(logits.Raw(), targets, 1); got != float32(100)/3 {
		t.Errorf("top-1: got %v, want %v", got, float32(100)/3)
	}
	// Top-2: rows 0 and 2 contain their target among the two highest.
	if got := metrics.Accuracy(logits.Raw(), targets, 2); got != float32(200)/3 {
		t.Errorf("top-2: got %v, want %v", got, float32(200)/3)
	}
}

// TestAccuracy_Perfect tests the 100% case.
func TestAccuracy_Perfect(t *testing.T) {
	backend := cpu.New()

	logits, err := tensor.FromSlice([]float32{
		5, 0,
		0, 5,
	}, tensor.Shape{2, 2}, backend)
	if err != nil {
		t.Fatal(err)
	}

	if got := metrics.Accuracy(logits.Raw(), []int32{0, 1}, 1); got != 100 {
		t.Errorf("got %v, want 100", got)
	}
}
