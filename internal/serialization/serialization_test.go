package serialization_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reid-ml/osnet/internal/serialization"
	"github.com/reid-ml/osnet/internal/tensor"
)

func makeFloat(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	copy(raw.AsFloat32(), data)
	return raw
}

// TestSnapshot_RoundTrip tests that a state dict survives write and
// read unchanged, including header metadata.
func TestSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.snapshot")

	labels, err := tensor.NewRaw(tensor.Shape{3}, tensor.Int32, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	copy(labels.AsInt32(), []int32{7, -1, 42})

	stateDict := map[string]*tensor.RawTensor{
		"layer.weight": makeFloat(t, []float32{1.5, -2.25, 0, 4}, tensor.Shape{2, 2}),
		"layer.bias":   makeFloat(t, []float32{0.5, -0.5}, tensor.Shape{2}),
		"labels":       labels,
	}

	w, err := serialization.NewWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteStateDict(stateDict, "TestModel", map[string]string{"note": "roundtrip"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := serialization.NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	header := r.Header()
	if header.ModelType != "TestModel" {
		t.Errorf("model type: got %q", header.ModelType)
	}
	if header.Metadata["note"] != "roundtrip" {
		t.Errorf("metadata: got %v", header.Metadata)
	}
	if header.RunID == "" {
		t.Error("run id missing")
	}
	if len(header.Tensors) != 3 {
		t.Fatalf("tensor records: got %d, want 3", len(header.Tensors))
	}

	loaded, err := r.ReadStateDict(tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}

	for name, want := range stateDict {
		got, ok := loaded[name]
		if !ok {
			t.Fatalf("missing tensor %q", name)
		}
		if !got.Shape().Equal(want.Shape()) {
			t.Errorf("%s shape: got %v, want %v", name, got.Shape(), want.Shape())
			continue
		}
		switch want.DType() {
		case tensor.Float32:
			for i, v := range want.AsFloat32() {
				if got.AsFloat32()[i] != v {
					t.Errorf("%s element %d: got %v, want %v", name, i, got.AsFloat32()[i], v)
				}
			}
		case tensor.Int32:
			for i, v := range want.AsInt32() {
				if got.AsInt32()[i] != v {
					t.Errorf("%s element %d: got %v, want %v", name, i, got.AsInt32()[i], v)
				}
			}
		}
	}
}

// TestReader_RejectsGarbage tests magic validation.
func TestReader_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	if err := os.WriteFile(path, []byte("not a snapshot at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := serialization.NewReader(path); err == nil {
		t.Fatal("expected error for invalid magic")
	}
}
