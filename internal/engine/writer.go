package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// MetricWriter receives scalar training metrics keyed by a global step.
type MetricWriter interface {
	AddScalar(tag string, value float32, step int)
}

// NopWriter discards all metrics.
type NopWriter struct{}

// AddScalar discards the metric.
func (NopWriter) AddScalar(string, float32, int) {}

// JSONLWriter appends metrics to a file as one JSON object per line.
type JSONLWriter struct {
	file *os.File
	enc  *json.Encoder
}

type scalarRecord struct {
	Tag   string    `json:"tag"`
	Value float32   `json:"value"`
	Step  int       `json:"step"`
	Time  time.Time `json:"time"`
}

// NewJSONLWriter opens (or creates) the metrics file for appending.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open metrics file: %w", err)
	}
	return &JSONLWriter{file: file, enc: json.NewEncoder(file)}, nil
}

// AddScalar appends one metric record. Encoding errors are swallowed:
// metrics must never abort training.
func (w *JSONLWriter) AddScalar(tag string, value float32, step int) {
	_ = w.enc.Encode(scalarRecord{Tag: tag, Value: value, Step: step, Time: time.Now().UTC()})
}

// Close closes the metrics file.
func (w *JSONLWriter) Close() error { return w.file.Close() }
