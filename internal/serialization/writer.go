package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/reid-ml/osnet/internal/tensor"
)

// Writer writes snapshot files.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
}

// NewWriter creates a snapshot writer for the given path, truncating
// any existing file.
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}
	return &Writer{file: file, buf: bufio.NewWriter(file)}, nil
}

// WriteStateDict writes a name→tensor snapshot with a generated header.
// Tensor records are ordered by name so output is deterministic.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, modelType string, metadata map[string]string) error {
	header := Header{
		FormatVersion: FormatVersion,
		RunID:         uuid.NewString(),
		ModelType:     modelType,
		CreatedAt:     time.Now().UTC(),
		Metadata:      metadata,
	}
	return w.WriteStateDictWithHeader(stateDict, header)
}

// WriteStateDictWithHeader writes a snapshot with a caller-provided
// header; the tensor metadata section is filled in here.
func (w *Writer) WriteStateDictWithHeader(stateDict map[string]*tensor.RawTensor, header Header) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header.Tensors = make([]TensorMeta, 0, len(names))
	offset := int64(0)
	for _, name := range names {
		t := stateDict[name]
		size := int64(t.NumElements()) * int64(t.DType().Size())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(t.DType()),
			Shape:  t.Shape(),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	if _, err := w.buf.WriteString(MagicBytes); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w.buf, binary.LittleEndian, uint32(len(headerJSON))); err != nil {
		return fmt.Errorf("write header length: %w", err)
	}
	if _, err := w.buf.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, name := range names {
		if err := w.writeTensorData(stateDict[name]); err != nil {
			return fmt.Errorf("write tensor %q: %w", name, err)
		}
	}
	return nil
}

func (w *Writer) writeTensorData(t *tensor.RawTensor) error {
	switch t.DType() {
	case tensor.Float32:
		return binary.Write(w.buf, binary.LittleEndian, t.AsFloat32())
	case tensor.Int32:
		return binary.Write(w.buf, binary.LittleEndian, t.AsInt32())
	default:
		return fmt.Errorf("unsupported dtype %s", t.DType())
	}
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
