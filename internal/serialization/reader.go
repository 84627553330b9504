package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/reid-ml/osnet/internal/tensor"
)

// Reader reads snapshot files.
type Reader struct {
	file       *os.File
	header     Header
	dataOffset int64
}

// NewReader opens a snapshot and parses its header.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}

	magic := make([]byte, len(MagicBytes))
	if _, err := io.ReadFull(file, magic); err != nil {
		file.Close()
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != MagicBytes {
		file.Close()
		return nil, fmt.Errorf("not a snapshot file (magic %q)", magic)
	}

	var headerLen uint32
	if err := binary.Read(file, binary.LittleEndian, &headerLen); err != nil {
		file.Close()
		return nil, fmt.Errorf("read header length: %w", err)
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(file, headerJSON); err != nil {
		file.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		file.Close()
		return nil, fmt.Errorf("parse header: %w", err)
	}
	if header.FormatVersion != FormatVersion {
		file.Close()
		return nil, fmt.Errorf("unsupported format version %d", header.FormatVersion)
	}

	return &Reader{
		file:       file,
		header:     header,
		dataOffset: int64(len(MagicBytes)) + 4 + int64(headerLen),
	}, nil
}

// Header returns the parsed header.
func (r *Reader) Header() Header { return r.header }

// ReadStateDict reads every tensor record into a name→tensor map on the
// given device.
func (r *Reader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	out := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		t, err := r.readTensor(meta, device)
		if err != nil {
			return nil, fmt.Errorf("read tensor %q: %w", meta.Name, err)
		}
		out[meta.Name] = t
	}
	return out, nil
}

func (r *Reader) readTensor(meta TensorMeta, device tensor.Device) (*tensor.RawTensor, error) {
	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, fmt.Errorf("unsupported dtype %q", meta.DType)
	}
	t, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, device)
	if err != nil {
		return nil, err
	}

	if _, err := r.file.Seek(r.dataOffset+meta.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}

	section := io.LimitReader(r.file, meta.Size)
	switch dtype {
	case tensor.Float32:
		err = binary.Read(section, binary.LittleEndian, t.AsFloat32())
	case tensor.Int32:
		err = binary.Read(section, binary.LittleEndian, t.AsInt32())
	}
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	return t, nil
}

// Close closes the file.
func (r *Reader) Close() error { return r.file.Close() }
