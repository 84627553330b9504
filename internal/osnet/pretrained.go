package osnet

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/reid-ml/osnet/internal/serialization"
	"github.com/reid-ml/osnet/internal/tensor"
)

// legacyPrefixes maps dotted-index stage names from older checkpoints
// onto the flat layer names used here. Order matters: the longer
// "conv2.2.0" style entries must be tried before "conv2.2" would match.
var legacyPrefixes = []struct{ old, new string }{
	{"conv2.2.0", "conv2_2"},
	{"conv3.2.0", "conv3_2"},
	{"conv2.0", "conv2_0"},
	{"conv2.1", "conv2_1"},
	{"conv3.0", "conv3_0"},
	{"conv3.1", "conv3_1"},
	{"conv4.0", "conv4_0"},
	{"conv4.1", "conv4_1"},
}

// RemapLegacyName translates a checkpoint key from the legacy naming
// scheme: a leading "module." is stripped and dotted stage indices are
// flattened.
func RemapLegacyName(name string) string {
	name = strings.TrimPrefix(name, "module.")
	for _, p := range legacyPrefixes {
		if strings.HasPrefix(name, p.old) {
			return p.new + name[len(p.old):]
		}
	}
	return name
}

// SaveSnapshot writes the model's parameters to a snapshot file.
func SaveSnapshot[B tensor.Backend](m *OSNet[B], path string) error {
	writer, err := serialization.NewWriter(path)
	if err != nil {
		return err
	}
	defer writer.Close()

	metadata := map[string]string{
		"loss":        m.cfg.Loss.String(),
		"num_classes": fmt.Sprintf("%d", m.cfg.NumClasses),
	}
	if err := writer.WriteStateDict(m.StateDict(), "OSNet", metadata); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadPretrained initializes the model from a snapshot. Keys are run
// through the legacy remapping, then copied into the model wherever
// both name and shape match; everything else is kept unchanged and the
// unmatched keys are returned as discarded. A snapshot with no matching
// keys is not an error, only a warning.
func LoadPretrained[B tensor.Backend](m *OSNet[B], path string) (matched, discarded []string, err error) {
	reader, err := serialization.NewReader(path)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()

	stateDict, err := reader.ReadStateDict(m.backend.Device())
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}

	modelParams := make(map[string]*tensor.RawTensor, len(m.reg.names))
	for _, np := range m.NamedParameters() {
		modelParams[np.Name] = np.Parameter.Tensor().Raw()
	}

	for name, value := range stateDict {
		key := RemapLegacyName(name)
		target, ok := modelParams[key]
		if !ok || !target.Shape().Equal(value.Shape()) {
			discarded = append(discarded, key)
			continue
		}
		copy(target.AsFloat32(), value.AsFloat32())
		matched = append(matched, key)
	}

	if len(matched) == 0 {
		log.Printf("warning: no pretrained weights from %q could be loaded, check the key names", path)
	} else if len(discarded) > 0 {
		log.Printf("loaded %d pretrained tensors from %q, discarded %d with unmatched keys or shapes",
			len(matched), path, len(discarded))
	}
	return matched, discarded, nil
}

// CacheDir returns the checkpoint cache directory, creating it if
// needed. An existing directory is not an error.
func CacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "osnet", "checkpoints")
	if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return "", err
	}
	return dir, nil
}
