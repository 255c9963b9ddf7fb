package inference

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// AssetLoader resolves a model reference to the raw ONNX bytes.
type AssetLoader interface {
	LoadModelBytes(ctx context.Context, path string) ([]byte, error)
}

// FileAssetLoader reads models from the local filesystem.
type FileAssetLoader struct {
	// Root is prepended to relative paths. Empty uses the working directory.
	Root string
}

// LoadModelBytes reads the whole model file.
//
// Arguments:
//   - ctx: Checked before the read starts.
//   - path: Absolute, or relative to Root.
//
// Returns:
//   - []byte: The model bytes.
//   - error: The context error or the read error.
func (l FileAssetLoader) LoadModelBytes(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New("model path is empty")
	}
	if l.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(l.Root, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model %s", path)
	}
	return data, nil
}

// MemoryAssetLoader serves models from memory, keyed by path.
type MemoryAssetLoader map[string][]byte

// LoadModelBytes returns the bytes registered for path.
func (l MemoryAssetLoader) LoadModelBytes(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := l[path]
	if !ok {
		return nil, errors.Errorf("model %s not found", path)
	}
	return data, nil
}
