package classifier

import (
	"context"
	"sync"

	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/inference"
	"github.com/nutritrack/foodvision/models"
	"github.com/nutritrack/foodvision/models/model"
	"github.com/pkg/errors"
)

// Setup describes everything needed to load a classifier.
type Setup struct {
	// Model selects the architecture, its ONNX path and label family.
	Model model.NewModelArgs
	// SerializeRuns forces one inference at a time.
	SerializeRuns bool
	// Inference configures the runtime handle.
	Inference []inference.Option
	// Options configures the classifier.
	Options []Option
}

// Load opens the model described by setup and wraps it in a Classifier.
//
// Arguments:
//   - ctx: Bounds the model load.
//   - loader: Resolves the model path to bytes.
//   - setup: The model and classifier settings.
//
// Returns:
//   - *Classifier: The ready classifier.
//   - error: An error wrapping common.ErrModelUnavailable, common.ErrTimeout or common.ErrInvalidArgument.
func Load(ctx context.Context, loader inference.AssetLoader, setup Setup) (*Classifier, error) {
	m, err := models.NewModel(setup.Model)
	if err != nil {
		return nil, err
	}

	cfg := m.Options()
	cfg.SerializeRuns = setup.SerializeRuns

	handle, err := inference.Open(ctx, loader, cfg, setup.Inference...)
	if err != nil {
		return nil, err
	}

	if classes := handle.Classes(); classes > 0 && classes != len(m.Labels()) {
		handle.Close()
		return nil, errors.Wrapf(common.ErrModelUnavailable,
			"model has %d classes, label table has %d", classes, len(m.Labels()))
	}

	c, err := New(handle, m, setup.Options...)
	if err != nil {
		handle.Close()
		return nil, err
	}
	return c, nil
}

var errNotInitialized = errors.Wrap(common.ErrModelUnavailable, "classifier not initialized")

var (
	defaultMu         sync.RWMutex
	defaultDone       bool
	defaultClassifier *Classifier
	defaultErr        = errNotInitialized
)

// Init loads the process-wide classifier exactly once.
//
// A failed load is remembered: later calls return the same error without
// retrying. A load that ran out of time is the exception: it keeps its
// common.ErrTimeout chain and the next call loads again.
//
// Arguments:
//   - ctx: Bounds the model load.
//   - loader: Resolves the model path to bytes.
//   - setup: The model and classifier settings.
//
// Returns:
//   - error: common.ErrTimeout, an error wrapping common.ErrModelUnavailable, or nil.
func Init(ctx context.Context, loader inference.AssetLoader, setup Setup) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultDone {
		return defaultErr
	}

	c, err := Load(ctx, loader, setup)
	switch {
	case err == nil:
		defaultClassifier, defaultErr = c, nil
	case errors.Is(err, common.ErrTimeout):
		defaultErr = err
		return err
	case !errors.Is(err, common.ErrModelUnavailable):
		err = errors.Wrapf(common.ErrModelUnavailable, "%v", err)
		defaultErr = err
	default:
		defaultErr = err
	}
	defaultDone = true
	return defaultErr
}

// Default returns the classifier loaded by Init.
func Default() (*Classifier, error) {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultClassifier, defaultErr
}
