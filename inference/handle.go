// Package inference - Model loading and invocation through ONNX Runtime.
package inference

import (
	"context"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/inference/providers"
	"github.com/nutritrack/foodvision/models/model"
	"github.com/nutritrack/foodvision/models/model/preprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ScoreVector holds one raw, unbounded score per class.
type ScoreVector []float32

// Option configures Open.
type Option func(*options)

type options struct {
	runtime Runtime
	logger  *zap.Logger
}

// WithRuntime replaces the ONNX Runtime backend.
func WithRuntime(r Runtime) Option {
	return func(o *options) { o.runtime = r }
}

// WithLogger sets the logger used by the handle.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Stats summarizes the invocations served by a handle.
type Stats struct {
	InvokeCount   int64         `json:"invoke_count"`
	FailureCount  int64         `json:"failure_count"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Average returns the mean duration of a successful invocation.
func (s Stats) Average() time.Duration {
	if n := s.InvokeCount - s.FailureCount; n > 0 {
		return s.TotalDuration / time.Duration(n)
	}
	return 0
}

// Handle is an opened model ready to score tensors.
//
// Invoke may be called from several goroutines: ONNX Runtime sessions support
// concurrent runs. Set model.Config.SerializeRuns to run one at a time.
type Handle struct {
	session    Session
	inputName  string
	outputName string
	inputDims  []int64
	classes    int
	serialize  bool
	logger     *zap.Logger

	// lifecycle guards session against Close while runs are in flight.
	lifecycle sync.RWMutex
	closed    bool
	runMu     sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// Open loads a model through the asset loader, resolves its input and output
// names once, checks their shapes and creates the runtime session.
//
// Arguments:
//   - ctx: Bounds the whole load.
//   - loader: Resolves cfg.Path to model bytes.
//   - cfg: The model configuration.
//   - opts: Optional runtime and logger.
//
// Returns:
//   - *Handle: The opened model.
//   - error: common.ErrTimeout when ctx expires, common.ErrModelUnavailable for any other failure.
//
// @example
// handle, err := Open(ctx, FileAssetLoader{}, model.Config{Path: "resnet50.onnx", InputWidth: 224, InputHeight: 224})
func Open(ctx context.Context, loader AssetLoader, cfg model.Config, opts ...Option) (*Handle, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runtime == nil {
		o.runtime = NewORTRuntime(providers.DefaultConfig())
	}
	if loader == nil {
		return nil, errors.Wrap(common.ErrModelUnavailable, "no asset loader")
	}

	type result struct {
		handle *Handle
		err    error
	}
	done := make(chan result, 1)
	go func() {
		h, err := open(ctx, loader, cfg, o)
		done <- result{h, err}
	}()

	select {
	case <-ctx.Done():
		// The load keeps running; release whatever it produces.
		go func() {
			if r := <-done; r.handle != nil {
				r.handle.Close()
			}
		}()
		return nil, errors.Wrapf(common.ErrTimeout, "model load: %v", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		o.logger.Info("model loaded",
			zap.String("path", cfg.Path),
			zap.String("input", r.handle.inputName),
			zap.String("output", r.handle.outputName),
			zap.Int("classes", r.handle.classes),
		)
		return r.handle, nil
	}
}

func open(ctx context.Context, loader AssetLoader, cfg model.Config, o options) (*Handle, error) {
	data, err := loader.LoadModelBytes(ctx, cfg.Path)
	if err != nil {
		return nil, errors.Wrapf(common.ErrModelUnavailable, "load %s: %v", cfg.Path, err)
	}
	if len(data) == 0 {
		return nil, errors.Wrapf(common.ErrModelUnavailable, "model %s is empty", cfg.Path)
	}

	inputs, outputs, err := o.runtime.Inspect(data)
	if err != nil {
		return nil, errors.Wrapf(common.ErrModelUnavailable, "inspect %s: %v", cfg.Path, err)
	}

	input, err := selectTensor(inputs, cfg.InputName, "input")
	if err != nil {
		return nil, err
	}
	output, err := selectTensor(outputs, cfg.OutputName, "output")
	if err != nil {
		return nil, err
	}

	expected := cfg.InputShape()
	if err := checkInput(input, expected); err != nil {
		return nil, err
	}
	classes, err := checkOutput(output)
	if err != nil {
		return nil, err
	}

	session, err := o.runtime.NewSession(data, input.Name, output.Name)
	if err != nil {
		return nil, errors.Wrapf(common.ErrModelUnavailable, "session %s: %v", cfg.Path, err)
	}

	return &Handle{
		session:    session,
		inputName:  input.Name,
		outputName: output.Name,
		inputDims:  expected,
		classes:    classes,
		serialize:  cfg.SerializeRuns,
		logger:     o.logger,
	}, nil
}

// selectTensor picks the named tensor, or the only one when no name is configured.
func selectTensor(infos []TensorInfo, name, kind string) (TensorInfo, error) {
	if len(infos) == 0 {
		return TensorInfo{}, errors.Wrapf(common.ErrModelUnavailable, "model declares no %s", kind)
	}
	if name == "" {
		if len(infos) > 1 {
			return TensorInfo{}, errors.Wrapf(common.ErrModelUnavailable,
				"model declares %d %ss, an %s name is required", len(infos), kind, kind)
		}
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return TensorInfo{}, errors.Wrapf(common.ErrModelUnavailable, "%s %q not found in %v", kind, name, names)
}

func checkInput(info TensorInfo, expected []int64) error {
	if !info.Float {
		return errors.Wrapf(common.ErrModelUnavailable, "input %q is not float32", info.Name)
	}
	if len(info.Dims) != len(expected) {
		return errors.Wrapf(common.ErrModelUnavailable, "input %q has dims %v, expected %v", info.Name, info.Dims, expected)
	}
	for i, d := range info.Dims {
		if d >= 0 && d != expected[i] {
			return errors.Wrapf(common.ErrModelUnavailable, "input %q has dims %v, expected %v", info.Name, info.Dims, expected)
		}
	}
	return nil
}

// checkOutput accepts [N] and [1, N] score tensors and returns N, or -1 when N is dynamic.
func checkOutput(info TensorInfo) (int, error) {
	if !info.Float {
		return 0, errors.Wrapf(common.ErrModelUnavailable, "output %q is not float32", info.Name)
	}
	switch {
	case len(info.Dims) == 1:
	case len(info.Dims) == 2 && (info.Dims[0] == 1 || info.Dims[0] < 0):
	default:
		return 0, errors.Wrapf(common.ErrModelUnavailable, "output %q has dims %v, expected [N] or [1, N]", info.Name, info.Dims)
	}

	n := info.Dims[len(info.Dims)-1]
	switch {
	case n < 0:
		return -1, nil
	case n == 0:
		return 0, errors.Wrapf(common.ErrModelUnavailable, "output %q has no classes", info.Name)
	default:
		return int(n), nil
	}
}

// InputName returns the resolved input tensor name.
func (h *Handle) InputName() string { return h.inputName }

// OutputName returns the resolved output tensor name.
func (h *Handle) OutputName() string { return h.outputName }

// Classes returns the number of classes, or -1 when the model declares a dynamic size.
func (h *Handle) Classes() int { return h.classes }

// Stats returns a snapshot of the invocation counters.
func (h *Handle) Stats() Stats {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return h.stats
}

func (h *Handle) record(d time.Duration, err error) {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	h.stats.InvokeCount++
	if err != nil {
		h.stats.FailureCount++
		return
	}
	h.stats.TotalDuration += d
}

// Invoke runs the model on a normalized tensor.
//
// When ctx expires first, Invoke returns common.ErrTimeout at once. The run in
// flight completes in the background, its result is discarded, and the handle
// stays usable.
//
// Arguments:
//   - ctx: Bounds the call.
//   - t: A tensor with dims [1, 3, H, W] matching the model input.
//
// Returns:
//   - ScoreVector: A copy of the raw scores.
//   - error: common.ErrInvalidDimensions for a bad tensor, common.ErrTimeout,
//     common.ErrModelUnavailable after Close, common.ErrInference otherwise.
func (h *Handle) Invoke(ctx context.Context, t *preprocess.Tensor) (ScoreVector, error) {
	if err := t.Validate(h.inputDims); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(common.ErrTimeout, "inference: %v", err)
	}

	type result struct {
		scores []float32
		err    error
	}
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		scores, err := h.run(t)
		done <- result{scores, err}
	}()

	select {
	case <-ctx.Done():
		h.record(time.Since(start), ctx.Err())
		h.logger.Warn("inference abandoned", zap.Error(ctx.Err()), zap.Duration("elapsed", time.Since(start)))
		return nil, errors.Wrapf(common.ErrTimeout, "inference: %v", ctx.Err())
	case r := <-done:
		err := r.err
		if err == nil {
			err = h.checkScores(r.scores)
		}
		h.record(time.Since(start), err)
		if err != nil {
			return nil, err
		}
		h.logger.Debug("inference complete", zap.Int("scores", len(r.scores)), zap.Duration("elapsed", time.Since(start)))
		return r.scores, nil
	}
}

func (h *Handle) run(t *preprocess.Tensor) ([]float32, error) {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()

	if h.closed {
		return nil, errors.Wrap(common.ErrModelUnavailable, "handle is closed")
	}
	if h.serialize {
		h.runMu.Lock()
		defer h.runMu.Unlock()
	}

	scores, err := h.session.Run(t.Data, t.Dims)
	if err != nil {
		return nil, errors.Wrapf(common.ErrInference, "run: %v", err)
	}
	return scores, nil
}

func (h *Handle) checkScores(scores []float32) error {
	if len(scores) == 0 {
		return errors.Wrap(common.ErrInference, "model returned no scores")
	}
	if h.classes > 0 && len(scores) != h.classes {
		return errors.Wrapf(common.ErrInference, "model returned %d scores, expected %d", len(scores), h.classes)
	}
	for i, s := range scores {
		if math32.IsNaN(s) || math32.IsInf(s, 0) {
			return errors.Wrapf(common.ErrInference, "score %d is not finite: %v", i, s)
		}
	}
	return nil
}

// Close destroys the session once all in-flight runs have finished.
func (h *Handle) Close() error {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.session.Destroy()
}
