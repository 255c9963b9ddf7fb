// Package classifier - Food photo classification pipeline.
package classifier

import (
	"context"
	"io"
	"time"

	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/images"
	"github.com/nutritrack/foodvision/inference"
	"github.com/nutritrack/foodvision/models/model"
	"github.com/nutritrack/foodvision/models/model/preprocess"
	"github.com/nutritrack/foodvision/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultTopK is the number of predictions returned when no K is configured.
const DefaultTopK = 3

// Invoker scores a normalized tensor.
type Invoker interface {
	Invoke(ctx context.Context, t *preprocess.Tensor) (inference.ScoreVector, error)
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTopK sets the default number of predictions.
func WithTopK(k int) Option {
	return func(c *Classifier) { c.topK = k }
}

// WithTimeout bounds every Classify call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// Classifier turns JPEG bytes into ranked predictions.
//
// A Classifier is safe for concurrent use when its Invoker is.
type Classifier struct {
	invoker Invoker
	model   model.Model
	topK    int
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a classifier around an opened model.
//
// Arguments:
//   - invoker: Runs the model, usually an *inference.Handle.
//   - m: Supplies the input geometry, preprocessing and labels.
//   - opts: Optional top-k, timeout and logger.
//
// Returns:
//   - *Classifier: The classifier.
//   - error: An error wrapping common.ErrInvalidArgument for a missing dependency or K < 1.
//
// @example
// c, err := New(handle, m, WithTopK(5), WithTimeout(2*time.Second))
func New(invoker Invoker, m model.Model, opts ...Option) (*Classifier, error) {
	if invoker == nil {
		return nil, errors.Wrap(common.ErrInvalidArgument, "invoker is required")
	}
	if m == nil {
		return nil, errors.Wrap(common.ErrInvalidArgument, "model is required")
	}

	c := &Classifier{
		invoker: invoker,
		model:   m,
		topK:    DefaultTopK,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.topK < 1 {
		return nil, errors.Wrapf(common.ErrInvalidArgument, "top-k must be >= 1, got %d", c.topK)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// TopK returns the default number of predictions.
func (c *Classifier) TopK() int {
	return c.topK
}

// Model returns the model description.
func (c *Classifier) Model() model.Model {
	return c.model
}

// Classify runs the pipeline with the default K.
//
// Arguments:
//   - ctx: Bounds the call.
//   - jpeg: The encoded photo.
//
// Returns:
//   - []postprocess.Prediction: The top-K predictions, best first.
//   - error: The error of the first failing stage; errors.Is matches its common sentinel.
func (c *Classifier) Classify(ctx context.Context, jpeg []byte) ([]postprocess.Prediction, error) {
	return c.ClassifyK(ctx, jpeg, c.topK)
}

// ClassifyK runs the pipeline and returns the top k predictions.
//
// The photo is decoded at native size. When that differs from the model input
// it is resampled with bilinear filtering, normalized, scored and ranked.
//
// Arguments:
//   - ctx: Bounds the call.
//   - jpeg: The encoded photo.
//   - k: The number of predictions.
//
// Returns:
//   - []postprocess.Prediction: Exactly k predictions, best first.
//   - error: The error of the first failing stage.
func (c *Classifier) ClassifyK(ctx context.Context, jpeg []byte, k int) ([]postprocess.Prediction, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()

	raster, err := images.DecodeJPEG(jpeg)
	if err != nil {
		return nil, c.fail("decode", err)
	}

	opts := c.model.Options()
	if raster.Width != opts.InputWidth || raster.Height != opts.InputHeight {
		c.logger.Warn("resize mismatch, resampling",
			zap.Int("width", raster.Width),
			zap.Int("height", raster.Height),
			zap.Int("target_width", opts.InputWidth),
			zap.Int("target_height", opts.InputHeight),
		)
		raster, err = images.ResizeBilinear(raster, opts.InputWidth, opts.InputHeight)
		if err != nil {
			return nil, c.fail("resample", err)
		}
	}

	tensor, err := c.model.PreProcess(raster)
	if err != nil {
		return nil, c.fail("normalize", err)
	}

	scores, err := c.invoker.Invoke(ctx, tensor)
	if err != nil {
		return nil, c.fail("invoke", err)
	}

	predictions, err := c.model.PostProcess(scores, k)
	if err != nil {
		return nil, c.fail("rank", err)
	}

	c.logger.Debug("classified",
		zap.Int("predictions", len(predictions)),
		zap.String("top", predictions[0].Label),
		zap.Float64("confidence", predictions[0].Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)
	return predictions, nil
}

// fail logs a stage error and wraps it with the stage name.
func (c *Classifier) fail(stage string, err error) error {
	fields := []zap.Field{zap.String("stage", stage), zap.String("kind", string(common.Kind(err))), zap.Error(err)}
	if errors.Is(err, common.ErrInvalidDimensions) {
		c.logger.Error("classification failed", fields...)
	} else {
		c.logger.Warn("classification failed", fields...)
	}
	return errors.Wrap(err, stage)
}

// Close releases the invoker when it holds native resources.
func (c *Classifier) Close() error {
	if s, ok := c.invoker.(interface{ Stats() inference.Stats }); ok {
		stats := s.Stats()
		c.logger.Info("closing classifier",
			zap.Int64("invocations", stats.InvokeCount),
			zap.Int64("failures", stats.FailureCount),
			zap.Duration("average", stats.Average()),
		)
	}
	if closer, ok := c.invoker.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
