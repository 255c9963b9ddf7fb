// Package service - Wires configuration, the classifier and the food catalog for the entry points.
package service

import (
	"context"
	"io"
	"time"

	"github.com/nutritrack/foodvision/classifier"
	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/config"
	"github.com/nutritrack/foodvision/images"
	"github.com/nutritrack/foodvision/inference"
	"github.com/nutritrack/foodvision/inference/providers"
	"github.com/nutritrack/foodvision/models"
	"github.com/nutritrack/foodvision/models/model"
	"github.com/nutritrack/foodvision/models/postprocess"
	"github.com/nutritrack/foodvision/nutrition"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Classifier is the part of *classifier.Classifier the service needs.
type Classifier interface {
	ClassifyK(ctx context.Context, jpeg []byte, k int) ([]postprocess.Prediction, error)
	TopK() int
	Model() model.Model
}

// Result is the outcome of analyzing one photo.
type Result struct {
	Predictions []postprocess.Prediction `json:"predictions"`
	Nutrition   *nutrition.Match         `json:"nutrition,omitempty"`
	Elapsed     time.Duration            `json:"elapsed_ns"`
}

// Service classifies photos of any supported format and attaches nutrition facts.
type Service struct {
	classifier Classifier
	catalog    *nutrition.Catalog
	logger     *zap.Logger
}

// New creates a service. A nil catalog uses the embedded one.
func New(c Classifier, catalog *nutrition.Catalog, logger *zap.Logger) *Service {
	if catalog == nil {
		catalog = nutrition.DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{classifier: c, catalog: catalog, logger: logger}
}

// TopK returns the default number of predictions.
func (s *Service) TopK() int {
	return s.classifier.TopK()
}

// Close releases the classifier's model session.
func (s *Service) Close() error {
	if closer, ok := s.classifier.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Analyze classifies a photo and looks up the first recognized food.
//
// The photo is transcoded to a JPEG of the model input size first, so PNG,
// WebP and GIF uploads are accepted.
//
// Arguments:
//   - ctx: Bounds the call.
//   - data: The encoded photo.
//   - k: The number of predictions. Zero uses the classifier default.
//
// Returns:
//   - *Result: The predictions and the nutrition match, if any.
//   - error: A pipeline error; common.Kind names its class.
func (s *Service) Analyze(ctx context.Context, data []byte, k int) (*Result, error) {
	if k == 0 {
		k = s.classifier.TopK()
	}
	start := time.Now()

	opts := s.classifier.Model().Options()
	jpeg, err := images.ToJPEG(data, opts.InputWidth, opts.InputHeight)
	if err != nil {
		return nil, err
	}

	predictions, err := s.classifier.ClassifyK(ctx, jpeg, k)
	if err != nil {
		return nil, err
	}

	result := &Result{Predictions: predictions, Elapsed: time.Since(start)}
	if match, ok := s.catalog.Match(predictions); ok {
		result.Nutrition = &match
	}

	s.logger.Info("photo analyzed",
		zap.String("top", predictions[0].Label),
		zap.Bool("nutrition", result.Nutrition != nil),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// ProvidersConfig maps the runtime section of the configuration.
func ProvidersConfig(cfg *config.AppConfig) providers.Config {
	pc := providers.DefaultConfig()
	if cfg.Runtime.Backend != "" {
		pc.Backend = providers.ProviderBackend(cfg.Runtime.Backend)
	}
	pc.SharedLibraryPath = cfg.Runtime.SharedLibrary
	pc.IntraOpNumThreads = cfg.Runtime.IntraThreads
	pc.InterOpNumThreads = cfg.Runtime.InterThreads
	return pc
}

// SetupFromConfig builds the classifier setup described by the configuration.
//
// Arguments:
//   - cfg: The application configuration.
//   - logger: Passed to the runtime handle and the classifier.
//
// Returns:
//   - classifier.Setup: The setup.
//   - error: A label file error, or one wrapping common.ErrInvalidArgument.
func SetupFromConfig(cfg *config.AppConfig, logger *zap.Logger) (classifier.Setup, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	args := model.NewModelArgs{
		Name:       model.Name(cfg.Model.Name),
		Path:       cfg.Model.Path,
		InputName:  cfg.Model.InputName,
		OutputName: cfg.Model.OutputName,
	}
	if cfg.Model.Labels != "" {
		table, err := models.LoadLabelsFile(model.ModelFamilyImageNet, cfg.Model.Labels)
		if err != nil {
			return classifier.Setup{}, err
		}
		args.Labels = table.Labels
	}

	pc := ProvidersConfig(cfg)
	if err := pc.Validate(); err != nil {
		return classifier.Setup{}, err
	}

	return classifier.Setup{
		Model:         args,
		SerializeRuns: cfg.Model.SerializeRuns,
		Inference: []inference.Option{
			inference.WithRuntime(inference.NewORTRuntime(pc)),
			inference.WithLogger(logger),
		},
		Options: []classifier.Option{
			classifier.WithTopK(cfg.Classify.TopK),
			classifier.WithTimeout(cfg.Classify.Timeout),
			classifier.WithLogger(logger),
		},
	}, nil
}

// LoadCatalog returns the configured food catalog, or the embedded one.
func LoadCatalog(cfg *config.AppConfig) (*nutrition.Catalog, error) {
	if cfg.Nutrition.Catalog == "" {
		return nutrition.DefaultCatalog(), nil
	}
	return nutrition.LoadCatalogFile(cfg.Nutrition.Catalog)
}

// Start initializes the process-wide classifier and returns a service around it.
//
// Arguments:
//   - ctx: Parent context; the load is bounded by classify.loadtimeout.
//   - cfg: The application configuration.
//   - logger: The application logger.
//
// Returns:
//   - *Service: The service.
//   - error: An error wrapping common.ErrModelUnavailable when the model cannot be loaded.
func Start(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Service, error) {
	catalog, err := LoadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	setup, err := SetupFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Classify.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Classify.LoadTimeout)
		defer cancel()
	}

	if err := classifier.Init(ctx, inference.FileAssetLoader{}, setup); err != nil {
		return nil, err
	}
	c, err := classifier.Default()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.Wrap(common.ErrModelUnavailable, "classifier not initialized")
	}
	return New(c, catalog, logger), nil
}
