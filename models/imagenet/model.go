// Package imagenet - ImageNet-style image classifiers (224x224 RGB, ImageNet mean/std).
package imagenet

import (
	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/images"
	"github.com/nutritrack/foodvision/models/model"
	"github.com/nutritrack/foodvision/models/model/preprocess"
	"github.com/nutritrack/foodvision/models/postprocess"
	"github.com/pkg/errors"
)

// Model implements model.Model for classifiers trained on ImageNet-normalized input.
type Model struct {
	config       model.Config
	labels       []string
	preprocessor *preprocess.Preprocessor
}

// NewModel creates a new ImageNet classifier description.
//
// Arguments:
//   - args: The model arguments. Labels must be set.
//
// Returns:
//   - *Model: The model.
//   - error: An error wrapping common.ErrInvalidArgument for unknown names or missing labels.
//
// @example
//
//	m, err := NewModel(model.NewModelArgs{
//	    Name:   model.ModelNameResNet50,
//	    Path:   "models/resnet50.onnx",
//	    Labels: labels.Labels,
//	})
func NewModel(args model.NewModelArgs) (*Model, error) {
	switch args.Name {
	case model.ModelNameResNet50, model.ModelNameMobileNetV2, model.ModelNameEfficientNetB0:
	default:
		return nil, errors.Wrapf(common.ErrInvalidArgument, "unsupported imagenet model: %s", args.Name)
	}
	if len(args.Labels) == 0 {
		return nil, errors.Wrap(common.ErrInvalidArgument, "labels are required")
	}

	family := args.Family
	if family == "" {
		family = model.ModelFamilyImageNet
	}

	pre := preprocess.GetResNetConfig()
	pre.Name = string(args.Name)

	return &Model{
		config: model.Config{
			Name:        args.Name,
			Family:      family,
			Path:        args.Path,
			InputName:   args.InputName,
			OutputName:  args.OutputName,
			InputWidth:  pre.InputWidth,
			InputHeight: pre.InputHeight,
		},
		labels:       args.Labels,
		preprocessor: preprocess.NewPreprocessor(pre),
	}, nil
}

// Options returns the model configuration.
func (m *Model) Options() model.Config {
	return m.config
}

// Labels returns the label table of the model.
func (m *Model) Labels() []string {
	return m.labels
}

// PreProcess normalizes a raster of exactly the model input size.
func (m *Model) PreProcess(img *images.RasterImage) (*preprocess.Tensor, error) {
	return m.preprocessor.Preprocess(img)
}

// PostProcess ranks raw scores into the top-k predictions.
func (m *Model) PostProcess(scores []float32, k int) ([]postprocess.Prediction, error) {
	return postprocess.Rank(scores, m.labels, k)
}
