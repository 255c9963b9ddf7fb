package models

import (
	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/models/imagenet"
	"github.com/nutritrack/foodvision/models/model"
	"github.com/pkg/errors"
)

// NewModel creates a classification model instance based on the specified model name.
//
// When args.Labels is empty the label table registered for args.Family in
// DefaultClassManager is used, defaulting to the ImageNet family.
//
// Arguments:
//   - args: Configuration parameters specifying the model type and location.
//
// Returns:
//   - model.Model: A configured model instance implementing the Model interface.
//   - error: An error wrapping common.ErrInvalidArgument if the model type is unsupported.
//
// Example:
//
// ```go
//
//	m, err := NewModel(model.NewModelArgs{
//	    Name: model.ModelNameResNet50,
//	    Path: "/models/resnet50.onnx",
//	})
//
//	if err != nil {
//	    log.Fatalf("Failed to create model: %v", err)
//	}
//
// ```
func NewModel(args model.NewModelArgs) (model.Model, error) {
	if args.Family == "" {
		args.Family = model.ModelFamilyImageNet
	}
	if len(args.Labels) == 0 {
		table, err := DefaultClassManager.Get(args.Family)
		if err != nil {
			return nil, err
		}
		args.Labels = table.Labels
	}

	switch args.Name {
	case model.ModelNameResNet50, model.ModelNameMobileNetV2, model.ModelNameEfficientNetB0:
		m, err := imagenet.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Wrapf(common.ErrInvalidArgument, "unsupported model name: %s", args.Name)
	}
}
