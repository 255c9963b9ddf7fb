// Package model - Definitions for classification models and their configuration.
package model

import (
	"github.com/nutritrack/foodvision/images"
	"github.com/nutritrack/foodvision/models/model/preprocess"
	"github.com/nutritrack/foodvision/models/postprocess"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyImageNet is the ImageNet-1k classifier family (1000 classes, 224x224 RGB input).
	ModelFamilyImageNet Family = "imagenet"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameResNet50 is the name of the ResNet-50 classifier.
	ModelNameResNet50 Name = "resnet50"
	// ModelNameMobileNetV2 is the name of the MobileNet-V2 classifier.
	ModelNameMobileNetV2 Name = "mobilenetv2"
	// ModelNameEfficientNetB0 is the name of the EfficientNet-B0 classifier.
	ModelNameEfficientNetB0 Name = "efficientnetb0"
)

// Config describes a classification model and how to load it.
type Config struct {
	// Name of the model architecture.
	Name Name `json:"name" yaml:"name"`
	// Family of the label set the model was trained on.
	Family Family `json:"family" yaml:"family"`
	// Path of the ONNX file, resolved by the asset loader.
	Path string `json:"path" yaml:"path"`
	// InputName of the image tensor. Empty selects the model's only input.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputName of the score tensor. Empty selects the model's first output.
	OutputName string `json:"output_name" yaml:"output_name"`
	// InputWidth is the width the model expects.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the height the model expects.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// SerializeRuns forces one inference at a time on the session.
	SerializeRuns bool `json:"serialize_runs" yaml:"serialize_runs"`
}

// InputShape returns the NCHW input shape described by the configuration.
func (c Config) InputShape() []int64 {
	return []int64{1, preprocess.InputChannels, int64(c.InputHeight), int64(c.InputWidth)}
}

// Model turns rasters into model inputs and raw scores into ranked predictions.
type Model interface {
	Options() Config
	Labels() []string
	PreProcess(img *images.RasterImage) (*preprocess.Tensor, error)
	PostProcess(scores []float32, k int) ([]postprocess.Prediction, error)
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name       Name     `json:"name" yaml:"name"`
	Path       string   `json:"path" yaml:"path"`
	Family     Family   `json:"family" yaml:"family"`
	InputName  string   `json:"input_name" yaml:"input_name"`
	OutputName string   `json:"output_name" yaml:"output_name"`
	Labels     []string `json:"-" yaml:"-"`
}
