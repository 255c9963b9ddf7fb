package preprocess

import (
	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/images"
	"github.com/pkg/errors"
)

const (
	// InputSize is the side length of the square model input.
	InputSize = 224
	// InputChannels is the number of color channels fed to the model (RGB).
	InputChannels = 3
)

var (
	// MEAN is the per-channel ImageNet mean in RGB order.
	MEAN = []float32{0.485, 0.456, 0.406}
	// STD is the per-channel ImageNet standard deviation in RGB order.
	STD = []float32{0.229, 0.224, 0.225}
)

// Tensor is a dense float32 buffer in NCHW layout ready to be fed to the model.
type Tensor struct {
	// Data holds the samples, channel-major: data[c*H*W + h*W + w].
	Data []float32 `json:"-" yaml:"-"`
	// Dims is the tensor shape, always [1, C, H, W].
	Dims []int64 `json:"dims" yaml:"dims"`
}

// Len returns the number of elements implied by the dims.
func (t *Tensor) Len() int {
	if t == nil || len(t.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Dims {
		n *= int(d)
	}
	return n
}

// Validate checks the tensor against an expected shape.
//
// Arguments:
//   - expected: The expected dims. A negative entry matches any size.
//
// Returns:
//   - error: An error wrapping common.ErrInvalidDimensions on mismatch.
func (t *Tensor) Validate(expected []int64) error {
	if t == nil {
		return errors.Wrap(common.ErrInvalidDimensions, "tensor is nil")
	}
	if len(t.Dims) != len(expected) {
		return errors.Wrapf(common.ErrInvalidDimensions, "tensor dims %v do not match %v", t.Dims, expected)
	}
	for i, d := range expected {
		if d >= 0 && t.Dims[i] != d {
			return errors.Wrapf(common.ErrInvalidDimensions, "tensor dims %v do not match %v", t.Dims, expected)
		}
	}
	if len(t.Data) != t.Len() {
		return errors.Wrapf(common.ErrInvalidDimensions,
			"tensor holds %d values, dims %v need %d", len(t.Data), t.Dims, t.Len())
	}
	return nil
}

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for debugging purposes.
	Name string `json:"name" yaml:"name"`
	// InputWidth is the expected width of the model input.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the expected height of the model input.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// InputChannels is the number of channels fed to the model.
	InputChannels int `json:"input_channels" yaml:"input_channels"`
	// MeanValues per channel, applied after scaling samples to [0, 1].
	MeanValues []float32 `json:"mean_values" yaml:"mean_values"`
	// StdValues per channel, applied after scaling samples to [0, 1].
	StdValues []float32 `json:"std_values" yaml:"std_values"`
}

// Shape returns the NCHW tensor shape produced for this configuration.
func (c *ModelConfig) Shape() []int64 {
	return []int64{1, int64(c.InputChannels), int64(c.InputHeight), int64(c.InputWidth)}
}

// GetResNetConfig returns the ImageNet configuration used by 224x224 classifiers.
//
// Returns:
//   - *ModelConfig: A configured ModelConfig for ImageNet classifiers.
//
// @example
// preprocessor := NewPreprocessor(GetResNetConfig())
func GetResNetConfig() *ModelConfig {
	return &ModelConfig{
		Name:          "resnet",
		InputWidth:    InputSize,
		InputHeight:   InputSize,
		InputChannels: InputChannels,
		MeanValues:    append([]float32(nil), MEAN...),
		StdValues:     append([]float32(nil), STD...),
	}
}

// Preprocessor turns rasters of exactly the configured size into normalized tensors.
type Preprocessor struct {
	config *ModelConfig
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model-specific preprocessing configuration. Nil selects GetResNetConfig.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
func NewPreprocessor(config *ModelConfig) *Preprocessor {
	if config == nil {
		config = GetResNetConfig()
	}
	return &Preprocessor{config: config}
}

// Config returns the configuration of the preprocessor.
func (p *Preprocessor) Config() *ModelConfig {
	return p.config
}

// validateConfig makes sure the mean and std tables can be applied.
func (p *Preprocessor) validateConfig() error {
	c := p.config
	if c.InputWidth <= 0 || c.InputHeight <= 0 || c.InputChannels <= 0 || c.InputChannels > images.Channels {
		return errors.Wrapf(common.ErrInvalidArgument, "invalid input geometry %dx%dx%d",
			c.InputWidth, c.InputHeight, c.InputChannels)
	}
	if len(c.MeanValues) != c.InputChannels || len(c.StdValues) != c.InputChannels {
		return errors.Wrapf(common.ErrInvalidArgument, "mean/std need %d values, have %d/%d",
			c.InputChannels, len(c.MeanValues), len(c.StdValues))
	}
	for i, s := range c.StdValues {
		if s == 0 {
			return errors.Wrapf(common.ErrInvalidArgument, "std for channel %d is zero", i)
		}
	}
	return nil
}

// Preprocess converts an RGBA raster into a planar, normalized tensor.
//
// For every pixel (h, w) and channel c:
//
//	out[c*H*W + h*W + w] = (pix[(h*W+w)*4+c]/255 - mean[c]) / std[c]
//
// The alpha channel is dropped.
//
// Arguments:
//   - img: The raster, which must match the configured input size exactly.
//
// Returns:
//   - *Tensor: The normalized tensor with dims [1, C, H, W].
//   - error: common.ErrInvalidDimensions for a raster of the wrong size,
//     common.ErrInvalidArgument for an unusable configuration.
//
// @example
// t, err := NewPreprocessor(GetResNetConfig()).Preprocess(raster)
func (p *Preprocessor) Preprocess(img *images.RasterImage) (*Tensor, error) {
	if err := p.validateConfig(); err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	c := p.config
	if img.Width != c.InputWidth || img.Height != c.InputHeight {
		return nil, errors.Wrapf(common.ErrInvalidDimensions,
			"raster is %dx%d, model expects %dx%d", img.Width, img.Height, c.InputWidth, c.InputHeight)
	}

	plane := c.InputWidth * c.InputHeight
	data := make([]float32, c.InputChannels*plane)

	// Precompute the per-channel lookup for every byte value.
	lut := make([][256]float32, c.InputChannels)
	for ch := 0; ch < c.InputChannels; ch++ {
		mean := float64(c.MeanValues[ch])
		std := float64(c.StdValues[ch])
		for v := 0; v < 256; v++ {
			lut[ch][v] = float32((float64(v)/255.0 - mean) / std)
		}
	}

	for i := 0; i < plane; i++ {
		src := i * images.Channels
		for ch := 0; ch < c.InputChannels; ch++ {
			data[ch*plane+i] = lut[ch][img.Pixels[src+ch]]
		}
	}

	return &Tensor{Data: data, Dims: c.Shape()}, nil
}

var resnet = NewPreprocessor(GetResNetConfig())

// Normalize converts a 224x224 raster into the ImageNet-normalized [1, 3, 224, 224] tensor.
//
// Arguments:
//   - img: A 224x224 raster.
//
// Returns:
//   - *Tensor: The normalized tensor.
//   - error: common.ErrInvalidDimensions if the raster is not 224x224.
func Normalize(img *images.RasterImage) (*Tensor, error) {
	return resnet.Preprocess(img)
}
