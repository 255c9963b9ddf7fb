// Package providers - ONNX Runtime execution providers and session options.
package providers

import (
	"github.com/nutritrack/foodvision/common"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend identifies an ONNX Runtime execution provider.
type ProviderBackend string

const (
	// CPUProviderBackend uses the default CPU execution provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// Config holds the ONNX Runtime environment and session settings.
type Config struct {
	// Backend specifies the execution provider to use.
	Backend ProviderBackend `json:"backend" yaml:"backend"`
	// SharedLibraryPath overrides the platform default location of the onnxruntime library.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`
	// IntraOpNumThreads sets threads for parallelizing ops. Zero lets the runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`
	// InterOpNumThreads sets threads for parallelizing independent ops. Zero lets the runtime decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
	// GraphOptimizationLevel controls the level of graph optimization.
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graph_optimization_level" yaml:"graph_optimization_level"`
	// Options contains provider-specific key/value options (CUDA and OpenVINO).
	Options map[string]string `json:"options" yaml:"options"`
}

// DefaultConfig returns a CPU configuration with extended graph optimizations.
//
// Returns:
//   - Config: The configuration.
//
// @example
// config := DefaultConfig()
// config.SharedLibraryPath = "/opt/onnxruntime/lib/libonnxruntime.so"
func DefaultConfig() Config {
	return Config{
		Backend:                CPUProviderBackend,
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
		Options:                map[string]string{},
	}
}

// Validate checks that the backend is known and thread counts are sane.
//
// Returns:
//   - error: An error wrapping common.ErrInvalidArgument.
func (c Config) Validate() error {
	switch c.Backend {
	case CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend:
	case "":
		return errors.Wrap(common.ErrInvalidArgument, "backend is required")
	default:
		return errors.Wrapf(common.ErrInvalidArgument, "no matching provider backend registered: %s", c.Backend)
	}
	if c.IntraOpNumThreads < 0 || c.InterOpNumThreads < 0 {
		return errors.Wrapf(common.ErrInvalidArgument,
			"thread counts must be >= 0, got intra=%d inter=%d", c.IntraOpNumThreads, c.InterOpNumThreads)
	}
	return nil
}
