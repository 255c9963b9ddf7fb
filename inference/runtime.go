package inference

// TensorInfo describes one model input or output as declared by the model file.
type TensorInfo struct {
	// Name of the tensor in the graph.
	Name string `json:"name" yaml:"name"`
	// Dims of the tensor. Dynamic dimensions are negative.
	Dims []int64 `json:"dims" yaml:"dims"`
	// Float is true for float32 tensors.
	Float bool `json:"float" yaml:"float"`
}

// Runtime is the native inference backend.
type Runtime interface {
	// Inspect lists the inputs and outputs declared by a model.
	Inspect(model []byte) (inputs, outputs []TensorInfo, err error)
	// NewSession compiles a model bound to one input and one output.
	NewSession(model []byte, input, output string) (Session, error)
}

// Session runs a compiled model.
type Session interface {
	// Run feeds one float32 tensor and returns the output values.
	Run(input []float32, dims []int64) ([]float32, error)
	// Destroy releases the native resources.
	Destroy() error
}
