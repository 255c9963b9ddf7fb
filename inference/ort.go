package inference

import (
	"github.com/nutritrack/foodvision/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ORTRuntime runs models through ONNX Runtime.
type ORTRuntime struct {
	config providers.Config
}

// NewORTRuntime creates an ONNX Runtime backend. The native environment is
// initialized lazily on first use.
//
// Arguments:
//   - config: The provider configuration.
//
// Returns:
//   - *ORTRuntime: The runtime.
func NewORTRuntime(config providers.Config) *ORTRuntime {
	return &ORTRuntime{config: config}
}

// Inspect lists the inputs and outputs declared by a model.
func (r *ORTRuntime) Inspect(model []byte) ([]TensorInfo, []TensorInfo, error) {
	if err := providers.InitializeEnvironment(r.config); err != nil {
		return nil, nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(model)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read model inputs and outputs")
	}
	return convertInfo(inputs), convertInfo(outputs), nil
}

func convertInfo(infos []ort.InputOutputInfo) []TensorInfo {
	result := make([]TensorInfo, len(infos))
	for i, info := range infos {
		result[i] = TensorInfo{
			Name:  info.Name,
			Dims:  append([]int64(nil), info.Dimensions...),
			Float: info.OrtValueType == ort.ONNXTypeTensor && info.DataType == ort.TensorElementDataTypeFloat,
		}
	}
	return result
}

// NewSession compiles a model into a dynamic session bound to one input and one output.
func (r *ORTRuntime) NewSession(model []byte, input, output string) (Session, error) {
	if err := providers.InitializeEnvironment(r.config); err != nil {
		return nil, err
	}

	options, err := providers.NewSessionOptions(r.config)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(model, []string{input}, []string{output}, options)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}
	return &ortSession{session: session}, nil
}

type ortSession struct {
	session *ort.DynamicAdvancedSession
}

// Run allocates the input tensor, lets the runtime allocate the output and copies the scores out.
func (s *ortSession) Run(input []float32, dims []int64) ([]float32, error) {
	in, err := ort.NewTensor(ort.NewShape(dims...), input)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, errors.Wrap(err, "error running session")
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("unexpected output type %T", outputs[0])
	}
	return append([]float32(nil), out.GetData()...), nil
}

func (s *ortSession) Destroy() error {
	return s.session.Destroy()
}
