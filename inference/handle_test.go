package inference

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/models/model"
	"github.com/nutritrack/foodvision/models/model/preprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) Inspect(data []byte) ([]TensorInfo, []TensorInfo, error) {
	args := m.Called(data)
	inputs, _ := args.Get(0).([]TensorInfo)
	outputs, _ := args.Get(1).([]TensorInfo)
	return inputs, outputs, args.Error(2)
}

func (m *mockRuntime) NewSession(data []byte, input, output string) (Session, error) {
	args := m.Called(data, input, output)
	session, _ := args.Get(0).(Session)
	return session, args.Error(1)
}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Run(input []float32, dims []int64) ([]float32, error) {
	args := m.Called(input, dims)
	scores, _ := args.Get(0).([]float32)
	return scores, args.Error(1)
}

func (m *mockSession) Destroy() error {
	return m.Called().Error(0)
}

var (
	modelBytes   = []byte("onnx")
	testLoader   = MemoryAssetLoader{"food.onnx": modelBytes}
	imageInput   = TensorInfo{Name: "data", Dims: []int64{-1, 3, 224, 224}, Float: true}
	scoresOutput = TensorInfo{Name: "logits", Dims: []int64{1, 4}, Float: true}
)

func testConfig() model.Config {
	return model.Config{Path: "food.onnx", InputWidth: 224, InputHeight: 224}
}

func testTensor() *preprocess.Tensor {
	return &preprocess.Tensor{Data: make([]float32, 3*224*224), Dims: []int64{1, 3, 224, 224}}
}

// openTestHandle opens a handle over a mocked session with the default input and output.
func openTestHandle(t *testing.T, cfg model.Config, session Session) *Handle {
	rt := &mockRuntime{}
	rt.On("Inspect", modelBytes).Return([]TensorInfo{imageInput}, []TensorInfo{scoresOutput}, nil)
	rt.On("NewSession", modelBytes, "data", "logits").Return(session, nil)

	handle, err := Open(context.Background(), testLoader, cfg, WithRuntime(rt))
	require.NoError(t, err)
	return handle
}

func TestOpenResolvesNames(t *testing.T) {
	handle := openTestHandle(t, testConfig(), &mockSession{})

	assert.Equal(t, "data", handle.InputName())
	assert.Equal(t, "logits", handle.OutputName())
	assert.Equal(t, 4, handle.Classes())
}

func TestOpenConfiguredNames(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Inspect", modelBytes).Return(
		[]TensorInfo{{Name: "mask", Dims: []int64{1}, Float: true}, imageInput},
		[]TensorInfo{{Name: "features", Dims: []int64{1, 2048}, Float: true}, {Name: "probs", Dims: []int64{-1}, Float: true}},
		nil,
	)
	rt.On("NewSession", modelBytes, "data", "probs").Return(&mockSession{}, nil)

	cfg := testConfig()
	cfg.InputName = "data"
	cfg.OutputName = "probs"

	handle, err := Open(context.Background(), testLoader, cfg, WithRuntime(rt))
	require.NoError(t, err)
	assert.Equal(t, -1, handle.Classes(), "Dynamic outputs report -1 classes")
	rt.AssertExpectations(t)
}

func TestOpenFailures(t *testing.T) {
	tests := []struct {
		name    string
		loader  AssetLoader
		cfg     func() model.Config
		inputs  []TensorInfo
		outputs []TensorInfo
		inspect error
	}{
		{name: "missing file", loader: MemoryAssetLoader{}, cfg: testConfig},
		{name: "empty model", loader: MemoryAssetLoader{"food.onnx": {}}, cfg: testConfig},
		{name: "inspect fails", loader: testLoader, cfg: testConfig, inspect: errors.New("bad protobuf")},
		{
			name: "unknown input name", loader: testLoader,
			cfg:    func() model.Config { c := testConfig(); c.InputName = "images"; return c },
			inputs: []TensorInfo{imageInput}, outputs: []TensorInfo{scoresOutput},
		},
		{
			name: "unknown output name", loader: testLoader,
			cfg:    func() model.Config { c := testConfig(); c.OutputName = "boxes"; return c },
			inputs: []TensorInfo{imageInput}, outputs: []TensorInfo{scoresOutput},
		},
		{
			name: "ambiguous inputs", loader: testLoader, cfg: testConfig,
			inputs: []TensorInfo{imageInput, imageInput}, outputs: []TensorInfo{scoresOutput},
		},
		{
			name: "ambiguous outputs", loader: testLoader, cfg: testConfig,
			inputs:  []TensorInfo{imageInput},
			outputs: []TensorInfo{{Name: "features", Dims: []int64{1, 2048}, Float: true}, scoresOutput},
		},
		{
			name: "no outputs", loader: testLoader, cfg: testConfig,
			inputs: []TensorInfo{imageInput},
		},
		{
			name: "wrong input size", loader: testLoader, cfg: testConfig,
			inputs:  []TensorInfo{{Name: "data", Dims: []int64{1, 3, 299, 299}, Float: true}},
			outputs: []TensorInfo{scoresOutput},
		},
		{
			name: "non-float input", loader: testLoader, cfg: testConfig,
			inputs:  []TensorInfo{{Name: "data", Dims: []int64{1, 3, 224, 224}}},
			outputs: []TensorInfo{scoresOutput},
		},
		{
			name: "detection output", loader: testLoader, cfg: testConfig,
			inputs:  []TensorInfo{imageInput},
			outputs: []TensorInfo{{Name: "logits", Dims: []int64{1, 100, 4}, Float: true}},
		},
		{
			name: "batched output", loader: testLoader, cfg: testConfig,
			inputs:  []TensorInfo{imageInput},
			outputs: []TensorInfo{{Name: "logits", Dims: []int64{8, 1000}, Float: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &mockRuntime{}
			rt.On("Inspect", mock.Anything).Return(tt.inputs, tt.outputs, tt.inspect)

			handle, err := Open(context.Background(), tt.loader, tt.cfg(), WithRuntime(rt))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrModelUnavailable)
			assert.Nil(t, handle)
			rt.AssertNotCalled(t, "NewSession", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOpenSessionFailure(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Inspect", modelBytes).Return([]TensorInfo{imageInput}, []TensorInfo{scoresOutput}, nil)
	rt.On("NewSession", modelBytes, "data", "logits").Return(nil, errors.New("unsupported opset"))

	_, err := Open(context.Background(), testLoader, testConfig(), WithRuntime(rt))
	assert.ErrorIs(t, err, common.ErrModelUnavailable)
}

// blockingLoader waits for release before returning the model.
type blockingLoader struct {
	release chan struct{}
}

func (l blockingLoader) LoadModelBytes(ctx context.Context, path string) ([]byte, error) {
	<-l.release
	return modelBytes, nil
}

func TestOpenTimeout(t *testing.T) {
	destroyed := make(chan struct{})
	session := &mockSession{}
	session.On("Destroy").Return(nil).Run(func(mock.Arguments) { close(destroyed) })

	rt := &mockRuntime{}
	rt.On("Inspect", modelBytes).Return([]TensorInfo{imageInput}, []TensorInfo{scoresOutput}, nil)
	rt.On("NewSession", modelBytes, "data", "logits").Return(session, nil)

	loader := blockingLoader{release: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	handle, err := Open(ctx, loader, testConfig(), WithRuntime(rt))
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.Nil(t, handle)

	// The abandoned load finishes and its session is released.
	close(loader.release)
	select {
	case <-destroyed:
	case <-time.After(time.Second):
		t.Fatal("abandoned session was not destroyed")
	}
}

func TestInvoke(t *testing.T) {
	session := &mockSession{}
	session.On("Run", mock.Anything, []int64{1, 3, 224, 224}).Return([]float32{5, 1, 1, 0}, nil)

	handle := openTestHandle(t, testConfig(), session)

	scores, err := handle.Invoke(context.Background(), testTensor())
	require.NoError(t, err)
	assert.Equal(t, ScoreVector{5, 1, 1, 0}, scores)

	stats := handle.Stats()
	assert.Equal(t, int64(1), stats.InvokeCount)
	assert.Equal(t, int64(0), stats.FailureCount)
	session.AssertExpectations(t)
}

func TestInvokeRejectsBadTensor(t *testing.T) {
	session := &mockSession{}
	handle := openTestHandle(t, testConfig(), session)

	bad := &preprocess.Tensor{Data: make([]float32, 3*112*112), Dims: []int64{1, 3, 112, 112}}
	_, err := handle.Invoke(context.Background(), bad)
	assert.ErrorIs(t, err, common.ErrInvalidDimensions)
	session.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestInvokeInferenceErrors(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		err    error
	}{
		{name: "runtime error", err: errors.New("kernel failed")},
		{name: "empty output", scores: []float32{}},
		{name: "wrong length", scores: []float32{1, 2, 3}},
		{name: "nan", scores: []float32{1, float32(math.NaN()), 0, 0}},
		{name: "inf", scores: []float32{1, float32(math.Inf(1)), 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &mockSession{}
			session.On("Run", mock.Anything, mock.Anything).Return(tt.scores, tt.err)
			handle := openTestHandle(t, testConfig(), session)

			scores, err := handle.Invoke(context.Background(), testTensor())
			assert.ErrorIs(t, err, common.ErrInference)
			assert.Nil(t, scores)
			assert.Equal(t, int64(1), handle.Stats().FailureCount)
		})
	}
}

func TestInvokeTimeoutKeepsHandleUsable(t *testing.T) {
	release := make(chan struct{})
	session := &mockSession{}
	session.On("Run", mock.Anything, mock.Anything).Return([]float32{1, 2, 3, 4}, nil).Once().
		Run(func(mock.Arguments) { <-release })
	session.On("Run", mock.Anything, mock.Anything).Return([]float32{4, 3, 2, 1}, nil)

	handle := openTestHandle(t, testConfig(), session)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := handle.Invoke(ctx, testTensor())
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second, "Invoke should return when the deadline passes")

	close(release)

	scores, err := handle.Invoke(context.Background(), testTensor())
	require.NoError(t, err)
	assert.Len(t, scores, 4)
}

func TestInvokeCancelledContext(t *testing.T) {
	session := &mockSession{}
	handle := openTestHandle(t, testConfig(), session)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handle.Invoke(ctx, testTensor())
	assert.ErrorIs(t, err, common.ErrTimeout)
	session.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestClose(t *testing.T) {
	session := &mockSession{}
	session.On("Destroy").Return(nil).Once()
	handle := openTestHandle(t, testConfig(), session)

	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close(), "Close should be idempotent")

	_, err := handle.Invoke(context.Background(), testTensor())
	assert.ErrorIs(t, err, common.ErrModelUnavailable)
	session.AssertNumberOfCalls(t, "Destroy", 1)
}

// countingSession records the highest number of concurrent runs.
type countingSession struct {
	active  int32
	maxSeen int32
}

func (s *countingSession) Run(input []float32, dims []int64) ([]float32, error) {
	n := atomic.AddInt32(&s.active, 1)
	for {
		seen := atomic.LoadInt32(&s.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&s.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt32(&s.active, -1)
	return []float32{1, 2, 3, 4}, nil
}

func (s *countingSession) Destroy() error { return nil }

func TestInvokeSerializeRuns(t *testing.T) {
	session := &countingSession{}
	cfg := testConfig()
	cfg.SerializeRuns = true
	handle := openTestHandle(t, cfg, session)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := handle.Invoke(context.Background(), testTensor())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&session.maxSeen), "Runs should not overlap")
	assert.Equal(t, int64(8), handle.Stats().InvokeCount)
}
