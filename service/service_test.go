package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nutritrack/foodvision/classifier"
	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/config"
	"github.com/nutritrack/foodvision/images"
	"github.com/nutritrack/foodvision/inference/providers"
	"github.com/nutritrack/foodvision/models"
	"github.com/nutritrack/foodvision/models/model"
	"github.com/nutritrack/foodvision/models/postprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClassifier returns canned predictions and records the JPEG it received.
type fakeClassifier struct {
	predictions []postprocess.Prediction
	err         error
	k           int
	jpeg        []byte
}

func (f *fakeClassifier) ClassifyK(_ context.Context, jpeg []byte, k int) ([]postprocess.Prediction, error) {
	f.k, f.jpeg = k, jpeg
	if f.err != nil {
		return nil, f.err
	}
	return f.predictions, nil
}

func (f *fakeClassifier) TopK() int { return 3 }

func (f *fakeClassifier) Model() model.Model {
	m, _ := models.NewModel(model.NewModelArgs{Name: model.ModelNameResNet50})
	return m
}

func getPNG(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAnalyze(t *testing.T) {
	fake := &fakeClassifier{predictions: []postprocess.Prediction{
		{Label: "plate", Confidence: 50, Index: 923},
		{Label: "pizza", Confidence: 40, Index: 963},
		{Label: "pot pie", Confidence: 10, Index: 964},
	}}
	svc := New(fake, nil, nil)

	result, err := svc.Analyze(context.Background(), getPNG(t, 640, 480), 0)
	require.NoError(t, err)

	assert.Equal(t, 3, fake.k, "Zero k should use the classifier default")
	assert.Equal(t, images.FormatJPEG, images.DetectFormat(fake.jpeg), "Uploads should be transcoded to JPEG")
	raster, err := images.DecodeJPEG(fake.jpeg)
	require.NoError(t, err)
	assert.Equal(t, 224, raster.Width)
	assert.Equal(t, 224, raster.Height)

	assert.Equal(t, fake.predictions, result.Predictions)
	require.NotNil(t, result.Nutrition)
	assert.Equal(t, "pizza", result.Nutrition.Prediction.Label)
	assert.Contains(t, result.Nutrition.Item.Name, "Pizza")
	assert.Greater(t, result.Elapsed, time.Duration(0))
}

func TestAnalyzeNoNutrition(t *testing.T) {
	fake := &fakeClassifier{predictions: []postprocess.Prediction{{Label: "tabby cat", Confidence: 90, Index: 281}}}

	result, err := New(fake, nil, nil).Analyze(context.Background(), getPNG(t, 32, 32), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.k)
	assert.Nil(t, result.Nutrition)
}

func TestAnalyzeErrors(t *testing.T) {
	fake := &fakeClassifier{}
	svc := New(fake, nil, nil)

	_, err := svc.Analyze(context.Background(), []byte("not an image"), 0)
	assert.ErrorIs(t, err, common.ErrDecode)
	assert.Nil(t, fake.jpeg, "Classifier should not run on undecodable input")

	fake.err = errors.Wrap(common.ErrTimeout, "invoke")
	_, err = svc.Analyze(context.Background(), getPNG(t, 8, 8), 0)
	assert.ErrorIs(t, err, common.ErrTimeout)
}

func TestProvidersConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Runtime.SharedLibrary = "/opt/libonnxruntime.so"
	cfg.Runtime.IntraThreads = 2

	pc := ProvidersConfig(cfg)
	assert.Equal(t, providers.CPUProviderBackend, pc.Backend)
	assert.Equal(t, "/opt/libonnxruntime.so", pc.SharedLibraryPath)
	assert.Equal(t, 2, pc.IntraOpNumThreads)
	assert.NoError(t, pc.Validate())
}

func TestSetupFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Model.SerializeRuns = true

	setup, err := SetupFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ModelNameResNet50, setup.Model.Name)
	assert.Equal(t, "models/resnet50.onnx", setup.Model.Path)
	assert.Empty(t, setup.Model.Labels, "Embedded labels should be used by default")
	assert.True(t, setup.SerializeRuns)
	assert.Len(t, setup.Inference, 2)
	assert.Len(t, setup.Options, 3)

	labels := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(labels, []byte("apple\nbanana\n"), 0o600))
	cfg.Model.Labels = labels
	setup, err = SetupFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "banana"}, setup.Model.Labels)

	cfg.Runtime.Backend = "tpu"
	_, err = SetupFromConfig(cfg, nil)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestLoadCatalog(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	catalog, err := LoadCatalog(cfg)
	require.NoError(t, err)
	assert.Greater(t, catalog.Len(), 0)

	cfg.Nutrition.Catalog = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = LoadCatalog(cfg)
	assert.Error(t, err)
}

var _ Classifier = (*classifier.Classifier)(nil)

type closingClassifier struct {
	fakeClassifier
	closed bool
}

func (c *closingClassifier) Close() error {
	c.closed = true
	return nil
}

func TestClose(t *testing.T) {
	assert.NoError(t, New(&fakeClassifier{}, nil, nil).Close())

	c := &closingClassifier{}
	require.NoError(t, New(c, nil, nil).Close())
	assert.True(t, c.closed)
}
