package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/models/postprocess"
	"github.com/nutritrack/foodvision/nutrition"
	"github.com/nutritrack/foodvision/service"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAnalyzer fails on photos starting with "bad" and matches nutrition on "food".
type mockAnalyzer struct {
	calls atomic.Int64
}

func (m *mockAnalyzer) Analyze(_ context.Context, data []byte, _ int) (*service.Result, error) {
	m.calls.Add(1)
	if bytes.HasPrefix(data, []byte("bad")) {
		return nil, errors.Wrap(common.ErrDecode, "mock")
	}
	result := &service.Result{Predictions: []postprocess.Prediction{{Label: "plate"}}}
	if bytes.HasPrefix(data, []byte("food")) {
		result.Nutrition = &nutrition.Match{}
	}
	return result, nil
}

func TestNewSuite(t *testing.T) {
	analyzer := &mockAnalyzer{}
	suite := NewSuite(analyzer, nil)

	assert.NotNil(t, suite)
	assert.Equal(t, analyzer, suite.analyzer)
	assert.Empty(t, suite.scenarios)
	assert.Empty(t, suite.GetResults())
}

func TestRunScenario(t *testing.T) {
	analyzer := &mockAnalyzer{}
	suite := NewSuite(analyzer, nil)
	suite.AddImages([]byte("food-1"), []byte("bad-1"), []byte("plain"), []byte("food-2"))

	metrics, err := suite.RunScenario(context.Background(), Scenario{
		Name:        "mixed",
		K:           3,
		Iterations:  40,
		WarmupRuns:  4,
		Concurrency: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(44), analyzer.calls.Load(), "Warmup runs should be excluded from metrics only")
	assert.InDelta(t, 0.25, metrics.ErrorRate, 1e-9)
	assert.Equal(t, map[string]int{"decode": 10}, metrics.ErrorKinds)
	assert.Equal(t, 20, metrics.NutritionHits)
	assert.Greater(t, metrics.FramesPerSecond, 0.0)
	assert.LessOrEqual(t, metrics.Latency.Min, metrics.Latency.P50)
	assert.LessOrEqual(t, metrics.Latency.P50, metrics.Latency.P95)
	assert.LessOrEqual(t, metrics.Latency.P95, metrics.Latency.Max)
	assert.Len(t, suite.GetResults(), 1)
}

func TestRunScenarioInvalid(t *testing.T) {
	suite := NewSuite(&mockAnalyzer{}, nil)

	_, err := suite.RunScenario(context.Background(), Scenario{Name: "empty", Iterations: 1})
	assert.ErrorIs(t, err, common.ErrInvalidArgument, "No images should be rejected")

	suite.AddImages([]byte("plain"))
	_, err = suite.RunScenario(context.Background(), Scenario{Name: "zero"})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestRunScenarioCanceled(t *testing.T) {
	suite := NewSuite(&mockAnalyzer{}, nil)
	suite.AddImages([]byte("plain"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := suite.RunScenario(ctx, Scenario{Name: "canceled", Iterations: 1000})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, suite.GetResults())
}

func TestRunAllScenariosAndSave(t *testing.T) {
	suite := NewSuite(&mockAnalyzer{}, nil)
	suite.AddImages([]byte("food"))
	suite.AddScenario(Scenario{Name: "serial", Iterations: 5})
	suite.AddScenario(Scenario{Name: "broken"})
	suite.AddScenario(Scenario{Name: "parallel", Iterations: 8, Concurrency: 2})

	require.NoError(t, suite.RunAllScenarios(context.Background()))
	results := suite.GetResults()
	require.Len(t, results, 2, "Failed scenarios should be skipped")
	assert.Equal(t, "serial", results[0].Scenario.Name)
	assert.Equal(t, "parallel", results[1].Scenario.Name)

	path, err := suite.SaveResults(t.TempDir())
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var saved []PerformanceMetrics
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Len(t, saved, 2)
	assert.Equal(t, ".json", filepath.Ext(path))
}

func TestLoadTestImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("c"), 0o600))

	suite := NewSuite(&mockAnalyzer{}, nil)
	require.NoError(t, suite.LoadTestImages(dir))
	require.NoError(t, suite.LoadTestImages(filepath.Join(dir, "a.jpg")))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("a")}, suite.testImages)

	assert.Error(t, suite.LoadTestImages(t.TempDir()), "Empty directories should be rejected")
	assert.Error(t, suite.LoadTestImages(filepath.Join(dir, "missing")))
}

func TestSummarize(t *testing.T) {
	samples := []time.Duration{5, 1, 4, 2, 3, 10, 9, 8, 7, 6}
	got := summarize(samples)

	assert.Equal(t, LatencyMetrics{Min: 1, Mean: 5, P50: 5, P95: 10, Max: 10}, got)
	assert.Equal(t, LatencyMetrics{}, summarize(nil))
	assert.Equal(t, LatencyMetrics{Min: 7, Mean: 7, P50: 7, P95: 7, Max: 7}, summarize([]time.Duration{7}))
}
