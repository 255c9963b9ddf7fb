package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/service"
	"github.com/nutritrack/foodvision/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Analyzer classifies one photo.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, k int) (*service.Result, error)
}

// Scenario defines a specific test configuration
type Scenario struct {
	Name        string `json:"name"`
	K           int    `json:"k"`
	Iterations  int    `json:"iterations"`
	WarmupRuns  int    `json:"warmup_runs"`
	Concurrency int    `json:"concurrency"`
}

// Suite manages and executes benchmark scenarios
type Suite struct {
	analyzer   Analyzer
	logger     *zap.Logger
	mu         sync.RWMutex
	testImages [][]byte
	scenarios  []Scenario
	results    []PerformanceMetrics
}

// NewSuite creates a new benchmark suite
func NewSuite(analyzer Analyzer, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{analyzer: analyzer, logger: logger}
}

// AddScenario adds a test scenario to the benchmark suite
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// AddImages adds encoded photos to the rotation.
func (s *Suite) AddImages(photos ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testImages = append(s.testImages, photos...)
}

// LoadTestImages loads test photos from a file or a directory.
func (s *Suite) LoadTestImages(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "failed to stat image path")
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "failed to read image file")
		}
		s.AddImages(data)
		return nil
	}

	files, err := util.LoadDirectoryImageFiles(path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no images found in directory: %s", path)
	}
	for _, f := range files {
		s.AddImages(f.Data)
	}
	return nil
}

// RunScenario executes a single benchmark scenario
//
// Arguments:
//   - ctx: Cancels the run between photos.
//   - scenario: The scenario.
//
// Returns:
//   - *PerformanceMetrics: The measurements.
//   - error: An error wrapping common.ErrInvalidArgument for an empty rotation or
//     a bad scenario, or the context error.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	s.mu.RLock()
	photos := s.testImages
	s.mu.RUnlock()

	if len(photos) == 0 {
		return nil, errors.Wrap(common.ErrInvalidArgument, "no test images loaded")
	}
	if scenario.Iterations < 1 {
		return nil, errors.Wrapf(common.ErrInvalidArgument, "iterations must be >= 1, got %d", scenario.Iterations)
	}
	workers := max(scenario.Concurrency, 1)

	for i := 0; i < scenario.WarmupRuns; i++ {
		_, _ = s.analyzer.Analyze(ctx, photos[i%len(photos)], scenario.K)
	}

	// Capture initial memory stats
	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	type sample struct {
		latency   time.Duration
		nutrition bool
		err       error
	}
	samples := make([]sample, scenario.Iterations)
	jobs := make(chan int)

	startTime := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				begin := time.Now()
				result, err := s.analyzer.Analyze(ctx, photos[i%len(photos)], scenario.K)
				samples[i] = sample{latency: time.Since(begin), err: err, nutrition: err == nil && result.Nutrition != nil}
			}
		}()
	}

	dispatched := 0
dispatch:
	for ; dispatched < scenario.Iterations; dispatched++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- dispatched:
		}
	}
	close(jobs)
	wg.Wait()
	totalDuration := time.Since(startTime)

	if dispatched < scenario.Iterations {
		return nil, ctx.Err()
	}

	// Capture final memory stats
	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics := &PerformanceMetrics{
		Scenario:        scenario,
		Timestamp:       startTime,
		TotalDuration:   totalDuration,
		FramesPerSecond: float64(scenario.Iterations) / totalDuration.Seconds(),
		ErrorKinds:      map[string]int{},
		MemoryStats: MemoryMetrics{
			AllocBytes:      endMem.Alloc,
			TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
			SysBytes:        endMem.Sys,
			NumGC:           endMem.NumGC - startMem.NumGC,
			HeapAllocBytes:  endMem.HeapAlloc,
			HeapSysBytes:    endMem.HeapSys,
		},
	}

	latencies := make([]time.Duration, 0, len(samples))
	failures := 0
	for _, smp := range samples {
		if smp.err != nil {
			failures++
			metrics.ErrorKinds[string(common.Kind(smp.err))]++
			continue
		}
		latencies = append(latencies, smp.latency)
		if smp.nutrition {
			metrics.NutritionHits++
		}
	}
	metrics.Latency = summarize(latencies)
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)

	s.mu.Lock()
	s.results = append(s.results, *metrics)
	s.mu.Unlock()

	s.logger.Info("scenario completed",
		zap.String("scenario", scenario.Name),
		zap.Float64("fps", metrics.FramesPerSecond),
		zap.Duration("p95", metrics.Latency.P95),
		zap.Float64("error_rate", metrics.ErrorRate),
	)
	return metrics, nil
}

// RunAllScenarios executes all configured benchmark scenarios
func (s *Suite) RunAllScenarios(ctx context.Context) error {
	s.mu.RLock()
	scenarios := make([]Scenario, len(s.scenarios))
	copy(scenarios, s.scenarios)
	s.mu.RUnlock()

	for _, scenario := range scenarios {
		if _, err := s.RunScenario(ctx, scenario); err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.logger.Warn("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
		}
	}
	return nil
}

// GetResults returns all benchmark results
func (s *Suite) GetResults() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]PerformanceMetrics, len(s.results))
	copy(results, s.results)
	return results
}

// WriteJSON writes the results as indented JSON.
func (s *Suite) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.GetResults())
}

// SaveResults persists benchmark results to outputDir and returns the file path.
func (s *Suite) SaveResults(outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	f, err := os.Create(resultsFile)
	if err != nil {
		return "", errors.Wrap(err, "failed to create results file")
	}
	defer f.Close()

	if err := s.WriteJSON(f); err != nil {
		return "", errors.Wrap(err, "failed to write results file")
	}
	return resultsFile, nil
}
