package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/nutritrack/foodvision/benchmark"
	"github.com/nutritrack/foodvision/config"
	"github.com/nutritrack/foodvision/inference/providers"
	"github.com/nutritrack/foodvision/logger"
	"github.com/nutritrack/foodvision/service"
	"github.com/nutritrack/foodvision/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath  string
		imagePath   string
		dirPath     string
		modelPath   string
		topK        int
		asJSON      bool
		benchIters  int
		concurrency int
		outputDir   string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&imagePath, "image", "", "Path to a photo (.jpg, .jpeg, .png, .webp, .gif)")
	flag.StringVar(&dirPath, "dir", "", "Directory of photos to classify")
	flag.StringVar(&modelPath, "model", "", "Path to the ONNX model, overrides model.path")
	flag.IntVar(&topK, "k", 0, "Number of predictions, overrides classify.topk")
	flag.BoolVar(&asJSON, "json", false, "Print results as JSON")
	flag.IntVar(&benchIters, "bench", 0, "Benchmark the pipeline with this many iterations")
	flag.IntVar(&concurrency, "concurrency", 1, "Concurrent classifications while benchmarking")
	flag.StringVar(&outputDir, "output-dir", "", "Directory for benchmark results")
	flag.Parse()

	if imagePath == "" && dirPath == "" {
		fmt.Fprintln(os.Stderr, "one of -image or -dir is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}
	if topK > 0 {
		cfg.Classify.TopK = topK
	}

	log := logger.New(cfg.Server.Debug)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc, err := service.Start(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to load model", zap.String("path", cfg.Model.Path), zap.Error(err))
	}
	defer func() {
		_ = svc.Close()
		_ = providers.DestroyEnvironment()
	}()

	if benchIters > 0 {
		if err := runBenchmark(ctx, svc, []string{imagePath, dirPath}, benchIters, concurrency, outputDir, log); err != nil {
			log.Fatal("benchmark failed", zap.Error(err))
		}
		return
	}

	files, err := collect(imagePath, dirPath)
	if err != nil {
		log.Fatal("failed to read photos", zap.Error(err))
	}

	failed := 0
	for _, f := range files {
		result, err := svc.Analyze(ctx, f.Data, 0)
		if err != nil {
			failed++
			log.Error("classification failed", zap.String("path", f.Path), zap.Error(err))
			continue
		}
		if asJSON {
			printJSON(os.Stdout, f.Path, result)
		} else {
			printText(os.Stdout, f.Path, result)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func collect(imagePath, dirPath string) ([]util.ImageFile, error) {
	var files []util.ImageFile
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, err
		}
		files = append(files, util.ImageFile{Path: imagePath, Data: data})
	}
	if dirPath != "" {
		found, err := util.LoadDirectoryImageFiles(dirPath)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

// runBenchmark measures the pipeline sequentially and, when concurrency > 1,
// again with that many workers.
func runBenchmark(ctx context.Context, svc *service.Service, paths []string, iterations, concurrency int, outputDir string, log *zap.Logger) error {
	suite := benchmark.NewSuite(svc, log)
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := suite.LoadTestImages(path); err != nil {
			return err
		}
	}

	levels := []int{1}
	if concurrency > 1 {
		levels = append(levels, concurrency)
	}
	for _, workers := range levels {
		suite.AddScenario(benchmark.Scenario{
			Name:        fmt.Sprintf("k%d_workers%d", svc.TopK(), workers),
			K:           svc.TopK(),
			Iterations:  iterations,
			WarmupRuns:  min(iterations, 3),
			Concurrency: workers,
		})
	}

	if err := suite.RunAllScenarios(ctx); err != nil {
		return err
	}
	results := suite.GetResults()
	if len(results) == 0 {
		return errors.New("no benchmark scenario completed")
	}
	for _, m := range results {
		fmt.Printf("%s: %d photos in %v: %.2f photos/s, p50 %v, p95 %v, errors %.1f%%\n",
			m.Scenario.Name, m.Scenario.Iterations, m.TotalDuration, m.FramesPerSecond,
			m.Latency.P50, m.Latency.P95, m.ErrorRate*100)
	}

	if outputDir == "" {
		return nil
	}
	path, err := suite.SaveResults(outputDir)
	if err != nil {
		return err
	}
	fmt.Printf("Results saved to: %s\n", path)
	return nil
}

func printText(w io.Writer, path string, result *service.Result) {
	fmt.Fprintf(w, "%s\n", filepath.Base(path))
	for i, p := range result.Predictions {
		marker := ""
		if p.Degraded {
			marker = " (no label)"
		}
		fmt.Fprintf(w, "  %d. %-30s %6.2f%%%s\n", i+1, p.Label, p.Confidence, marker)
	}
	if n := result.Nutrition; n != nil {
		item := n.Item
		fmt.Fprintf(w, "  %s per %.0fg: %.0f kcal, protein %.1fg, fat %.1fg, carbs %.1fg, fiber %.1fg, sugar %.1fg\n",
			strings.TrimSpace(item.Emoji+" "+item.Name), item.ServingSizeG, item.Calories,
			item.ProteinG, item.FatTotalG, item.CarbohydratesTotalG, item.FiberG, item.SugarG)
	} else {
		fmt.Fprintln(w, "  no nutrition match")
	}
}

func printJSON(w io.Writer, path string, result *service.Result) {
	enc := json.NewEncoder(w)
	_ = enc.Encode(struct {
		Path string `json:"path"`
		*service.Result
	}{Path: path, Result: result})
}
