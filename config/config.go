// Package config - Application configuration loaded from defaults, a YAML file and the environment.
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/nutritrack/foodvision/common"
	"github.com/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. FOODVISION_MODEL_PATH.
const EnvPrefix = "FOODVISION_"

// ServerConfig defines HTTP server configurations
type ServerConfig struct {
	Port  int  `koanf:"port"`
	Debug bool `koanf:"debug"`
}

// ModelConfig selects the classifier model.
type ModelConfig struct {
	Name          string `koanf:"name"`
	Path          string `koanf:"path"`
	Labels        string `koanf:"labels"`
	InputName     string `koanf:"inputname"`
	OutputName    string `koanf:"outputname"`
	SerializeRuns bool   `koanf:"serializeruns"`
}

// RuntimeConfig configures ONNX Runtime.
type RuntimeConfig struct {
	SharedLibrary string `koanf:"sharedlibrary"`
	Backend       string `koanf:"backend"`
	IntraThreads  int    `koanf:"intrathreads"`
	InterThreads  int    `koanf:"interthreads"`
}

// ClassifyConfig bounds classification requests.
type ClassifyConfig struct {
	TopK        int           `koanf:"topk"`
	Timeout     time.Duration `koanf:"timeout"`
	LoadTimeout time.Duration `koanf:"loadtimeout"`
	MaxBytes    int64         `koanf:"maxbytes"`
}

// NutritionConfig selects the food catalog.
type NutritionConfig struct {
	// Catalog is a YAML catalog path. Empty uses the embedded catalog.
	Catalog string `koanf:"catalog"`
}

// AppConfig defines the whole application configuration.
type AppConfig struct {
	Server    ServerConfig    `koanf:"server"`
	Model     ModelConfig     `koanf:"model"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
	Classify  ClassifyConfig  `koanf:"classify"`
	Nutrition NutritionConfig `koanf:"nutrition"`
}

var defaults = map[string]any{
	"server.port":          8080,
	"server.debug":         false,
	"model.name":           "resnet50",
	"model.path":           "models/resnet50.onnx",
	"model.serializeruns":  false,
	"runtime.backend":      "cpu",
	"runtime.intrathreads": 0,
	"runtime.interthreads": 0,
	"classify.topk":        3,
	"classify.timeout":     "5s",
	"classify.loadtimeout": "30s",
	"classify.maxbytes":    10 << 20,
}

// Load assembles the configuration.
//
// Sources are applied in order: built-in defaults, the YAML file at filePath
// (skipped when empty) and FOODVISION_ environment variables, where
// FOODVISION_CLASSIFY_TOPK sets classify.topk.
//
// Arguments:
//   - filePath: Optional YAML file.
//
// Returns:
//   - *AppConfig: The validated configuration.
//   - error: A load or parse error, or one wrapping common.ErrInvalidArgument.
//
// @example
// cfg, err := Load("config/config.yaml")
func Load(filePath string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", filePath)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		return key, v
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig checks the values that have no usable fallback.
func ValidateConfig(cfg *AppConfig) error {
	switch {
	case cfg.Server.Port <= 0 || cfg.Server.Port > 65535:
		return errors.Wrapf(common.ErrInvalidArgument, "server.port %d out of range", cfg.Server.Port)
	case cfg.Model.Path == "":
		return errors.Wrap(common.ErrInvalidArgument, "model.path is required")
	case cfg.Classify.TopK < 1:
		return errors.Wrapf(common.ErrInvalidArgument, "classify.topk must be >= 1, got %d", cfg.Classify.TopK)
	case cfg.Classify.Timeout < 0 || cfg.Classify.LoadTimeout < 0:
		return errors.Wrap(common.ErrInvalidArgument, "timeouts must not be negative")
	case cfg.Classify.MaxBytes <= 0:
		return errors.Wrap(common.ErrInvalidArgument, "classify.maxbytes must be positive")
	}
	return nil
}

var defaultConfigPath = "config/config.yaml"

// ParseConfigFlag allows clients to specify the relative path to the file from
// which the configuration will be loaded. A missing default file is ignored.
func ParseConfigFlag(args []string) string {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	_ = fs.Parse(args)

	if *configPath == defaultConfigPath {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return ""
		}
	}
	return *configPath
}
