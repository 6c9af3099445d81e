// Package config loads depth-api settings from defaults, a YAML file,
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Brownie44l1/depth-api/internal/imaging"
	"github.com/Brownie44l1/depth-api/internal/model"
	"github.com/Brownie44l1/depth-api/internal/pipeline"
	"github.com/Brownie44l1/depth-api/internal/tensor"
)

// EnvPrefix prefixes every environment override, e.g. DEPTH_MODEL_PATH.
const EnvPrefix = "DEPTH"

// Settings is the full configuration.
type Settings struct {
	Model  ModelSettings  `mapstructure:"model"`
	Image  ImageSettings  `mapstructure:"image"`
	Depth  DepthSettings  `mapstructure:"depth"`
	Server ServerSettings `mapstructure:"server"`
	Log    LogSettings    `mapstructure:"log"`
}

type ModelSettings struct {
	Path        string `mapstructure:"path"`
	Threads     int    `mapstructure:"threads"`  // 0 = all CPUs
	Metadata    string `mapstructure:"metadata"` // sidecar override
	ONNXLibrary string `mapstructure:"onnx_library"`
}

type ImageSettings struct {
	Filter    string `mapstructure:"filter"`
	MaxPixels int    `mapstructure:"max_pixels"` // 0 = unlimited
}

type DepthSettings struct {
	FlatValue int  `mapstructure:"flat_value"`
	Transpose bool `mapstructure:"transpose"`
}

type ServerSettings struct {
	Port        int           `mapstructure:"port"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	MaxUploadMB int           `mapstructure:"max_upload_mb"`
}

type LogSettings struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// DefaultMaxPixels bounds decoded source images to 64 megapixels.
const DefaultMaxPixels = 64_000_000

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"model":      "model.path",
	"threads":    "model.threads",
	"metadata":   "model.metadata",
	"filter":     "image.filter",
	"flat-value": "depth.flat_value",
	"transpose":  "depth.transpose",
	"port":       "server.port",
	"log-level":  "log.level",
	"log-json":   "log.json",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.path", filepath.Join("models", "fastestdepth_float32.tflite"))
	v.SetDefault("model.threads", 0)
	v.SetDefault("model.metadata", "")
	v.SetDefault("model.onnx_library", "")

	v.SetDefault("image.filter", string(imaging.Bilinear))
	v.SetDefault("image.max_pixels", DefaultMaxPixels)

	v.SetDefault("depth.flat_value", 0)
	v.SetDefault("depth.transpose", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cache_ttl", 10*time.Minute)
	v.SetDefault("server.max_upload_mb", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// Load builds Settings. configFile may be empty, in which case depth.yaml is
// searched for in the working directory, the user config directory and
// /etc/depth-api; a missing file is not an error. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PORT is honoured for container platforms
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("error binding PORT: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("depth")
		v.SetConfigType("yaml")
		for _, path := range defaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "depth-api"))
	}
	return append(paths, "/etc/depth-api")
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Model.Path) == "" {
		errs = append(errs, errors.New("model.path must be set"))
	}
	if s.Model.Threads < 0 {
		errs = append(errs, fmt.Errorf("model.threads must be >= 0, got %d", s.Model.Threads))
	}
	if _, err := imaging.ParseFilter(s.Image.Filter); err != nil {
		errs = append(errs, fmt.Errorf("image.filter: %w", err))
	}
	if s.Image.MaxPixels < 0 {
		errs = append(errs, fmt.Errorf("image.max_pixels must be >= 0, got %d", s.Image.MaxPixels))
	}
	if s.Depth.FlatValue < 0 || s.Depth.FlatValue > 255 {
		errs = append(errs, fmt.Errorf("depth.flat_value must be within 0-255, got %d", s.Depth.FlatValue))
	}
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be within 1-65535, got %d", s.Server.Port))
	}
	if s.Server.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("server.cache_ttl must be >= 0, got %s", s.Server.CacheTTL))
	}
	if s.Server.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be >= 1, got %d", s.Server.MaxUploadMB))
	}
	return errors.Join(errs...)
}

// Filter returns the parsed resize filter. Validate guarantees it parses.
func (s *Settings) Filter() imaging.Filter {
	f, _ := imaging.ParseFilter(s.Image.Filter)
	return f
}

// ModelOptions returns the engine loading options.
func (s *Settings) ModelOptions() model.Options {
	return model.Options{
		Threads:       s.Model.Threads,
		MetadataPath:  s.Model.Metadata,
		SharedLibrary: s.Model.ONNXLibrary,
	}
}

// PipelineOptions returns the resize and depth rendering options.
func (s *Settings) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Filter: s.Filter(),
		Decode: tensor.DecodeOptions{
			FlatValue: uint8(s.Depth.FlatValue),
			Transpose: s.Depth.Transpose,
		},
		MaxPixels: s.Image.MaxPixels,
	}
}
