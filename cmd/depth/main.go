package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/depth-api/internal/config"
	"github.com/Brownie44l1/depth-api/internal/logger"
	_ "github.com/Brownie44l1/depth-api/internal/model/onnx"
	_ "github.com/Brownie44l1/depth-api/internal/model/tflite"
)

var rootCmd = &cobra.Command{
	Use:           "depth",
	Short:         "Estimate depth from a single image with a pretrained model",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to depth.yaml")
	rootCmd.PersistentFlags().String("model", "", "Model file (.tflite or .onnx)")
	rootCmd.PersistentFlags().Int("threads", 0, "Inference threads (0 = all CPUs)")
	rootCmd.PersistentFlags().String("metadata", "", "Model metadata sidecar")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadSettings reads configuration with cmd's flags taking precedence and
// installs the configured logger.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	configPath, _ := cmd.Flags().GetString("config")
	settings, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger.SetGlobal(logger.New(os.Stderr, logger.Options{
		Level: logger.LogLevel(settings.Log.Level),
		JSON:  settings.Log.JSON,
	}))
	return settings, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
