package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/Brownie44l1/depth-api/internal/config"
	"github.com/Brownie44l1/depth-api/internal/handlers"
	"github.com/Brownie44l1/depth-api/internal/logger"
	"github.com/Brownie44l1/depth-api/internal/model"
	_ "github.com/Brownie44l1/depth-api/internal/model/onnx"
	_ "github.com/Brownie44l1/depth-api/internal/model/tflite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "depth-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("depth-server", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to depth.yaml")
	flags.String("model", "", "Model file (.tflite or .onnx)")
	flags.Int("port", 0, "Listen port")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Log as JSON")
	_ = flags.Parse(os.Args[1:])

	settings, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	logger.SetGlobal(logger.New(os.Stderr, logger.Options{
		Level: logger.LogLevel(settings.Log.Level),
		JSON:  settings.Log.JSON,
	}))
	log := logger.Global().Module("server")

	log.Info("loading model", logger.String("path", settings.Model.Path))
	engine, err := model.Open(settings.Model.Path, settings.ModelOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize model: %w", err)
	}
	defer engine.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := handlers.NewHandler(engine, handlers.Config{
		Pipeline:       settings.PipelineOptions(),
		MaxUploadBytes: int64(settings.Server.MaxUploadMB) << 20,
		CacheTTL:       settings.Server.CacheTTL,
	}, handlers.NewMetrics(reg))
	defer handler.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(settings.Server.Port),
		Handler:           handlers.NewRouter(handler, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			logger.Int("port", settings.Server.Port),
			logger.String("backend", engine.Signature().Backend),
			logger.String("filter", string(settings.Filter())))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
