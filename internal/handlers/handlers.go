// Package handlers serves depth predictions over HTTP.
package handlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/Brownie44l1/depth-api/internal/errors"
	"github.com/Brownie44l1/depth-api/internal/imaging"
	"github.com/Brownie44l1/depth-api/internal/logger"
	"github.com/Brownie44l1/depth-api/internal/model"
	"github.com/Brownie44l1/depth-api/internal/pipeline"
	"github.com/Brownie44l1/depth-api/internal/tensor"
)

// Config tunes a Handler.
type Config struct {
	Pipeline       pipeline.Options
	MaxUploadBytes int64
	// CacheTTL of /predict/image results; 0 disables the cache.
	CacheTTL time.Duration
}

// Handler owns the engine for the lifetime of the server and serializes
// access to it.
type Handler struct {
	engine  model.Engine
	cfg     Config
	metrics *Metrics
	cache   *cache.Cache
	log     logger.Logger

	mu sync.Mutex

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewHandler builds a Handler. With a cache enabled it starts a goroutine
// that evicts expired results until Close is called.
func NewHandler(engine model.Engine, cfg Config, metrics *Metrics) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	h := &Handler{
		engine:  engine,
		cfg:     cfg,
		metrics: metrics,
		log:     logger.Global().Module("handlers"),
	}
	if cfg.CacheTTL > 0 {
		h.cache = cache.New(cfg.CacheTTL, 0)
		h.done = make(chan struct{})
		h.wg.Add(1)
		go h.evictExpired(2 * cfg.CacheTTL)
	}
	return h
}

func (h *Handler) evictExpired(interval time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.cache.DeleteExpired()
		case <-h.done:
			return
		}
	}
}

// Close stops cache eviction. It does not close the engine and is safe to
// call more than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		if h.done != nil {
			close(h.done)
			h.wg.Wait()
		}
	})
}

func (h *Handler) Health(c *gin.Context) {
	sig := h.engine.Signature()
	state := h.engine.State()
	status, code := "healthy", http.StatusOK
	if state != model.Loaded {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:  status,
		Model:   sig.Path,
		Backend: sig.Backend,
		State:   state.String(),
	})
}

// Predict runs the model on a raw tensor and returns the raw output.
func (h *Handler) Predict(c *gin.Context) {
	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "Invalid JSON")
		return
	}

	expectedSize := tensor.InputShape.Elements()
	if len(req.Image) != expectedSize {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)))
		return
	}

	input, err := tensor.FromData(tensor.InputShape, req.Image)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	h.mu.Lock()
	output, err := h.engine.Infer(input)
	h.mu.Unlock()
	if err != nil {
		h.log.Error("prediction failed", logger.Error(err), logger.String("request_id", requestID(c)))
		h.fail(c, statusFor(err), "Prediction failed")
		return
	}
	h.metrics.observeStage("infer", time.Since(start))

	if i := tensor.FirstNonFinite(output); i >= 0 {
		h.log.Error("model produced non-finite output",
			logger.Int("index", i),
			logger.String("value", fmt.Sprint(output.Data[i])),
			logger.String("request_id", requestID(c)))
		h.fail(c, http.StatusInternalServerError, fmt.Sprintf("Model produced a non-finite value at index %d", i))
		return
	}

	lo, hi, ok := tensor.Range(output)
	c.JSON(http.StatusOK, PredictionResponse{
		Shape: output.Shape,
		Depth: output.Data,
		Min:   lo,
		Max:   hi,
		Flat:  !ok || lo == hi,
	})
}

// PredictFromImage renders the depth map of an uploaded image. The response
// is a PNG unless ?format=json is given.
func (h *Handler) PredictFromImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)
	if err := c.Request.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", h.cfg.MaxUploadBytes))
			return
		}
		h.fail(c, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		h.fail(c, http.StatusBadRequest, "No image file provided. Use 'image' as the form field name")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(c, http.StatusBadRequest, "Failed to read image")
		return
	}

	log := h.log.With(logger.String("request_id", requestID(c)))
	log.Debug("received file", logger.String("filename", header.Filename), logger.Int("bytes", len(data)))

	key := h.cacheKey(data)
	if resp, ok := h.cached(key); ok {
		h.metrics.cacheHits.Inc()
		h.respond(c, resp)
		return
	}

	img, format, err := imaging.Decode(bytes.NewReader(data), h.cfg.Pipeline.MaxPixels)
	if errors.Is(err, imaging.ErrTooManyPixels) {
		log.Warn("image rejected", logger.Error(err))
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("Image exceeds %d pixels", h.cfg.Pipeline.MaxPixels))
		return
	}
	if err != nil {
		h.fail(c, http.StatusBadRequest, "Invalid image format. Supported: JPEG, PNG, GIF, BMP, TIFF, WebP")
		return
	}

	h.mu.Lock()
	result, err := pipeline.Run(img, h.engine, h.cfg.Pipeline)
	h.mu.Unlock()
	if err != nil {
		log.Error("pipeline failed", logger.Error(err))
		h.fail(c, statusFor(err), "Prediction failed")
		return
	}
	h.metrics.observeRun(result.Timings)

	resp, err := newDepthResponse(result, format)
	if err != nil {
		log.Error("encoding response failed", logger.Error(err))
		h.fail(c, http.StatusInternalServerError, "Failed to encode depth map")
		return
	}
	if h.cache != nil {
		h.cache.SetDefault(key, resp)
	}

	log.Info("depth map rendered",
		logger.String("format", format),
		logger.Int("src_width", result.SrcWidth),
		logger.Int("src_height", result.SrcHeight),
		logger.Duration("elapsed", result.Timings.Total()))
	h.respond(c, resp)
}

func newDepthResponse(result *pipeline.Result, format string) (*DepthResponse, error) {
	depthPNG, err := imaging.PNGBytes(result.Depth)
	if err != nil {
		return nil, err
	}
	inputPNG, err := imaging.PNGBytes(result.Input)
	if err != nil {
		return nil, err
	}
	b := result.Depth.Bounds()
	return &DepthResponse{
		Width:     b.Dx(),
		Height:    b.Dy(),
		SrcWidth:  result.SrcWidth,
		SrcHeight: result.SrcHeight,
		Format:    format,
		Min:       result.Stats.Min,
		Max:       result.Stats.Max,
		Flat:      result.Stats.Flat,
		DepthPNG:  depthPNG,
		InputPNG:  inputPNG,
		TimingsMS: map[string]int64{
			"resize": result.Timings.Resize.Milliseconds(),
			"encode": result.Timings.Encode.Milliseconds(),
			"infer":  result.Timings.Infer.Milliseconds(),
			"decode": result.Timings.Decode.Milliseconds(),
		},
	}, nil
}

func (h *Handler) respond(c *gin.Context, resp *DepthResponse) {
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.Header("X-Depth-Min", strconv.FormatFloat(float64(resp.Min), 'g', -1, 32))
	c.Header("X-Depth-Max", strconv.FormatFloat(float64(resp.Max), 'g', -1, 32))
	c.Data(http.StatusOK, "image/png", resp.DepthPNG)
}

// cacheKey identifies an upload together with the options that shape its
// depth map.
func (h *Handler) cacheKey(data []byte) string {
	sum := sha256.New()
	sum.Write(data)
	d := h.cfg.Pipeline.Decode
	fmt.Fprintf(sum, "|%s|%d|%t", h.cfg.Pipeline.Filter, d.FlatValue, d.Transpose)
	return hex.EncodeToString(sum.Sum(nil))
}

func (h *Handler) cached(key string) (*DepthResponse, bool) {
	if h.cache == nil {
		return nil, false
	}
	v, ok := h.cache.Get(key)
	if !ok {
		return nil, false
	}
	resp, ok := v.(*DepthResponse)
	return resp, ok
}

func (h *Handler) fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, errorResponse{Error: msg, RequestID: requestID(c)})
}

// statusFor maps pipeline error kinds to HTTP status codes.
func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.ErrInvalidInput, errors.ErrShapeMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
