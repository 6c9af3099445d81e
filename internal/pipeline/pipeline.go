// Package pipeline turns a decoded image into a depth map:
// resize → encode → infer → decode.
package pipeline

import (
	"fmt"
	"image"
	"time"

	"github.com/Brownie44l1/depth-api/internal/imaging"
	"github.com/Brownie44l1/depth-api/internal/logger"
	"github.com/Brownie44l1/depth-api/internal/model"
	"github.com/Brownie44l1/depth-api/internal/tensor"
)

// Options controls a pipeline run.
type Options struct {
	Filter imaging.Filter
	Decode tensor.DecodeOptions
	// MaxPixels bounds the source image size read by RunFile; 0 is unlimited.
	MaxPixels int
}

// Timings records how long each stage took.
type Timings struct {
	Resize time.Duration
	Encode time.Duration
	Infer  time.Duration
	Decode time.Duration
}

func (t Timings) Total() time.Duration { return t.Resize + t.Encode + t.Infer + t.Decode }

// Result holds the output of a pipeline run.
type Result struct {
	Input     image.Image // source resized to the model canvas
	Depth     *image.Gray
	Stats     tensor.Stats
	SrcWidth  int
	SrcHeight int
	Timings   Timings
}

// Run executes the full depth pipeline on img with engine. Engines are not
// safe for concurrent use; callers sharing one must serialize Run.
func Run(img image.Image, engine model.Engine, opts Options) (*Result, error) {
	var timings Timings

	// 1. Resize to the model canvas
	start := time.Now()
	resized, err := imaging.Resize(img, tensor.Size, tensor.Size, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}
	src := img.Bounds()
	timings.Resize = time.Since(start)

	// 2. Encode NHWC float tensor
	start = time.Now()
	input, err := tensor.Encode(resized)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	timings.Encode = time.Since(start)

	// 3. Run the model
	start = time.Now()
	output, err := engine.Infer(input)
	if err != nil {
		return nil, fmt.Errorf("infer: %w", err)
	}
	timings.Infer = time.Since(start)

	// 4. Render depth
	start = time.Now()
	depth, stats, err := tensor.DecodeStats(output, opts.Decode)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	timings.Decode = time.Since(start)

	log := GetLogger()
	if stats.Flat {
		log.Warn("model produced flat depth", logger.Float32("value", stats.Min))
	}
	log.Debug("depth map rendered",
		logger.Int("src_width", src.Dx()),
		logger.Int("src_height", src.Dy()),
		logger.Float32("min", stats.Min),
		logger.Float32("max", stats.Max),
		logger.Duration("resize", timings.Resize),
		logger.Duration("encode", timings.Encode),
		logger.Duration("infer", timings.Infer),
		logger.Duration("decode", timings.Decode))

	return &Result{
		Input:     resized,
		Depth:     depth,
		Stats:     stats,
		SrcWidth:  src.Dx(),
		SrcHeight: src.Dy(),
		Timings:   timings,
	}, nil
}

// RunFile decodes the image at path and runs the pipeline on it.
func RunFile(path string, engine model.Engine, opts Options) (*Result, error) {
	img, _, err := imaging.DecodeFile(path, opts.MaxPixels)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return Run(img, engine, opts)
}

// GetLogger returns the pipeline logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("pipeline")
}
