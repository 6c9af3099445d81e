// Package imaging decodes source images, rescales them to the model canvas
// and encodes display images.
package imaging

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/depth-api/internal/errors"
)

// Filter selects the interpolation used by Resize.
type Filter string

const (
	Bilinear   Filter = "bilinear"
	Lanczos3   Filter = "lanczos3"
	Nearest    Filter = "nearest"
	CatmullRom Filter = "catmullrom"
)

// Filters lists the accepted filter names.
var Filters = []Filter{Bilinear, Lanczos3, Nearest, CatmullRom}

// ParseFilter resolves a filter name. An empty name selects Bilinear.
func ParseFilter(name string) (Filter, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Bilinear, nil
	}
	for _, f := range Filters {
		if string(f) == name {
			return f, nil
		}
	}
	return "", errors.Newf(errors.ErrInvalidInput, "imaging.ParseFilter", "unknown filter %q", name)
}

// ErrTooManyPixels is matched by Decode errors for images whose header
// declares more pixels than allowed.
var ErrTooManyPixels = stderrors.New("image exceeds pixel limit")

// Decode reads an image in any registered format (PNG, JPEG, GIF, BMP,
// TIFF, WebP) and returns it with the format name.
//
// The header is checked against maxPixels before any pixel data is
// decoded; maxPixels <= 0 disables the check.
func Decode(r io.Reader, maxPixels int) (image.Image, string, error) {
	var header bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, "", errors.New(errors.ErrInvalidInput, "imaging.Decode", err)
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, "", errors.Newf(errors.ErrInvalidInput, "imaging.Decode", "empty %s image", format)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", errors.New(errors.ErrInvalidInput, "imaging.Decode",
			fmt.Errorf("%w: %s image is %dx%d, limit is %d pixels", ErrTooManyPixels, format, cfg.Width, cfg.Height, maxPixels))
	}

	img, format, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, "", errors.New(errors.ErrInvalidInput, "imaging.Decode", err)
	}
	if b := img.Bounds(); b.Dx() < 1 || b.Dy() < 1 {
		return nil, "", errors.Newf(errors.ErrInvalidInput, "imaging.Decode", "empty %s image", format)
	}
	return img, format, nil
}

// DecodeFile opens path and decodes it with the same pixel limit as Decode.
func DecodeFile(path string, maxPixels int) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", errors.New(errors.ErrInvalidInput, "imaging.DecodeFile", err)
	}
	defer f.Close()

	return Decode(f, maxPixels)
}

// Resize rescales img to exactly w×h, ignoring its aspect ratio.
func Resize(img image.Image, w, h int, filter Filter) (image.Image, error) {
	if img == nil {
		return nil, errors.Newf(errors.ErrInvalidInput, "imaging.Resize", "nil image")
	}
	src := img.Bounds()
	if src.Dx() < 1 || src.Dy() < 1 {
		return nil, errors.Newf(errors.ErrInvalidInput, "imaging.Resize", "source is %dx%d", src.Dx(), src.Dy())
	}
	if w < 1 || h < 1 {
		return nil, errors.Newf(errors.ErrInvalidInput, "imaging.Resize", "target is %dx%d", w, h)
	}

	switch filter {
	case Bilinear, "":
		return resize.Resize(uint(w), uint(h), img, resize.Bilinear), nil
	case Lanczos3:
		return resize.Resize(uint(w), uint(h), img, resize.Lanczos3), nil
	case Nearest:
		return scale(draw.NearestNeighbor, img, w, h), nil
	case CatmullRom:
		return scale(draw.CatmullRom, img, w, h), nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "imaging.Resize", "unknown filter %q", filter)
	}
}

func scale(s draw.Scaler, img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	s.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// PNGBytes returns img encoded as PNG.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePNG encodes img to a new file at path.
func WritePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return EncodePNG(f, img)
}
