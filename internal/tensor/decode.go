package tensor

import (
	"image"
	"math"
)

// DecodeOptions controls how model output is rendered.
type DecodeOptions struct {
	// FlatValue is the gray level used when the output has no range
	// (every finite value equal, or none finite) and for NaN elements.
	FlatValue uint8
	// Transpose writes tensor element (0, r, c, 0) to pixel (x=r, y=c)
	// instead of (x=c, y=r).
	Transpose bool
}

// Stats describes the value range found in a model output.
type Stats struct {
	Min, Max float32
	Flat     bool
}

// Range scans the finite values of t once and returns their extremes.
// ok is false when t holds no finite value.
func Range(t *Tensor) (lo, hi float32, ok bool) {
	lo, hi = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range t.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// FirstNonFinite returns the index of the first NaN or ±Inf in t, or -1.
func FirstNonFinite(t *Tensor) int {
	for i, v := range t.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return i
		}
	}
	return -1
}

// Decode min-max normalizes an OutputShape tensor into an 8-bit grayscale
// depth image of Size×Size pixels.
//
// The result is unchanged by a positive affine rescale v*k+b of the input
// only when the rescaled values are exact in float32. Otherwise rounding of
// the rescaled tensor itself can move a pixel by one gray level.
func Decode(t *Tensor, opts DecodeOptions) (*image.Gray, error) {
	img, _, err := DecodeStats(t, opts)
	return img, err
}

// DecodeStats is Decode that also reports the value range it normalized.
func DecodeStats(t *Tensor, opts DecodeOptions) (*image.Gray, Stats, error) {
	if err := checkShape("tensor.Decode", t, OutputShape); err != nil {
		return nil, Stats{}, err
	}

	rows, cols := OutputShape[1], OutputShape[2]
	img := image.NewGray(image.Rect(0, 0, cols, rows))

	lo, hi, ok := Range(t)
	if !ok || hi == lo {
		for i := range img.Pix {
			img.Pix[i] = opts.FlatValue
		}
		return img, Stats{Min: lo, Max: hi, Flat: true}, nil
	}

	span := float64(hi) - float64(lo)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := t.Data[r*cols+c]
			x, y := c, r
			if opts.Transpose {
				x, y = r, c
			}
			img.Pix[y*img.Stride+x] = gray(v, lo, span, opts.FlatValue)
		}
	}
	return img, Stats{Min: lo, Max: hi}, nil
}

func gray(v, lo float32, span float64, flat uint8) uint8 {
	if math.IsNaN(float64(v)) {
		return flat
	}
	n := (float64(v) - float64(lo)) / span
	n = min(max(n, 0), 1)
	return uint8(math.Round(n * 255))
}
