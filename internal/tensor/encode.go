package tensor

import (
	"image"
	"image/color"

	"github.com/Brownie44l1/depth-api/internal/errors"
)

// Encode converts a Size×Size image into an InputShape tensor in NHWC order
// with channels R, G, B scaled to [0,1]. Alpha is ignored.
//
// Element (0, r, c, ch) holds channel ch of the pixel in row r, column c.
// Any other image size fails with ErrShapeMismatch.
func Encode(img image.Image) (*Tensor, error) {
	if img == nil {
		return nil, errors.Newf(errors.ErrShapeMismatch, "tensor.Encode", "nil image")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w != Size || h != Size {
		return nil, errors.Newf(errors.ErrShapeMismatch, "tensor.Encode",
			"image is %dx%d, want %dx%d", w, h, Size, Size)
	}

	t := New(InputShape)
	out := t.Data
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl := channels(img, b.Min.X+x, b.Min.Y+y)
			base := (y*w + x) * InputChannels
			out[base+0] = float32(r) / 255.0
			out[base+1] = float32(g) / 255.0
			out[base+2] = float32(bl) / 255.0
		}
	}
	return t, nil
}

// channels returns the un-premultiplied 8-bit RGB components at (x, y).
func channels(img image.Image, x, y int) (r, g, b uint8) {
	switch src := img.(type) {
	case *image.NRGBA:
		i := src.PixOffset(x, y)
		return src.Pix[i], src.Pix[i+1], src.Pix[i+2]
	case *image.RGBA:
		i := src.PixOffset(x, y)
		if src.Pix[i+3] == 0xff {
			return src.Pix[i], src.Pix[i+1], src.Pix[i+2]
		}
	}
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return c.R, c.G, c.B
}
