package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/Brownie44l1/depth-api/internal/errors"
)

// quadImage is the 2×2 fixture: red, green on the top row; blue, white below.
func quadImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		want Filter
	}{
		{"", Bilinear},
		{"bilinear", Bilinear},
		{" Lanczos3 ", Lanczos3},
		{"NEAREST", Nearest},
		{"catmullrom", CatmullRom},
	}
	for _, tt := range tests {
		got, err := ParseFilter(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFilter("bicubic")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestResizeDimensions(t *testing.T) {
	sources := []image.Rectangle{
		image.Rect(0, 0, 1, 1),
		image.Rect(0, 0, 640, 480),
		image.Rect(0, 0, 30, 500),
		image.Rect(5, 5, 105, 55),
	}
	for _, f := range Filters {
		for _, r := range sources {
			out, err := Resize(image.NewRGBA(r), 224, 224, f)
			require.NoError(t, err, "%s %v", f, r)
			assert.Equal(t, 224, out.Bounds().Dx(), "%s %v", f, r)
			assert.Equal(t, 224, out.Bounds().Dy(), "%s %v", f, r)
		}
	}

	out, err := Resize(image.NewRGBA(image.Rect(0, 0, 10, 10)), 31, 7, Bilinear)
	require.NoError(t, err)
	assert.Equal(t, 31, out.Bounds().Dx())
	assert.Equal(t, 7, out.Bounds().Dy())
}

func TestResizeNearestKeepsQuadrants(t *testing.T) {
	out, err := Resize(quadImage(), 224, 224, Nearest)
	require.NoError(t, err)

	check := func(x, y int, want color.NRGBA) {
		t.Helper()
		got := color.NRGBAModel.Convert(out.At(x, y)).(color.NRGBA)
		assert.Equal(t, want, got, "pixel (%d,%d)", x, y)
	}
	for _, p := range []struct{ x, y int }{{0, 0}, {56, 56}, {111, 111}} {
		check(p.x, p.y, color.NRGBA{R: 255, A: 255})
		check(p.x+112, p.y, color.NRGBA{G: 255, A: 255})
		check(p.x, p.y+112, color.NRGBA{B: 255, A: 255})
		check(p.x+112, p.y+112, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	}
}

func TestResizeInvalidInput(t *testing.T) {
	_, err := Resize(image.NewRGBA(image.Rect(0, 0, 0, 10)), 224, 224, Bilinear)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = Resize(image.NewRGBA(image.Rect(0, 0, 10, 10)), 0, 224, Bilinear)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = Resize(nil, 224, 224, Bilinear)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = Resize(image.NewRGBA(image.Rect(0, 0, 10, 10)), 224, 224, Filter("box"))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestDecodeFormats(t *testing.T) {
	src := quadImage()

	pngData, err := PNGBytes(src)
	require.NoError(t, err)

	var jpegBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegBuf, src, nil))

	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, src))

	for want, data := range map[string][]byte{
		"png":  pngData,
		"jpeg": jpegBuf.Bytes(),
		"bmp":  bmpBuf.Bytes(),
	} {
		img, format, err := Decode(bytes.NewReader(data), 0)
		require.NoError(t, err, want)
		assert.Equal(t, want, format)
		assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode(strings.NewReader("not an image"), 0)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, _, err = DecodeFile(filepath.Join(t.TempDir(), "missing.png"), 0)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestWritePNGRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.png")
	require.NoError(t, WritePNG(path, quadImage()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	img, format, err := DecodeFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	r, g, b, _ := img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{0, 0xffff, 0}, []uint32{r, g, b})
}

// pngHeader returns a PNG that declares a w×h 8-bit grayscale image and
// stops after IHDR.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth; color type, compression, filter and interlace stay 0

	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	data := pngHeader(20000, 20000)
	require.Less(t, len(data), 100)

	_, _, err := Decode(bytes.NewReader(data), 64_000_000)
	require.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.ErrorIs(t, err, ErrTooManyPixels)
	assert.Contains(t, err.Error(), "20000x20000")
}

func TestDecodePixelLimit(t *testing.T) {
	data, err := PNGBytes(quadImage())
	require.NoError(t, err)

	_, _, err = Decode(bytes.NewReader(data), 3)
	assert.ErrorIs(t, err, ErrTooManyPixels)

	img, _, err := Decode(bytes.NewReader(data), 4)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())

	path := filepath.Join(t.TempDir(), "quad.png")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	_, _, err = DecodeFile(path, 3)
	assert.ErrorIs(t, err, ErrTooManyPixels)
}
