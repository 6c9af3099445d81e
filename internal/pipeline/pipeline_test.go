package pipeline

import (
	stderrors "errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Brownie44l1/depth-api/internal/errors"
	"github.com/Brownie44l1/depth-api/internal/imaging"
	"github.com/Brownie44l1/depth-api/internal/model/modeltest"
	"github.com/Brownie44l1/depth-api/internal/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quadImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func TestRunQuadrants(t *testing.T) {
	var captured *tensor.Tensor
	engine := modeltest.New(func(in *tensor.Tensor) (*tensor.Tensor, error) {
		captured = in.Clone()
		return modeltest.MeanDepth(in)
	})

	res, err := Run(quadImage(), engine, Options{Filter: imaging.Nearest})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, 1, engine.Calls())

	cells := []struct {
		r, c    int
		rgb     [3]float32
		depthAt image.Point
		gray    uint8
	}{
		{56, 56, [3]float32{1, 0, 0}, image.Pt(56, 56), 0},
		{56, 168, [3]float32{0, 1, 0}, image.Pt(168, 56), 0},
		{168, 56, [3]float32{0, 0, 1}, image.Pt(56, 168), 0},
		{168, 168, [3]float32{1, 1, 1}, image.Pt(168, 168), 255},
	}
	for _, cell := range cells {
		for ch := 0; ch < 3; ch++ {
			assert.Equal(t, cell.rgb[ch], captured.At(0, cell.r, cell.c, ch), "row %d col %d ch %d", cell.r, cell.c, ch)
		}
		assert.Equal(t, cell.gray, res.Depth.GrayAt(cell.depthAt.X, cell.depthAt.Y).Y)
	}

	assert.Equal(t, 2, res.SrcWidth)
	assert.Equal(t, 2, res.SrcHeight)
	assert.Equal(t, image.Rect(0, 0, 224, 224), res.Input.Bounds())
	assert.Equal(t, image.Rect(0, 0, 224, 224), res.Depth.Bounds())
	assert.InDelta(t, 1.0/3.0, res.Stats.Min, 1e-6)
	assert.InDelta(t, 1.0, res.Stats.Max, 1e-6)
	assert.False(t, res.Stats.Flat)
	assert.GreaterOrEqual(t, res.Timings.Total(), res.Timings.Infer)
}

func TestRunAnyAspectRatio(t *testing.T) {
	engine := modeltest.New(nil)
	for _, r := range []image.Rectangle{image.Rect(0, 0, 640, 120), image.Rect(0, 0, 3, 900)} {
		res, err := Run(image.NewRGBA(r), engine, Options{})
		require.NoError(t, err, r.String())
		assert.Equal(t, image.Rect(0, 0, 224, 224), res.Depth.Bounds())
	}
}

func TestRunFlatOutput(t *testing.T) {
	engine := modeltest.New(modeltest.Constant(3.5))

	res, err := Run(quadImage(), engine, Options{Decode: tensor.DecodeOptions{FlatValue: 128}})
	require.NoError(t, err)
	assert.True(t, res.Stats.Flat)
	assert.Equal(t, uint8(128), res.Depth.GrayAt(10, 200).Y)
}

func TestRunPropagatesErrors(t *testing.T) {
	_, err := Run(image.NewRGBA(image.Rect(0, 0, 0, 0)), modeltest.New(nil), Options{})
	require.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "resize:")

	failing := modeltest.New(func(*tensor.Tensor) (*tensor.Tensor, error) {
		return nil, errors.New(errors.ErrInference, "fake.Infer", stderrors.New("delegate crashed"))
	})
	_, err = Run(quadImage(), failing, Options{})
	require.ErrorIs(t, err, errors.ErrInference)
	assert.Contains(t, err.Error(), "infer:")

	wrongShape := modeltest.New(func(*tensor.Tensor) (*tensor.Tensor, error) {
		return tensor.New(tensor.Shape{1, 112, 112, 1}), nil
	})
	_, err = Run(quadImage(), wrongShape, Options{})
	require.ErrorIs(t, err, errors.ErrShapeMismatch)
	assert.Contains(t, err.Error(), "decode:")

	closed := modeltest.New(nil)
	require.NoError(t, closed.Close())
	_, err = Run(quadImage(), closed, Options{})
	assert.ErrorIs(t, err, errors.ErrInference)
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.png")
	require.NoError(t, imaging.WritePNG(path, quadImage()))

	res, err := RunFile(path, modeltest.New(nil), Options{Filter: imaging.Nearest})
	require.NoError(t, err)
	assert.Equal(t, uint8(255), res.Depth.GrayAt(200, 200).Y)

	_, err = RunFile(filepath.Join(t.TempDir(), "missing.png"), modeltest.New(nil), Options{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	engine := modeltest.New(nil)
	_, err = RunFile(path, engine, Options{MaxPixels: 3})
	require.ErrorIs(t, err, imaging.ErrTooManyPixels)
	assert.Contains(t, err.Error(), "decode image:")
	assert.Zero(t, engine.Calls())
}
