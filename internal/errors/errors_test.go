package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	t.Parallel()

	err := New(ErrModelLoad, "mmap", fs.ErrNotExist)

	assert.ErrorIs(t, err, ErrModelLoad)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrInference)
	assert.Equal(t, "mmap: model load failed: file does not exist", err.Error())
}

func TestKindSurvivesWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("encode: %w", Newf(ErrShapeMismatch, "tensor.Encode", "got %dx%d", 100, 100))

	assert.Equal(t, ErrShapeMismatch, KindOf(err))
	var e *Error
	assert.True(t, As(err, &e))
	assert.Equal(t, "tensor.Encode", e.Op)
}

func TestKindOfUnknown(t *testing.T) {
	t.Parallel()

	assert.Nil(t, KindOf(stderrors.New("boom")))
	assert.Nil(t, KindOf(nil))
}

func TestErrorWithoutCause(t *testing.T) {
	t.Parallel()

	err := New(ErrInference, "engine.Infer", nil)
	assert.Equal(t, "engine.Infer: inference failed", err.Error())
	assert.ErrorIs(t, err, ErrInference)
}
