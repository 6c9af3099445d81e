// Package modeltest provides an in-memory model.Engine for tests.
package modeltest

import (
	"sync/atomic"

	"github.com/Brownie44l1/depth-api/internal/model"
	"github.com/Brownie44l1/depth-api/internal/tensor"
)

// Engine is a model.Engine whose inference is a Go function.
type Engine struct {
	model.Lifecycle

	// InferFunc computes the output; nil means MeanDepth.
	InferFunc func(in *tensor.Tensor) (*tensor.Tensor, error)
	Sig       model.Signature

	calls atomic.Int64
}

// New returns a loaded fake engine.
func New(fn func(in *tensor.Tensor) (*tensor.Tensor, error)) *Engine {
	e := &Engine{
		InferFunc: fn,
		Sig: model.Signature{
			Backend: "fake",
			Path:    "fake.model",
			Input:   tensor.InputShape,
			Output:  tensor.OutputShape,
		},
	}
	e.MarkLoaded()
	return e
}

func (e *Engine) Infer(in *tensor.Tensor) (*tensor.Tensor, error) {
	if err := e.Ready("fake.Infer"); err != nil {
		return nil, err
	}
	if err := model.CheckInput(e.Sig, in); err != nil {
		return nil, err
	}
	e.calls.Add(1)
	if e.InferFunc == nil {
		return MeanDepth(in)
	}
	return e.InferFunc(in)
}

func (e *Engine) Signature() model.Signature { return e.Sig }

func (e *Engine) Close() error {
	e.MarkClosed()
	return nil
}

// Calls reports how many successful inferences ran.
func (e *Engine) Calls() int { return int(e.calls.Load()) }

// MeanDepth maps each pixel to the mean of its three channels.
func MeanDepth(in *tensor.Tensor) (*tensor.Tensor, error) {
	out := tensor.New(tensor.OutputShape)
	for i := range out.Data {
		px := in.Data[i*3 : i*3+3]
		out.Data[i] = (px[0] + px[1] + px[2]) / 3
	}
	return out, nil
}

// Constant returns an InferFunc producing a flat output.
func Constant(v float32) func(*tensor.Tensor) (*tensor.Tensor, error) {
	return func(*tensor.Tensor) (*tensor.Tensor, error) {
		out := tensor.New(tensor.OutputShape)
		for i := range out.Data {
			out.Data[i] = v
		}
		return out, nil
	}
}
