// Package tflite runs depth models in the TensorFlow Lite format.
package tflite

import (
	"fmt"

	tflite "github.com/tphakala/go-tflite"

	"github.com/Brownie44l1/depth-api/internal/errors"
	"github.com/Brownie44l1/depth-api/internal/logger"
	"github.com/Brownie44l1/depth-api/internal/model"
	"github.com/Brownie44l1/depth-api/internal/tensor"
)

const backend = "tflite"

func init() {
	model.Register(".tflite", Open)
}

// Engine is a TensorFlow Lite interpreter over a memory-mapped model.
type Engine struct {
	model.Lifecycle

	mapping *model.Mapping
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter
	sig     model.Signature
}

// Open builds an interpreter over the mapped artifact and checks that its
// tensors match the depth contract.
func Open(m *model.Mapping, opts model.Options) (model.Engine, error) {
	log := model.GetLogger().Module(backend)
	e := &Engine{mapping: m}

	if err := e.load(opts, log); err != nil {
		e.MarkFailed()
		e.release()
		return nil, err
	}
	e.MarkLoaded()
	return e, nil
}

func (e *Engine) load(opts model.Options, log logger.Logger) error {
	e.model = tflite.NewModel(e.mapping.Bytes())
	if e.model == nil {
		return errors.Newf(errors.ErrModelLoad, "tflite.Open", "cannot parse TensorFlow Lite model %s", e.mapping.Path())
	}

	threads := opts.ThreadCount()
	e.options = tflite.NewInterpreterOptions()
	e.options.SetNumThread(threads)
	e.options.SetErrorReporter(func(msg string, _ any) {
		log.Error("TFLite error", logger.String("message", msg))
	}, nil)

	e.interp = tflite.NewInterpreter(e.model, e.options)
	if e.interp == nil {
		return errors.Newf(errors.ErrModelLoad, "tflite.Open", "cannot create interpreter")
	}
	if status := e.interp.AllocateTensors(); status != tflite.OK {
		return errors.Newf(errors.ErrModelLoad, "tflite.Open", "tensor allocation failed: %v", status)
	}

	if n := e.interp.GetInputTensorCount(); n != 1 {
		return errors.Newf(errors.ErrModelLoad, "tflite.Open", "model has %d inputs, want 1", n)
	}
	in := e.interp.GetInputTensor(0)
	out := e.interp.GetOutputTensor(0)
	if in == nil || out == nil {
		return errors.Newf(errors.ErrModelLoad, "tflite.Open", "cannot get model tensors")
	}
	if in.Type() != tflite.Float32 || out.Type() != tflite.Float32 {
		return errors.Newf(errors.ErrModelLoad, "tflite.Open",
			"model tensors are %v -> %v, want float32", in.Type(), out.Type())
	}

	e.sig = model.Signature{
		Backend: backend,
		Path:    e.mapping.Path(),
		Input:   shapeOf(in),
		Output:  shapeOf(out),
	}
	if err := model.CheckSignature(e.sig); err != nil {
		return err
	}

	log.Debug("interpreter ready",
		logger.String("input_name", in.Name()),
		logger.String("output_name", out.Name()),
		logger.Int("threads", threads))
	return nil
}

func shapeOf(t *tflite.Tensor) tensor.Shape {
	s := make(tensor.Shape, t.NumDims())
	for i := range s {
		s[i] = t.Dim(i)
	}
	return s
}

// Infer copies in into the interpreter, invokes it once and copies the
// output out.
func (e *Engine) Infer(in *tensor.Tensor) (*tensor.Tensor, error) {
	if err := e.Ready("tflite.Infer"); err != nil {
		return nil, err
	}
	if err := model.CheckInput(e.sig, in); err != nil {
		return nil, err
	}

	input := e.interp.GetInputTensor(0)
	if input == nil {
		return nil, errors.Newf(errors.ErrInference, "tflite.Infer", "cannot get input tensor")
	}
	if n := copy(input.Float32s(), in.Data); n != len(in.Data) {
		return nil, errors.Newf(errors.ErrInference, "tflite.Infer", "copied %d of %d input values", n, len(in.Data))
	}

	if status := e.interp.Invoke(); status != tflite.OK {
		return nil, errors.Newf(errors.ErrInference, "tflite.Infer", "tensor invoke failed: %v", status)
	}

	output := e.interp.GetOutputTensor(0)
	if output == nil {
		return nil, errors.Newf(errors.ErrInference, "tflite.Infer", "cannot get output tensor")
	}
	result := tensor.New(e.sig.Output)
	if n := copy(result.Data, output.Float32s()); n != len(result.Data) {
		return nil, errors.Newf(errors.ErrInference, "tflite.Infer", "model produced %d values, want %d", n, len(result.Data))
	}
	return result, nil
}

func (e *Engine) Signature() model.Signature { return e.sig }

// Close deletes the interpreter and unmaps the model.
func (e *Engine) Close() error {
	if !e.MarkClosed() {
		return nil
	}
	return e.release()
}

func (e *Engine) release() error {
	if e.interp != nil {
		e.interp.Delete()
		e.interp = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	if err := e.mapping.Close(); err != nil {
		return fmt.Errorf("unmap model: %w", err)
	}
	return nil
}
