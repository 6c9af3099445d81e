// Package onnx runs depth models through ONNX Runtime.
package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/depth-api/internal/errors"
	"github.com/Brownie44l1/depth-api/internal/logger"
	"github.com/Brownie44l1/depth-api/internal/model"
	"github.com/Brownie44l1/depth-api/internal/tensor"
)

const backend = "onnx"

func init() {
	model.Register(".onnx", Open)
}

// Engine is an ONNX Runtime session with pre-allocated input and output
// tensors.
type Engine struct {
	model.Lifecycle

	mapping      *model.Mapping
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	metadata     model.Metadata
	sig          model.Signature
	env          bool
}

// Open creates a session from the mapped artifact. Tensor names and shapes
// come from the metadata sidecar.
func Open(m *model.Mapping, opts model.Options) (model.Engine, error) {
	e := &Engine{mapping: m}
	if err := e.load(opts); err != nil {
		e.MarkFailed()
		e.release()
		return nil, err
	}
	e.MarkLoaded()
	return e, nil
}

func (e *Engine) load(opts model.Options) error {
	metadata, metaPath, err := model.LoadMetadata(e.mapping.Path(), opts.MetadataPath)
	if err != nil {
		return errors.New(errors.ErrModelLoad, "onnx.Open", err)
	}
	e.metadata = metadata

	inShape, outShape := metadata.Shapes()
	e.sig = model.Signature{Backend: backend, Path: e.mapping.Path(), Input: inShape, Output: outShape}
	if err := model.CheckSignature(e.sig); err != nil {
		return err
	}

	if err := acquireEnvironment(opts.SharedLibrary); err != nil {
		return errors.New(errors.ErrModelLoad, "onnx.Open", fmt.Errorf("failed to initialize ONNX environment: %w", err))
	}
	e.env = true

	e.inputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return errors.New(errors.ErrModelLoad, "onnx.Open", fmt.Errorf("failed to create input tensor: %w", err))
	}
	e.outputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		return errors.New(errors.ErrModelLoad, "onnx.Open", fmt.Errorf("failed to create output tensor: %w", err))
	}

	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		return errors.New(errors.ErrModelLoad, "onnx.Open", fmt.Errorf("failed to create session options: %w", err))
	}
	defer sessionOptions.Destroy()
	if err := sessionOptions.SetIntraOpNumThreads(opts.ThreadCount()); err != nil {
		return errors.New(errors.ErrModelLoad, "onnx.Open", fmt.Errorf("failed to set thread count: %w", err))
	}

	e.session, err = ort.NewAdvancedSessionWithONNXData(e.mapping.Bytes(),
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{e.inputTensor}, []ort.ArbitraryTensor{e.outputTensor},
		sessionOptions)
	if err != nil {
		return errors.New(errors.ErrModelLoad, "onnx.Open", fmt.Errorf("failed to create ONNX session: %w", err))
	}

	model.GetLogger().Module(backend).Debug("session ready",
		logger.String("metadata", metaPath),
		logger.String("input_name", metadata.InputName),
		logger.String("output_name", metadata.OutputName),
		logger.Int("threads", opts.ThreadCount()))
	return nil
}

// Infer copies in into the session input, runs the session and copies the
// output out.
func (e *Engine) Infer(in *tensor.Tensor) (*tensor.Tensor, error) {
	if err := e.Ready("onnx.Infer"); err != nil {
		return nil, err
	}
	if err := model.CheckInput(e.sig, in); err != nil {
		return nil, err
	}

	copy(e.inputTensor.GetData(), in.Data)

	if err := e.session.Run(); err != nil {
		return nil, errors.New(errors.ErrInference, "onnx.Infer", err)
	}

	result := tensor.New(e.sig.Output)
	if n := copy(result.Data, e.outputTensor.GetData()); n != len(result.Data) {
		return nil, errors.Newf(errors.ErrInference, "onnx.Infer", "model produced %d values, want %d", n, len(result.Data))
	}
	return result, nil
}

func (e *Engine) Signature() model.Signature { return e.sig }

// Metadata returns the sidecar the session was built from.
func (e *Engine) Metadata() model.Metadata { return e.metadata }

// Close destroys the session and its tensors, drops the environment
// reference and unmaps the model.
func (e *Engine) Close() error {
	if !e.MarkClosed() {
		return nil
	}
	return e.release()
}

func (e *Engine) release() error {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	if e.env {
		releaseEnvironment()
		e.env = false
	}
	if err := e.mapping.Close(); err != nil {
		return fmt.Errorf("unmap model: %w", err)
	}
	return nil
}

// The ONNX Runtime environment is process-wide; it is created by the first
// engine and destroyed with the last one.
var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(sharedLibrary string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if sharedLibrary != "" {
			ort.SetSharedLibraryPath(sharedLibrary)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return err
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	envRefs--
	if envRefs == 0 {
		ort.DestroyEnvironment()
	}
}
