// Package model defines the inference engine contract shared by the model
// backends and the plumbing they have in common: artifact mapping,
// metadata, load state and backend registration.
package model

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Brownie44l1/depth-api/internal/errors"
	"github.com/Brownie44l1/depth-api/internal/logger"
	"github.com/Brownie44l1/depth-api/internal/tensor"
)

// Engine runs a loaded depth model. Implementations are not safe for
// concurrent Infer calls.
type Engine interface {
	// Infer runs the model once on an InputShape tensor and returns a new
	// OutputShape tensor.
	Infer(in *tensor.Tensor) (*tensor.Tensor, error)
	Signature() Signature
	State() State
	// Close releases the runtime and the mapped artifact. It is safe to
	// call more than once.
	Close() error
}

// Signature describes a loaded model.
type Signature struct {
	Backend string
	Path    string
	Input   tensor.Shape
	Output  tensor.Shape
}

// Options configures backend loading.
type Options struct {
	// Threads for the runtime; 0 uses every CPU.
	Threads int
	// MetadataPath overrides the sidecar lookup.
	MetadataPath string
	// SharedLibrary is the runtime library path for backends that load one
	// at run time (ONNX Runtime).
	SharedLibrary string
}

// ThreadCount resolves Threads against the machine.
func (o Options) ThreadCount() int {
	n := runtime.NumCPU()
	if o.Threads <= 0 || o.Threads > n {
		return n
	}
	return o.Threads
}

// Opener builds an engine from a mapped artifact. On success the engine owns
// the mapping; on failure Open closes it.
type Opener func(m *Mapping, opts Options) (Engine, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Opener{}
)

// Register makes a backend available for files with the given extension.
// Backends call it from init.
func Register(ext string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[strings.ToLower(ext)] = open
}

// Backends returns the registered extensions in order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	exts := make([]string, 0, len(backends))
	for ext := range backends {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open maps the artifact at path read-only and loads it with the backend
// registered for its extension.
func Open(path string, opts Options) (Engine, error) {
	log := GetLogger()
	ext := strings.ToLower(filepath.Ext(path))

	backendsMu.RLock()
	open, ok := backends[ext]
	backendsMu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrModelLoad, "model.Open",
			"no backend for %q (registered: %s)", ext, strings.Join(Backends(), ", "))
	}

	start := time.Now()
	m, err := Map(path)
	if err != nil {
		return nil, err
	}

	engine, err := open(m, opts)
	if err != nil {
		_ = m.Close()
		if errors.KindOf(err) == nil {
			err = errors.New(errors.ErrModelLoad, "model.Open", err)
		}
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}

	sig := engine.Signature()
	log.Info("model loaded",
		logger.String("path", path),
		logger.String("backend", sig.Backend),
		logger.String("input", sig.Input.String()),
		logger.String("output", sig.Output.String()),
		logger.Int("size_kb", m.Len()/1024),
		logger.Duration("elapsed", time.Since(start)))
	return engine, nil
}

// CheckInput validates a tensor against the model's input signature.
func CheckInput(sig Signature, in *tensor.Tensor) error {
	if in == nil {
		return errors.Newf(errors.ErrInference, sig.Backend+".Infer", "nil input")
	}
	if !in.Shape.Equal(sig.Input) || len(in.Data) != sig.Input.Elements() {
		return errors.Newf(errors.ErrInference, sig.Backend+".Infer",
			"input shape %v does not match model input %v", in.Shape, sig.Input)
	}
	return nil
}

// CheckSignature verifies that a model's tensors match the fixed depth
// contract.
func CheckSignature(sig Signature) error {
	if !sig.Input.Equal(tensor.InputShape) || !sig.Output.Equal(tensor.OutputShape) {
		return errors.Newf(errors.ErrModelLoad, sig.Backend+".Open",
			"model maps %v to %v, want %v to %v", sig.Input, sig.Output, tensor.InputShape, tensor.OutputShape)
	}
	return nil
}

// GetLogger returns the logger for the model packages.
func GetLogger() logger.Logger {
	return logger.Global().Module("model")
}
