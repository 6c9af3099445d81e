// Package tensor holds the float tensors exchanged with the depth model and
// the conversions between them and images.
package tensor

import (
	"fmt"
	"slices"

	"github.com/Brownie44l1/depth-api/internal/errors"
)

// Model input and output geometry.
const (
	Size          = 224
	InputChannels = 3
)

var (
	InputShape  = Shape{1, Size, Size, InputChannels}
	OutputShape = Shape{1, Size, Size, 1}
)

// Shape lists tensor dimensions, outermost first.
type Shape []int

// Elements returns the product of the dimensions.
func (s Shape) Elements() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) Equal(o Shape) bool { return slices.Equal(s, o) }

// Int64 returns the shape in the form runtimes expect.
func (s Shape) Int64() []int64 {
	out := make([]int64, len(s))
	for i, d := range s {
		out[i] = int64(d)
	}
	return out
}

func (s Shape) String() string { return fmt.Sprint([]int(s)) }

// Tensor is a dense row-major float32 tensor, last axis innermost.
type Tensor struct {
	Shape Shape
	Data  []float32
}

// New allocates a zeroed tensor.
func New(shape Shape) *Tensor {
	return &Tensor{Shape: slices.Clone(shape), Data: make([]float32, shape.Elements())}
}

// FromData wraps data without copying. len(data) must match the shape.
func FromData(shape Shape, data []float32) (*Tensor, error) {
	if want := shape.Elements(); len(data) != want {
		return nil, errors.Newf(errors.ErrShapeMismatch, "tensor.FromData",
			"shape %v needs %d values, got %d", shape, want, len(data))
	}
	return &Tensor{Shape: slices.Clone(shape), Data: data}, nil
}

// Offset returns the flat index of idx. It panics on out-of-range indices.
func (t *Tensor) Offset(idx ...int) int {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(idx), len(t.Shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.Shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d (size %d)", v, i, t.Shape[i]))
		}
		off = off*t.Shape[i] + v
	}
	return off
}

func (t *Tensor) At(idx ...int) float32 { return t.Data[t.Offset(idx...)] }

func (t *Tensor) Set(v float32, idx ...int) { t.Data[t.Offset(idx...)] = v }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

func checkShape(op string, t *Tensor, want Shape) error {
	if t == nil {
		return errors.Newf(errors.ErrShapeMismatch, op, "nil tensor")
	}
	if !t.Shape.Equal(want) || len(t.Data) != want.Elements() {
		return errors.Newf(errors.ErrShapeMismatch, op, "got shape %v with %d values, want %v", t.Shape, len(t.Data), want)
	}
	return nil
}
