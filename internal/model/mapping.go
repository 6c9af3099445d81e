package model

import (
	"os"
	"sync"

	"github.com/Brownie44l1/depth-api/internal/errors"
)

// Mapping is a read-only view of a model artifact. The bytes are valid until
// Close.
type Mapping struct {
	path    string
	data    []byte
	release func([]byte) error

	once sync.Once
	err  error
}

// Map opens path and maps its whole content read-only.
func Map(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.ErrModelLoad, "model.Map", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.New(errors.ErrModelLoad, "model.Map", err)
	}
	if info.IsDir() {
		return nil, errors.Newf(errors.ErrModelLoad, "model.Map", "%s is a directory", path)
	}
	if info.Size() == 0 {
		return nil, errors.Newf(errors.ErrModelLoad, "model.Map", "%s is empty", path)
	}

	data, release, err := mapFile(f, info.Size())
	if err != nil {
		return nil, errors.New(errors.ErrModelLoad, "model.Map", err)
	}
	return &Mapping{path: path, data: data, release: release}, nil
}

// Bytes returns the mapped content. It must not be modified or used after
// Close.
func (m *Mapping) Bytes() []byte { return m.data }

func (m *Mapping) Len() int { return len(m.data) }

func (m *Mapping) Path() string { return m.path }

// Close releases the mapping. Later calls return the first result.
func (m *Mapping) Close() error {
	m.once.Do(func() {
		if m.release != nil {
			m.err = m.release(m.data)
		}
		m.data = nil
	})
	return m.err
}
