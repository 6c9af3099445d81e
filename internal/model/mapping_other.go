//go:build !unix

package model

import (
	"io"
	"os"
)

// mapFile reads the artifact into memory where mmap is unavailable.
func mapFile(f *os.File, size int64) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}
