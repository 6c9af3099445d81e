package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/depth-api/internal/tensor"
)

// Metadata is the optional JSON sidecar shipped next to a model.
type Metadata struct {
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	ImageSize   int     `json:"image_size"`
	InputName   string  `json:"input_name,omitempty"`
	OutputName  string  `json:"output_name,omitempty"`
}

// DefaultMetadata describes the fixed depth contract.
func DefaultMetadata() Metadata {
	return Metadata{
		InputShape:  tensor.InputShape.Int64(),
		OutputShape: tensor.OutputShape.Int64(),
		ImageSize:   tensor.Size,
		InputName:   "input",
		OutputName:  "output",
	}
}

// LoadMetadata reads the sidecar for modelPath. An explicit path must exist;
// otherwise "<model>.json" and "model_metadata.json" in the model's directory
// are tried, and DefaultMetadata is returned when neither exists. Missing
// fields are filled from DefaultMetadata.
func LoadMetadata(modelPath, explicit string) (Metadata, string, error) {
	candidates := []string{explicit}
	if explicit == "" {
		candidates = []string{
			strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".json",
			filepath.Join(filepath.Dir(modelPath), "model_metadata.json"),
		}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) && explicit == "" {
			continue
		}
		if err != nil {
			return Metadata{}, "", fmt.Errorf("failed to read metadata: %w", err)
		}

		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return Metadata{}, "", fmt.Errorf("failed to parse metadata %s: %w", path, err)
		}
		meta.fillDefaults()
		return meta, path, nil
	}
	return DefaultMetadata(), "", nil
}

func (m *Metadata) fillDefaults() {
	def := DefaultMetadata()
	if len(m.InputShape) == 0 {
		m.InputShape = def.InputShape
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = def.OutputShape
	}
	if m.ImageSize == 0 {
		m.ImageSize = def.ImageSize
	}
	if m.InputName == "" {
		m.InputName = def.InputName
	}
	if m.OutputName == "" {
		m.OutputName = def.OutputName
	}
}

// Shapes converts the metadata shapes.
func (m Metadata) Shapes() (in, out tensor.Shape) {
	return toShape(m.InputShape), toShape(m.OutputShape)
}

func toShape(dims []int64) tensor.Shape {
	s := make(tensor.Shape, len(dims))
	for i, d := range dims {
		s[i] = int(d)
	}
	return s
}
