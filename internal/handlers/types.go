package handlers

// PredictionRequest carries a raw InputShape tensor, flattened NHWC.
type PredictionRequest struct {
	Image []float32 `json:"image"`
}

// PredictionResponse carries the raw model output, flattened.
type PredictionResponse struct {
	Shape []int     `json:"shape"`
	Depth []float32 `json:"depth"`
	Min   float32   `json:"min"`
	Max   float32   `json:"max"`
	Flat  bool      `json:"flat"`
}

// DepthResponse is the JSON form of /predict/image. PNG fields are base64.
type DepthResponse struct {
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	SrcWidth  int              `json:"src_width"`
	SrcHeight int              `json:"src_height"`
	Format    string           `json:"format"`
	Min       float32          `json:"min"`
	Max       float32          `json:"max"`
	Flat      bool             `json:"flat"`
	DepthPNG  []byte           `json:"depth_png"`
	InputPNG  []byte           `json:"input_png"`
	TimingsMS map[string]int64 `json:"timings_ms"`
}

// HealthResponse reports the loaded model.
type HealthResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Backend string `json:"backend"`
	State   string `json:"state"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
