package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleScopingAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Level: LogLevelDebug, JSON: true}).Module("model").Module("tflite")

	log.With(String("path", "m.tflite")).Info("model loaded",
		Int("threads", 4),
		Duration("elapsed", 2*time.Millisecond),
		Error(errors.New("none")))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "model loaded", rec["msg"])
	assert.Equal(t, "model.tflite", rec["module"])
	assert.Equal(t, "m.tflite", rec["path"])
	assert.EqualValues(t, 4, rec["threads"])
	assert.Equal(t, "none", rec["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Level: LogLevelWarn})

	log.Debug("hidden")
	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetGlobal(t *testing.T) {
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	var buf bytes.Buffer
	SetGlobal(New(&buf, Options{Level: LogLevelInfo}))
	Global().Module("pipeline").Info("hello")

	assert.Contains(t, buf.String(), "module=pipeline")
}
