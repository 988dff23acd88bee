package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelFatal},
		{"", LevelInfo},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept %d", 1)
	entry := decodeLine(t, &buf)
	assert.Equal(t, "kept 1", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "query-router", entry["service"])
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf, Service: "test"})

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	l.WithContext(ctx).
		WithField("ticket_id", "EML-H-1").
		WithFields(map[string]any{"team": "KYC Team"}).
		WithError(errors.New("boom")).
		WithDuration(1500 * time.Microsecond).
		Info("done")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "EML-H-1", entry["ticket_id"])
	assert.Equal(t, "KYC Team", entry["team"])
	assert.Equal(t, "boom", entry["error"])
	assert.InDelta(t, 1.5, entry["duration_ms"], 0.0001)
	assert.Equal(t, "test", entry["service"])
}

func TestLogger_WithErrorNil(t *testing.T) {
	l := New(Config{Output: &bytes.Buffer{}})
	assert.Same(t, l, l.WithError(nil))
}
