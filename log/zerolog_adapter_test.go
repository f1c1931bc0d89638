package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithWriter(&buf, zerolog.DebugLevel, false).With(map[string]interface{}{"component": "sweeper"})

	logger.Error(context.Background(), "sweep failed", errors.New("timeout"), map[string]interface{}{"kind": "password_recovery"})

	entry := decodeLast(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "sweep failed", entry["message"])
	assert.Equal(t, "timeout", entry["error"])
	assert.Equal(t, "sweeper", entry["component"])
	assert.Equal(t, "password_recovery", entry["kind"])
	assert.NotContains(t, entry, "trace_id")
}

func TestZerologAdapter_TraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapterWithWriter(&buf, zerolog.InfoLevel, false)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.Info(ctx, "code issued")
	entry := decodeLast(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])

	buf.Reset()
	logger.Debug(ctx, "filtered")
	assert.Zero(t, buf.Len())
}
