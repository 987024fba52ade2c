package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_JSONWithContextFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Output: zapcore.AddSync(&buf)})
	require.NoError(t, err)

	ctx := ContextWithSubject(ContextWithRequestID(context.Background(), "req-1"), "u1")
	WithRequestID(ctx, log).Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "u1", line["subject"])
	assert.Contains(t, line, "timestamp")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "loud", Output: zapcore.AddSync(&buf)})
	require.NoError(t, err)

	log.Debug("hidden")
	assert.Zero(t, buf.Len())
	log.Info("shown")
	assert.NotZero(t, buf.Len())
}

func TestSubject(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, Subject(ctx))
	assert.Equal(t, ctx, ContextWithSubject(ctx, ""))
	assert.Equal(t, "u2", Subject(ContextWithSubject(ctx, "u2")))

	assert.Nil(t, WithRequestID(ctx, nil))
}
