package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func bufferLogger(buf *bytes.Buffer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.MessageKey = "msg"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(buf), zap.DebugLevel)
	return zap.New(core)
}

func TestFor_AttachesActionID(t *testing.T) {
	buf := &bytes.Buffer{}
	l := bufferLogger(buf)

	ctx := WithAction(context.Background(), "act-42")
	For(ctx, l).Info("approve submitted", zap.String("kind", "contribute"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "approve submitted", entry["msg"])
	assert.Equal(t, "act-42", entry[ActionIDKey])
	assert.Equal(t, "contribute", entry["kind"])
}

func TestFor_NoActionID(t *testing.T) {
	buf := &bytes.Buffer{}
	l := bufferLogger(buf)

	For(context.Background(), l).Warn("refresh failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, ok := entry[ActionIDKey]
	assert.False(t, ok)
}

func TestNamed_FallsBackToPackageLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := Log
	Log = bufferLogger(buf)
	defer func() { Log = prev }()

	Named(nil, "sale").Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sale", entry["logger"])
}

func TestActionID_Empty(t *testing.T) {
	assert.Equal(t, "", ActionID(context.Background()))
}
