package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/logger"
)

func lastJSON(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf))
	log.Debug("hidden")
	log.Info("job submitted", logger.Operation("tasks.message"), logger.Error(nil))

	entry := lastJSON(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "job submitted", entry["msg"])
	assert.Equal(t, "tasks.message", entry["operation"])
	assert.NotContains(t, entry, "error")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	t.Run("text then json keeps the last format", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithTextFormatter(), logger.WithJSONFormatter()).Info("x")
		assert.Equal(t, "x", lastJSON(t, buf)["msg"])
	})

	t.Run("static attributes", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		logger.New(logger.WithOutput(buf), logger.WithAttr(logger.Component("worker"))).Warn("requeued")
		entry := lastJSON(t, buf)
		assert.Equal(t, "worker", entry["component"])
		assert.Equal(t, "WARN", entry["level"])
	})

	t.Run("handler options override level", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithHandlerOptions(&slog.HandlerOptions{Level: slog.LevelError}))
		log.Warn("dropped")
		assert.Empty(t, buf.String())
		log.Error("kept", logger.Error(errors.New("boom")))
		assert.Equal(t, "boom", lastJSON(t, buf)["error"])
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
	})
}

func TestNew_ContextAttributes(t *testing.T) {
	t.Parallel()

	type key struct{}

	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithOutput(buf),
		logger.WithContextValue("tenant", key{}),
		logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
			return logger.ClientID("alice"), ctx.Value(key{}) != nil
		}),
	)

	log.InfoContext(context.Background(), "anonymous")
	entry := lastJSON(t, buf)
	assert.NotContains(t, entry, "tenant")
	assert.NotContains(t, entry, "client_id")

	ctx := context.WithValue(context.Background(), key{}, "acme")
	log.With(logger.SessionID("s1")).WithGroup("chat").InfoContext(ctx, "joined")
	entry = lastJSON(t, buf)
	assert.Equal(t, "s1", entry["session_id"])
	chat, ok := entry["chat"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "acme", chat["tenant"])
	assert.Equal(t, "alice", chat["client_id"])
}
