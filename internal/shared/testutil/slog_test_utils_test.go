package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		assert.Equal(t, 2, handler.Count())
		assert.True(t, handler.ContainsMessage("test message"))
		assert.True(t, handler.ContainsAttr("key", "value"))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelWarn), 1)
		AssertNoErrors(t, handler)
	})

	t.Run("derived loggers share the buffer and keep attrs", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With(slog.String("component", "cleaner")).Info("cleaned")

		AssertLogContains(t, handler, slog.LevelInfo, "cleaned")
		assert.True(t, handler.ContainsAttr("component", "cleaner"))
	})
}
