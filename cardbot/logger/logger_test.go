package logger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func record(level slog.Level, msg string, attrs ...slog.Attr) slog.Record {
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(attrs...)
	return r
}

func TestEnabled_RespectsLevel(t *testing.T) {
	h := NewHandler(slog.LevelInfo)
	ctx := context.Background()

	assert.False(t, h.Enabled(ctx, slog.LevelDebug))
	assert.True(t, h.Enabled(ctx, slog.LevelInfo))
	assert.True(t, h.Enabled(ctx, slog.LevelError))
}

func TestGetLogType_MapsTypeAttr(t *testing.T) {
	cases := []struct {
		attr string
		want LogType
	}{
		{"eco", TypeEconomy},
		{"db", TypeDB},
		{"error", TypeError},
		{"sys", TypeSystem},
	}
	for _, tc := range cases {
		r := record(slog.LevelInfo, "msg", slog.String("type", tc.attr))
		assert.Equal(t, tc.want, getLogType(&r), tc.attr)
	}

	// Untagged records fall back to the system lane.
	r := record(slog.LevelInfo, "msg")
	assert.Equal(t, TypeSystem, getLogType(&r))
}

func TestShouldSkipLog_FiltersPoolChatter(t *testing.T) {
	skip := record(slog.LevelDebug, "Acquiring connection from pool")
	assert.True(t, shouldSkipLog(&skip))

	keep := record(slog.LevelInfo, "Catalog loaded")
	assert.False(t, shouldSkipLog(&keep))
}

func TestIsInternalAttr(t *testing.T) {
	assert.True(t, isInternalAttr("type"))
	assert.True(t, isInternalAttr("error"))
	assert.False(t, isInternalAttr("series"))
}

func TestGetErrorDetails(t *testing.T) {
	r := record(slog.LevelError, "Query failed", slog.Any("error", errors.New("boom")))
	assert.Equal(t, "boom", getErrorDetails(&r))
}

func TestGlobalHelpers_RenderThroughHandler(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)
	slog.SetDefault(slog.New(NewHandler(slog.LevelDebug)))

	LogOperation("open_pack", 3*time.Millisecond, nil)
	LogOperation("open_pack", 3*time.Millisecond, errors.New("no packs"))
	LogQuery("SELECT 1", time.Millisecond, nil)
	LogQuery("SELECT 1", time.Millisecond, errors.New("down"))
	LogSystem("ready", slog.Int("series", 2))
	LogError("bad state", errors.New("oops"), slog.String("trade_id", "TRAAAA"))
}
