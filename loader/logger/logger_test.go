package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewWritesJSONToConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	log, err := New(Options{Level: "debug", Format: "json", Dir: dir, Stdout: &console})
	require.NoError(t, err)

	log.With("provider", "deezer").Info("queued", "request", "abc")
	require.NoError(t, log.Close())

	assert.Contains(t, console.String(), `"provider":"deezer"`)
	assert.Contains(t, console.String(), `"msg":"queued"`)

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Local().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request":"abc"`)
}

func TestLevelFiltering(t *testing.T) {
	var console bytes.Buffer
	log, err := New(Options{Level: "warn", Stdout: &console})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, GormLevel("off"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel(""))
}

func TestGormLoggerSilent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	gl := NewGormLogger(base, gormlogger.Silent)

	gl.Trace(t.Context(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	gl.LogMode(gormlogger.Error).Warn(t.Context(), "ignored")

	assert.False(t, strings.Contains(buf.String(), "SELECT 1"))
	assert.Empty(t, buf.String())
}
