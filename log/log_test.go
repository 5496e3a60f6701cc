package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestLogger returns a Logger that writes JSON into buf.
func newTestLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return NewWithWriter(buf, "json", level)
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "raw: %s", buf.String())
	return entry
}

func TestLogger_Module(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf, slog.LevelDebug).Module("rollup").Info("matched")

	entry := decodeEntry(t, &buf)
	require.Equal(t, "rollup", entry["module"])
	require.Equal(t, "matched", entry["msg"])
}

func TestLogger_ModuleChain(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf, slog.LevelDebug).Module("shield").With("owner", "0xabc").Info("committed")

	entry := decodeEntry(t, &buf)
	require.Equal(t, "shield", entry["module"])
	require.Equal(t, "0xabc", entry["owner"])
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		level  slog.Level
		logFn  func(l *Logger)
		expect bool
	}{
		{slog.LevelInfo, func(l *Logger) { l.Debug("nope") }, false},
		{slog.LevelInfo, func(l *Logger) { l.Info("yes") }, true},
		{slog.LevelInfo, func(l *Logger) { l.Error("yes") }, true},
		{slog.LevelWarn, func(l *Logger) { l.Info("nope") }, false},
		{slog.LevelWarn, func(l *Logger) { l.Warn("yes") }, true},
		{slog.LevelDebug, func(l *Logger) { l.Debug("yes") }, true},
	}
	for i, tt := range tests {
		var buf bytes.Buffer
		tt.logFn(newTestLogger(&buf, tt.level))
		require.Equal(t, tt.expect, buf.Len() > 0, "case %d: %s", i, buf.String())
	}
}

func TestFromVerbosity(t *testing.T) {
	require.Equal(t, slog.LevelError, FromVerbosity(1))
	require.Equal(t, slog.LevelWarn, FromVerbosity(2))
	require.Equal(t, slog.LevelInfo, FromVerbosity(3))
	require.Equal(t, slog.LevelDebug, FromVerbosity(5))

	var buf bytes.Buffer
	NewWithWriter(&buf, "json", FromVerbosity(0)).Error("silenced")
	require.Zero(t, buf.Len())
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "text", slog.LevelInfo).Info("tick advanced", "tick", 7)
	require.True(t, strings.Contains(buf.String(), "tick=7"), buf.String())
}

func TestDefaultLogger(t *testing.T) {
	require.NotNil(t, Default())

	var buf bytes.Buffer
	SetDefault(newTestLogger(&buf, slog.LevelInfo))
	defer SetDefault(New(slog.LevelInfo))

	Info("test info", "k", "v")
	require.Contains(t, buf.String(), "test info")

	SetDefault(nil)
	require.NotNil(t, Default())
}
