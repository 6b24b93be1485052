package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogger_InfoWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZapLogger(Config{AppName: "weather-etl", AppEnv: "test"}, &buf)

	l.Info("run finished", map[string]any{"city": "Portland"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "run finished", entries[0]["msg"])
	assert.Equal(t, "Portland", entries[0]["city"])
	assert.Equal(t, "weather-etl", entries[0]["app_name"])
	assert.Equal(t, "test", entries[0]["app_env"])
	assert.Contains(t, entries[0]["caller_file"], "zaplogger_test.go")
}

func TestLogger_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewZapLogger(Config{AppName: "weather-etl", Level: "warn"}, &buf)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warning("shown")
	l.Error(errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "shown", entries[0]["msg"])
	assert.Equal(t, "boom", entries[1]["error"])
}

func TestLogger_FanOutToWriters(t *testing.T) {
	var a, b bytes.Buffer
	l := NewZapLogger(Config{AppName: "weather-etl"}, &a, &b)

	l.Info("hello")

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, b.String(), "hello")
}
