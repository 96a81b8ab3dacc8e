package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
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
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestContextFieldsReachEveryLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Options{Level: "debug", Output: &buf, Service: "test"})

	ctx := l.WithContext(context.Background())
	ctx = SetComponent(SetRequestID(ctx, "req-1"), "api")
	ctx = SetSource(SetRunID(ctx, "run-1"), "synthetic")
	ctx = SetTable(SetStage(ctx, "LOADING"), "fact_ridership")
	ctx = WithField(ctx, FieldBatch, 2)

	CtxInfo(ctx, "loaded %d", 3)
	With(Fields{"kind": "ridership"}).
		WithStatus("SUCCEEDED").
		WithLoadCounts(90, 0, 10).
		WithCount(100).
		WithDuration(12).
		Error(ctx, "done")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	for _, m := range lines {
		assert.Equal(t, "test", m["service"])
		assert.Equal(t, "req-1", m[FieldRequestID])
		assert.Equal(t, "api", m[FieldComponent])
		assert.Equal(t, "run-1", m[FieldRunID])
		assert.Equal(t, "synthetic", m[FieldSource])
		assert.Equal(t, "LOADING", m[FieldStage])
		assert.Equal(t, "fact_ridership", m[FieldTable])
		assert.EqualValues(t, 2, m[FieldBatch])
		assert.NotEmpty(t, m["timestamp"])
	}
	assert.Equal(t, "loaded 3", lines[0]["message"])
	assert.Equal(t, "info", lines[0]["level"])

	last := lines[1]
	assert.Equal(t, "error", last["level"])
	assert.Equal(t, "SUCCEEDED", last[FieldStatus])
	assert.EqualValues(t, 90, last[FieldInserted])
	assert.EqualValues(t, 10, last[FieldFailed])
	assert.EqualValues(t, 100, last[FieldCount])
	assert.EqualValues(t, 12, last[FieldDurationMs])
}

func TestEntryFieldsDoNotLeakBetweenLines(t *testing.T) {
	var buf bytes.Buffer
	ctx := New(&Options{Output: &buf}).WithContext(context.Background())

	base := With(Fields{"kind": "delay"})
	base.WithCount(1).Info(ctx, "first")
	base.Info(ctx, "second")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.EqualValues(t, 1, lines[0][FieldCount])
	assert.NotContains(t, lines[1], FieldCount)
	assert.Equal(t, "transitdw", lines[1]["service"])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	prev := GetDefault()
	t.Cleanup(func() { SetDefaultLogger(prev) })

	var buf bytes.Buffer
	SetDefaultLogger(New(&Options{Output: &buf, Format: "text"}))
	SetDefaultLogger(nil)

	Info("plain %s", "line")
	CtxWarn(context.Background(), "no logger in context")
	out := buf.String()
	assert.Contains(t, out, "plain line")
	assert.Contains(t, out, "level=warning")
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	ctx := New(&Options{Level: "warn", Output: &buf}).WithContext(context.Background())
	With(nil).Debug(ctx, "hidden")
	CtxInfo(ctx, "hidden too")
	assert.Empty(t, buf.String())
}

func TestRotatedFileOutsideLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transitdw.log")
	l := New(&Options{
		Environment: "prod",
		File:        FileOptions{Path: path, Only: true, MaxSizeMB: 1},
	})
	l.Info("to file")
	require.NoError(t, Sync())
	assert.FileExists(t, path)
	require.NoError(t, Sync())
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_FILE_ONLY", "yes-please")
	t.Setenv("LOG_MAX_SIZE", "12")

	o := OptionsFromEnv()
	assert.Equal(t, "debug", o.Level)
	assert.Equal(t, "json", o.Format)
	assert.True(t, o.writesFile())
	assert.False(t, o.File.Only, "unparseable bool keeps the default")
	assert.Equal(t, 12, o.File.MaxSizeMB)
}
