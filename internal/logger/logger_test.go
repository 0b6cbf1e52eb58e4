package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "warn", Output: &buf})

	l.Info("hidden").Send()
	l.Warn("shown").Send()

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.Equal(t, "standardstore", lines[0]["service"])
}

func TestComponentLoggers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "debug", Output: &buf})

	l.ProcessorLogger("SET1").Info("processing").Send()
	l.IndexLogger("standards").Debug("upsert").Send()

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "processor", lines[0]["component"])
	assert.Equal(t, "SET1", lines[0]["set_id"])
	assert.Equal(t, "index", lines[1]["component"])
	assert.Equal(t, "standards", lines[1]["namespace"])
}

func TestLogProcessRunWarnsOnFailures(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "info", Output: &buf})

	l.ProcessorLogger("SET1").LogProcessRun(time.Millisecond, 2, 1, []string{"BAD"})
	l.RPCLogger("/standardstore.StandardStore/ProcessSet").LogRPCRequest(time.Millisecond, errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "processor", lines[0]["component"])
	assert.Equal(t, "SET1", lines[0]["set_id"])
	assert.Equal(t, []any{"BAD"}, lines[0]["failed_ids"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "grpc", lines[1]["component"])
	assert.Equal(t, "/standardstore.StandardStore/ProcessSet", lines[1]["method"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	require.NotNil(t, l)
	l.Info("discarded").Send()
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", ParseLevel("debug").String())
	assert.Equal(t, "info", ParseLevel("bogus").String())
}
