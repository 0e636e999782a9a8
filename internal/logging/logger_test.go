// Package logging tests for structured JSON logging.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeLines parses every JSON line written to buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line %q", line)
		out = append(out, entry)
	}
	return out
}

// TestInit_idempotent verifies Init is idempotent.
func TestInit_idempotent(t *testing.T) {
	global = nil
	once = *new(sync.Once)

	var buf1, buf2 bytes.Buffer
	Init(&buf1, LevelInfo)
	first := Get()

	Init(&buf2, LevelDebug)
	assert.Same(t, first, Get())
	assert.Equal(t, &buf1, Get().out)
}

// TestGet_default verifies default logger creation.
func TestGet_default(t *testing.T) {
	global = nil
	once = *new(sync.Once)

	logger := Get()
	require.NotNil(t, logger)
	assert.Equal(t, os.Stdout, logger.out)
	assert.Equal(t, LevelInfo, logger.minLevel)
}

func TestLogger_levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelInfo)

	logger.Debug("hidden")
	logger.Info("sync started", map[string]interface{}{"pending": 3})
	logger.Warn("queue entry failed")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "sync started", entries[0]["message"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.EqualValues(t, 3, entries[0]["pending"])
	assert.NotEmpty(t, entries[0]["timestamp"])
	assert.Equal(t, "warning", entries[1]["level"])
}

func TestLogger_ErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug)

	logger.ErrorWithCode("sync failed", "SYNC_FAILED", errors.New("boom"),
		map[string]interface{}{"entry": 4})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "SYNC_FAILED", entries[0]["code"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.EqualValues(t, 4, entries[0]["entry"])
}

func TestLogger_getContext_merges(t *testing.T) {
	logger := Discard()

	assert.Nil(t, logger.getContext())
	merged := logger.getContext(
		map[string]interface{}{"a": 1},
		map[string]interface{}{"b": 2, "a": 3},
	)
	assert.Equal(t, map[string]interface{}{"a": 3, "b": 2}, merged)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letsdonate.log")
	w := FileWriter(FileConfig{Path: path})
	defer w.Close()

	logger := New(w, LevelInfo)
	logger.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
