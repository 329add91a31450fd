package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.TraceLevel, parseLevel("trace"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("bogus"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("json", &buf)
	l.Info().Str("host", "Alice").Msg("Match registered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Alice", entry["host"])
	assert.Equal(t, "Match registered", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewConsoleWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	l := New("console", &buf)
	l.Warn().Msg("queue full")

	assert.Contains(t, buf.String(), "queue full")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestOpenOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matchlist.log")

	w := openOutput(path)
	f, ok := w.(*os.File)
	require.True(t, ok)
	t.Cleanup(func() { _ = f.Close() })

	assert.Equal(t, path, f.Name())
	assert.Equal(t, os.Stdout, openOutput("stdout"))
	assert.Equal(t, os.Stderr, openOutput(""))
}
