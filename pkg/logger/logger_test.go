package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"DEBUG", DEBUG, true},
		{"info", INFO, true},
		{" warn ", WARN, true},
		{"WARNING", WARN, true},
		{"ERROR", ERROR, true},
		{"verbose", INFO, false},
		{"", INFO, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseLevel(%q) ok", tt.in)
	}
}

func TestSetFileWritesEntries(t *testing.T) {
	SetGlobalLogLevel(INFO)
	defer SetGlobalLogLevel(INFO)

	path := filepath.Join(t.TempDir(), "nested", "client.log")
	l := New("test")
	require.NoError(t, l.SetFile(path))

	l.Info("connected to %s", "127.0.0.1:6000")
	l.Debug("frame %d dropped", 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "connected to 127.0.0.1:6000")
	assert.Contains(t, string(data), `"logger":"test"`)
	assert.NotContains(t, string(data), "frame 3 dropped")
}

func TestGlobalLevelFiltersEveryLogger(t *testing.T) {
	defer SetGlobalLogLevel(INFO)

	path := filepath.Join(t.TempDir(), "levels.log")
	l := New("levels")
	require.NoError(t, l.SetFile(path))

	SetGlobalLogLevel(WARN)
	assert.Equal(t, WARN, GlobalLogLevel())
	l.Info("hidden")
	l.Warn("shown")

	SetGlobalLogLevel(DEBUG)
	l.Debug("debug now visible")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
	assert.Contains(t, string(data), "debug now visible")
}

func TestWithAddsFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "with.log")
	l := New("with")
	require.NoError(t, l.SetFile(path))

	l.With("room", "lobby1").Info("joined")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"room":"lobby1"`)
}
