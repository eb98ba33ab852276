package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetWriter(&buf)
	SetLevel("INFO")
	SetFormat("text")
	t.Cleanup(func() {
		SetWriter(os.Stdout)
		SetLevel("INFO")
		SetFormat("text")
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := resetLogger(t)

	Debug("hidden %d", 1)
	Info("shown %d", 2)
	SetLevel("error")
	Warn("hidden too")
	Error("boom")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] shown 2")
	assert.Contains(t, out, "[ERROR] boom")
}

func TestJSONFormat(t *testing.T) {
	buf := resetLogger(t)
	SetFormat("json")

	Warn("retrying upload of %s", "/a.txt")

	var line map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "retrying upload of /a.txt", line["msg"])
	assert.NotEmpty(t, line["time"])
}

func TestSetOutputFile(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "odfs.log")

	require.NoError(t, SetOutput(path))
	Info("to file")
	SetWriter(os.Stdout)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(data)), "to file"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
