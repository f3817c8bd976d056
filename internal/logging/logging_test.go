package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info")

	l.Info("blob stored", "key", "pdfs/a.pdf", "size", 12)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "blob stored", entry["msg"])
	assert.Equal(t, "pdfs/a.pdf", entry["key"])
	assert.Equal(t, "info", entry["level"])
	assert.NotEmpty(t, entry["time"])
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")

	l.Info("dropped")
	assert.Empty(t, buf.String())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "loud")

	l.Debug("dropped")
	assert.Empty(t, buf.String())
	l.Info("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestSetDefault(t *testing.T) {
	orig := L()
	defer SetDefault(orig)

	var buf bytes.Buffer
	SetDefault(New(&buf, "info"))
	Component("storage").Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "storage", entry["component"])

	SetDefault(nil)
	assert.NotNil(t, L())
}
