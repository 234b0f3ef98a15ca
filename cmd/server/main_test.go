package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CHILLBOT_CONFIG", "")
	t.Setenv("PORT", "")
	cfg, err := loadConfig("/srv/chillbot")
	require.NoError(t, err)
	assert.Equal(t, "/srv/chillbot/models/model.onnx", cfg.Model.Path)
	assert.Equal(t, "/srv/chillbot/models/labels.txt", cfg.Model.LabelsPath)
	assert.Equal(t, "push", cfg.Capture.Kind)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadConfig_FileForcesPushCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chillbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  path: m.onnx
  labels_path: l.txt
capture:
  kind: screen
trigger:
  keyboard: true
`), 0o644))
	t.Setenv("CHILLBOT_CONFIG", path)
	t.Setenv("PORT", "9000")

	cfg, err := loadConfig("/unused")
	require.NoError(t, err)
	assert.Equal(t, "m.onnx", cfg.Model.Path)
	assert.Equal(t, "push", cfg.Capture.Kind)
	assert.False(t, cfg.Trigger.Keyboard)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
}
