package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "vote-frame", cfg.App.Name)
	assert.Equal(t, "dir", cfg.Assets.Source)
	assert.Equal(t, []string{"png", "jpeg"}, cfg.Assets.Formats)
	assert.Equal(t, "catmullrom", cfg.Render.Kernel)
	assert.Equal(t, 500, cfg.Render.PreviewHeight)
	assert.InDelta(t, 0.4, cfg.Gesture.Sensitivity, 1e-12)
	assert.False(t, cfg.Session.ResetFrame)
	assert.Equal(t, "none", cfg.Telemetry.Exporter)
	assert.Empty(t, cfg.Metrics.Textfile)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("VOTEFRAME_APP_NAME", "bnp-vote-frame")
	t.Setenv("VOTEFRAME_GESTURE_SENSITIVITY", "0.5")
	t.Setenv("VOTEFRAME_SESSION_RESET_FRAME", "true")
	t.Setenv("VOTEFRAME_ASSETS_FORMATS", "webp,png, jpeg")
	t.Setenv("VOTEFRAME_RENDER_PREVIEW_HEIGHT", "300")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "bnp-vote-frame", cfg.App.Name)
	assert.InDelta(t, 0.5, cfg.Gesture.Sensitivity, 1e-12)
	assert.True(t, cfg.Session.ResetFrame)
	assert.Equal(t, []string{"webp", "png", "jpeg"}, cfg.Assets.Formats)
	assert.Equal(t, 300, cfg.Render.PreviewHeight)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voteframe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  name: campaign
assets:
  source: s3
  prefix: frames/2026
  formats: [jpeg]
storage:
  bucket: campaign-assets
render:
  kernel: bilinear
`), 0o600))

	t.Setenv("VOTEFRAME_RENDER_KERNEL", "nearest")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "campaign", cfg.App.Name)
	assert.Equal(t, "s3", cfg.Assets.Source)
	assert.Equal(t, "frames/2026", cfg.Assets.Prefix)
	assert.Equal(t, []string{"jpeg"}, cfg.Assets.Formats)
	assert.Equal(t, "campaign-assets", cfg.Storage.Bucket)
	assert.Equal(t, "nearest", cfg.Render.Kernel, "environment wins over the file")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Assets.Source = "ftp"
	assert.ErrorContains(t, bad.Validate(), "assets.source")

	bad = cfg
	bad.Gesture.Sensitivity = 0
	assert.ErrorContains(t, bad.Validate(), "gesture.sensitivity")

	bad = cfg
	bad.Assets.Source = "s3"
	bad.Storage.Bucket = ""
	assert.ErrorContains(t, bad.Validate(), "storage.bucket")
}
