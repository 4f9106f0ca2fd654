package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "off", cfg.Detector.ChromaEnhancement)
	assert.Equal(t, 120.0, cfg.Offline.AssumedFPS)
}

func TestLoadMissingPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().BallLock, cfg.BallLock)

	cfg2, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Detector, cfg2.Detector)
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launchcore.toml")
	contents := `
[ball_lock]
min_corners = 9

[detector]
chroma_enhancement = "bilateral"
max_corners = 256

[offline]
video_path = "shot1.mp4"
assumed_fps = 240

[telemetry]
control_addr = "127.0.0.1:39539"
enabled_phases = ["shot", "authority"]
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.BallLock.MinCorners)
	assert.Equal(t, "bilateral", cfg.Detector.ChromaEnhancement)
	assert.Equal(t, 256, cfg.Detector.MaxCorners)
	assert.Equal(t, "shot1.mp4", cfg.Offline.VideoPath)
	assert.Equal(t, 240.0, cfg.Offline.AssumedFPS)
	assert.Equal(t, "127.0.0.1:39539", cfg.Telemetry.ControlAddr)
	assert.Equal(t, []string{"shot", "authority"}, cfg.Telemetry.EnabledPhases)
}

func TestValidateRejectsBadChromaEnhancement(t *testing.T) {
	cfg := Default()
	cfg.Detector.ChromaEnhancement = "grayscale"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveMinCorners(t *testing.T) {
	cfg := Default()
	cfg.BallLock.MinCorners = 0
	assert.Error(t, cfg.Validate())
}

func TestVersionBumpsOnlyWhenClusterRelevantFieldsChange(t *testing.T) {
	cfg := Default()
	v0 := cfg.Version()

	cfg.Offline.AssumedFPS = 60
	require.NoError(t, cfg.Validate())
	assert.Equal(t, v0, cfg.Version(), "non-clustering field must not bump version")

	cfg.BallLock.MinCorners = 10
	require.NoError(t, cfg.Validate())
	assert.Equal(t, v0+1, cfg.Version(), "ball_lock change must bump version")

	require.NoError(t, cfg.Validate())
	assert.Equal(t, v0+1, cfg.Version(), "re-validating unchanged config must not bump version again")

	cfg.Detector.MaxCorners = 999
	require.NoError(t, cfg.Validate())
	assert.Equal(t, v0+2, cfg.Version(), "detector change must also bump version")
}

func TestVisionConversions(t *testing.T) {
	cfg := Default()

	bl := cfg.VisionBallLock()
	assert.Equal(t, cfg.BallLock.MinCorners, bl.MinCornerCount)

	det := cfg.VisionDetector()
	assert.Equal(t, cfg.Detector.MaxCorners, det.MaxCorners)

	mo := cfg.VisionMotion()
	assert.Equal(t, cfg.Motion.MinMotionPxS, mo.MinMotionPxS)

	rs := cfg.VisionRS()
	assert.Equal(t, cfg.RS.MinRowSupport, rs.MinRowSupport)

	im := cfg.VisionImpulse()
	assert.Equal(t, cfg.Impulse.MaxImpulseFrames, im.MaxImpulseFrames)

	au := cfg.VisionAuthority()
	assert.Equal(t, cfg.Authority.CadenceMinFPS, au.CadenceMinFPS)

	lc := cfg.VisionLifecycle()
	assert.Equal(t, cfg.Lifecycle.MinValidShotSpeedPxS, lc.MinValidShotSpeedPxS)
}
