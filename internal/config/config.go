// Package config provides TOML configuration loading for the launchcore
// vision engine. The schema mirrors github.com/MiFaceDEV/miface's
// internal/config package (Default/Load/Validate over a TOML-backed
// struct), retargeted to the spec's own configuration objects: ball-lock,
// detector, motion, rolling-shutter, impulse, authority, and lifecycle
// tunables, plus an Offline section (video-file source) and a Telemetry
// section (ring/logging/control-socket settings) that have no analog in
// the teacher but are needed to run the pipeline standalone.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/cor-mez/launchcore/pkg/vision"
)

// Config is the complete on-disk configuration for launchcore.
type Config struct {
	BallLock  BallLockConfig  `toml:"ball_lock"`
	Detector  DetectorConfig  `toml:"detector"`
	Motion    MotionConfig    `toml:"motion"`
	RS        RSConfig        `toml:"rs"`
	Impulse   ImpulseConfig   `toml:"impulse"`
	Authority AuthorityConfig `toml:"authority"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Offline   OfflineConfig   `toml:"offline"`
	Telemetry TelemetryConfig `toml:"telemetry"`

	version      int
	lastClusterSig clusterSignature
}

// BallLockConfig mirrors vision.BallLockConfig for TOML decoding.
type BallLockConfig struct {
	MinCorners          int     `toml:"min_corners"`
	MaxCorners          int     `toml:"max_corners"`
	MinRadiusPx         float64 `toml:"min_radius_px"`
	MaxRadiusPx         float64 `toml:"max_radius_px"`
	OutlierTrimFraction float64 `toml:"outlier_trim_fraction"`
	RadiusHistoryLen    int     `toml:"radius_history_len"`
	EMAAlpha            float64 `toml:"alpha_center"`
	CountWeight         float64 `toml:"count_weight"`
	SymmetryWeight      float64 `toml:"symmetry_weight"`
	RadiusWeight        float64 `toml:"radius_weight"`
	QLock               float64 `toml:"q_lock"`
	QStay               float64 `toml:"q_stay"`
	LockAfterN          int     `toml:"lock_after_n"`
	UnlockAfterM        int     `toml:"unlock_after_m"`
	RoiRadiusFactor     float64 `toml:"roi_radius_factor"`
}

// DetectorConfig mirrors vision.DetectorConfig for TOML decoding.
type DetectorConfig struct {
	Fast9Threshold     int     `toml:"fast9_threshold"`
	PreFilterGain      float64 `toml:"pre_filter_gain"`
	ChromaGain         float64 `toml:"chroma_gain"`
	UseChroma          bool    `toml:"use_chroma"`
	ChromaEnhancement  string  `toml:"chroma_enhancement"` // "off" | "box_blur" | "bilateral"
	UseSuperResolution bool    `toml:"use_super_resolution"`
	SRScaleOverride    float64 `toml:"sr_scale_override"`
	MaxCorners         int     `toml:"max_corners"`
}

// MotionConfig mirrors vision.MotionConfig for TOML decoding.
type MotionConfig struct {
	PresenceConfidenceThreshold float64 `toml:"presence_confidence_threshold"`
	MinMotionPxS                float64 `toml:"min_motion_px_s"`
	MinSustainedSpeedPxS        float64 `toml:"min_sustained_speed_px_s"`
}

// RSConfig mirrors vision.RSConfig for TOML decoding.
type RSConfig struct {
	MinRowSupport     int     `toml:"min_row_support"`
	MinSlope          float64 `toml:"min_slope"`
	MaxRowCorrelation float64 `toml:"max_row_correlation"`
	WindowMinFrames   int     `toml:"window_min_frames"`
	WindowMaxSpanSec  float64 `toml:"window_max_span_sec"`
	WindowMaxStaleSec float64 `toml:"window_max_stale_sec"`
}

// ImpulseConfig mirrors vision.ImpulseConfig for TOML decoding.
type ImpulseConfig struct {
	MaxImpulseFrames  int     `toml:"max_impulse_frames"`
	MinDeltaSpeedPxS  float64 `toml:"min_delta_speed_px_s"`
	MinPresenceFrames int     `toml:"min_presence_frames"`
	MaxLatchedFrames  int     `toml:"max_latched_frames"`
}

// AuthorityConfig mirrors vision.AuthorityConfig for TOML decoding.
type AuthorityConfig struct {
	PresenceConfidenceThreshold float64 `toml:"presence_confidence_threshold"`
	MinMotionPxS                float64 `toml:"min_motion_px_s"`
	CadenceMinFPS                float64 `toml:"cadence_min_fps"`
	RequiredStableDurationSec    float64 `toml:"required_stable_duration_sec"`
	MaxLifecycleDurationSec      float64 `toml:"max_lifecycle_duration_sec"`
}

// LifecycleConfig mirrors vision.LifecycleConfig for TOML decoding.
type LifecycleConfig struct {
	AcquiredThreshold    float64 `toml:"acquired_threshold"`
	TrackingFloor        float64 `toml:"tracking_floor"`
	MinValidShotSpeedPxS float64 `toml:"min_valid_shot_speed_px_s"`
}

// OfflineConfig configures the deterministic video-file source (C10).
type OfflineConfig struct {
	VideoPath  string  `toml:"video_path"`
	AssumedFPS float64 `toml:"assumed_fps"`
	IntrinsicsPath string `toml:"intrinsics_path"` // not read by the CLI, which always looks for "<video>.intrinsics.json" beside video_path.
}

// TelemetryConfig configures the C9 telemetry facility.
type TelemetryConfig struct {
	RingCapacity    int      `toml:"ring_capacity"`
	EnabledPhases   []string `toml:"enabled_phases"` // empty = all enabled.
	CSVOutputDir    string   `toml:"csv_output_dir"`
	ControlAddr     string   `toml:"control_addr"` // "" disables the control socket.
}

// Default returns the default configuration, matching the spec §6
// defaults for every component config.
func Default() *Config {
	bl := vision.DefaultBallLockConfig()
	det := vision.DefaultDetectorConfig()
	mo := vision.DefaultMotionConfig()
	rs := vision.DefaultRSConfig()
	im := vision.DefaultImpulseConfig()
	au := vision.DefaultAuthorityConfig()
	lc := vision.DefaultLifecycleConfig()

	cfg := &Config{
		BallLock: BallLockConfig{
			MinCorners:          bl.MinCornerCount,
			MaxCorners:          bl.MaxCornerCount,
			MinRadiusPx:         float64(bl.MinRadiusPx),
			MaxRadiusPx:         float64(bl.MaxRadiusPx),
			OutlierTrimFraction: float64(bl.OutlierTrimFraction),
			RadiusHistoryLen:    bl.RadiusHistoryLen,
			EMAAlpha:            float64(bl.EMAAlpha),
			CountWeight:         float64(bl.CountWeight),
			SymmetryWeight:      float64(bl.SymmetryWeight),
			RadiusWeight:        float64(bl.RadiusWeight),
			QLock:               float64(bl.QLock),
			QStay:               float64(bl.QStay),
			LockAfterN:          bl.LockAfterN,
			UnlockAfterM:        bl.UnlockAfterM,
			RoiRadiusFactor:     float64(bl.RoiRadiusFactor),
		},
		Detector: DetectorConfig{
			Fast9Threshold:     det.Fast9Threshold,
			PreFilterGain:      float64(det.PreFilterGain),
			ChromaGain:         float64(det.ChromaGain),
			UseChroma:          det.UseChroma,
			ChromaEnhancement:  "off",
			UseSuperResolution: det.UseSuperResolution,
			MaxCorners:         det.MaxCorners,
		},
		Motion: MotionConfig{
			PresenceConfidenceThreshold: float64(mo.PresenceConfidenceThreshold),
			MinMotionPxS:                mo.MinMotionPxS,
			MinSustainedSpeedPxS:        mo.MinSustainedSpeedPxS,
		},
		RS: RSConfig{
			MinRowSupport:     rs.MinRowSupport,
			MinSlope:          rs.MinSlope,
			MaxRowCorrelation: rs.MaxRowCorrelation,
			WindowMinFrames:   rs.WindowMinFrames,
			WindowMaxSpanSec:  rs.WindowMaxSpanSec,
			WindowMaxStaleSec: rs.WindowMaxStaleSec,
		},
		Impulse: ImpulseConfig{
			MaxImpulseFrames:  im.MaxImpulseFrames,
			MinDeltaSpeedPxS:  im.MinDeltaSpeedPxS,
			MinPresenceFrames: im.MinPresenceFrames,
			MaxLatchedFrames:  im.MaxLatchedFrames,
		},
		Authority: AuthorityConfig{
			PresenceConfidenceThreshold: 6.0,
			MinMotionPxS:                18.0,
			CadenceMinFPS:                au.CadenceMinFPS,
			RequiredStableDurationSec:    au.RequiredStableDurationSec,
			MaxLifecycleDurationSec:      au.MaxLifecycleDurationSec,
		},
		Lifecycle: LifecycleConfig{
			AcquiredThreshold:    float64(lc.AcquiredThreshold),
			TrackingFloor:        float64(lc.TrackingFloor),
			MinValidShotSpeedPxS: lc.MinValidShotSpeedPxS,
		},
		Offline: OfflineConfig{
			AssumedFPS: 120,
		},
		Telemetry: TelemetryConfig{
			RingCapacity: vision.DefaultTelemetryCapacity,
		},
	}
	cfg.lastClusterSig = cfg.clusterSignature()
	return cfg
}

// Load reads and parses a TOML configuration file, falling back to
// Default() if path is empty or the file does not exist, matching the
// teacher's internal/config.Load behavior exactly.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values and bumps
// Version() whenever a clustering-relevant field differs from the value
// last seen by Validate — implementing spec §4.3's "Configuration change
// policy" as a plain struct plus a version counter (spec §9's explicit
// re-architecture of the source's reactive wrapper).
func (c *Config) Validate() error {
	if c.BallLock.MinCorners <= 0 {
		return fmt.Errorf("ball_lock.min_corners must be positive, got %d", c.BallLock.MinCorners)
	}
	if c.BallLock.MaxCorners < c.BallLock.MinCorners {
		return fmt.Errorf("ball_lock.max_corners must be >= min_corners")
	}
	if c.Detector.MaxCorners <= 0 {
		return fmt.Errorf("detector.max_corners must be positive, got %d", c.Detector.MaxCorners)
	}
	switch c.Detector.ChromaEnhancement {
	case "", "off", "box_blur", "bilateral":
	default:
		return fmt.Errorf("detector.chroma_enhancement must be off|box_blur|bilateral, got %q", c.Detector.ChromaEnhancement)
	}
	if c.Lifecycle.MinValidShotSpeedPxS <= 0 {
		return fmt.Errorf("lifecycle.min_valid_shot_speed_px_s must be positive")
	}
	if c.Telemetry.RingCapacity <= 0 {
		c.Telemetry.RingCapacity = vision.DefaultTelemetryCapacity
	}

	sig := c.clusterSignature()
	if sig != c.lastClusterSig {
		c.version++
		c.lastClusterSig = sig
	}
	return nil
}

// Version returns the monotonically increasing counter bumped by
// Validate whenever a clustering-relevant value changed since the last
// call. The ball-lock component compares this against its own
// last-seen version at the start of each frame and forces a reset to
// Idle on mismatch.
func (c *Config) Version() int { return c.version }

// clusterSignature captures exactly the fields whose change should force
// BallLock to reset (spec §4.3): its own thresholds plus the detector
// settings that change what corners reach it.
type clusterSignature struct {
	bl  BallLockConfig
	det DetectorConfig
}

func (c *Config) clusterSignature() clusterSignature {
	return clusterSignature{bl: c.BallLock, det: c.Detector}
}

// VisionBallLock converts the decoded TOML section to vision.BallLockConfig.
func (c *Config) VisionBallLock() vision.BallLockConfig {
	return vision.BallLockConfig{
		MinCornerCount:      c.BallLock.MinCorners,
		MaxCornerCount:      c.BallLock.MaxCorners,
		MinRadiusPx:         float32(c.BallLock.MinRadiusPx),
		MaxRadiusPx:         float32(c.BallLock.MaxRadiusPx),
		OutlierTrimFraction: float32(c.BallLock.OutlierTrimFraction),
		RadiusHistoryLen:    c.BallLock.RadiusHistoryLen,
		EMAAlpha:            float32(c.BallLock.EMAAlpha),
		CountWeight:         float32(c.BallLock.CountWeight),
		SymmetryWeight:      float32(c.BallLock.SymmetryWeight),
		RadiusWeight:        float32(c.BallLock.RadiusWeight),
		QLock:               float32(c.BallLock.QLock),
		QStay:               float32(c.BallLock.QStay),
		LockAfterN:          c.BallLock.LockAfterN,
		UnlockAfterM:        c.BallLock.UnlockAfterM,
		RoiRadiusFactor:     float32(c.BallLock.RoiRadiusFactor),
	}
}

// VisionDetector converts the decoded TOML section to vision.DetectorConfig.
func (c *Config) VisionDetector() vision.DetectorConfig {
	enh := vision.ChromaOff
	switch c.Detector.ChromaEnhancement {
	case "box_blur":
		enh = vision.ChromaBoxBlur
	case "bilateral":
		enh = vision.ChromaBilateral
	}
	return vision.DetectorConfig{
		Fast9Threshold:     c.Detector.Fast9Threshold,
		PreFilterGain:      float32(c.Detector.PreFilterGain),
		ChromaGain:         float32(c.Detector.ChromaGain),
		UseChroma:          c.Detector.UseChroma,
		ChromaEnhancement:  enh,
		UseSuperResolution: c.Detector.UseSuperResolution,
		SRScaleOverride:    float32(c.Detector.SRScaleOverride),
		MaxCorners:         c.Detector.MaxCorners,
	}
}

// VisionMotion converts the decoded TOML section to vision.MotionConfig,
// filling in the fields spec §6's MotionConfig doesn't expose via TOML
// (kinetic/validity sub-thresholds) from vision's own defaults.
func (c *Config) VisionMotion() vision.MotionConfig {
	mo := vision.DefaultMotionConfig()
	mo.PresenceConfidenceThreshold = float32(c.Motion.PresenceConfidenceThreshold)
	mo.MinMotionPxS = c.Motion.MinMotionPxS
	mo.MinSustainedSpeedPxS = c.Motion.MinSustainedSpeedPxS
	return mo
}

// VisionRS converts the decoded TOML section to vision.RSConfig.
func (c *Config) VisionRS() vision.RSConfig {
	rs := vision.DefaultRSConfig()
	rs.MinRowSupport = c.RS.MinRowSupport
	rs.MinSlope = c.RS.MinSlope
	rs.MaxRowCorrelation = c.RS.MaxRowCorrelation
	rs.WindowMinFrames = c.RS.WindowMinFrames
	rs.WindowMaxSpanSec = c.RS.WindowMaxSpanSec
	rs.WindowMaxStaleSec = c.RS.WindowMaxStaleSec
	return rs
}

// VisionImpulse converts the decoded TOML section to vision.ImpulseConfig.
func (c *Config) VisionImpulse() vision.ImpulseConfig {
	return vision.ImpulseConfig{
		MaxImpulseFrames:  c.Impulse.MaxImpulseFrames,
		MinDeltaSpeedPxS:  c.Impulse.MinDeltaSpeedPxS,
		MinPresenceFrames: c.Impulse.MinPresenceFrames,
		MaxLatchedFrames:  c.Impulse.MaxLatchedFrames,
	}
}

// VisionAuthority converts the decoded TOML section to vision.AuthorityConfig.
func (c *Config) VisionAuthority() vision.AuthorityConfig {
	au := vision.DefaultAuthorityConfig()
	au.CadenceMinFPS = c.Authority.CadenceMinFPS
	au.RequiredStableDurationSec = c.Authority.RequiredStableDurationSec
	au.QuietMotionPxS = c.Authority.MinMotionPxS
	au.MaxLifecycleDurationSec = c.Authority.MaxLifecycleDurationSec
	return au
}

// VisionLifecycle converts the decoded TOML section to vision.LifecycleConfig.
func (c *Config) VisionLifecycle() vision.LifecycleConfig {
	return vision.LifecycleConfig{
		AcquiredThreshold:    float32(c.Lifecycle.AcquiredThreshold),
		TrackingFloor:        float32(c.Lifecycle.TrackingFloor),
		MinValidShotSpeedPxS: c.Lifecycle.MinValidShotSpeedPxS,
	}
}
