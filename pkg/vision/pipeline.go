package vision

import (
	"fmt"
	"math"
)

// PipelineConfig bundles the per-component configuration a Pipeline is
// built from, plus the logging/telemetry sinks it writes to. It is the
// generalized, explicitly-constructed replacement for the source's
// singleton coordinator (DotTestCoordinator.shared and its kin): every
// dependency a frame's processing touches is wired once, here, instead
// of reached for ambiently.
type PipelineConfig struct {
	BallLock  BallLockConfig
	Detector  DetectorConfig
	Motion    MotionConfig
	RS        RSConfig
	Impulse   ImpulseConfig
	Authority AuthorityConfig
	Lifecycle LifecycleConfig

	// Logger and Telemetry may be nil, in which case this frame's
	// observations are neither logged nor recorded.
	Logger    *PhaseLogger
	Telemetry *TelemetryRing
}

// DefaultPipelineConfig returns a PipelineConfig built from every
// component's own defaults, logging to stdout with no telemetry ring.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BallLock:  DefaultBallLockConfig(),
		Detector:  DefaultDetectorConfig(),
		Motion:    DefaultMotionConfig(),
		RS:        DefaultRSConfig(),
		Impulse:   DefaultImpulseConfig(),
		Authority: DefaultAuthorityConfig(),
		Lifecycle: DefaultLifecycleConfig(),
		Logger:    NewPhaseLogger(nil),
	}
}

// Pipeline is the glue object (C2–C9) that owns every vision subsystem
// and drives one frame through detection, ball lock, motion, rolling
// shutter, the authority gates, impulse/continuity, and the lifecycle
// controller, in that order (the impulse observer is armed by the shot
// authority decision of the same frame).
type Pipeline struct {
	cfg PipelineConfig

	detector   *Detector
	ballLock   *BallLock
	motion     *MotionObserver
	rsProbe    *RSProbe
	rsWindow   *RSWindow
	rsPnP      *RSPnPBridge
	impulse    *ImpulseObserver
	continuity *ContinuityLatch
	refractory *RefractoryTracker
	cadence    *CadenceEstimator
	regimeObs  *CameraRegimeObserver
	quietGate  *SceneQuietGate
	deadman    *LifecycleDeadman
	lifecycle  *LifecycleController

	logger    *PhaseLogger
	telemetry *TelemetryRing

	// ConfigVersion is compared against the ball lock's own last-seen
	// version at the start of every frame (spec §9's config-change
	// policy); callers bump it by assigning a new value, typically from
	// internal/config.Config.Version().
	ConfigVersion int

	prevLockState LockState
	lastSnapshot  BallClusterSnapshot

	lastCenter            [2]float32
	haveLastCenter        bool
	lastDirectionUnit     [2]float64
	haveLastDirectionUnit bool

	framesSinceIdle       int
	lastAuthoritativeTS   float64
	haveLastAuthoritative bool
}

// NewPipeline creates a pipeline from cfg, or DefaultPipelineConfig() if
// cfg is nil.
func NewPipeline(cfg *PipelineConfig) *Pipeline {
	c := DefaultPipelineConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.BallLock.RoiRadiusFactor <= 0 {
		c.BallLock.RoiRadiusFactor = DefaultBallLockConfig().RoiRadiusFactor
	}

	return &Pipeline{
		cfg:        c,
		detector:   NewDetector(c.Detector),
		ballLock:   NewBallLock(c.BallLock),
		motion:     NewMotionObserver(c.Motion),
		rsProbe:    NewRSProbe(c.RS),
		rsWindow:   NewRSWindow(c.RS),
		rsPnP:      NewRSPnPBridge(),
		impulse:    NewImpulseObserver(c.Impulse),
		continuity: NewContinuityLatch(c.Impulse),
		refractory: NewRefractoryTracker(),
		cadence:    NewCadenceEstimator(c.Authority),
		regimeObs:  NewCameraRegimeObserver(c.Authority),
		quietGate:  NewSceneQuietGate(c.Authority),
		deadman:    NewLifecycleDeadman(c.Authority),
		lifecycle:  NewLifecycleController(c.Lifecycle),
		logger:     c.Logger,
		telemetry:  c.Telemetry,
	}
}

// LifecycleState reports the current shot lifecycle state, for callers
// that want to display it without waiting for a terminal ShotRecord.
func (p *Pipeline) LifecycleState() LifecycleState { return p.lifecycle.State() }

// BallLockState reports the current ball lock state.
func (p *Pipeline) BallLockState() LockState { return p.ballLock.State() }

// ProcessFrame drives one frame through every subsystem in spec §2's
// component order and returns the ShotRecord produced this frame, or nil
// if the lifecycle controller did not reach a terminal transition.
// intrinsics is accepted for forward compatibility with the RS-PnP
// bridge's eventual pose extraction (spec §9.3) and is otherwise unused
// in this version.
func (p *Pipeline) ProcessFrame(frame *PixelFrame, intrinsics *Intrinsics) *ShotRecord {
	p.ballLock.ResetIfVersionChanged(p.ConfigVersion)
	if frame == nil {
		return nil
	}

	var roi *Rect
	if p.prevLockState == LockLocked {
		r := LockedROI(p.lastSnapshot, p.cfg.BallLock.RoiRadiusFactor, frame.Width, frame.Height)
		if !r.Empty() {
			roi = &r
		}
	}
	corners, dots := p.detector.Detect(frame, roi)
	p.logf(PhaseDetection, func() string { return fmt.Sprintf("corners=%d dots=%d roi=%v", len(corners), len(dots), roi) })

	return p.processDetections(frame.TimestampSec, frame.Height, corners)
}

// ProcessDetections runs every stage from ball lock through the
// lifecycle controller over an externally supplied corner set, skipping
// Detector.Detect entirely. It exists for callers with their own
// detection front-end and for this package's own tests, which exercise
// the lock/motion/RS/authority/lifecycle chain directly rather than
// synthesizing pixel planes that would FAST-9-detect to a chosen corner
// layout.
func (p *Pipeline) ProcessDetections(ts float64, frameHeight int, corners [][2]float32) *ShotRecord {
	p.ballLock.ResetIfVersionChanged(p.ConfigVersion)
	return p.processDetections(ts, frameHeight, corners)
}

func (p *Pipeline) processDetections(ts float64, frameHeight int, corners [][2]float32) *ShotRecord {
	snap, lockState := p.ballLock.Observe(corners)
	p.lastSnapshot = snap
	locked := lockState == LockLocked
	confidence := float32(snap.CornerCount) // spec §4.4/§4.8 score presence/acquisition off the lock's corner count, not quality.

	if p.prevLockState != LockIdle && lockState == LockIdle {
		p.motion.Reset()
		p.continuity.Reset()
		p.impulse.Disarm()
		p.rsWindow.Reset()
		p.haveLastCenter = false
		p.haveLastDirectionUnit = false
	}

	instPxS, phase, kineticEligible := p.motion.Observe(confidence, snap.Center, ts)
	_ = kineticEligible // observational per spec §4.4; not consumed by any gate in this version.

	p.logf(PhaseBallLock, func() string {
		return fmt.Sprintf("state=%s quality=%.3f radius=%.2f phase=%s inst_px_s=%.1f", lockState, snap.Quality, snap.RadiusPx, phase, instPxS)
	})

	rsObs := p.rsProbe.Observe(corners, frameHeight)
	if locked && rsObs.Outcome == RSObservable {
		p.rsWindow.Push(snap.Center, snap.RadiusPx, ts, snap.Quality)
	}
	windowSnap := p.rsWindow.Snapshot(ts)
	_, pnpTransitioned := p.rsPnP.Process(ts, windowSnap)
	if pnpTransitioned {
		p.logf(PhaseRSWindow, func() string {
			return fmt.Sprintf("outcome=%s window_valid=%v frames=%d span=%.3f", rsObs.Outcome, windowSnap.IsValid, windowSnap.FrameCount, windowSnap.SpanSec)
		})
	}

	directionDot, haveDirectionDot := p.updateDirectionDot(locked, snap.Center)
	disturbance := rsObs.Outcome == RSRefusedFrameIntegrityFailure || rsObs.Outcome == RSRefusedGlobalRowCorrelation
	regime := p.regimeObs.Observe(ts, disturbance)
	quiet := p.quietGate.Observe(locked, instPxS, directionDot, haveDirectionDot)
	cadenceRes := p.cadence.Push(ts)

	if lockState == LockIdle {
		p.framesSinceIdle = 0
	} else {
		p.framesSinceIdle++
	}

	lifecycleActive := isActiveLifecycle(p.lifecycle.State()) && p.lifecycle.State() != StateIdle
	timeSinceLastAuthoritative := math.Inf(1)
	if p.haveLastAuthoritative {
		timeSinceLastAuthoritative = ts - p.lastAuthoritativeTS
	}

	eligible, ineligibleReason := ShotAuthority(p.cfg.Authority, ShotAuthorityInput{
		Presence:                   locked,
		MotionPhase:                phase,
		FramesSinceIdle:            p.framesSinceIdle,
		TimeSinceLastAuthoritative: timeSinceLastAuthoritative,
		LifecycleInProgress:        lifecycleActive,
	})
	p.logf(PhaseAuthority, func() string {
		return fmt.Sprintf("eligible=%v reason=%s regime=%s quiet=%v cadence=%s fps=%.1f", eligible, ineligibleReason, regime, quiet, cadenceRes.Verdict, cadenceRes.FPS)
	})

	if eligible {
		p.impulse.Arm()
	} else {
		p.impulse.Disarm()
	}
	p.continuity.ObservePresence(locked)
	impulseObs := p.impulse.Observe(instPxS)
	p.continuity.TryLatch(impulseObs.Detected)
	if impulseObs.Detected {
		p.refractory.Observe(ts)
		p.lastAuthoritativeTS = ts
		p.haveLastAuthoritative = true
	}

	deadmanFired := p.deadman.Observe(p.lifecycle.State() == StateIdle, ts)
	refusal := p.deriveRefusal(deadmanFired, lifecycleActive, lockState, phase, rsObs.Outcome == RSObservable, cadenceRes.Verdict, regime)

	var speedPtr *float64
	if locked {
		v := instPxS
		speedPtr = &v
	}

	rec := p.lifecycle.Tick(LifecycleInput{
		TimestampSec:       ts,
		CaptureValid:       true,
		RSObservable:       rsObs.Outcome == RSObservable,
		EligibleForShot:    eligible,
		BallLockConfidence: confidence,
		MotionPhase:        phase,
		BallSpeedPxS:       speedPtr,
		RefusalReason:      refusal,
	})
	if rec != nil {
		p.logf(PhaseShot, func() string { return rec.String() })
	}

	p.pushTelemetry(ts, lockState, snap, rsObs, cadenceRes, rec)
	p.prevLockState = lockState
	return rec
}

// deriveRefusal maps the frame's guard outcomes onto the closed
// RefusalReason set, in priority order, but only while a lifecycle is
// genuinely active (PreImpact/ImpactObserved/PostImpact) — spec §4.8's
// "Observational failures... set refusal_reason on the lifecycle input,
// which the controller converts into a Refused record if a lifecycle is
// active" (spec §8 "Failure semantics"). A fired deadman always wins,
// distinguishing a PostImpact stall (PostImpactTimeout) from any other
// stage's stall (LifecycleTimeout); losing the marker mid-lifecycle is
// MarkerLost; an invalid Separation judgement is AmbiguousDetection.
// RS-unobservable, cadence-invalid, and camera-unstable are observational
// guards (spec §8) with no dedicated RefusalReason of their own; they
// read closest to InsufficientConfidence ("not enough signal to trust
// this shot"), which is also what S6 names for invalid cadence.
// InsufficientMotion is never set here, and LifecycleController.Tick does
// not produce it either: its insufficient-speed refusal at Stabilized
// cites InsufficientConfidence.
func (p *Pipeline) deriveRefusal(deadmanFired, lifecycleActive bool, lockState LockState, phase MotionPhase, rsObservable bool, cadenceVerdict CadenceVerdict, regime CameraRegime) RefusalReason {
	if !lifecycleActive {
		return RefusalNone
	}
	switch {
	case deadmanFired:
		if p.lifecycle.State() == StatePostImpact {
			return RefusalPostImpactTimeout
		}
		return RefusalLifecycleTimeout
	case lockState == LockIdle:
		return RefusalMarkerLost
	case phase == PhaseSeparation && p.motion.ValidateSeparation(phase) == MotionInvalid:
		return RefusalAmbiguousDetection
	case !rsObservable:
		return RefusalInsufficientConfidence
	case cadenceVerdict == CadenceInvalid:
		return RefusalInsufficientConfidence
	case regime == RegimeUnstable:
		return RefusalInsufficientConfidence
	default:
		return RefusalNone
	}
}

// updateDirectionDot tracks the unit displacement vector of the locked
// ball center frame-to-frame and returns the dot product against the
// previous unit vector, feeding the scene quiet gate's coherence window
// (spec §4.7).
func (p *Pipeline) updateDirectionDot(locked bool, center [2]float32) (dot float64, have bool) {
	if !locked {
		p.haveLastCenter = false
		p.haveLastDirectionUnit = false
		return 0, false
	}
	defer func() { p.lastCenter = center; p.haveLastCenter = true }()

	if !p.haveLastCenter {
		return 0, false
	}
	dx := float64(center[0] - p.lastCenter[0])
	dy := float64(center[1] - p.lastCenter[1])
	mag := hypot64(dx, dy)
	if mag == 0 {
		return 0, false
	}
	unit := [2]float64{dx / mag, dy / mag}
	if p.haveLastDirectionUnit {
		dot = unit[0]*p.lastDirectionUnit[0] + unit[1]*p.lastDirectionUnit[1]
		have = true
	}
	p.lastDirectionUnit = unit
	p.haveLastDirectionUnit = true
	return dot, have
}

func (p *Pipeline) logf(phase Phase, fn func() string) {
	if p.logger == nil {
		return
	}
	p.logger.Logf(phase, fn)
}

func (p *Pipeline) pushTelemetry(ts float64, lockState LockState, snap BallClusterSnapshot, rsObs RSFrameObservation, cadenceRes CadenceResult, rec *ShotRecord) {
	if p.telemetry == nil {
		return
	}
	p.telemetry.Push(TelemetrySample{
		TimestampSec: ts,
		Phase:        PhaseBallLock,
		Code:         TelemetryCode(lockState),
		ValueA:       snap.Quality,
		ValueB:       snap.RadiusPx,
	})
	p.telemetry.Push(TelemetrySample{
		TimestampSec: ts,
		Phase:        PhaseRSWindow,
		Code:         CodeRSRawMetrics,
		ValueA:       float32(rsObs.ZMax),
		ValueB:       float32(rsObs.RowSpanFraction),
	})
	p.telemetry.Push(TelemetrySample{
		TimestampSec: ts,
		Phase:        PhaseAuthority,
		Code:         TelemetryCode(cadenceRes.Verdict),
		ValueA:       float32(cadenceRes.FPS),
	})
	if rec != nil {
		var peak float32
		if rec.PeakSpeedPxS != nil {
			peak = float32(*rec.PeakSpeedPxS)
		}
		p.telemetry.Push(TelemetrySample{
			TimestampSec: ts,
			Phase:        PhaseShot,
			Code:         TelemetryCode(rec.FinalState),
			ValueA:       boolToFloat32(rec.Refused),
			ValueB:       peak,
		})
	}
}

func boolToFloat32(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
