package vision

// AuthorityConfig mirrors the tunables named in spec §4.7.
type AuthorityConfig struct {
	CadenceRingSize          int
	CadenceMinSamples        int
	CadenceMinFPS            float64
	RequiredStableDurationSec float64
	MinQuietFramesToEnter    int
	QuietMotionPxS           float64
	QuietCoherenceWindow     int
	QuietCoherenceRatioMax   float64
	MinFramesSinceIdle       int
	MinTimeSinceLastShotSec  float64
	MaxLifecycleDurationSec  float64
}

// DefaultAuthorityConfig returns spec §4.7's default thresholds. Two
// values — MinFramesSinceIdle and MinTimeSinceLastShotSec — are not
// numerically pinned by the source text (§4.7 names the parameters
// without defaults); this picks conservative values consistent with the
// rest of the gate timings.
func DefaultAuthorityConfig() AuthorityConfig {
	return AuthorityConfig{
		CadenceRingSize:           240,
		CadenceMinSamples:         120,
		CadenceMinFPS:             110,
		RequiredStableDurationSec: 0.30,
		MinQuietFramesToEnter:     12,
		QuietMotionPxS:            20,
		QuietCoherenceWindow:      8,
		QuietCoherenceRatioMax:    0.60,
		MinFramesSinceIdle:        2,
		MinTimeSinceLastShotSec:   0.5,
		MaxLifecycleDurationSec:   1.0,
	}
}

// CadenceEstimator implements spec §4.7's cadence estimator: a 240-sample
// timestamp ring yielding an effective-fps verdict once enough samples
// have accumulated.
type CadenceEstimator struct {
	cfg       AuthorityConfig
	ring      []float64
	pos       int
	count     int
	lastVerdict CadenceVerdict
}

// NewCadenceEstimator creates an estimator with the given configuration.
func NewCadenceEstimator(cfg AuthorityConfig) *CadenceEstimator {
	size := cfg.CadenceRingSize
	if size <= 0 {
		size = DefaultAuthorityConfig().CadenceRingSize
	}
	return &CadenceEstimator{cfg: cfg, ring: make([]float64, size)}
}

// Push records a frame timestamp and returns the current verdict.
func (c *CadenceEstimator) Push(ts float64) CadenceResult {
	c.ring[c.pos] = ts
	c.pos = (c.pos + 1) % len(c.ring)
	if c.count < len(c.ring) {
		c.count++
	}

	if c.count < c.cfg.CadenceMinSamples {
		c.lastVerdict = CadenceUnknown
		return CadenceResult{Verdict: CadenceUnknown}
	}

	oldestIdx := c.pos
	if c.count < len(c.ring) {
		oldestIdx = 0
	}
	newestIdx := (c.pos - 1 + len(c.ring)) % len(c.ring)
	span := c.ring[newestIdx] - c.ring[oldestIdx]
	fps := 0.0
	if span > 0 {
		fps = float64(c.count-1) / span
	}

	verdict := CadenceInvalid
	if fps >= c.cfg.CadenceMinFPS {
		verdict = CadenceValid
	}
	c.lastVerdict = verdict
	return CadenceResult{Verdict: verdict, FPS: fps}
}

// CameraRegime is the state of spec §4.7's camera regime observer.
type CameraRegime int

const (
	RegimeUnstable CameraRegime = iota
	RegimeStable
)

func (r CameraRegime) String() string {
	if r == RegimeStable {
		return "Stable"
	}
	return "Unstable"
}

// CameraRegimeObserver tracks photometric stability: starts Unstable,
// any disturbance event resets to Unstable, and a sustained
// disturbance-free interval promotes to Stable.
type CameraRegimeObserver struct {
	cfg              AuthorityConfig
	regime           CameraRegime
	stableSinceTS    float64
	haveStableSince  bool
}

// NewCameraRegimeObserver creates an observer starting in Unstable.
func NewCameraRegimeObserver(cfg AuthorityConfig) *CameraRegimeObserver {
	return &CameraRegimeObserver{cfg: cfg, regime: RegimeUnstable}
}

// Observe folds in one frame: disturbance forces Unstable and restarts
// the stability clock; absence of disturbance promotes to Stable once
// RequiredStableDurationSec has elapsed since the clock started.
func (o *CameraRegimeObserver) Observe(ts float64, disturbance bool) CameraRegime {
	if disturbance {
		o.regime = RegimeUnstable
		o.stableSinceTS = ts
		o.haveStableSince = true
		return o.regime
	}
	if !o.haveStableSince {
		o.stableSinceTS = ts
		o.haveStableSince = true
	}
	if o.regime == RegimeUnstable && ts-o.stableSinceTS >= o.cfg.RequiredStableDurationSec {
		o.regime = RegimeStable
	}
	return o.regime
}

// SceneQuietGate implements spec §4.7's scene quiet gate: enters Quiet
// after MinQuietFramesToEnter consecutive quiet-candidate frames and
// exits immediately on any non-candidate frame.
type SceneQuietGate struct {
	cfg          AuthorityConfig
	quiet        bool
	streak       int
	coherenceWin []float64 // recent direction-dot samples, most-recent last.
}

// NewSceneQuietGate creates a gate starting not-Quiet.
func NewSceneQuietGate(cfg AuthorityConfig) *SceneQuietGate {
	return &SceneQuietGate{cfg: cfg}
}

// Observe folds in one frame's locked/motion state and returns the
// current Quiet verdict.
func (g *SceneQuietGate) Observe(locked bool, instantaneousPxS float64, directionDot float64, haveDirectionDot bool) bool {
	candidate := !locked || instantaneousPxS <= g.cfg.QuietMotionPxS

	if locked && !candidate && haveDirectionDot {
		g.coherenceWin = append(g.coherenceWin, directionDot)
		if len(g.coherenceWin) > g.cfg.QuietCoherenceWindow {
			g.coherenceWin = g.coherenceWin[len(g.coherenceWin)-g.cfg.QuietCoherenceWindow:]
		}
		if len(g.coherenceWin) == g.cfg.QuietCoherenceWindow {
			coherent := 0
			for _, d := range g.coherenceWin {
				if d >= 0.6 {
					coherent++
				}
			}
			ratio := float64(coherent) / float64(len(g.coherenceWin))
			if ratio < g.cfg.QuietCoherenceRatioMax {
				candidate = true
			}
		}
	}

	if candidate {
		g.streak++
	} else {
		g.streak = 0
		g.coherenceWin = g.coherenceWin[:0]
	}

	wasQuiet := g.quiet
	if !candidate {
		g.quiet = false
	} else if g.streak >= g.cfg.MinQuietFramesToEnter {
		g.quiet = true
	}
	_ = wasQuiet // transition logging is the caller's (PhaseLogger's) concern.
	return g.quiet
}

// ShotAuthorityInput bundles the per-frame facts the shot authority
// gate decides on. Per spec §4.7 the gate "does NOT consume historical
// state beyond what is passed in" — it is a pure function, not a
// stateful observer like its siblings in this file.
type ShotAuthorityInput struct {
	Presence                  bool
	MotionPhase                MotionPhase
	FramesSinceIdle            int
	TimeSinceLastAuthoritative float64
	LifecycleInProgress        bool
}

// ShotAuthorityIneligibleReason enumerates why ShotAuthority declined
// eligibility.
type ShotAuthorityIneligibleReason int

const (
	IneligibleNone ShotAuthorityIneligibleReason = iota
	IneligibleNoPresence
	IneligibleWrongMotionPhase
	IneligibleTooSoonAfterIdle
	IneligibleCooldown
	IneligibleLifecycleInProgress
)

func (r ShotAuthorityIneligibleReason) String() string {
	switch r {
	case IneligibleNone:
		return "none"
	case IneligibleNoPresence:
		return "no_presence"
	case IneligibleWrongMotionPhase:
		return "wrong_motion_phase"
	case IneligibleTooSoonAfterIdle:
		return "too_soon_after_idle"
	case IneligibleCooldown:
		return "cooldown"
	case IneligibleLifecycleInProgress:
		return "lifecycle_in_progress"
	default:
		return "unknown"
	}
}

// ShotAuthority is the pure decision function of spec §4.7's shot
// authority gate.
func ShotAuthority(cfg AuthorityConfig, in ShotAuthorityInput) (eligible bool, reason ShotAuthorityIneligibleReason) {
	if in.LifecycleInProgress {
		return false, IneligibleLifecycleInProgress
	}
	if !in.Presence {
		return false, IneligibleNoPresence
	}
	if in.MotionPhase != PhaseApproach && in.MotionPhase != PhaseImpact {
		return false, IneligibleWrongMotionPhase
	}
	if in.FramesSinceIdle < cfg.MinFramesSinceIdle {
		return false, IneligibleTooSoonAfterIdle
	}
	if in.TimeSinceLastAuthoritative < cfg.MinTimeSinceLastShotSec {
		return false, IneligibleCooldown
	}
	return true, IneligibleNone
}

// LifecycleDeadman implements spec §4.7's lifecycle deadman: forces
// refusal once the lifecycle has been continuously non-idle for longer
// than MaxLifecycleDurationSec.
type LifecycleDeadman struct {
	cfg          AuthorityConfig
	nonIdleSince float64
	armed        bool
}

// NewLifecycleDeadman creates a deadman with the given configuration.
func NewLifecycleDeadman(cfg AuthorityConfig) *LifecycleDeadman {
	return &LifecycleDeadman{cfg: cfg}
}

// Observe folds in the current lifecycle idleness and timestamp,
// returning true when the deadman should force a refusal this frame.
func (d *LifecycleDeadman) Observe(idle bool, ts float64) bool {
	if idle {
		d.armed = false
		return false
	}
	if !d.armed {
		d.armed = true
		d.nonIdleSince = ts
		return false
	}
	return ts-d.nonIdleSince > d.cfg.MaxLifecycleDurationSec
}
