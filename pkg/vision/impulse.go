package vision

// ImpulseConfig mirrors the tunables named in spec §4.6.
type ImpulseConfig struct {
	MaxImpulseFrames    int
	MinDeltaSpeedPxS    float64
	MinPresenceFrames   int
	MaxLatchedFrames    int
}

// DefaultImpulseConfig returns spec §4.6's default thresholds.
func DefaultImpulseConfig() ImpulseConfig {
	return ImpulseConfig{
		MaxImpulseFrames:  2,
		MinDeltaSpeedPxS:  900,
		MinPresenceFrames: 4,
		MaxLatchedFrames:  10,
	}
}

// ImpulseObserver implements spec §4.6's impact impulse observer: once
// armed by the authority gate's Eligible verdict, it watches at most
// MaxImpulseFrames frames of speed delta and fires Detected=true exactly
// once.
type ImpulseObserver struct {
	cfg ImpulseConfig

	armed        bool
	framesLeft   int
	firedThisArm bool
	lastSpeedPxS float64
	haveLast     bool
}

// NewImpulseObserver creates an impulse observer with the given config.
func NewImpulseObserver(cfg ImpulseConfig) *ImpulseObserver {
	return &ImpulseObserver{cfg: cfg}
}

// Arm starts (or restarts) an observation window. Calling Arm while
// already armed simply resets the frame budget, matching "armed only by
// the authority gate's Eligible decision" (the gate re-asserts Eligible
// every frame it holds).
func (o *ImpulseObserver) Arm() {
	if !o.armed {
		o.firedThisArm = false
	}
	o.armed = true
	o.framesLeft = o.cfg.MaxImpulseFrames
}

// Disarm clears the observation window without producing a detection.
func (o *ImpulseObserver) Disarm() {
	o.armed = false
	o.framesLeft = 0
	o.firedThisArm = false
}

// Observe folds in the current frame's instantaneous speed and returns
// the observation for this frame.
func (o *ImpulseObserver) Observe(speedPxS float64) ImpulseObservation {
	if !o.armed || o.framesLeft <= 0 || o.firedThisArm {
		o.lastSpeedPxS = speedPxS
		o.haveLast = true
		return ImpulseObservation{}
	}

	detected := false
	var delta float64
	if o.haveLast {
		delta = speedPxS - o.lastSpeedPxS
		if delta >= o.cfg.MinDeltaSpeedPxS {
			detected = true
			o.firedThisArm = true
		}
	}
	o.framesLeft--
	o.lastSpeedPxS = speedPxS
	o.haveLast = true

	remaining := o.framesLeft
	if remaining < 0 {
		remaining = 0
	}
	return ImpulseObservation{Detected: detected, DeltaSpeedPxPerSec: delta, FramesRemaining: uint8(remaining)}
}

// ContinuityLatch implements spec §4.6's presence continuity latch: it
// accumulates confirmed-presence frames, arms on an impact signature
// once armable, and holds "latched" for a fixed countdown so transient
// presence loss during that window is still treated as the same ball.
type ContinuityLatch struct {
	cfg ImpulseConfig

	framesOfPresence int
	latched          bool
	framesRemaining  int
}

// NewContinuityLatch creates a latch with the given configuration.
func NewContinuityLatch(cfg ImpulseConfig) *ContinuityLatch {
	return &ContinuityLatch{cfg: cfg}
}

// CanArm reports whether enough confirmed presence has accumulated to
// allow latching.
func (l *ContinuityLatch) CanArm() bool {
	return l.framesOfPresence >= l.cfg.MinPresenceFrames
}

// ObservePresence folds in one frame's presence confirmation, ticking
// the latch countdown and resetting the presence streak on loss (unless
// currently latched, in which case presence loss is tolerated).
func (l *ContinuityLatch) ObservePresence(presenceConfirmed bool) {
	if presenceConfirmed {
		l.framesOfPresence++
	} else if !l.latched {
		l.framesOfPresence = 0
	}

	if l.latched {
		l.framesRemaining--
		if l.framesRemaining <= 0 {
			l.latched = false
			l.framesRemaining = 0
		}
	}
}

// TryLatch arms the latch for MaxLatchedFrames when an impact signature
// has just been observed and CanArm holds. No-op otherwise.
func (l *ContinuityLatch) TryLatch(impactSignatureObserved bool) {
	if impactSignatureObserved && l.CanArm() {
		l.latched = true
		l.framesRemaining = l.cfg.MaxLatchedFrames
	}
}

// Latched reports whether continuity is currently being assumed across
// a presence gap.
func (l *ContinuityLatch) Latched() bool { return l.latched }

// Reset clears all latch state (ball-lock loss).
func (l *ContinuityLatch) Reset() {
	l.framesOfPresence = 0
	l.latched = false
	l.framesRemaining = 0
}

// RefractoryTracker records inter-impulse timing as an observational
// fact stream; per spec §4.6 it never suppresses a subsequent impulse.
type RefractoryTracker struct {
	lastImpulseTS float64
	haveLast      bool
}

// NewRefractoryTracker creates an empty tracker.
func NewRefractoryTracker() *RefractoryTracker { return &RefractoryTracker{} }

// Observe records an impulse at ts and returns the elapsed time since
// the previous recorded impulse (0 if this is the first).
func (r *RefractoryTracker) Observe(ts float64) float64 {
	var dt float64
	if r.haveLast {
		dt = ts - r.lastImpulseTS
	}
	r.lastImpulseTS = ts
	r.haveLast = true
	return dt
}
