package vision

// LifecycleConfig mirrors spec §6's LifecycleConfig.
type LifecycleConfig struct {
	AcquiredThreshold     float32
	TrackingFloor         float32
	MinValidShotSpeedPxS  float64
}

// DefaultLifecycleConfig returns spec §6's default LifecycleConfig.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		AcquiredThreshold:    6.0,
		TrackingFloor:        2.0,
		MinValidShotSpeedPxS: 400.0,
	}
}

// LifecycleInput bundles the per-tick facts the Lifecycle Controller (C8)
// decides on, per spec §4.8. The controller consumes no state beyond this
// struct plus its own prior transition history.
type LifecycleInput struct {
	TimestampSec       float64
	CaptureValid       bool
	RSObservable       bool
	EligibleForShot    bool
	BallLockConfidence float32
	MotionPhase        MotionPhase
	BallSpeedPxS       *float64
	RefusalReason      RefusalReason // RefusalNone when no guard has fired this tick.
}

// LifecycleController is the sole authority for shot outcomes (spec §4.8,
// C8): a single state machine over LifecycleState that is refusal-first
// and emits at most one immutable ShotRecord per Idle→non-Idle→Idle
// cycle. Grounded on the teacher's explicit state-guard idiom in
// tracker.go's Start/Stop/Close, generalized to the six-state shot
// lifecycle.
type LifecycleController struct {
	cfg LifecycleConfig

	state  LifecycleState
	nextID uint32

	startTS      float64
	impactTS     float64
	haveImpactTS bool
	confidenceAtStart float32
	peakSpeedPxS      float64
	havePeakSpeed     bool
	phaseTrace        []MotionPhase
}

// NewLifecycleController creates a controller starting in Idle.
func NewLifecycleController(cfg LifecycleConfig) *LifecycleController {
	return &LifecycleController{cfg: cfg, state: StateIdle}
}

// State returns the current lifecycle state.
func (c *LifecycleController) State() LifecycleState { return c.state }

// Tick folds in one frame's input and returns a ShotRecord exactly when a
// terminal transition (ShotFinalized or Refused) occurs this tick; nil
// otherwise. Rules are evaluated in the strict order of spec §4.8.
func (c *LifecycleController) Tick(in LifecycleInput) *ShotRecord {
	// Rule 1: forced refusal short-circuits any active (non-terminal) lifecycle.
	if in.RefusalReason != RefusalNone && isActiveLifecycle(c.state) {
		return c.finish(in, true, in.RefusalReason)
	}

	// Rule 2: terminal states only leave on a fresh Idle-with-low-confidence tick.
	if c.state == StateShotFinalized || c.state == StateRefused {
		if in.MotionPhase == PhaseIdle && in.BallLockConfidence < c.cfg.AcquiredThreshold {
			c.state = StateIdle
		}
		return nil
	}

	c.recordPhase(in.MotionPhase)
	c.trackPeakSpeed(in)

	switch c.state {
	case StateIdle:
		if in.MotionPhase == PhaseImpact && in.BallSpeedPxS != nil && *in.BallSpeedPxS >= c.cfg.MinValidShotSpeedPxS {
			c.begin(in)
		}
		return nil

	case StatePreImpact:
		if in.MotionPhase == PhaseImpact {
			c.state = StateImpactObserved
			c.impactTS = in.TimestampSec
			c.haveImpactTS = true
		}
		return nil

	case StateImpactObserved:
		if in.MotionPhase == PhaseSeparation {
			c.state = StatePostImpact
		}
		return nil

	case StatePostImpact:
		if in.MotionPhase == PhaseStabilized {
			if c.havePeakSpeed && c.peakSpeedPxS >= c.cfg.MinValidShotSpeedPxS {
				return c.finish(in, false, RefusalNone)
			}
			return c.finish(in, true, RefusalInsufficientConfidence)
		}
		return nil

	default:
		return nil
	}
}

func isActiveLifecycle(s LifecycleState) bool {
	switch s {
	case StateIdle, StatePreImpact, StateImpactObserved, StatePostImpact:
		return true
	default:
		return false
	}
}

func (c *LifecycleController) begin(in LifecycleInput) {
	c.state = StatePreImpact
	c.startTS = in.TimestampSec
	c.confidenceAtStart = in.BallLockConfidence
	c.haveImpactTS = false
	c.havePeakSpeed = false
	c.peakSpeedPxS = 0
	c.phaseTrace = c.phaseTrace[:0]
	c.recordPhase(in.MotionPhase)
}

func (c *LifecycleController) trackPeakSpeed(in LifecycleInput) {
	// Peak tracking starts on the ImpactObserved→PostImpact tick and runs
	// through PostImpact.
	entering := c.state == StateImpactObserved && in.MotionPhase == PhaseSeparation
	if c.state != StatePostImpact && !entering {
		return
	}
	if in.BallSpeedPxS == nil {
		return
	}
	if !c.havePeakSpeed || *in.BallSpeedPxS > c.peakSpeedPxS {
		c.peakSpeedPxS = *in.BallSpeedPxS
		c.havePeakSpeed = true
	}
}

func (c *LifecycleController) recordPhase(p MotionPhase) {
	if len(c.phaseTrace) > 0 && c.phaseTrace[len(c.phaseTrace)-1] == p {
		return
	}
	c.phaseTrace = append(c.phaseTrace, p)
	if len(c.phaseTrace) > 32 {
		c.phaseTrace = c.phaseTrace[len(c.phaseTrace)-32:]
	}
}

// finish builds the immutable ShotRecord for a terminal transition,
// advances state, and bumps the shot ID counter.
func (c *LifecycleController) finish(in LifecycleInput, refused bool, reason RefusalReason) *ShotRecord {
	c.nextID++
	rec := &ShotRecord{
		ShotID:            c.nextID,
		StartTS:           c.startTS,
		EndTS:             in.TimestampSec,
		ConfidenceAtStart: c.confidenceAtStart,
		MotionPhaseTrace:  phaseTraceString(c.phaseTrace),
		Refused:           refused,
		RefusalReason:     reason,
	}
	if c.haveImpactTS {
		ts := c.impactTS
		rec.ImpactTS = &ts
	}
	if c.havePeakSpeed {
		v := c.peakSpeedPxS
		rec.PeakSpeedPxS = &v
	}
	if refused {
		c.state = StateRefused
		rec.FinalState = StateRefused
	} else {
		c.state = StateShotFinalized
		rec.FinalState = StateShotFinalized
	}
	return rec
}

func phaseTraceString(trace []MotionPhase) string {
	s := ""
	for i, p := range trace {
		if i > 0 {
			s += "→"
		}
		s += p.String()
	}
	return s
}
