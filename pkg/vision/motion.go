package vision

import "math"

// MotionConfig mirrors the tunables named in spec §4.4.
type MotionConfig struct {
	PresenceConfidenceThreshold float32
	MinMotionPxS                float64
	MinSustainedSpeedPxS        float64
	KineticRequiredFrames       int
	KineticDirectionDotMin      float64
	ValidityFloorPxS            float64
	ValidityMinHistoryFrames    int
	ValidityDirectionFlipWindow int
	ValidityMaxDirectionFlips   int
	ValidityMinCoherentPairs    int
	ValidityMinSpatialProgress  float64
}

// DefaultMotionConfig returns spec §4.4's default thresholds.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		PresenceConfidenceThreshold: 6.0,
		MinMotionPxS:                18.0,
		MinSustainedSpeedPxS:        18.0,
		KineticRequiredFrames:       3,
		KineticDirectionDotMin:      0.6,
		ValidityFloorPxS:            6.0,
		ValidityMinHistoryFrames:    3,
		ValidityDirectionFlipWindow: 5,
		ValidityMaxDirectionFlips:   1,
		ValidityMinCoherentPairs:    2,
		ValidityMinSpatialProgress:  3.0,
	}
}

// MotionValidity is the verdict of the Separation-only validity check.
type MotionValidity int

const (
	MotionNotJudged MotionValidity = iota
	MotionValid
	MotionInvalid
)

func (v MotionValidity) String() string {
	switch v {
	case MotionValid:
		return "Valid"
	case MotionInvalid:
		return "Invalid"
	default:
		return "NotJudged"
	}
}

type velocitySample struct {
	center [2]float32
	ts     float64
	speed  float64
	valid  bool // false for the seed sample with no prior center.
}

// MotionObserver implements spec §4.4 (C4): the ball speed tracker,
// hysteretic motion-phase derivation, kinetic eligibility, and
// Separation-only validity judgement.
//
// The literal phase formula in spec §4.4 only ever assigns Idle on its
// final branch, yet both the lifecycle controller (§4.8 rule 6) and the
// glossary require a reachable Stabilized phase. This implementation
// resolves that gap (one of the source's flagged redesign ambiguities,
// §9.1) by tracking whether the current presence episode has already
// passed through Separation; once it has, the formula's "else" branch
// yields Stabilized instead of Idle, until presence is lost entirely.
type MotionObserver struct {
	cfg MotionConfig

	history      []velocitySample
	lastCenter   [2]float32
	haveLast     bool
	wasMoving    bool
	hasSeparated bool

	kineticStreak   int
	lastUnitVel     [2]float64
	haveLastUnitVel bool
}

// NewMotionObserver creates a motion observer with the given config.
func NewMotionObserver(cfg MotionConfig) *MotionObserver {
	return &MotionObserver{cfg: cfg}
}

// Reset clears tracker state, called on ball-lock loss (spec §4.4 "Reset
// on lock loss").
func (m *MotionObserver) Reset() {
	m.history = m.history[:0]
	m.haveLast = false
	m.wasMoving = false
	m.hasSeparated = false
	m.kineticStreak = 0
	m.haveLastUnitVel = false
}

// Observe folds in one frame's presence/confidence/center and returns
// the instantaneous speed, the derived phase, and kinetic eligibility.
func (m *MotionObserver) Observe(confidence float32, center [2]float32, ts float64) (instPxS float64, phase MotionPhase, kineticEligible bool) {
	presenceOK := confidence >= m.cfg.PresenceConfidenceThreshold
	if !presenceOK {
		instPxS = 0
		phase = PhaseIdle
		m.wasMoving = false
		m.hasSeparated = false
		m.haveLast = false
		m.haveLastUnitVel = false
		m.kineticStreak = 0
		m.pushHistory(velocitySample{ts: ts, valid: false})
		return instPxS, phase, false
	}

	if m.haveLast {
		dt := ts - m.lastSampleTS()
		if dt > 0 {
			instPxS = float64(hypot32(center[0]-m.lastCenter[0], center[1]-m.lastCenter[1])) / dt
		}
	}
	movingNow := instPxS >= m.cfg.MinMotionPxS

	switch {
	case movingNow && m.wasMoving:
		phase = PhaseImpact
	case movingNow && !m.wasMoving:
		phase = PhaseApproach
	case !movingNow && m.wasMoving:
		phase = PhaseSeparation
		m.hasSeparated = true
	default:
		if m.hasSeparated {
			phase = PhaseStabilized
		} else {
			phase = PhaseIdle
		}
	}

	kineticEligible = m.updateKinetic(center, instPxS)

	m.pushHistory(velocitySample{center: center, ts: ts, speed: instPxS, valid: true})
	m.lastCenter = center
	m.haveLast = true
	m.wasMoving = movingNow
	return instPxS, phase, kineticEligible
}

func (m *MotionObserver) lastSampleTS() float64 {
	if len(m.history) == 0 {
		return 0
	}
	return m.history[len(m.history)-1].ts
}

func (m *MotionObserver) pushHistory(s velocitySample) {
	m.history = append(m.history, s)
	if len(m.history) > 64 {
		m.history = m.history[len(m.history)-64:]
	}
}

// updateKinetic implements the kinetic-eligibility rule: requiredFrames
// consecutive frames above MinSustainedSpeedPxS with direction-dot >=
// KineticDirectionDotMin between consecutive unit velocity vectors.
func (m *MotionObserver) updateKinetic(center [2]float32, speedPxS float64) bool {
	if speedPxS < m.cfg.MinSustainedSpeedPxS || !m.haveLast {
		m.kineticStreak = 0
		m.haveLastUnitVel = false
		return false
	}

	dx := float64(center[0] - m.lastCenter[0])
	dy := float64(center[1] - m.lastCenter[1])
	mag := hypot64(dx, dy)
	if mag == 0 {
		m.kineticStreak = 0
		m.haveLastUnitVel = false
		return false
	}
	unit := [2]float64{dx / mag, dy / mag}

	coherent := true
	if m.haveLastUnitVel {
		dot := unit[0]*m.lastUnitVel[0] + unit[1]*m.lastUnitVel[1]
		coherent = dot >= m.cfg.KineticDirectionDotMin
	}
	m.lastUnitVel = unit
	m.haveLastUnitVel = true

	if coherent {
		m.kineticStreak++
	} else {
		m.kineticStreak = 1
	}
	return m.kineticStreak >= m.cfg.KineticRequiredFrames
}

// ValidateSeparation judges motion validity; only meaningful when phase
// == Separation (callers must gate on that; calling it otherwise
// returns NotJudged, matching "never judges during Impact").
func (m *MotionObserver) ValidateSeparation(phase MotionPhase) MotionValidity {
	if phase != PhaseSeparation {
		return MotionNotJudged
	}
	valid := m.validSamples()
	if len(valid) < m.cfg.ValidityMinHistoryFrames {
		return MotionInvalid
	}
	last := valid[len(valid)-1]
	if last.speed < m.cfg.ValidityFloorPxS {
		return MotionInvalid
	}

	window := valid
	if len(window) > m.cfg.ValidityDirectionFlipWindow {
		window = window[len(window)-m.cfg.ValidityDirectionFlipWindow:]
	}
	flips, coherentPairs, progress := directionStats(window)
	if flips > m.cfg.ValidityMaxDirectionFlips {
		return MotionInvalid
	}
	if coherentPairs < m.cfg.ValidityMinCoherentPairs {
		return MotionInvalid
	}
	if progress < m.cfg.ValidityMinSpatialProgress {
		return MotionInvalid
	}
	return MotionValid
}

func (m *MotionObserver) validSamples() []velocitySample {
	out := make([]velocitySample, 0, len(m.history))
	for _, s := range m.history {
		if s.valid {
			out = append(out, s)
		}
	}
	return out
}

// directionStats counts direction reversals and coherent-direction pairs
// across consecutive displacement vectors in window, and sums total
// displacement magnitude ("spatial progress").
func directionStats(window []velocitySample) (flips, coherentPairs int, progress float64) {
	if len(window) < 2 {
		return 0, 0, 0
	}
	var prevDir [2]float64
	havePrevDir := false
	for i := 1; i < len(window); i++ {
		dx := float64(window[i].center[0] - window[i-1].center[0])
		dy := float64(window[i].center[1] - window[i-1].center[1])
		mag := hypot64(dx, dy)
		progress += mag
		if mag == 0 {
			continue
		}
		dir := [2]float64{dx / mag, dy / mag}
		if havePrevDir {
			dot := dir[0]*prevDir[0] + dir[1]*prevDir[1]
			if dot >= 0.6 {
				coherentPairs++
			}
			if dot < 0 {
				flips++
			}
		}
		prevDir = dir
		havePrevDir = true
	}
	return flips, coherentPairs, progress
}

func hypot64(a, b float64) float64 {
	return math.Hypot(a, b)
}
