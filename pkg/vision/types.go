// Package vision implements the real-time shot-detection core of a golf
// launch monitor: GPU-style feature extraction, ball cluster/lock, motion
// and rolling-shutter observation, and a single authoritative per-shot
// lifecycle controller.
//
// # Quick start
//
// Build a pipeline with default configuration and feed it frames one at a
// time as they arrive from capture:
//
//	p := vision.NewPipeline(nil)
//	for frame := range frames {
//	    if rec := p.ProcessFrame(frame, nil); rec != nil {
//	        fmt.Printf("shot: refused=%v reason=%v\n", rec.Refused, rec.RefusalReason)
//	    }
//	}
//
// Every type in this file is the single canonical schema for its contract;
// the original system carried multiple competing definitions of several of
// these (VisionDot, ShotRecord, the logging facade) and this package
// deliberately keeps exactly one.
package vision

import "fmt"

// Rect is an axis-aligned pixel rectangle, half-open on the max edges.
type Rect struct {
	X, Y, W, H int
}

// Intersect returns the intersection of r and o, with Empty() true if they
// do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.W, o.X+o.W), min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Empty reports whether the rectangle covers zero area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Clamp restricts r to lie within frame bounds [0,0,w,h].
func (r Rect) Clamp(w, h int) Rect {
	return r.Intersect(Rect{X: 0, Y: 0, W: w, H: h})
}

// PixelFrame is the immutable, borrowed input to a single ProcessFrame
// call: a biplanar 4:2:0 full-range YCbCr buffer plus its timestamp.
// The capture collaborator owns the backing bytes; the pipeline and its
// observers never retain a PixelFrame past the frame in which it arrives.
type PixelFrame struct {
	PlaneY     []byte // W*H luma samples.
	PlaneCbCr  []byte // (W/2)*(H/2)*2 interleaved Cb,Cr samples.
	Width      int
	Height     int
	TimestampSec float64
}

// Intrinsics are the optional camera intrinsics passed alongside a frame;
// required only by the (unimplemented) RS-PnP bridge.
type Intrinsics struct {
	Fx, Fy, Cx, Cy float64
}

// Corner is a FAST-9 detection in ROI super-resolution coordinates.
type Corner struct {
	X, Y  uint16
	Score uint8
}

// MaxCorners is the hard capacity bound on a single frame's corner list.
const MaxCorners = 4096

// VisionDot is a single detected feature in full-frame coordinates. Its Id
// is a positional index within the current frame's detection only —
// cross-frame identity is not maintained by this package.
type VisionDot struct {
	ID        int32
	Position  [2]float32
	Score     float32
	Predicted bool
	Velocity  [2]float32
}

// BallClusterSnapshot is the best ball-like aggregation of corners found
// in a single frame, or the zero value with Quality 0 when none qualifies.
type BallClusterSnapshot struct {
	Center      [2]float32
	RadiusPx    float32
	CornerCount uint16
	Quality     float32 // in [0,1]
}

// LockState is one of the three states of the BallLock state machine.
type LockState int

const (
	LockIdle LockState = iota
	LockCandidate
	LockLocked
)

func (s LockState) String() string {
	switch s {
	case LockIdle:
		return "idle"
	case LockCandidate:
		return "candidate"
	case LockLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// MotionPhase is the per-frame motion classification derived from
// presence and instantaneous speed.
type MotionPhase int

const (
	PhaseIdle MotionPhase = iota
	PhaseApproach
	PhaseImpact
	PhaseSeparation
	PhaseStabilized
)

func (p MotionPhase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseApproach:
		return "Approach"
	case PhaseImpact:
		return "Impact"
	case PhaseSeparation:
		return "Separation"
	case PhaseStabilized:
		return "Stabilized"
	default:
		return "Unknown"
	}
}

// RSOutcome classifies whether a per-frame RS probe produced a usable
// observation.
type RSOutcome int

const (
	RSObservable RSOutcome = iota
	RSRefusedInsufficientRowSupport
	RSRefusedFrameIntegrityFailure
	RSRefusedGlobalRowCorrelation
)

func (o RSOutcome) String() string {
	switch o {
	case RSObservable:
		return "Observable"
	case RSRefusedInsufficientRowSupport:
		return "Refused(InsufficientRowSupport)"
	case RSRefusedFrameIntegrityFailure:
		return "Refused(FrameIntegrityFailure)"
	case RSRefusedGlobalRowCorrelation:
		return "Refused(GlobalRowCorrelation)"
	default:
		return "Refused(Unknown)"
	}
}

// RSFrameObservation is the immutable per-frame output of the rolling
// shutter probe (C5).
type RSFrameObservation struct {
	ZMax            float64
	RowCorrelation  float64
	RowSpanFraction float64
	EnvelopeRadius  float64
	ValidRowCount   int
	Outcome         RSOutcome
}

// RSWindowSnapshot describes the current state of the sliding RS window
// aggregator.
type RSWindowSnapshot struct {
	FrameCount   int
	SpanSec      float64
	StalenessSec float64
	IsValid      bool
}

// RSPnPVerdict is the result of the RS-PnP bridge stub.
type RSPnPVerdict int

const (
	RSPnPSkipped RSPnPVerdict = iota
	RSPnPFailureNotImplemented
)

// ImpulseObservation is the (purely observational) result of the impact
// impulse observer.
type ImpulseObservation struct {
	Detected           bool
	DeltaSpeedPxPerSec float64
	FramesRemaining    uint8
}

// CadenceVerdict classifies the estimated capture cadence.
type CadenceVerdict int

const (
	CadenceUnknown CadenceVerdict = iota
	CadenceValid
	CadenceInvalid
)

func (v CadenceVerdict) String() string {
	switch v {
	case CadenceValid:
		return "Valid"
	case CadenceInvalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// CadenceResult pairs a verdict with the fps estimate it was derived from.
type CadenceResult struct {
	Verdict CadenceVerdict
	FPS     float64
}

// RefusalReason is the closed set of reasons the lifecycle controller may
// cite when it refuses a shot.
type RefusalReason int

const (
	RefusalNone RefusalReason = iota
	RefusalInsufficientConfidence
	RefusalInsufficientMotion
	RefusalMarkerLost
	RefusalAmbiguousDetection
	RefusalLifecycleTimeout
	RefusalPostImpactTimeout
)

func (r RefusalReason) String() string {
	switch r {
	case RefusalNone:
		return ""
	case RefusalInsufficientConfidence:
		return "InsufficientConfidence"
	case RefusalInsufficientMotion:
		return "InsufficientMotion"
	case RefusalMarkerLost:
		return "MarkerLost"
	case RefusalAmbiguousDetection:
		return "AmbiguousDetection"
	case RefusalLifecycleTimeout:
		return "LifecycleTimeout"
	case RefusalPostImpactTimeout:
		return "PostImpactTimeout"
	default:
		return "Unknown"
	}
}

// LifecycleState is one of the six states of the single shot state
// machine owned by the Lifecycle Controller (C8).
type LifecycleState int

const (
	StateIdle LifecycleState = iota
	StatePreImpact
	StateImpactObserved
	StatePostImpact
	StateShotFinalized
	StateRefused
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePreImpact:
		return "PreImpact"
	case StateImpactObserved:
		return "ImpactObserved"
	case StatePostImpact:
		return "PostImpact"
	case StateShotFinalized:
		return "ShotFinalized"
	case StateRefused:
		return "Refused"
	default:
		return "Unknown"
	}
}

// ShotRecord is the single, immutable terminal output of the Lifecycle
// Controller. At most one ShotRecord with Refused=false is emitted per
// Idle→non-Idle→Idle cycle (spec §8 invariant 1).
type ShotRecord struct {
	ShotID            uint32
	StartTS           float64
	ImpactTS          *float64
	EndTS             float64
	ConfidenceAtStart float32
	MotionPhaseTrace  string
	PeakSpeedPxS      *float64
	Refused           bool
	RefusalReason     RefusalReason
	FinalState        LifecycleState
}

func (s ShotRecord) String() string {
	if s.Refused {
		return fmt.Sprintf("ShotRecord{id=%d refused reason=%s start=%.3f end=%.3f}",
			s.ShotID, s.RefusalReason, s.StartTS, s.EndTS)
	}
	return fmt.Sprintf("ShotRecord{id=%d finalized start=%.3f end=%.3f peak=%v}",
		s.ShotID, s.StartTS, s.EndTS, s.PeakSpeedPxS)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
