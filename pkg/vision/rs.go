package vision

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RSConfig mirrors the tunables named in spec §4.5.
type RSConfig struct {
	MinRowSupport       int
	MinSlope            float64
	MaxRowCorrelation   float64
	WindowMinFrames     int
	WindowMaxSpanSec    float64
	WindowMaxStaleSec   float64
	WindowCapacity      int
}

// DefaultRSConfig returns spec §4.5's default thresholds.
func DefaultRSConfig() RSConfig {
	return RSConfig{
		MinRowSupport:     6,
		MinSlope:          0.0001,
		MaxRowCorrelation: 0.85,
		WindowMinFrames:   3,
		WindowMaxSpanSec:  0.080,
		WindowMaxStaleSec: 0.080,
		WindowCapacity:    32,
	}
}

// RSProbe implements the per-frame rolling-shutter probe of spec §4.5
// (first half of C5): least-squares shear slope, row-span fraction,
// adjacent-row correlation, and envelope radius, over one frame's
// FAST-9 corner positions.
type RSProbe struct {
	cfg RSConfig
}

// NewRSProbe creates a probe with the given configuration.
func NewRSProbe(cfg RSConfig) *RSProbe { return &RSProbe{cfg: cfg} }

// Observe runs the probe over one frame's corners (full-frame pixel
// coordinates) and image height.
func (p *RSProbe) Observe(corners [][2]float32, imageHeight int) RSFrameObservation {
	n := len(corners)
	if n < p.cfg.MinRowSupport {
		return RSFrameObservation{Outcome: RSRefusedInsufficientRowSupport}
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	rowSeen := make(map[int]bool, n)
	minRow, maxRow := int(corners[0][1]), int(corners[0][1])
	var cx, cy float64
	for i, c := range corners {
		xs[i] = float64(c[0])
		ys[i] = float64(c[1])
		cx += xs[i]
		cy += ys[i]
		row := int(c[1])
		rowSeen[row] = true
		if row < minRow {
			minRow = row
		}
		if row > maxRow {
			maxRow = row
		}
	}
	cx /= float64(n)
	cy /= float64(n)

	_, beta := stat.LinearRegression(ys, xs, nil, false)
	zMax := math.Abs(beta)
	if math.IsNaN(zMax) || math.IsInf(zMax, 0) {
		zMax = 0 // degenerate (zero row-variance) input reads as no measurable shear.
	}

	rowSpanFraction := 0.0
	if imageHeight > 0 {
		rowSpanFraction = float64(maxRow-minRow) / float64(imageHeight)
	}

	activeRows := len(rowSeen)
	adjacentPairs := 0
	for r := minRow; r < maxRow; r++ {
		if rowSeen[r] && rowSeen[r+1] {
			adjacentPairs++
		}
	}
	rowCorrelation := 0.0
	if activeRows > 1 {
		rowCorrelation = float64(adjacentPairs) / float64(activeRows-1)
	}

	envelopeRadius := 0.0
	for i := range xs {
		d := hypot64(xs[i]-cx, ys[i]-cy)
		if d > envelopeRadius {
			envelopeRadius = d
		}
	}

	obs := RSFrameObservation{
		ZMax:            zMax,
		RowCorrelation:  rowCorrelation,
		RowSpanFraction: rowSpanFraction,
		EnvelopeRadius:  envelopeRadius,
		ValidRowCount:   activeRows,
	}

	switch {
	case zMax < p.cfg.MinSlope:
		obs.Outcome = RSRefusedFrameIntegrityFailure
	case rowCorrelation > p.cfg.MaxRowCorrelation:
		obs.Outcome = RSRefusedGlobalRowCorrelation
	default:
		obs.Outcome = RSObservable
	}
	return obs
}

type rsWindowSample struct {
	center     [2]float32
	radius     float32
	ts         float64
	confidence float32
}

// RSWindow is the sliding-window aggregator of spec §4.5: a ring of
// recent ball-cluster samples exposing a point-in-time validity
// snapshot.
type RSWindow struct {
	cfg     RSConfig
	samples []rsWindowSample
}

// NewRSWindow creates a window aggregator with the given configuration.
func NewRSWindow(cfg RSConfig) *RSWindow {
	capacity := cfg.WindowCapacity
	if capacity <= 0 {
		capacity = DefaultRSConfig().WindowCapacity
	}
	return &RSWindow{cfg: cfg, samples: make([]rsWindowSample, 0, capacity)}
}

// Push appends one ball-cluster sample, evicting the oldest once the
// window is at capacity.
func (w *RSWindow) Push(center [2]float32, radius float32, ts float64, confidence float32) {
	w.samples = append(w.samples, rsWindowSample{center, radius, ts, confidence})
	capacity := w.cfg.WindowCapacity
	if capacity <= 0 {
		capacity = DefaultRSConfig().WindowCapacity
	}
	if len(w.samples) > capacity {
		w.samples = w.samples[len(w.samples)-capacity:]
	}
}

// Reset empties the window.
func (w *RSWindow) Reset() { w.samples = w.samples[:0] }

// Snapshot reports the window's validity as of now.
func (w *RSWindow) Snapshot(now float64) RSWindowSnapshot {
	n := len(w.samples)
	if n == 0 {
		return RSWindowSnapshot{}
	}
	first, last := w.samples[0], w.samples[n-1]
	span := last.ts - first.ts
	staleness := now - last.ts

	allFinite := true
	for _, s := range w.samples {
		if !isFinite32(s.center[0]) || !isFinite32(s.center[1]) || !isFinite32(s.radius) {
			allFinite = false
			break
		}
	}

	valid := n >= w.cfg.WindowMinFrames &&
		span <= w.cfg.WindowMaxSpanSec &&
		staleness <= w.cfg.WindowMaxStaleSec &&
		allFinite

	return RSWindowSnapshot{
		FrameCount:   n,
		SpanSec:      span,
		StalenessSec: staleness,
		IsValid:      valid,
	}
}

func isFinite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// RSPnPBridge is the spec §4.5 "RS-PnP bridge (stub)": it accepts only
// valid windows, tracks the last processed window's end timestamp to
// avoid duplicate work, and logs only on verdict transitions. Real pose
// extraction is out of scope for this version (spec §9.3).
type RSPnPBridge struct {
	lastProcessedEndTS float64
	haveLast           bool
	lastVerdict        RSPnPVerdict
	haveLastVerdict    bool
}

// NewRSPnPBridge creates a bridge with no prior processing history.
func NewRSPnPBridge() *RSPnPBridge { return &RSPnPBridge{} }

// Process evaluates one window snapshot (with its defining last-sample
// timestamp) and returns the verdict plus whether this call represents
// a verdict transition worth logging.
func (b *RSPnPBridge) Process(windowEndTS float64, snap RSWindowSnapshot) (verdict RSPnPVerdict, transitioned bool) {
	if b.haveLast && windowEndTS == b.lastProcessedEndTS {
		return b.lastVerdict, false
	}
	b.lastProcessedEndTS = windowEndTS
	b.haveLast = true

	if !snap.IsValid {
		verdict = RSPnPSkipped
	} else {
		verdict = RSPnPFailureNotImplemented
	}

	transitioned = !b.haveLastVerdict || verdict != b.lastVerdict
	b.lastVerdict = verdict
	b.haveLastVerdict = true
	return verdict, transitioned
}
