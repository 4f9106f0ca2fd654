package vision

import "math"

// BallLockConfig mirrors spec §6's BallLockConfig.
type BallLockConfig struct {
	MinCornerCount int
	MaxCornerCount int

	MinRadiusPx float32
	MaxRadiusPx float32

	OutlierTrimFraction float32 // fraction of farthest points dropped before recomputing centroid/radius.
	RadiusHistoryLen    int
	EMAAlpha            float32

	// CountWeight, SymmetryWeight, and RadiusWeight weight the three
	// quality sub-scores (spec §4.3 step 3); they need not sum to 1, but
	// the spec default does.
	CountWeight    float32
	SymmetryWeight float32
	RadiusWeight   float32

	// QLock and QStay are the spec §4.3 quality thresholds: QLock gates
	// Idle→Candidate and Candidate→Locked; QStay gates the floor below
	// which Candidate/Locked give way to Idle.
	QLock float32
	QStay float32

	LockAfterN   int // consecutive good frames required for Candidate→Locked.
	UnlockAfterM int // consecutive sub-QStay frames required for Locked→Idle.

	// RoiRadiusFactor scales RadiusPx down to the next frame's detection
	// ROI half-side while Locked (spec §4.3 step 5).
	RoiRadiusFactor float32
}

// DefaultBallLockConfig returns spec §6's default BallLockConfig.
func DefaultBallLockConfig() BallLockConfig {
	return BallLockConfig{
		MinCornerCount:      6,
		MaxCornerCount:      60,
		MinRadiusPx:         10,
		MaxRadiusPx:         200,
		OutlierTrimFraction: 0.15,
		RadiusHistoryLen:    6,
		EMAAlpha:            0.25,
		CountWeight:         0.40,
		SymmetryWeight:      0.40,
		RadiusWeight:        0.20,
		QLock:               0.55,
		QStay:               0.45,
		LockAfterN:          3,
		UnlockAfterM:        3,
		RoiRadiusFactor:     0.90,
	}
}

// BallLock implements the ball cluster/lock state machine of spec §4.3:
// it aggregates per-frame corners into a single ball-like cluster,
// scores its quality, and advances Idle→Candidate→Locked (and back) on
// consecutive-frame hysteresis.
type BallLock struct {
	cfg           BallLockConfig
	state         LockState
	ema           *EMA2D
	radiusHist    *RadiusHistory
	goodStreak    int
	badStreak     int
	configVersion int
}

// NewBallLock creates a ball lock tracker with the given configuration.
func NewBallLock(cfg BallLockConfig) *BallLock {
	return &BallLock{
		cfg:        cfg,
		state:      LockIdle,
		ema:        NewEMA2D(cfg.EMAAlpha),
		radiusHist: NewRadiusHistory(max(cfg.RadiusHistoryLen, 1)),
	}
}

// State returns the current lock state.
func (b *BallLock) State() LockState { return b.state }

// ResetIfVersionChanged drops all lock state when the caller's config
// version counter has advanced, per spec §9's config reset decision.
func (b *BallLock) ResetIfVersionChanged(version int) {
	if version == b.configVersion {
		return
	}
	b.configVersion = version
	b.state = LockIdle
	b.goodStreak, b.badStreak = 0, 0
	b.ema.Reset()
	b.radiusHist.Reset()
}

// Observe folds in one frame's corner set and returns the updated
// cluster snapshot together with the (possibly transitioned) lock
// state.
func (b *BallLock) Observe(corners [][2]float32) (BallClusterSnapshot, LockState) {
	snap := b.cluster(corners)
	b.advance(snap.Quality)
	return snap, b.state
}

// cluster computes the centroid/radius/quality of the whole corner set
// (no sub-group is selected), trimming the farthest OutlierTrimFraction of points
// before the final centroid/radius pass (spec §4.3 step 2), and rejects
// the frame outright if the trimmed cluster's corner count or radius
// falls outside the configured bounds (spec §4.3 step 1).
func (b *BallLock) cluster(corners [][2]float32) BallClusterSnapshot {
	n := len(corners)
	if n < b.cfg.MinCornerCount {
		return BallClusterSnapshot{}
	}

	cx, cy := meanPoint(corners)
	dists := make([]float32, n)
	for i, c := range corners {
		dists[i] = hypot32(c[0]-cx, c[1]-cy)
	}

	keep := trimFarthest(corners, dists, b.cfg.OutlierTrimFraction)
	if len(keep) < b.cfg.MinCornerCount {
		keep = corners
	}
	cx, cy = meanPoint(keep)

	trimmedDists := make([]float32, len(keep))
	for i, c := range keep {
		trimmedDists[i] = hypot32(c[0]-cx, c[1]-cy)
	}
	radius := percentile(trimmedDists, 0.90)

	if len(keep) > b.cfg.MaxCornerCount || radius < b.cfg.MinRadiusPx || radius > b.cfg.MaxRadiusPx {
		return BallClusterSnapshot{}
	}

	b.radiusHist.Push(radius)

	countScore := countScoreOf(len(keep), b.cfg.MinCornerCount, b.cfg.MaxCornerCount)
	symmetryScore := symmetryScoreOf(keep, [2]float32{cx, cy})
	stabilityScore := b.radiusStabilityScore()

	quality := b.cfg.CountWeight*countScore + b.cfg.SymmetryWeight*symmetryScore + b.cfg.RadiusWeight*stabilityScore

	smoothed := b.ema.Update([2]float32{cx, cy})

	return BallClusterSnapshot{
		Center:      smoothed,
		RadiusPx:    radius,
		CornerCount: uint16(len(keep)),
		Quality:     clamp01(quality),
	}
}

// countScoreOf saturates linearly over [minCorners, maxCorners].
func countScoreOf(n, minCorners, maxCorners int) float32 {
	span := maxCorners - minCorners
	if span <= 0 {
		return 1
	}
	return clamp01(float32(n-minCorners) / float32(span))
}

// radiusStabilityScore rewards low relative dispersion of recent radius
// samples: 1 - MAD(radius_history)/median(radius_history) (spec §4.3).
func (b *BallLock) radiusStabilityScore() float32 {
	if b.radiusHist.Len() < 2 {
		return 0.5 // insufficient history: neutral score, neither penalized nor rewarded.
	}
	median, mad := b.radiusHist.MedianAndMAD()
	if median <= 0 {
		return 0
	}
	return clamp01(1 - mad/median)
}

// advance runs the Idle/Candidate/Locked hysteresis table of spec §4.3,
// driven purely by QLock/QStay/LockAfterN/UnlockAfterM:
//
//	Idle      | quality >= QLock                  -> Candidate (good=1)
//	Candidate | quality >= QLock                   -> good+=1; good>=LockAfterN -> Locked
//	Candidate | QStay <= quality < QLock            -> Candidate, good unchanged
//	Candidate | quality < QStay                     -> Idle (good=0)
//	Locked    | quality >= QStay                    -> Locked (bad=0)
//	Locked    | quality < QStay                     -> bad+=1; bad>=UnlockAfterM -> Idle
func (b *BallLock) advance(quality float32) {
	switch b.state {
	case LockIdle:
		if quality >= b.cfg.QLock {
			b.goodStreak = 1
			b.state = LockCandidate
		} else {
			b.goodStreak = 0
		}
	case LockCandidate:
		switch {
		case quality >= b.cfg.QLock:
			b.goodStreak++
			if b.goodStreak >= b.cfg.LockAfterN {
				b.state = LockLocked
				b.goodStreak, b.badStreak = 0, 0
			}
		case quality >= b.cfg.QStay:
			// Between QStay and QLock: hold position, streak unchanged.
		default:
			b.state = LockIdle
			b.goodStreak = 0
		}
	case LockLocked:
		if quality >= b.cfg.QStay {
			b.badStreak = 0
		} else {
			b.badStreak++
			if b.badStreak >= b.cfg.UnlockAfterM {
				b.state = LockIdle
				b.goodStreak, b.badStreak = 0, 0
				b.ema.Reset()
				b.radiusHist.Reset()
			}
		}
	}
}

// LockedROI computes the ROI a detector should restrict itself to for
// the next frame while locked: a square centered on the smoothed
// center, shrunk from the observed radius by roiRadiusFactor (spec
// §4.3 step 5).
func LockedROI(snap BallClusterSnapshot, roiRadiusFactor float32, frameW, frameH int) Rect {
	if snap.Quality <= 0 || snap.RadiusPx <= 0 {
		return Rect{}
	}
	half := snap.RadiusPx * roiRadiusFactor
	r := Rect{
		X: int(snap.Center[0] - half),
		Y: int(snap.Center[1] - half),
		W: int(half * 2),
		H: int(half * 2),
	}
	return r.Clamp(frameW, frameH)
}

func meanPoint(pts [][2]float32) (float32, float32) {
	if len(pts) == 0 {
		return 0, 0
	}
	var sx, sy float32
	for _, p := range pts {
		sx += p[0]
		sy += p[1]
	}
	n := float32(len(pts))
	return sx / n, sy / n
}

// trimFarthest drops the farthest-by-distance fraction of points,
// returning the retained subset in original order.
func trimFarthest(pts [][2]float32, dists []float32, fraction float32) [][2]float32 {
	n := len(pts)
	if n == 0 {
		return nil
	}
	dropN := int(float32(n) * fraction)
	if dropN <= 0 {
		return pts
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := 1; i < n; i++ {
		for j := i; j > 0 && dists[order[j-1]] < dists[order[j]]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
	dropSet := make(map[int]bool, dropN)
	for i := 0; i < dropN && i < n; i++ {
		dropSet[order[i]] = true
	}
	out := make([][2]float32, 0, n-dropN)
	for i, p := range pts {
		if !dropSet[i] {
			out = append(out, p)
		}
	}
	return out
}

// percentile computes the p-th percentile (0..1) of dists as the
// element at index floor(p*(n-1)) of a sorted copy, without
// interpolation.
func percentile(dists []float32, p float32) float32 {
	n := len(dists)
	if n == 0 {
		return 0
	}
	cp := make([]float32, n)
	copy(cp, dists)
	sortFloat32(cp)
	idx := int(p * float32(n-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return cp[idx]
}

// symmetryScoreOf rewards point sets whose angular spread around center
// is close to uniform: it sorts points by angle, measures each
// consecutive gap (wrapping around the full circle) against the gap a
// perfectly uniform arrangement would have, and scores
// 1 - MAD(gap deviation)/π. A cluster bunched into one angular sector
// (occlusion, noise blob) leaves one gap far larger than expected and
// scores low; corners spread around the ball's circumference score
// close to 1.
func symmetryScoreOf(pts [][2]float32, center [2]float32) float32 {
	n := len(pts)
	if n < 2 {
		return 0
	}
	angles := make([]float32, n)
	for i, p := range pts {
		a := atan2f32(p[1]-center[1], p[0]-center[0])
		if a < 0 {
			a += float32(2 * math.Pi)
		}
		angles[i] = a
	}
	sortFloat32(angles)

	expected := float32(2*math.Pi) / float32(n)
	var sum float32
	for i := 0; i < n; i++ {
		next := angles[0] + float32(2*math.Pi)
		if i+1 < n {
			next = angles[i+1]
		}
		gap := next - angles[i]
		sum += abs32(gap - expected)
	}
	mad := sum / float32(n)
	return clamp01(1 - mad/float32(math.Pi))
}
