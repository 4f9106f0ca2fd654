package vision

import (
	"math"
	"testing"
)

func ringOfPoints(center [2]float32, radius float32, n int) [][2]float32 {
	pts := make([][2]float32, n)
	for i := 0; i < n; i++ {
		ang := float64(i) / float64(n) * 2 * math.Pi
		pts[i] = [2]float32{
			center[0] + radius*float32(math.Cos(ang)),
			center[1] + radius*float32(math.Sin(ang)),
		}
	}
	return pts
}

func TestBallLockLocksOnSustainedGoodQuality(t *testing.T) {
	cfg := DefaultBallLockConfig()
	cfg.MinCornerCount = 6
	bl := NewBallLock(cfg)

	pts := ringOfPoints([2]float32{100, 100}, 20, 16)
	var lastState LockState
	for i := 0; i < 10; i++ {
		_, lastState = bl.Observe(pts)
	}
	if lastState != LockLocked {
		t.Fatalf("expected Locked after sustained good frames, got %v", lastState)
	}
}

func TestBallLockStaysIdleBelowMinCornerCount(t *testing.T) {
	cfg := DefaultBallLockConfig()
	bl := NewBallLock(cfg)
	pts := [][2]float32{{1, 1}, {2, 2}}
	snap, state := bl.Observe(pts)
	if state != LockIdle || snap.Quality != 0 {
		t.Fatalf("expected Idle/zero-quality below MinCornerCount, got %v / %v", state, snap.Quality)
	}
}

func TestBallLockDropsToIdleAfterSustainedBadQuality(t *testing.T) {
	cfg := DefaultBallLockConfig()
	bl := NewBallLock(cfg)
	good := ringOfPoints([2]float32{50, 50}, 15, 16)
	for i := 0; i < 10; i++ {
		bl.Observe(good)
	}
	if bl.State() != LockLocked {
		t.Fatalf("setup failed to reach Locked, got %v", bl.State())
	}
	bad := [][2]float32{{0, 0}, {1, 1}}
	var state LockState
	for i := 0; i < cfg.UnlockAfterM+1; i++ {
		_, state = bl.Observe(bad)
	}
	if state != LockIdle {
		t.Fatalf("expected Idle after sustained bad frames, got %v", state)
	}
}

func TestResetIfVersionChangedClearsState(t *testing.T) {
	cfg := DefaultBallLockConfig()
	bl := NewBallLock(cfg)
	good := ringOfPoints([2]float32{70, 70}, 15, 16)
	for i := 0; i < 10; i++ {
		bl.Observe(good)
	}
	if bl.State() != LockLocked {
		t.Fatalf("setup failed to reach Locked, got %v", bl.State())
	}
	bl.ResetIfVersionChanged(1)
	if bl.State() != LockIdle {
		t.Fatalf("expected Idle after config version bump, got %v", bl.State())
	}
}

func TestLockedROIDegenerateOnZeroQuality(t *testing.T) {
	r := LockedROI(BallClusterSnapshot{}, 0.5, 640, 480)
	if !r.Empty() {
		t.Fatalf("expected empty ROI for zero-quality snapshot, got %v", r)
	}
}
