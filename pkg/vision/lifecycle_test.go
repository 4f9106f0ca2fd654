package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func speedPtr(v float64) *float64 { return &v }

func TestLifecycleControllerCanonicalShot(t *testing.T) {
	c := NewLifecycleController(DefaultLifecycleConfig())

	var rec *ShotRecord
	// Idle -> PreImpact on Impact with sufficient speed.
	rec = c.Tick(LifecycleInput{TimestampSec: 1.0, MotionPhase: PhaseImpact, BallSpeedPxS: speedPtr(600), BallLockConfidence: 8})
	require.Nil(t, rec)
	assert.Equal(t, StatePreImpact, c.State())

	// PreImpact -> ImpactObserved.
	rec = c.Tick(LifecycleInput{TimestampSec: 1.01, MotionPhase: PhaseImpact, BallSpeedPxS: speedPtr(650), BallLockConfidence: 8})
	require.Nil(t, rec)
	assert.Equal(t, StateImpactObserved, c.State())

	// ImpactObserved -> PostImpact.
	rec = c.Tick(LifecycleInput{TimestampSec: 1.05, MotionPhase: PhaseSeparation, BallSpeedPxS: speedPtr(700), BallLockConfidence: 8})
	require.Nil(t, rec)
	assert.Equal(t, StatePostImpact, c.State())

	// PostImpact -> ShotFinalized on Stabilized with sufficient peak speed.
	rec = c.Tick(LifecycleInput{TimestampSec: 1.20, MotionPhase: PhaseStabilized, BallSpeedPxS: speedPtr(10), BallLockConfidence: 1})
	require.NotNil(t, rec)
	assert.False(t, rec.Refused)
	assert.Equal(t, StateShotFinalized, rec.FinalState)
	require.NotNil(t, rec.ImpactTS)
	assert.InDelta(t, 1.01, *rec.ImpactTS, 1e-9)
	require.NotNil(t, rec.PeakSpeedPxS)
	assert.GreaterOrEqual(t, *rec.PeakSpeedPxS, 600.0)
	assert.Less(t, rec.StartTS, *rec.ImpactTS)
	assert.LessOrEqual(t, *rec.ImpactTS, rec.EndTS)

	// Terminal state stays until Idle phase + low confidence.
	rec2 := c.Tick(LifecycleInput{TimestampSec: 1.25, MotionPhase: PhaseStabilized, BallLockConfidence: 8})
	assert.Nil(t, rec2)
	assert.Equal(t, StateShotFinalized, c.State())

	rec3 := c.Tick(LifecycleInput{TimestampSec: 1.30, MotionPhase: PhaseIdle, BallLockConfidence: 1})
	assert.Nil(t, rec3)
	assert.Equal(t, StateIdle, c.State())
}

func TestLifecycleControllerImpulseWithoutSeparationRefuses(t *testing.T) {
	c := NewLifecycleController(DefaultLifecycleConfig())
	c.Tick(LifecycleInput{TimestampSec: 1.0, MotionPhase: PhaseImpact, BallSpeedPxS: speedPtr(600), BallLockConfidence: 8})
	c.Tick(LifecycleInput{TimestampSec: 1.01, MotionPhase: PhaseImpact, BallSpeedPxS: speedPtr(650), BallLockConfidence: 8})
	c.Tick(LifecycleInput{TimestampSec: 1.05, MotionPhase: PhaseSeparation, BallSpeedPxS: speedPtr(20), BallLockConfidence: 8})

	// Stabilizes with a peak speed below threshold -> refused.
	rec := c.Tick(LifecycleInput{TimestampSec: 1.20, MotionPhase: PhaseStabilized, BallSpeedPxS: speedPtr(5), BallLockConfidence: 1})
	require.NotNil(t, rec)
	assert.True(t, rec.Refused)
	assert.Equal(t, RefusalInsufficientConfidence, rec.RefusalReason)
	assert.Equal(t, StateRefused, rec.FinalState)
}

func TestLifecycleControllerForcedRefusalShortCircuits(t *testing.T) {
	c := NewLifecycleController(DefaultLifecycleConfig())
	c.Tick(LifecycleInput{TimestampSec: 1.0, MotionPhase: PhaseImpact, BallSpeedPxS: speedPtr(600), BallLockConfidence: 8})
	require.Equal(t, StatePreImpact, c.State())

	rec := c.Tick(LifecycleInput{TimestampSec: 1.5, MotionPhase: PhaseImpact, BallSpeedPxS: speedPtr(600), BallLockConfidence: 8, RefusalReason: RefusalLifecycleTimeout})
	require.NotNil(t, rec)
	assert.True(t, rec.Refused)
	assert.Equal(t, RefusalLifecycleTimeout, rec.RefusalReason)
	assert.Equal(t, StateRefused, c.State())
}

func TestLifecycleControllerNoShotWhileStationary(t *testing.T) {
	c := NewLifecycleController(DefaultLifecycleConfig())
	for i := 0; i < 50; i++ {
		rec := c.Tick(LifecycleInput{TimestampSec: float64(i) / 120.0, MotionPhase: PhaseIdle, BallLockConfidence: 8})
		require.Nil(t, rec)
	}
	assert.Equal(t, StateIdle, c.State())
}

func TestLifecycleControllerAtMostOneFinalizedPerCycle(t *testing.T) {
	c := NewLifecycleController(DefaultLifecycleConfig())
	finalized := 0
	c.Tick(LifecycleInput{TimestampSec: 1.0, MotionPhase: PhaseImpact, BallSpeedPxS: speedPtr(600), BallLockConfidence: 8})
	c.Tick(LifecycleInput{TimestampSec: 1.01, MotionPhase: PhaseImpact, BallSpeedPxS: speedPtr(650), BallLockConfidence: 8})
	c.Tick(LifecycleInput{TimestampSec: 1.05, MotionPhase: PhaseSeparation, BallSpeedPxS: speedPtr(700), BallLockConfidence: 8})
	if rec := c.Tick(LifecycleInput{TimestampSec: 1.20, MotionPhase: PhaseStabilized, BallSpeedPxS: speedPtr(10), BallLockConfidence: 1}); rec != nil && !rec.Refused {
		finalized++
	}
	// Repeated Stabilized ticks in the terminal state never emit another record.
	for i := 0; i < 10; i++ {
		if rec := c.Tick(LifecycleInput{TimestampSec: 1.20 + float64(i)*0.01, MotionPhase: PhaseStabilized, BallLockConfidence: 8}); rec != nil {
			finalized++
		}
	}
	assert.Equal(t, 1, finalized)
}
