package vision

import "testing"

func TestMotionObserverIdleWithoutPresence(t *testing.T) {
	m := NewMotionObserver(DefaultMotionConfig())
	_, phase, elig := m.Observe(0, [2]float32{0, 0}, 0)
	if phase != PhaseIdle || elig {
		t.Fatalf("expected Idle/ineligible with no presence, got %v/%v", phase, elig)
	}
}

func TestMotionObserverApproachThenImpact(t *testing.T) {
	m := NewMotionObserver(DefaultMotionConfig())
	m.Observe(10, [2]float32{0, 0}, 0.0)
	_, phase1, _ := m.Observe(10, [2]float32{100, 0}, 0.1) // 1000 px/s: moving, was not moving
	if phase1 != PhaseApproach {
		t.Fatalf("expected Approach on first fast move, got %v", phase1)
	}
	_, phase2, _ := m.Observe(10, [2]float32{200, 0}, 0.2) // still moving, was moving
	if phase2 != PhaseImpact {
		t.Fatalf("expected Impact on sustained motion, got %v", phase2)
	}
}

func TestMotionObserverSeparationThenStabilized(t *testing.T) {
	m := NewMotionObserver(DefaultMotionConfig())
	m.Observe(10, [2]float32{0, 0}, 0.0)
	m.Observe(10, [2]float32{100, 0}, 0.1)  // Approach
	m.Observe(10, [2]float32{200, 0}, 0.2)  // Impact
	_, sep, _ := m.Observe(10, [2]float32{200, 0}, 0.3) // stopped: Separation
	if sep != PhaseSeparation {
		t.Fatalf("expected Separation when motion stops, got %v", sep)
	}
	_, stab, _ := m.Observe(10, [2]float32{200, 0}, 0.4) // still stopped
	if stab != PhaseStabilized {
		t.Fatalf("expected Stabilized after settling post-Separation, got %v", stab)
	}
}

func TestMotionObserverResetClearsHasSeparated(t *testing.T) {
	m := NewMotionObserver(DefaultMotionConfig())
	m.Observe(10, [2]float32{0, 0}, 0.0)
	m.Observe(10, [2]float32{100, 0}, 0.1)
	m.Observe(10, [2]float32{200, 0}, 0.2)
	m.Observe(10, [2]float32{200, 0}, 0.3) // Separation
	m.Reset()
	m.Observe(10, [2]float32{0, 0}, 1.0)
	_, phase, _ := m.Observe(10, [2]float32{0, 0}, 1.1)
	if phase != PhaseIdle {
		t.Fatalf("expected Idle (not Stabilized) after Reset, got %v", phase)
	}
}

func TestKineticEligibilityRequiresSustainedCoherentMotion(t *testing.T) {
	m := NewMotionObserver(DefaultMotionConfig())
	m.Observe(10, [2]float32{0, 0}, 0.0)
	var elig bool
	for i := 1; i <= 3; i++ {
		_, _, elig = m.Observe(10, [2]float32{float32(i) * 100, 0}, float64(i)*0.1)
	}
	if !elig {
		t.Fatal("expected kinetic eligibility after 3 consecutive coherent fast frames")
	}
}

func TestValidateSeparationNotJudgedOutsideSeparation(t *testing.T) {
	m := NewMotionObserver(DefaultMotionConfig())
	if v := m.ValidateSeparation(PhaseImpact); v != MotionNotJudged {
		t.Fatalf("expected NotJudged outside Separation, got %v", v)
	}
}

func TestValidateSeparationInvalidWithInsufficientHistory(t *testing.T) {
	m := NewMotionObserver(DefaultMotionConfig())
	m.Observe(10, [2]float32{0, 0}, 0.0)
	if v := m.ValidateSeparation(PhaseSeparation); v != MotionInvalid {
		t.Fatalf("expected Invalid with <3 history frames, got %v", v)
	}
}
