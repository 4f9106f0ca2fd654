package vision

import "testing"

func TestRSProbeRefusesInsufficientRowSupport(t *testing.T) {
	p := NewRSProbe(DefaultRSConfig())
	obs := p.Observe([][2]float32{{1, 1}, {2, 2}}, 480)
	if obs.Outcome != RSRefusedInsufficientRowSupport {
		t.Fatalf("expected InsufficientRowSupport, got %v", obs.Outcome)
	}
}

func TestRSProbeRefusesFlatSlope(t *testing.T) {
	p := NewRSProbe(DefaultRSConfig())
	// All corners on the same row: y constant means slope of x on y is
	// undefined/degenerate and should read as ~0, well below min_slope.
	corners := make([][2]float32, 8)
	for i := range corners {
		corners[i] = [2]float32{float32(i * 10), 100}
	}
	obs := p.Observe(corners, 480)
	if obs.Outcome != RSRefusedFrameIntegrityFailure {
		t.Fatalf("expected FrameIntegrityFailure for zero-slope corners, got %v", obs.Outcome)
	}
}

func TestRSProbeObservableWithShearedCorners(t *testing.T) {
	p := NewRSProbe(DefaultRSConfig())
	corners := make([][2]float32, 20)
	for i := range corners {
		y := float32(i * 5)
		corners[i] = [2]float32{100 + y*0.5, y}
	}
	obs := p.Observe(corners, 480)
	if obs.Outcome != RSObservable {
		t.Fatalf("expected Observable for sheared corner pattern, got %v", obs.Outcome)
	}
	if obs.ZMax <= 0 {
		t.Fatalf("expected nonzero z_max, got %v", obs.ZMax)
	}
}

func TestRSWindowSnapshotValidity(t *testing.T) {
	w := NewRSWindow(DefaultRSConfig())
	w.Push([2]float32{1, 1}, 10, 0.00, 10)
	w.Push([2]float32{1, 1}, 10, 0.02, 10)
	w.Push([2]float32{1, 1}, 10, 0.04, 10)
	snap := w.Snapshot(0.05)
	if !snap.IsValid {
		t.Fatalf("expected valid window, got %+v", snap)
	}
	if snap.FrameCount != 3 {
		t.Fatalf("expected frame count 3, got %d", snap.FrameCount)
	}
}

func TestRSWindowInvalidWhenStale(t *testing.T) {
	w := NewRSWindow(DefaultRSConfig())
	w.Push([2]float32{1, 1}, 10, 0.0, 10)
	w.Push([2]float32{1, 1}, 10, 0.02, 10)
	w.Push([2]float32{1, 1}, 10, 0.04, 10)
	snap := w.Snapshot(1.0) // staleness far exceeds max
	if snap.IsValid {
		t.Fatal("expected invalid window when stale")
	}
}

func TestRSPnPBridgeSkipsInvalidWindowsAndDedupes(t *testing.T) {
	b := NewRSPnPBridge()
	v1, transitioned1 := b.Process(1.0, RSWindowSnapshot{IsValid: false})
	if v1 != RSPnPSkipped || !transitioned1 {
		t.Fatalf("expected Skipped+transition on first invalid window, got %v/%v", v1, transitioned1)
	}
	v2, transitioned2 := b.Process(1.0, RSWindowSnapshot{IsValid: false})
	if v2 != RSPnPSkipped || transitioned2 {
		t.Fatalf("expected dedup (no transition) on repeated endTS, got %v/%v", v2, transitioned2)
	}
	v3, transitioned3 := b.Process(2.0, RSWindowSnapshot{IsValid: true})
	if v3 != RSPnPFailureNotImplemented || !transitioned3 {
		t.Fatalf("expected NotImplemented+transition on valid window, got %v/%v", v3, transitioned3)
	}
}
