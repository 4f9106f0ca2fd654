package vision

import "testing"

func syntheticFrame(w, h int) *PixelFrame {
	y := make([]byte, w*h)
	for i := range y {
		y[i] = byte((i * 37) % 256)
	}
	cw, ch := w/2, h/2
	cbcr := make([]byte, cw*ch*2)
	for i := 0; i < cw*ch; i++ {
		cbcr[i*2] = 128
		cbcr[i*2+1] = 128
	}
	return &PixelFrame{PlaneY: y, PlaneCbCr: cbcr, Width: w, Height: h}
}

func TestDetectorHandlesNilAndDegenerateInput(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	if c, dots := d.Detect(nil, nil); c != nil || dots != nil {
		t.Fatal("nil frame must yield nil output")
	}
	if c, dots := d.Detect(&PixelFrame{}, nil); c != nil || dots != nil {
		t.Fatal("zero-sized frame must yield nil output")
	}
}

func TestDetectorGrowsROIBelowMinimum(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.UseChroma = false
	d := NewDetector(cfg)
	frame := syntheticFrame(64, 64)
	tiny := Rect{X: 30, Y: 30, W: 2, H: 2}
	corners, dots := d.Detect(frame, &tiny)
	if len(corners) != len(dots) {
		t.Fatalf("corners/dots length mismatch: %d vs %d", len(corners), len(dots))
	}
	// Should not panic and coordinates must land within frame bounds.
	for _, c := range corners {
		if c[0] < 0 || c[1] < 0 || c[0] > 64 || c[1] > 64 {
			t.Fatalf("corner out of frame bounds: %v", c)
		}
	}
}

func TestDetectorRespectsMaxCorners(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.UseChroma = false
	cfg.MaxCorners = 3
	d := NewDetector(cfg)
	frame := syntheticFrame(96, 96)
	corners, dots := d.Detect(frame, nil)
	if len(corners) > 3 || len(dots) > 3 {
		t.Fatalf("expected at most 3 corners, got %d", len(corners))
	}
}

func TestDetectorScaleSelection(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	if s := d.scaleFor(Rect{W: 50, H: 50}); s != 3 {
		t.Fatalf("expected 3x for small ROI, got %v", s)
	}
	if s := d.scaleFor(Rect{W: 150, H: 150}); s != 2 {
		t.Fatalf("expected 2x for medium ROI, got %v", s)
	}
	if s := d.scaleFor(Rect{W: 300, H: 300}); s != 1.5 {
		t.Fatalf("expected 1.5x for large ROI, got %v", s)
	}
}

func TestDetectorChromaPathProducesNoNaNCoordinates(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.UseChroma = true
	d := NewDetector(cfg)
	frame := syntheticFrame(80, 80)
	corners, _ := d.Detect(frame, nil)
	for _, c := range corners {
		if c[0] != c[0] || c[1] != c[1] { // NaN check
			t.Fatal("chroma path produced NaN coordinate")
		}
	}
}
