package vision

import "testing"

func flatPlane(w, h int, v byte) Plane {
	p := NewPlane(w, h)
	for i := range p.Pix {
		p.Pix[i] = v
	}
	return p
}

func TestFAST9FlatImageHasNoCorners(t *testing.T) {
	p := flatPlane(40, 40, 120)
	bin := FAST9Binary(p, 14)
	for i, v := range bin.Pix {
		if v != 0 {
			t.Fatalf("flat image produced a corner at index %d", i)
		}
	}
}

func TestFAST9SymmetricUnderBrightnessNegation(t *testing.T) {
	p := NewPlane(24, 24)
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			v := byte(40)
			if x > 12 {
				v = 220
			}
			p.Pix[y*p.W+x] = v
		}
	}
	negated := NewPlane(p.W, p.H)
	for i, v := range p.Pix {
		negated.Pix[i] = 255 - v
	}

	a := FAST9Binary(p, 14)
	b := FAST9Binary(negated, 14)

	countCorners := func(pl Plane) int {
		n := 0
		for _, v := range pl.Pix {
			if v != 0 {
				n++
			}
		}
		return n
	}
	// Negation swaps which run (bright vs dark) qualifies each pixel, but
	// the corner/not-corner classification itself must be unchanged.
	if countCorners(a) != countCorners(b) {
		t.Fatalf("corner count not invariant under brightness negation: %d vs %d", countCorners(a), countCorners(b))
	}
	for i := range a.Pix {
		if (a.Pix[i] != 0) != (b.Pix[i] != 0) {
			t.Fatalf("corner classification differs at index %d under negation", i)
		}
	}
}

func TestROICropThenIdentityUpscaleIsIdentity(t *testing.T) {
	p := NewPlane(30, 20)
	for i := range p.Pix {
		p.Pix[i] = byte(i % 251)
	}
	roi := Rect{X: 5, Y: 4, W: 12, H: 10}

	cropped := ROICrop(p, roi)
	upscaled := SRNearest(cropped, 1)

	if upscaled.W != cropped.W || upscaled.H != cropped.H {
		t.Fatalf("identity upscale changed dimensions: %dx%d vs %dx%d", upscaled.W, upscaled.H, cropped.W, cropped.H)
	}
	for i := range cropped.Pix {
		if cropped.Pix[i] != upscaled.Pix[i] {
			t.Fatalf("identity upscale changed pixel %d: %d vs %d", i, cropped.Pix[i], upscaled.Pix[i])
		}
	}
}

func TestPlaneNormDegenerateRange(t *testing.T) {
	p := flatPlane(4, 4, 100)
	out := PlaneNorm(p, 50, 50)
	for _, v := range out.Pix {
		if v != 0 {
			t.Fatalf("degenerate range should normalize to zero, got %d", v)
		}
	}
}

func TestYExtractAndCbExtractRejectShortBuffers(t *testing.T) {
	f := &PixelFrame{Width: 10, Height: 10, PlaneY: make([]byte, 5), PlaneCbCr: make([]byte, 5)}
	if !YExtract(f).Empty() {
		t.Fatal("expected empty plane for undersized Y buffer")
	}
	if !CbExtract(f).Empty() {
		t.Fatal("expected empty plane for undersized CbCr buffer")
	}
}
