package vision

import (
	"image"
	"sort"

	"github.com/anthonynsimon/bild/blur"
)

// ChromaEnhancement selects the post-normalization chroma filter applied
// before FAST-9, per spec §4.2 step 3.
type ChromaEnhancement int

const (
	ChromaOff ChromaEnhancement = iota
	ChromaBoxBlur
	ChromaBilateral
)

// DetectorConfig mirrors spec §6's DetectorConfig exactly.
type DetectorConfig struct {
	Fast9Threshold      int
	PreFilterGain       float32
	ChromaGain          float32
	UseChroma           bool
	ChromaEnhancement   ChromaEnhancement
	UseSuperResolution  bool
	SRScaleOverride     float32 // 0 means "auto-select".
	MaxCorners          int
}

// DefaultDetectorConfig returns spec §6's default DetectorConfig.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Fast9Threshold:     14,
		PreFilterGain:      1.35,
		ChromaGain:         4.0,
		UseChroma:          true,
		ChromaEnhancement:  ChromaOff,
		UseSuperResolution: true,
		MaxCorners:         512,
	}
}

// Detector is the orchestrator of spec §4.2 (C2): it chooses the Y or Cb
// plane, preprocesses, super-resolves, runs FAST-9, and maps corners back
// to full-frame coordinates.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// SetConfig replaces the detector's configuration.
func (d *Detector) SetConfig(cfg DetectorConfig) { d.cfg = cfg }

// Detect runs the full detection pipeline over frame restricted to roi
// (nil/empty meaning "full frame"), returning full-frame corner
// coordinates and their VisionDot projections. Never panics; any
// degenerate input yields empty output (spec §4.2 failure semantics).
func (d *Detector) Detect(frame *PixelFrame, roi *Rect) (corners []([2]float32), dots []VisionDot) {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, nil
	}

	r := Rect{X: 0, Y: 0, W: frame.Width, H: frame.Height}
	if roi != nil && !roi.Empty() {
		r = roi.Clamp(frame.Width, frame.Height)
	}
	if r.Empty() {
		r = Rect{X: 0, Y: 0, W: frame.Width, H: frame.Height}
	}
	r = growToMinimum(r, 16, frame.Width, frame.Height)
	if r.Empty() {
		return nil, nil
	}

	var source Plane
	usedChroma := false
	if d.cfg.UseChroma {
		cb := CbExtract(frame)
		if !cb.Empty() {
			cbROI := Rect{X: r.X / 2, Y: r.Y / 2, W: max(r.W/2, 1), H: max(r.H/2, 1)}
			cbROI = cbROI.Clamp(cb.W, cb.H)
			if !cbROI.Empty() {
				source = d.normalizeChroma(ROICrop(cb, cbROI))
				usedChroma = true
			}
		}
	}
	if !usedChroma {
		y := YExtract(frame)
		if y.Empty() {
			return nil, nil
		}
		source = ROICrop(y, r)
	}
	if source.Empty() {
		return nil, nil
	}

	scale := d.scaleFor(r)
	sr := source
	if d.cfg.UseSuperResolution && scale != 1 {
		sr = SRNearest(source, scale)
	}
	if sr.Empty() {
		return nil, nil
	}

	binary := FAST9Binary(sr, d.cfg.Fast9Threshold)
	scoreMap := FAST9Score(sr, d.cfg.Fast9Threshold)

	type scored struct {
		x, y  int
		score byte
	}
	var found []scored
	for y := 0; y < binary.H; y++ {
		for x := 0; x < binary.W; x++ {
			if binary.Pix[y*binary.W+x] != 0 {
				found = append(found, scored{x, y, scoreMap.Pix[y*binary.W+x]})
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].score > found[j].score })

	maxCorners := d.cfg.MaxCorners
	if maxCorners <= 0 {
		maxCorners = DefaultDetectorConfig().MaxCorners
	}
	if len(found) > maxCorners {
		found = found[:maxCorners]
	}

	// Coordinate space of `source` may be half-resolution (chroma path);
	// map SR space -> source space -> full-frame space in one step.
	planeToFullX, planeToFullY := float32(1), float32(1)
	offX, offY := float32(r.X), float32(r.Y)
	if usedChroma {
		planeToFullX, planeToFullY = 2, 2
		offX, offY = float32(r.X/2)*2, float32(r.Y/2)*2
	}

	corners = make([][2]float32, 0, len(found))
	dots = make([]VisionDot, 0, len(found))
	for i, s := range found {
		fx := offX + (float32(s.x)/scale)*planeToFullX
		fy := offY + (float32(s.y)/scale)*planeToFullY
		corners = append(corners, [2]float32{fx, fy})
		dots = append(dots, VisionDot{
			ID:       int32(i),
			Position: [2]float32{fx, fy},
			Score:    float32(s.score) / 255,
		})
	}
	return corners, dots
}

// normalizeChroma implements spec §4.2 step 3: |Cb-128| scaled by gains,
// clipped, then (optionally) filtered.
func (d *Detector) normalizeChroma(p Plane) Plane {
	if p.Empty() {
		return p
	}
	out := NewPlane(p.W, p.H)
	gain := clampRange(d.cfg.ChromaGain, 1, 8)
	pre := clampRange(d.cfg.PreFilterGain, 0.5, 2)
	for i, v := range p.Pix {
		f := float32(int(v) - 128)
		if f < 0 {
			f = -f
		}
		f *= gain * pre
		if f > 255 {
			f = 255
		}
		out.Pix[i] = byte(f)
	}

	switch d.cfg.ChromaEnhancement {
	case ChromaBoxBlur:
		return matFromBildGray(blur.Box(planeToGray(out), 1.0))
	case ChromaBilateral:
		return bilateralFilter(out, 2, 25)
	default:
		return out
	}
}

// scaleFor auto-selects the super-resolution scale per spec §4.2 step 4,
// unless the caller has fixed an override.
func (d *Detector) scaleFor(roi Rect) float32 {
	if d.cfg.SRScaleOverride > 0 {
		return d.cfg.SRScaleOverride
	}
	minDim := roi.W
	if roi.H < minDim {
		minDim = roi.H
	}
	switch {
	case minDim < 100:
		return 3
	case minDim < 180:
		return 2
	default:
		return 1.5
	}
}

// growToMinimum symmetrically grows r around its center to at least
// minSize on each axis, then re-clamps to the frame.
func growToMinimum(r Rect, minSize, frameW, frameH int) Rect {
	if r.W >= minSize && r.H >= minSize {
		return r
	}
	cx, cy := r.X+r.W/2, r.Y+r.H/2
	w, h := r.W, r.H
	if w < minSize {
		w = minSize
	}
	if h < minSize {
		h = minSize
	}
	grown := Rect{X: cx - w/2, Y: cy - h/2, W: w, H: h}
	return grown.Clamp(frameW, frameH)
}

func clampRange(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// planeToGray/matFromBildGray bridge to bild's image.Image-based blur API
// without leaving the Plane representation for anything but the filter
// call itself.
func planeToGray(p Plane) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, p.W, p.H))
	copy(img.Pix, p.Pix)
	return img
}

func matFromBildGray(img *image.RGBA) Plane {
	b := img.Bounds()
	out := NewPlane(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Pix[y*out.W+x] = byte(r >> 8)
		}
	}
	return out
}

// bilateralFilter is a small pure-Go joint space/range weighted filter.
// No lightweight non-cgo bilateral filter exists in the retrieval pack
// (OpenCV's is cgo-only), and pulling gocv into the always-on detection
// path would make C2 untestable without a native OpenCV install, so this
// is hand-rolled (see DESIGN.md "standard-library justifications").
func bilateralFilter(p Plane, radius int, sigmaRange float32) Plane {
	if p.Empty() {
		return p
	}
	out := NewPlane(p.W, p.H)
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			center := float32(p.at(x, y))
			var wSum, vSum float32
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					v := float32(p.at(x+dx, y+dy))
					spatial := float32(dx*dx + dy*dy)
					rangeDiff := v - center
					w := gaussianWeight(spatial, float32(radius)) * gaussianWeight(rangeDiff*rangeDiff, sigmaRange)
					wSum += w
					vSum += w * v
				}
			}
			if wSum > 0 {
				out.Pix[y*p.W+x] = byte(vSum / wSum)
			}
		}
	}
	return out
}

func gaussianWeight(distSq, sigma float32) float32 {
	if sigma <= 0 {
		return 0
	}
	return expApprox(-distSq / (2 * sigma * sigma))
}

// expApprox is a small series approximation of e^x for x<=0, adequate
// for filter weights (no precision requirement beyond "monotonic,
// roughly Gaussian falloff").
func expApprox(x float32) float32 {
	if x < -10 {
		return 0
	}
	// exp(x) = 1/exp(-x); use a few Taylor terms of exp(-x) for -x in [0,10].
	nx := -x
	term := float32(1)
	sum := float32(1)
	for i := 1; i < 20; i++ {
		term *= nx / float32(i)
		sum += term
	}
	return 1 / sum
}
