//go:build cgo
// +build cgo

// Package capture implements the offline runner (spec §4.10, C10): a
// deterministic video-file frame source that hands the vision pipeline
// the same (pixel_buffer, timestamp) shape live capture would, so the
// same Pipeline.ProcessFrame call path exercises both.
package capture

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strings"

	"gocv.io/x/gocv"

	"github.com/cor-mez/launchcore/pkg/vision"
)

// VideoFileSource reads a video file frame by frame with gocv.VideoCapture
// and converts each decoded BGR frame into the biplanar 4:2:0 full-range
// YCbCr buffer the vision pipeline expects (spec §6's fixed frame format).
// Grounded on the teacher's OpenCVCamera (camera_gocv.go): same
// gocv.VideoCapture ownership and BGR conversion idiom (without a mutex:
// a VideoFileSource is not safe for concurrent use),
// repointed from a live device to a file and from RGB24 to biplanar YCbCr.
type VideoFileSource struct {
	cap *gocv.VideoCapture

	width, height int
	frameFPS      float64
	assumedFPS    float64

	frameIndex int

	bgr   gocv.Mat
	ycrcb gocv.Mat
	cr    gocv.Mat
	cb    gocv.Mat
	crLo  gocv.Mat
	cbLo  gocv.Mat
}

// OpenVideoFile opens path for deterministic frame-by-frame decode.
// assumedFPS is used to synthesize per-frame timestamps only when the
// container itself reports a zero or nonsensical frame rate.
func OpenVideoFile(path string, assumedFPS float64) (*VideoFileSource, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening video file %q: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video file %q did not open", path)
	}

	width := int(vc.Get(gocv.VideoCaptureFrameWidth))
	height := int(vc.Get(gocv.VideoCaptureFrameHeight))
	fps := vc.Get(gocv.VideoCaptureFPS)
	if assumedFPS <= 0 {
		assumedFPS = 120
	}

	return &VideoFileSource{
		cap:        vc,
		width:      width,
		height:     height,
		frameFPS:   fps,
		assumedFPS: assumedFPS,
		bgr:        gocv.NewMat(),
		ycrcb:      gocv.NewMat(),
		cr:         gocv.NewMat(),
		cb:         gocv.NewMat(),
		crLo:       gocv.NewMat(),
		cbLo:       gocv.NewMat(),
	}, nil
}

// Close releases the underlying capture and scratch Mats.
func (s *VideoFileSource) Close() error {
	s.bgr.Close()
	s.ycrcb.Close()
	s.cr.Close()
	s.cb.Close()
	s.crLo.Close()
	s.cbLo.Close()
	return s.cap.Close()
}

// Dimensions reports the container's reported frame size.
func (s *VideoFileSource) Dimensions() (width, height int) { return s.width, s.height }

// EffectiveFPS returns the frame rate used to synthesize timestamps: the
// container's reported rate when sane, else the configured fallback
// (spec SPEC_FULL.md §4 "Offline runner frame pacing").
func (s *VideoFileSource) EffectiveFPS() float64 {
	if s.frameFPS > 1 && s.frameFPS < 1000 {
		return s.frameFPS
	}
	return s.assumedFPS
}

// Next decodes the next frame and returns it as a *vision.PixelFrame with
// a monotonic timestamp derived from EffectiveFPS and the frame index,
// matching presentation-time order (spec §4.10). Returns (nil, nil) at
// end of stream.
func (s *VideoFileSource) Next() (*vision.PixelFrame, error) {
	ok := s.cap.Read(&s.bgr)
	if !ok || s.bgr.Empty() {
		return nil, nil
	}

	w, h := s.bgr.Cols(), s.bgr.Rows()
	gocv.CvtColor(s.bgr, &s.ycrcb, gocv.ColorBGRToYCrCb)

	planes := gocv.Split(s.ycrcb)
	defer func() {
		for _, m := range planes {
			m.Close()
		}
	}()
	if len(planes) != 3 {
		return nil, fmt.Errorf("unexpected YCrCb channel count %d", len(planes))
	}
	y, cr, cb := planes[0], planes[1], planes[2]

	halfW, halfH := w/2, h/2
	if halfW < 1 || halfH < 1 {
		return nil, fmt.Errorf("frame too small for 4:2:0 subsampling: %dx%d", w, h)
	}
	gocv.Resize(cr, &s.crLo, image.Pt(halfW, halfH), 0, 0, gocv.InterpolationNearestNeighbor)
	gocv.Resize(cb, &s.cbLo, image.Pt(halfW, halfH), 0, 0, gocv.InterpolationNearestNeighbor)

	planeY := append([]byte(nil), y.ToBytes()...)
	cbBytes := s.cbLo.ToBytes()
	crBytes := s.crLo.ToBytes()
	planeCbCr := make([]byte, 0, halfW*halfH*2)
	for i := 0; i < halfW*halfH; i++ {
		planeCbCr = append(planeCbCr, cbBytes[i], crBytes[i])
	}

	ts := float64(s.frameIndex) / s.EffectiveFPS()
	s.frameIndex++

	return &vision.PixelFrame{
		PlaneY:       planeY,
		PlaneCbCr:    planeCbCr,
		Width:        w,
		Height:       h,
		TimestampSec: ts,
	}, nil
}

// LoadIntrinsicsSidecar reads the optional "<video>.intrinsics.json"
// sidecar next to path (SPEC_FULL.md §4 "Intrinsics plumbing"). Returns
// (nil, nil) if no sidecar exists.
func LoadIntrinsicsSidecar(videoPath string) (*vision.Intrinsics, error) {
	sidecar := sidecarPath(videoPath)
	data, err := os.ReadFile(sidecar)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading intrinsics sidecar %q: %w", sidecar, err)
	}
	var in vision.Intrinsics
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parsing intrinsics sidecar %q: %w", sidecar, err)
	}
	return &in, nil
}

func sidecarPath(videoPath string) string {
	if idx := strings.LastIndexByte(videoPath, '.'); idx >= 0 {
		return videoPath[:idx] + ".intrinsics.json"
	}
	return videoPath + ".intrinsics.json"
}

// Run drives every decoded frame through process, in presentation-time
// order, calling onFrame with the frame index, timestamp, and dimensions
// before each call (spec §4.10's "one log entry per frame"). Stops at end
// of stream or on the first error from Next; process cannot stop the run.
func (s *VideoFileSource) Run(intrinsics *vision.Intrinsics, onFrame func(index int, ts float64, w, h int), process func(*vision.PixelFrame, *vision.Intrinsics) *vision.ShotRecord) ([]*vision.ShotRecord, error) {
	var records []*vision.ShotRecord
	for {
		frame, err := s.Next()
		if err != nil {
			return records, err
		}
		if frame == nil {
			return records, nil
		}
		if onFrame != nil {
			onFrame(s.frameIndex-1, frame.TimestampSec, frame.Width, frame.Height)
		}
		if rec := process(frame, intrinsics); rec != nil {
			records = append(records, rec)
		}
	}
}
