//go:build cgo
// +build cgo

package capture

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenVideoFile_MissingFile(t *testing.T) {
	_, err := OpenVideoFile(filepath.Join(t.TempDir(), "does-not-exist.mp4"), 120)
	if err == nil {
		t.Fatal("expected an error opening a nonexistent video file")
	}
}

func TestOpenVideoFile_SampleClip(t *testing.T) {
	path := os.Getenv("LAUNCHCORE_TEST_VIDEO")
	if path == "" {
		t.Skip("set LAUNCHCORE_TEST_VIDEO to a decodable clip to exercise frame decode")
	}

	src, err := OpenVideoFile(path, 120)
	if err != nil {
		t.Fatalf("OpenVideoFile: %v", err)
	}
	defer src.Close()

	frame, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if frame == nil {
		t.Fatal("expected at least one frame from a nonempty clip")
	}
	if len(frame.PlaneY) != frame.Width*frame.Height {
		t.Errorf("plane Y size = %d, want %d", len(frame.PlaneY), frame.Width*frame.Height)
	}
	wantCbCr := (frame.Width / 2) * (frame.Height / 2) * 2
	if len(frame.PlaneCbCr) != wantCbCr {
		t.Errorf("plane CbCr size = %d, want %d", len(frame.PlaneCbCr), wantCbCr)
	}
	if frame.TimestampSec != 0 {
		t.Errorf("first frame timestamp = %v, want 0", frame.TimestampSec)
	}
}

func TestLoadIntrinsicsSidecar_Absent(t *testing.T) {
	in, err := LoadIntrinsicsSidecar(filepath.Join(t.TempDir(), "clip.mp4"))
	if err != nil {
		t.Fatalf("unexpected error for absent sidecar: %v", err)
	}
	if in != nil {
		t.Errorf("expected nil intrinsics when sidecar is absent, got %+v", in)
	}
}

func TestLoadIntrinsicsSidecar_Present(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mov")
	sidecar := filepath.Join(dir, "clip.intrinsics.json")
	if err := os.WriteFile(sidecar, []byte(`{"Fx":1000.5,"Fy":1001.2,"Cx":640,"Cy":360}`), 0o644); err != nil {
		t.Fatalf("writing sidecar: %v", err)
	}

	in, err := LoadIntrinsicsSidecar(video)
	if err != nil {
		t.Fatalf("LoadIntrinsicsSidecar: %v", err)
	}
	if in == nil {
		t.Fatal("expected intrinsics to be loaded")
	}
	if in.Fx != 1000.5 || in.Cy != 360 {
		t.Errorf("unexpected intrinsics: %+v", in)
	}
}
