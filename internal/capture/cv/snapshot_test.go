package cv

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"github.com/ayusman/camrelay/internal/capture"
)

func bgraFrame(seq uint64, w, h int) *capture.Frame {
	return &capture.Frame{
		Seq:    seq,
		Width:  w,
		Height: h,
		Format: capture.PixelFormatBGRA32,
		Data:   make([]byte, capture.BufferSize(w, h, capture.PixelFormatBGRA32)),
	}
}

func TestSnapshotSink_WritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snaps", "latest.png")
	sink := NewSnapshotSink(path, time.Second, nil, nil)

	sink.OnFrame(bgraFrame(1, 32, 16))

	if sink.Written() != 1 {
		t.Fatalf("Written() = %d, want 1", sink.Written())
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("snapshot is not a PNG: %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 16 {
		t.Errorf("snapshot size = %dx%d, want 32x16", cfg.Width, cfg.Height)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(path), ".tmp-latest.png")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestSnapshotSink_Interval(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	path := filepath.Join(t.TempDir(), "latest.png")
	sink := NewSnapshotSink(path, time.Second, fc, nil)

	sink.OnFrame(bgraFrame(1, 8, 8))
	sink.OnFrame(bgraFrame(2, 8, 8))

	fc.Step(999 * time.Millisecond)
	sink.OnFrame(bgraFrame(3, 8, 8))
	if got := sink.Written(); got != 1 {
		t.Fatalf("Written() = %d before interval elapsed, want 1", got)
	}

	fc.Step(time.Millisecond)
	sink.OnFrame(bgraFrame(4, 8, 8))
	if got := sink.Written(); got != 2 {
		t.Errorf("Written() = %d after interval, want 2", got)
	}
}

func TestSnapshotSink_RejectsWrongFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.png")
	sink := NewSnapshotSink(path, 0, nil, nil)

	f := bgraFrame(1, 8, 8)
	f.Format = capture.PixelFormatBGR24
	sink.OnFrame(f)

	if sink.Written() != 0 {
		t.Error("snapshot written for a non-BGRA frame")
	}
}
