package cv

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
	"k8s.io/utils/clock"

	"github.com/ayusman/camrelay/internal/capture"
	"github.com/ayusman/camrelay/internal/delivery"
)

// SnapshotSink writes the latest delivered frame to an image file at most
// once per interval. The file type follows the path's extension.
type SnapshotSink struct {
	path     string
	interval time.Duration
	clock    clock.PassiveClock
	logger   *slog.Logger

	mu      sync.Mutex
	last    time.Time
	written int
}

// NewSnapshotSink creates a sink writing to path. A nil clock uses the wall
// clock.
func NewSnapshotSink(path string, interval time.Duration, c clock.PassiveClock, logger *slog.Logger) *SnapshotSink {
	if c == nil {
		c = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotSink{
		path:     path,
		interval: interval,
		clock:    c,
		logger:   logger,
	}
}

func (s *SnapshotSink) OnFrame(f *capture.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.written > 0 && now.Sub(s.last) < s.interval {
		return
	}

	if err := s.write(f); err != nil {
		s.logger.Warn("Failed to write snapshot", "path", s.path, "error", err)
		return
	}
	s.last = now
	s.written++
	s.logger.Debug("Snapshot written", "path", s.path, "seq", f.Seq)
}

func (s *SnapshotSink) OnStats(delivery.Stats) {}

// Written returns the number of snapshots saved so far.
func (s *SnapshotSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// write encodes to a sibling file and renames it into place so readers never
// see a partial image.
func (s *SnapshotSink) write(f *capture.Frame) error {
	mat, err := frameMat(f)
	if err != nil {
		return err
	}
	defer mat.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := filepath.Join(dir, ".tmp-"+filepath.Base(s.path))
	if ok := gocv.IMWrite(tmp, mat); !ok {
		return fmt.Errorf("encode %s failed", tmp)
	}
	return os.Rename(tmp, s.path)
}
