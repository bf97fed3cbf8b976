package store

import (
	"log/slog"
	"sync"

	"github.com/ayusman/camrelay/internal/capture"
	"github.com/ayusman/camrelay/internal/delivery"
)

// Recorder is a delivery sink that keeps the runs table in step with engine
// heartbeats. The first heartbeat carrying a new run ID creates the row, later
// ones update its counters, and the first inactive heartbeat closes it.
type Recorder struct {
	runs   *RunRepository
	logger *slog.Logger

	mu      sync.Mutex
	lastID  string
	current *Run
}

// NewRecorder creates a recorder writing to s.
func NewRecorder(s *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		runs:   s.Runs(),
		logger: logger,
	}
}

func (r *Recorder) OnFrame(*capture.Frame) {}

func (r *Recorder) OnStats(st delivery.Stats) {
	if st.RunID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if st.RunID != r.lastID {
		// A restart can replace a run between two heartbeats.
		if r.current != nil {
			r.finish(r.current, st)
		}
		r.begin(st)
		return
	}

	if r.current == nil {
		return
	}

	r.current.Frames = st.FrameCount
	r.current.Errors = st.ErrorCount
	if !st.Active {
		r.finish(r.current, st)
		return
	}
	if err := r.runs.Update(r.current); err != nil {
		r.logger.Warn("Failed to update run", "run", st.RunID, "error", err)
	}
}

func (r *Recorder) begin(st delivery.Stats) {
	r.lastID = st.RunID

	run := &Run{
		ID:         st.RunID,
		Resolution: st.Resolution,
		StartedAt:  st.At,
		Frames:     st.FrameCount,
		Errors:     st.ErrorCount,
		Status:     RunStatusRunning,
	}
	if !st.Active {
		// Over before a heartbeat saw it running.
		stopped := st.At
		run.StoppedAt = &stopped
		run.Status = endStatus(run)
	}

	if err := r.runs.Create(run); err != nil {
		r.logger.Warn("Failed to record run", "run", run.ID, "error", err)
		return
	}
	if run.Status == RunStatusRunning {
		r.current = run
	}
}

func (r *Recorder) finish(run *Run, st delivery.Stats) {
	stopped := st.At
	run.StoppedAt = &stopped
	run.Status = endStatus(run)
	if err := r.runs.Update(run); err != nil {
		r.logger.Warn("Failed to close run", "run", run.ID, "error", err)
	}
	r.current = nil
}

func endStatus(run *Run) RunStatus {
	if run.Frames == 0 {
		return RunStatusFailed
	}
	return RunStatusStopped
}
