package engine

import (
	"runtime"
	"time"

	"k8s.io/utils/clock"

	"github.com/ayusman/camrelay/internal/capture"
)

// rateGate lets at most one frame through per interval. The next slot is
// scheduled from the instant a frame is let through, so slow stretches do not
// build up a burst.
type rateGate struct {
	clock    clock.PassiveClock
	interval time.Duration
	next     time.Time
}

func newRateGate(c clock.PassiveClock, interval time.Duration) *rateGate {
	return &rateGate{
		clock:    c,
		interval: interval,
		next:     c.Now(),
	}
}

// Allow reports whether a frame may be emitted now and, if so, books the
// next slot.
func (g *rateGate) Allow() bool {
	now := g.clock.Now()
	if now.Before(g.next) {
		return false
	}
	g.next = now.Add(g.interval)
	return true
}

// runCapture is the body of one run. It owns the converter, the source and the
// output buffer for the run's lifetime and exits once the pipeline leaves the
// Active state.
func (e *Engine) runCapture(r *run) {
	defer close(r.done)

	logger := e.logger.With("run", r.id)
	width, height := r.res.Width, r.res.Height

	buf := make([]byte, capture.BufferSize(width, height, capture.TargetFormat))
	conv := e.cfg.Converter()
	defer func() {
		if err := conv.Close(); err != nil {
			logger.Warn("Error releasing converter", "error", err)
		}
	}()

	src := e.cfg.Source()
	if err := src.Open(); err != nil {
		logger.Error("Failed to open capture device", "error", err)
		e.state.CompareAndSwap(int32(StateActive), int32(StateStopped))
		return
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("Error closing capture device", "error", err)
		}
	}()

	logger.Info("Capture device opened",
		"native_width", src.Width(), "native_height", src.Height(), "native_format", src.Format())

	out := &capture.Frame{
		Width:  width,
		Height: height,
		Format: capture.TargetFormat,
		Data:   buf,
	}
	gate := newRateGate(e.clock, e.cfg.EmitInterval)

	for e.State() == StateActive {
		raw, err := src.Pull()
		if err != nil {
			e.errorCount.Add(1)
			logger.Debug("Failed to decode frame", "error", err)
			continue
		}
		if raw == nil {
			runtime.Gosched()
			continue
		}

		if err := conv.Convert(raw, buf, width, height, capture.TargetFormat); err != nil {
			e.errorCount.Add(1)
			logger.Debug("Failed to convert frame", "error", err)
			continue
		}
		seq := e.frameCount.Add(1)

		if !gate.Allow() {
			continue
		}
		out.Seq = uint64(seq)
		out.Timestamp = raw.Timestamp
		e.forwarder.OnFrame(out)
	}
}
