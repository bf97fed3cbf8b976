package engine

import (
	"github.com/google/uuid"

	"github.com/ayusman/camrelay/internal/capture"
)

// run is one lifetime of the capture loop.
type run struct {
	id   string
	res  capture.Resolution
	done chan struct{}
}

// supervise is the engine's dispatcher loop. Each iteration applies queued
// commands in order and then publishes a heartbeat, whether or not anything
// is running. Iterations are driven by the heartbeat ticker and by pushes to
// the command queue.
func (e *Engine) supervise() {
	defer close(e.done)

	ticker := e.clock.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()

	e.logger.Info("Capture supervisor started",
		"heartbeat", e.cfg.HeartbeatInterval, "emit_interval", e.cfg.EmitInterval)

	for {
		e.applyCommands()
		if e.State() == StateDestroying {
			e.teardown()
			return
		}
		e.forwarder.OnStats(e.Stats())

		select {
		case <-e.destroy:
		case <-ticker.C():
		case <-e.queue.Wake():
		}
	}
}

func (e *Engine) applyCommands() {
	for _, cmd := range e.queue.TryPopAll() {
		if e.State() == StateDestroying {
			return
		}
		switch cmd {
		case CommandStart:
			e.applyStart()
		case CommandStop:
			e.applyStop()
		}
	}
}

// applyStart moves Stopped -> Active and launches a capture loop bound to the
// current resolution.
func (e *Engine) applyStart() {
	if e.State() == StateActive {
		e.logger.Debug("Start ignored, pipeline already active")
		return
	}

	// A run that ended on its own (device open failure) may still be
	// releasing resources; never let two loops overlap.
	if !e.joinRun() {
		return
	}

	r := &run{
		id:   uuid.NewString(),
		res:  e.Resolution(),
		done: make(chan struct{}),
	}

	e.frameCount.Store(0)
	e.errorCount.Store(0)
	e.setRun(r.id, r.res)

	if !e.state.CompareAndSwap(int32(StateStopped), int32(StateActive)) {
		return
	}
	e.current = r
	go e.runCapture(r)

	e.logger.Info("Capture pipeline started", "run", r.id, "width", r.res.Width, "height", r.res.Height)
}

// applyStop moves Active -> Stopped and waits for the capture loop to exit.
// The wait is abandoned if the engine is closed meanwhile.
func (e *Engine) applyStop() {
	if !e.state.CompareAndSwap(int32(StateActive), int32(StateStopped)) {
		e.logger.Debug("Stop ignored, pipeline not active")
		e.joinRun()
		return
	}

	id := e.current.id
	if e.joinRun() {
		e.logger.Info("Capture pipeline stopped", "run", id,
			"frames", e.frameCount.Load(), "errors", e.errorCount.Load())
	}
}

// joinRun waits for the current run to finish. It returns false when the
// wait was cut short by Close.
func (e *Engine) joinRun() bool {
	if e.current == nil {
		return true
	}

	select {
	case <-e.current.done:
		e.current = nil
		return true
	case <-e.destroy:
		return false
	}
}

// teardown stops the running loop and flushes delivery. A loop stuck inside
// FrameSource.Pull is given TeardownTimeout to return before it is abandoned.
func (e *Engine) teardown() {
	if e.current != nil {
		timeout := e.clock.NewTimer(e.cfg.TeardownTimeout)
		select {
		case <-e.current.done:
			timeout.Stop()
		case <-timeout.C():
			e.logger.Warn("Capture loop did not exit before teardown timeout",
				"run", e.current.id, "timeout", e.cfg.TeardownTimeout)
		}
		e.current = nil
	}

	e.forwarder.OnStats(e.Stats())
	e.forwarder.Close()
	e.logger.Info("Capture supervisor stopped")
}
