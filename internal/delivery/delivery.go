// Package delivery carries frames and heartbeat statistics from the capture
// engine to its consumers without letting a slow consumer stall capture.
package delivery

import (
	"time"

	"github.com/ayusman/camrelay/internal/capture"
)

// Stats is one heartbeat sample of the pipeline.
type Stats struct {
	Active     bool               `json:"is_active"`
	FrameCount uint32             `json:"frame_count"`
	ErrorCount uint32             `json:"error_count"`
	RunID      string             `json:"run_id,omitempty"`
	Resolution capture.Resolution `json:"resolution"`
	Dropped    uint64             `json:"dropped"`
	At         time.Time          `json:"at"`
}

// Sink receives frames and stats.
//
// OnFrame borrows the frame: Data must be copied before returning if the
// receiver keeps it. Implementations must not block for long; the Forwarder
// isolates slow sinks from the engine.
type Sink interface {
	OnFrame(frame *capture.Frame)
	OnStats(stats Stats)
}

// FrameFunc adapts a function to a Sink that ignores stats.
type FrameFunc func(frame *capture.Frame)

func (f FrameFunc) OnFrame(frame *capture.Frame) { f(frame) }
func (f FrameFunc) OnStats(Stats)                {}

// StatsFunc adapts a function to a Sink that ignores frames.
type StatsFunc func(stats Stats)

func (f StatsFunc) OnFrame(*capture.Frame) {}
func (f StatsFunc) OnStats(stats Stats)    { f(stats) }

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) OnFrame(*capture.Frame) {}
func (discard) OnStats(Stats)          {}

// Multi fans every event out to several sinks in order.
type Multi []Sink

func (m Multi) OnFrame(frame *capture.Frame) {
	for _, s := range m {
		s.OnFrame(frame)
	}
}

func (m Multi) OnStats(stats Stats) {
	for _, s := range m {
		s.OnStats(stats)
	}
}
