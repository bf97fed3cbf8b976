// Package engine orchestrates camera capture: a supervisor goroutine applies
// start/stop commands in order and owns at most one capture goroutine, which
// pulls, converts and rate-limits frames on their way to a delivery sink.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/ayusman/camrelay/internal/capture"
	"github.com/ayusman/camrelay/internal/delivery"
)

// Engine defaults.
const (
	DefaultWidth             = 1024
	DefaultHeight            = 1280
	DefaultHeartbeatInterval = 500 * time.Millisecond
	DefaultEmitInterval      = 30 * time.Millisecond
	DefaultTeardownTimeout   = 2 * time.Second
)

var (
	// ErrInvalidResolution is returned by SetResolution for non-positive sizes.
	ErrInvalidResolution = errors.New("invalid resolution")

	// ErrClosed is returned when a command is issued after Close.
	ErrClosed = errors.New("engine is closed")
)

// Config holds configuration options for an Engine.
type Config struct {
	// Source builds the frame source for each run. Required.
	Source capture.SourceFactory

	// Converter builds the conversion context for each run.
	// Defaults to the pure-Go capture.ScaleConverter.
	Converter capture.ConverterFactory

	// Sink receives frames and heartbeats from a forwarding goroutine.
	Sink delivery.Sink

	// QueueSize bounds the delivery queue.
	QueueSize int

	Resolution        capture.Resolution
	HeartbeatInterval time.Duration
	EmitInterval      time.Duration
	TeardownTimeout   time.Duration

	Clock  clock.WithTicker
	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Converter == nil {
		c.Converter = func() capture.FrameConverter { return capture.NewScaleConverter() }
	}
	if c.Sink == nil {
		c.Sink = delivery.Discard
	}
	if !c.Resolution.Valid() {
		c.Resolution = capture.Resolution{Width: DefaultWidth, Height: DefaultHeight}
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.EmitInterval <= 0 {
		c.EmitInterval = DefaultEmitInterval
	}
	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = DefaultTeardownTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine is a single camera pipeline. Engines are independent of each other;
// create one per camera consumer.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	clock     clock.WithTicker
	queue     *CommandQueue
	forwarder *delivery.Forwarder

	state      atomic.Int32
	frameCount atomic.Uint32
	errorCount atomic.Uint32

	mu         sync.Mutex
	resolution capture.Resolution
	runID      string
	runRes     capture.Resolution

	// current is owned by the supervisor goroutine.
	current *run

	destroy   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an Engine in the Stopped state and starts its supervisor.
func New(cfg Config) (*Engine, error) {
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	go e.supervise()
	return e, nil
}

func newEngine(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("engine: source factory is required")
	}
	cfg.setDefaults()

	e := &Engine{
		cfg:        cfg,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
		queue:      NewCommandQueue(),
		resolution: cfg.Resolution,
		destroy:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	e.forwarder = delivery.NewForwarder(cfg.Sink, cfg.QueueSize, cfg.Logger)
	e.state.Store(int32(StateStopped))
	return e, nil
}

// Start asks the supervisor to begin capturing. It returns immediately;
// starting an already active pipeline is a no-op.
func (e *Engine) Start() {
	e.push(CommandStart)
}

// Stop asks the supervisor to end the current run. Stopping an idle pipeline
// is a no-op.
func (e *Engine) Stop() {
	e.push(CommandStop)
}

// SetResolution changes the target frame size and (re)starts capture at it.
// It always enqueues Stop, updates the size, then enqueues Start, so a Start
// already queued ahead of it is superseded and the running loop never sees
// the new size.
func (e *Engine) SetResolution(width, height int) error {
	res := capture.Resolution{Width: width, Height: height}
	if !res.Valid() {
		return fmt.Errorf("%w: %dx%d", ErrInvalidResolution, width, height)
	}
	if e.State() == StateDestroying {
		return ErrClosed
	}

	e.queue.Push(CommandStop)
	e.setResolution(res)
	e.queue.Push(CommandStart)

	e.logger.Info("Resolution changed", "width", width, "height", height)
	return nil
}

// Resolution returns the configured target size used by the next run.
func (e *Engine) Resolution() capture.Resolution {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolution
}

// State returns the current pipeline state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// IsRunning reports whether a run is active.
func (e *Engine) IsRunning() bool {
	return e.State() == StateActive
}

// FrameCount returns the number of frames converted in the current run.
func (e *Engine) FrameCount() uint32 {
	return e.frameCount.Load()
}

// ErrorCount returns the number of decode or convert failures in the current run.
func (e *Engine) ErrorCount() uint32 {
	return e.errorCount.Load()
}

// Dropped returns the number of events the delivery queue discarded.
func (e *Engine) Dropped() uint64 {
	return e.forwarder.Dropped()
}

// Stats samples the pipeline counters.
func (e *Engine) Stats() delivery.Stats {
	active := e.IsRunning()

	e.mu.Lock()
	runID, res := e.runID, e.runRes
	if !active || !res.Valid() {
		res = e.resolution
	}
	e.mu.Unlock()

	return delivery.Stats{
		Active:     active,
		FrameCount: e.frameCount.Load(),
		ErrorCount: e.errorCount.Load(),
		RunID:      runID,
		Resolution: res,
		Dropped:    e.forwarder.Dropped(),
		At:         e.clock.Now(),
	}
}

// Close tears the engine down: the running capture loop is stopped, the
// supervisor exits and queued deliveries are flushed. Close is idempotent and
// takes precedence over a Stop that is still waiting for its run to finish.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.state.Store(int32(StateDestroying))
		close(e.destroy)
	})
	<-e.done
	return nil
}

func (e *Engine) push(cmd Command) {
	if e.State() == StateDestroying {
		e.logger.Debug("Ignoring command on closed engine", "command", cmd)
		return
	}
	e.queue.Push(cmd)
}

func (e *Engine) setResolution(res capture.Resolution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolution = res
}

func (e *Engine) setRun(id string, res capture.Resolution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runID = id
	e.runRes = res
}
