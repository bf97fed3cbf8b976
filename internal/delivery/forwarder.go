package delivery

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ayusman/camrelay/internal/capture"
)

// DefaultQueueSize is the number of pending events a Forwarder holds before
// it starts dropping.
const DefaultQueueSize = 8

type event struct {
	frame *capture.Frame
	buf   *[]byte
	stats Stats
}

// Forwarder decouples the engine from its consumer. OnFrame and OnStats copy
// the event into a bounded queue and return immediately; a single goroutine
// hands events to the downstream sink in order. When the queue is full the
// event is dropped and counted.
type Forwarder struct {
	sink   Sink
	events chan event
	done   chan struct{}
	pool   sync.Pool
	logger *slog.Logger

	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewForwarder starts a forwarding goroutine delivering to sink.
func NewForwarder(sink Sink, queueSize int, logger *slog.Logger) *Forwarder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	f := &Forwarder{
		sink:   sink,
		events: make(chan event, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go f.loop()
	return f
}

// OnFrame copies frame and queues it for delivery.
func (f *Forwarder) OnFrame(frame *capture.Frame) {
	if frame == nil {
		return
	}

	buf := f.getBuffer(len(frame.Data))
	copy(*buf, frame.Data)
	copied := *frame
	copied.Data = *buf

	if !f.enqueue(event{frame: &copied, buf: buf}) {
		f.pool.Put(buf)
	}
}

// OnStats queues a heartbeat for delivery.
func (f *Forwarder) OnStats(stats Stats) {
	stats.Dropped = f.dropped.Load()
	f.enqueue(event{stats: stats})
}

// Dropped returns the number of events discarded because the queue was full.
func (f *Forwarder) Dropped() uint64 {
	return f.dropped.Load()
}

// Close stops accepting events, delivers what is already queued and waits for
// the forwarding goroutine to exit. It is safe to call more than once.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	f.mu.Unlock()

	<-f.done
}

func (f *Forwarder) enqueue(ev event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return false
	}

	select {
	case f.events <- ev:
		return true
	default:
		n := f.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			f.logger.Warn("Delivery queue full, dropping event", "dropped", n)
		}
		return false
	}
}

func (f *Forwarder) loop() {
	defer close(f.done)

	for ev := range f.events {
		f.deliver(ev)
	}
}

func (f *Forwarder) deliver(ev event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Delivery sink panicked", "panic", r)
		}
		if ev.buf != nil {
			f.pool.Put(ev.buf)
		}
	}()

	if ev.frame != nil {
		f.sink.OnFrame(ev.frame)
		return
	}
	f.sink.OnStats(ev.stats)
}

func (f *Forwarder) getBuffer(n int) *[]byte {
	if v, ok := f.pool.Get().(*[]byte); ok && cap(*v) >= n {
		*v = (*v)[:n]
		return v
	}
	buf := make([]byte, n)
	return &buf
}
