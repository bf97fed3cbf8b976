package server

import (
	"sync"

	"github.com/ayusman/camrelay/internal/capture"
	"github.com/ayusman/camrelay/internal/delivery"
)

// Preview is a delivery sink that keeps the most recent frame and heartbeat
// for HTTP clients. Stream handlers wait on Latest's channel for the next
// frame; stats subscribers get every heartbeat, dropping ones they are too
// slow to take.
type Preview struct {
	mu     sync.RWMutex
	frame  *capture.Frame
	stats  delivery.Stats
	notify chan struct{}

	subMu sync.Mutex
	subs  map[chan delivery.Stats]struct{}
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{
		notify: make(chan struct{}),
		subs:   make(map[chan delivery.Stats]struct{}),
	}
}

func (p *Preview) OnFrame(f *capture.Frame) {
	clone := f.Clone()

	p.mu.Lock()
	p.frame = clone
	close(p.notify)
	p.notify = make(chan struct{})
	p.mu.Unlock()
}

func (p *Preview) OnStats(st delivery.Stats) {
	p.mu.Lock()
	p.stats = st
	p.mu.Unlock()

	p.subMu.Lock()
	defer p.subMu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

// Latest returns the newest frame (nil before the first one) and a channel
// that is closed when a newer frame arrives.
func (p *Preview) Latest() (*capture.Frame, <-chan struct{}) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame, p.notify
}

// Stats returns the newest heartbeat.
func (p *Preview) Stats() delivery.Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Subscribe registers for heartbeats. The returned function unsubscribes and
// closes the channel.
func (p *Preview) Subscribe() (<-chan delivery.Stats, func()) {
	ch := make(chan delivery.Stats, 4)

	p.subMu.Lock()
	p.subs[ch] = struct{}{}
	p.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, ch)
			p.subMu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active stats subscriptions.
func (p *Preview) Subscribers() int {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	return len(p.subs)
}
