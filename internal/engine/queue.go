package engine

import "sync"

// Command is a lifecycle request consumed by the supervisor.
type Command int

const (
	CommandStart Command = iota + 1
	CommandStop
)

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandStop:
		return "stop"
	default:
		return "unknown"
	}
}

// CommandQueue is an unbounded FIFO of commands. Push never blocks; every push
// leaves a token on the wake channel so an idle consumer can react without
// waiting for its next tick.
type CommandQueue struct {
	mu    sync.Mutex
	items []Command
	wake  chan struct{}
}

// NewCommandQueue creates an empty queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{
		wake: make(chan struct{}, 1),
	}
}

// Push appends cmd.
func (q *CommandQueue) Push(cmd Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// TryPopAll removes and returns every queued command in insertion order.
// It returns nil when the queue is empty.
func (q *CommandQueue) TryPopAll() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wake is signalled after pushes.
func (q *CommandQueue) Wake() <-chan struct{} {
	return q.wake
}
