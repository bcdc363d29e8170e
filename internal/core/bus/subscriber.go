package bus

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Subscriber represents a connected listener attached to exactly one
// Mount's Publisher. It owns its OutputSink; Mount holds only
// membership (spec §3: "subscribers own their sockets and sinks").
type Subscriber struct {
	ID           string
	Addr         string
	Mount        MountKey
	Sink         *OutputSink
	lastActivity atomic.Int64 // unix nanos

	notify   chan struct{}
	overflow chan struct{}
}

func newSubscriber(addr string, mount MountKey, sink *OutputSink) *Subscriber {
	id := uuid.NewString()
	s := &Subscriber{
		ID:       id,
		Addr:     addr,
		Mount:    mount,
		Sink:     sink,
		notify:   make(chan struct{}, 1),
		overflow: make(chan struct{}),
	}
	s.touch()
	return s
}

// Notify returns a channel that receives a value whenever new data has
// been appended to the subscriber's sink, so a write loop can block
// instead of busy-polling the sink.
func (s *Subscriber) Notify() <-chan struct{} {
	return s.notify
}

// Overflowed returns a channel that is closed once the subscriber's
// sink has overflowed its Qmax -- the write loop should treat this as
// a signal to disconnect the client (spec §4.2, §5 back-pressure).
func (s *Subscriber) Overflowed() <-chan struct{} {
	return s.overflow
}

func (s *Subscriber) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscriber) triggerOverflow() {
	select {
	case <-s.overflow:
		// already triggered
	default:
		close(s.overflow)
	}
}

func (s *Subscriber) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the timestamp of the last read/write progress.
func (s *Subscriber) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// IdleSince reports how long the subscriber has been idle.
func (s *Subscriber) IdleSince() time.Duration {
	return time.Since(s.LastActivity())
}
