package bus

import (
	"sync/atomic"
	"time"
)

// PublisherState is the lifecycle state of a Publisher (spec §4.4).
type PublisherState uint8

const (
	// StateReceiving is the normal state while upstream bytes arrive.
	StateReceiving PublisherState = iota
	// StateDraining means upstream ended but a keepalive window is
	// still retaining subscribers while a reconnect is attempted.
	StateDraining
	// StateClosed means the publisher is gone and subscribers have
	// been detached.
	StateClosed
)

// String renders the state for logs and status pages.
func (s PublisherState) String() string {
	switch s {
	case StateReceiving:
		return "receiving"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Publisher represents one active inbound stream for a Mount (spec §3).
type Publisher struct {
	ID               string
	PeerAddr         string
	ContentType      string
	Demuxer          Demuxer
	Burst            *BurstQueue
	KeepaliveSeconds int
	HasKeepalive     bool

	state        atomic.Int32
	lastActivity atomic.Int64
}

// NewPublisher creates a Publisher with the given burst budget.
func NewPublisher(id, peerAddr, contentType string, demux Demuxer, burstBudget int64, keepaliveSeconds int, hasKeepalive bool) *Publisher {
	p := &Publisher{
		ID:               id,
		PeerAddr:         peerAddr,
		ContentType:      contentType,
		Demuxer:          demux,
		Burst:            NewBurstQueue(burstBudget),
		KeepaliveSeconds: keepaliveSeconds,
		HasKeepalive:     hasKeepalive,
	}
	p.state.Store(int32(StateReceiving))
	p.touch()
	return p
}

// State returns the current lifecycle state.
func (p *Publisher) State() PublisherState {
	return PublisherState(p.state.Load())
}

func (p *Publisher) setState(s PublisherState) {
	p.state.Store(int32(s))
}

func (p *Publisher) touch() {
	p.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the timestamp of the last upstream read.
func (p *Publisher) LastActivity() time.Time {
	return time.Unix(0, p.lastActivity.Load())
}
