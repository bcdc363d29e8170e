package bus

import (
	"context"
	"io"
	"sync"
	"time"
)

// Mount represents a single logical channel identified by a URL path.
// It owns its Publisher (one at a time) and the membership of its
// Subscribers (spec §3: subscribers own their own sockets/sinks; the
// Mount only tracks which ones are attached). All publisher-side
// mutation -- burst queue append, fan-out, attach/detach -- is
// serialized by mu, which is this port's stand-in for the
// single-threaded event loop's implicit single-writer guarantee
// (spec §5, §9).
type Mount struct {
	key MountKey

	mu             sync.RWMutex
	publisher      *Publisher
	subscribers    map[string]*Subscriber
	drainDeadline  time.Time
	publisherReady chan struct{}
}

// NewMount creates an empty mount for the given key.
func NewMount(key MountKey) *Mount {
	return &Mount{
		key:            key,
		subscribers:    make(map[string]*Subscriber),
		publisherReady: make(chan struct{}),
	}
}

// Key returns the mount's path key.
func (m *Mount) Key() MountKey {
	return m.key
}

// AttachPublisher attaches p as the mount's publisher. It fails if a
// publisher is already receiving; a publisher in the Draining state
// is replaced in place via Reattach instead.
func (m *Mount) AttachPublisher(p *Publisher) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publisher != nil && m.publisher.State() != StateClosed {
		return false
	}
	m.publisher = p
	close(m.publisherReady)
	m.publisherReady = make(chan struct{})
	return true
}

// WaitForPublisher blocks until a publisher is attached, ctx is done,
// or timeout elapses, returning whether one is attached by then. The
// mount handler calls this after triggering an on-demand relay (spec
// §4.6: on-demand "returns to Connecting when a first subscriber
// arrives for that mount"), giving the relay a window to connect
// before giving up on the request.
func (m *Mount) WaitForPublisher(ctx context.Context, timeout time.Duration) bool {
	m.mu.RLock()
	hasPub := m.publisher != nil && m.publisher.State() != StateClosed
	ready := m.publisherReady
	m.mu.RUnlock()
	if hasPub {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ready:
		return m.HasPublisher()
	case <-ctx.Done():
		return false
	case <-timer.C:
		return false
	}
}

// UpdatePublisherSettings propagates a reconfigured burst_size and
// keepalive to the currently attached publisher in place, without
// tearing down its relay or disconnecting its subscribers (spec §4.7
// step 4: "update r.burst_size and r.keepalive ... propagate to the
// attached Publisher if any"). A no-op if no publisher is attached.
func (m *Mount) UpdatePublisherSettings(burstSize int64, keepaliveSeconds int, hasKeepalive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publisher == nil {
		return
	}
	m.publisher.Burst.SetBudget(burstSize)
	m.publisher.KeepaliveSeconds = keepaliveSeconds
	m.publisher.HasKeepalive = hasKeepalive
}

// Reattach re-arms a publisher that reconnected within its keepalive
// window, preserving all currently attached subscribers (spec §4.4
// close(): "retain subscribers, re-arm on reconnect").
func (m *Mount) Reattach(p *Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publisher = p
	m.drainDeadline = time.Time{}
}

// Publisher returns the currently attached publisher, or nil.
func (m *Mount) Publisher() *Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.publisher
}

// HasPublisher reports whether an active (non-closed) publisher is
// attached.
func (m *Mount) HasPublisher() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.publisher != nil && m.publisher.State() != StateClosed
}

// OnUpstreamBytes feeds buf through the publisher's demuxer, appends
// each emitted chunk to the burst queue and fans it out to every
// attached subscriber (spec §4.4). It is a no-op if no publisher is
// attached.
func (m *Mount) OnUpstreamBytes(buf []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publisher == nil || m.publisher.State() == StateClosed {
		return
	}
	m.publisher.touch()
	chunks := m.publisher.Demuxer.Feed(buf)
	for _, c := range chunks {
		m.publisher.Burst.Append(c)
		m.fanoutLocked(c)
	}
}

// Publish is an alias for OnUpstreamBytes: both the HTTP/UDP relay
// ingress and the push-publish ingress (internal/svc/sourceingest)
// converge on this single call to hand the publisher's raw bytes to
// the mount.
func (m *Mount) Publish(buf []byte) {
	m.OnUpstreamBytes(buf)
}

// fanoutLocked delivers c to every subscriber's sink. Callers must
// hold mu. A subscriber whose sink overflows is signalled for
// termination but left in the membership map -- the owning write loop
// is responsible for calling DetachSubscriber once it notices the
// overflow signal (spec §4.2: overflow schedules termination, it does
// not itself close anything).
func (m *Mount) fanoutLocked(c Chunk) {
	for _, sub := range m.subscribers {
		if sub.Sink.Append(c.Data) {
			sub.triggerOverflow()
			continue
		}
		sub.signal()
	}
}

// AttachSubscriber creates a subscriber writing to w, seeds it from
// the current burst queue snapshot (starting at the first keyframe
// when the demuxer can identify one), and adds it to the mount's
// subscriber set. qmax of 0 means the sink has no byte cap.
func (m *Mount) AttachSubscriber(addr string, w io.Writer, qmax int64) *Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()

	sink := NewOutputSink(w, qmax)
	sub := newSubscriber(addr, m.key, sink)

	if m.publisher != nil {
		for _, c := range m.publisher.Burst.SnapshotFromKeyframe() {
			sink.Append(c.Data)
		}
	}

	m.subscribers[sub.ID] = sub
	return sub
}

// DetachSubscriber removes a subscriber from the mount's membership.
// Safe to call multiple times.
func (m *Mount) DetachSubscriber(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, id)
}

// SubscriberCount returns the number of currently attached subscribers.
func (m *Mount) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// Subscribers returns a snapshot slice of currently attached
// subscribers, for status pages and inactivity sweeps.
func (m *Mount) Subscribers() []*Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Subscriber, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		out = append(out, s)
	}
	return out
}

// IsEmpty reports whether the mount has neither a live publisher nor
// any subscribers, making it eligible for registry removal.
func (m *Mount) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (m.publisher == nil || m.publisher.State() == StateClosed) && len(m.subscribers) == 0
}

// BeginDraining transitions the publisher from Receiving to Draining
// when upstream ends but a keepalive window should retain subscribers
// while a reconnect is attempted. It returns false (and detaches every
// subscriber immediately) when there is no keepalive configured.
func (m *Mount) BeginDraining() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publisher == nil {
		return false
	}
	if !m.publisher.HasKeepalive || m.publisher.KeepaliveSeconds <= 0 {
		m.closeLocked()
		return false
	}
	m.publisher.setState(StateDraining)
	m.drainDeadline = time.Now().Add(time.Duration(m.publisher.KeepaliveSeconds) * time.Second)
	return true
}

// DrainExpired reports whether a draining publisher's keepalive window
// has elapsed without a reconnect.
func (m *Mount) DrainExpired(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.publisher != nil && m.publisher.State() == StateDraining && !m.drainDeadline.IsZero() && now.After(m.drainDeadline)
}

// Close tears the publisher down and detaches every subscriber
// unconditionally (spec §4.4 close(), the non-keepalive path).
func (m *Mount) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Mount) closeLocked() {
	if m.publisher != nil {
		m.publisher.setState(StateClosed)
	}
	for id, sub := range m.subscribers {
		sub.triggerOverflow()
		delete(m.subscribers, id)
	}
}
