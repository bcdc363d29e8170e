package relay

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"relaycast/internal/core/bus"
)

// restartDelay is how long after an unexpected relay exit the Manager
// waits before retrying it (spec §8 scenario recovery / §9
// relays_to_restart).
const restartDelay = 5 * time.Second

type runningRelay struct {
	relay  Relay
	params Params
	cancel context.CancelFunc
}

type pendingRestart struct {
	key      Key
	params   Params
	deadline time.Time
}

// Manager owns the set of live relay goroutines keyed by Key, plus a
// restart-scheduling deque for relays that exited unexpectedly (spec
// §4.7, §9 "relays_to_restart deque with a monotonic deadline; the
// loop drains due entries each tick").
type Manager struct {
	registry *bus.Registry

	mu       sync.Mutex
	running  map[Key]*runningRelay
	restarts *list.List // of *pendingRestart, ordered by deadline
	wg       sync.WaitGroup
}

// NewManager creates a Manager bound to registry.
func NewManager(registry *bus.Registry) *Manager {
	return &Manager{
		registry: registry,
		running:  make(map[Key]*runningRelay),
		restarts: list.New(),
	}
}

// Start launches a relay for key if one isn't already running. It is
// idempotent: calling Start twice for the same key with the relay
// already running is a no-op, which is what makes reconfiguration
// idempotence (spec §8) hold at the Manager layer.
func (m *Manager) Start(key Key, params Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(key, params)
}

func (m *Manager) startLocked(key Key, params Params) error {
	if _, ok := m.running[key]; ok {
		return nil
	}

	rel, err := New(m.registry, key, params)
	if err != nil {
		return fmt.Errorf("relay manager: start %s: %w", key, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.running[key] = &runningRelay{relay: rel, params: params, cancel: cancel}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := rel.Run(ctx)
		m.onExit(key, params, ctx, err)
	}()

	return nil
}

// onExit is invoked from the relay's own goroutine when Run returns.
// A cancelled context means an intentional Stop, which clears the
// running entry without scheduling a restart. Any other outcome
// schedules one (spec §7 "connection refused / timeout ... schedule
// restart if configured").
func (m *Manager) onExit(key Key, params Params, ctx context.Context, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rr, ok := m.running[key]; ok {
		delete(m.running, key)
		rr.cancel()
	}

	if ctx.Err() != nil {
		return
	}

	m.restarts.PushBack(&pendingRestart{key: key, params: params, deadline: time.Now().Add(restartDelay)})
}

// UpdateParams records updated settings for an already-running relay
// without restarting it, so a future unexpected-exit restart reuses
// the latest effective burst_size/keepalive rather than stale values
// (spec §4.7 step 4). It does not touch any attached Publisher;
// propagating the change there is left to the caller.
func (m *Manager) UpdateParams(key Key, params Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rr, ok := m.running[key]; ok {
		rr.params = params
	}
}

// Stop cancels and removes the relay running for key, if any, and
// cancels any pending restart for it.
func (m *Manager) Stop(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(key)
}

func (m *Manager) stopLocked(key Key) {
	if rr, ok := m.running[key]; ok {
		delete(m.running, key)
		rr.cancel()
	}
	m.cancelPendingRestartLocked(key)
}

// StopAll cancels every running relay and waits for their goroutines
// to finish.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for key := range m.running {
		m.stopLocked(key)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Running reports whether a relay is currently running for key.
func (m *Manager) Running(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[key]
	return ok
}

// TriggerOnDemand wakes every currently running relay whose Key.Path
// matches path (net_resolve_all can fan a single mount out across
// several relay.Keys) and is parked waiting for an on-demand
// subscriber, so the first GET against an on-demand mount starts its
// relay instead of 404ing forever (spec §4.6).
func (m *Manager) TriggerOnDemand(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, rr := range m.running {
		if k.Path == path {
			rr.relay.Trigger()
		}
	}
}

// RunningKeys returns the keys of all currently running relays, for
// the reconfig engine's diff against a desired set.
func (m *Manager) RunningKeys() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]Key, 0, len(m.running))
	for k := range m.running {
		keys = append(keys, k)
	}
	return keys
}

// Tick drains every restart entry whose deadline is due, relative to
// now, attempting to start each one again.
func (m *Manager) Tick(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next *list.Element
	for e := m.restarts.Front(); e != nil; e = next {
		next = e.Next()
		pr := e.Value.(*pendingRestart)
		if pr.deadline.After(now) {
			continue
		}
		m.restarts.Remove(e)
		_ = m.startLocked(pr.key, pr.params)
	}
}

// PendingRestarts returns the keys currently scheduled for restart,
// for status pages and tests.
func (m *Manager) PendingRestarts() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]Key, 0, m.restarts.Len())
	for e := m.restarts.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*pendingRestart).key)
	}
	return keys
}

// CancelPendingRestart removes any scheduled restart for key without
// touching a currently running relay, if one separately exists.
func (m *Manager) CancelPendingRestart(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelPendingRestartLocked(key)
}

func (m *Manager) cancelPendingRestartLocked(key Key) {
	var next *list.Element
	for e := m.restarts.Front(); e != nil; e = next {
		next = e.Next()
		if e.Value.(*pendingRestart).key == key {
			m.restarts.Remove(e)
		}
	}
}
