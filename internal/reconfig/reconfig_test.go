package reconfig

import (
	"testing"

	"relaycast/internal/config"
	"relaycast/internal/core/bus"
	"relaycast/internal/svc/relay"
)

func cfgWithMounts(mounts ...config.MountConfig) *config.Config {
	return &config.Config{Mounts: mounts}
}

func keySet(keys []relay.Key) map[relay.Key]struct{} {
	s := make(map[relay.Key]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// fakeManager is an in-memory stand-in for relay.Manager that records
// Start/Stop calls without spawning real relay goroutines, so Apply's
// diff logic can be tested without a network.
type fakeManager struct {
	running map[relay.Key]relay.Params
	starts  int
	stops   int
}

func newFakeManager(initial ...relay.Key) *fakeManager {
	m := &fakeManager{running: make(map[relay.Key]relay.Params)}
	for _, k := range initial {
		m.running[k] = relay.Params{}
	}
	return m
}

func (m *fakeManager) RunningKeys() []relay.Key {
	keys := make([]relay.Key, 0, len(m.running))
	for k := range m.running {
		keys = append(keys, k)
	}
	return keys
}

func (m *fakeManager) Start(key relay.Key, params relay.Params) error {
	m.starts++
	m.running[key] = params
	return nil
}

func (m *fakeManager) Stop(key relay.Key) {
	m.stops++
	delete(m.running, key)
}

func (m *fakeManager) UpdateParams(key relay.Key, params relay.Params) {
	if _, ok := m.running[key]; ok {
		m.running[key] = params
	}
}

func TestDesiredSkipsMountsWithNoSourceURLs(t *testing.T) {
	cfg := cfgWithMounts(config.MountConfig{Path: "/on-demand-only"})
	desired := Desired(cfg, nil)
	if len(desired) != 0 {
		t.Fatalf("expected no desired relays for a mount with no source_urls, got %v", desired)
	}
}

func TestDesiredUDPNeverFansOut(t *testing.T) {
	cfg := cfgWithMounts(config.MountConfig{
		Path:          "/radio.ts",
		SourceURLs:    []string{"udp://239.0.0.1:5000"},
		NetResolveAll: boolPtr(true),
	})
	resolve := func(string) []string { return []string{"1.2.3.4", "1.2.3.5"} }
	desired := Desired(cfg, resolve)
	if len(desired) != 1 {
		t.Fatalf("expected exactly one relay for a UDP source regardless of net_resolve_all, got %d", len(desired))
	}
	for k := range desired {
		if k.AddrInfo != "" {
			t.Errorf("expected no addr_info pinning for a UDP relay, got %q", k.AddrInfo)
		}
	}
}

// TestDesiredNetResolveAllFanOut covers spec §8 scenario 6: a hostname
// resolving to three addresses produces three addr-pinned relays when
// net_resolve_all is true, and collapses to one unpinned relay when
// false.
func TestDesiredNetResolveAllFanOut(t *testing.T) {
	resolve := func(string) []string { return []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} }

	fannedOut := cfgWithMounts(config.MountConfig{
		Path:          "/live",
		SourceURLs:    []string{"http://origin.example:8000/live"},
		NetResolveAll: boolPtr(true),
	})
	desired := Desired(fannedOut, resolve)
	if len(desired) != 3 {
		t.Fatalf("net_resolve_all=true: expected 3 relays, got %d", len(desired))
	}
	seenAddrs := make(map[string]bool)
	for k := range desired {
		if k.AddrInfo == "" {
			t.Error("expected every fanned-out key to carry an addr_info")
		}
		seenAddrs[k.AddrInfo] = true
	}
	if len(seenAddrs) != 3 {
		t.Errorf("expected 3 distinct addr_info values, got %v", seenAddrs)
	}

	collapsed := cfgWithMounts(config.MountConfig{
		Path:          "/live",
		SourceURLs:    []string{"http://origin.example:8000/live"},
		NetResolveAll: boolPtr(false),
	})
	desired = Desired(collapsed, resolve)
	if len(desired) != 1 {
		t.Fatalf("net_resolve_all=false: expected 1 unpinned relay, got %d", len(desired))
	}
	for k := range desired {
		if k.AddrInfo != "" {
			t.Errorf("expected an unpinned key, got addr_info %q", k.AddrInfo)
		}
	}
}

func TestApplyStartsAndStopsOnlyTheDiff(t *testing.T) {
	keep := relay.Key{URL: "http://a.example/a", Path: "/a"}
	remove := relay.Key{URL: "http://b.example/b", Path: "/b"}
	add := relay.Key{URL: "http://c.example/c", Path: "/c"}

	mgr := newFakeManager(keep, remove)
	desired := map[relay.Key]relay.Params{
		keep: {},
		add:  {},
	}

	errs := Apply(mgr, nil, desired)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if mgr.stops != 1 || mgr.starts != 1 {
		t.Fatalf("expected exactly 1 stop and 1 start, got stops=%d starts=%d", mgr.stops, mgr.starts)
	}

	got := keySet(mgr.RunningKeys())
	if _, ok := got[keep]; !ok {
		t.Error("expected the kept key to still be running")
	}
	if _, ok := got[remove]; ok {
		t.Error("expected the removed key to have been stopped")
	}
	if _, ok := got[add]; !ok {
		t.Error("expected the newly desired key to have been started")
	}
}

// TestApplyIsIdempotent covers spec §8's reconfiguration idempotence
// invariant: applying the same desired set twice in a row starts and
// stops nothing on the second pass.
func TestApplyIsIdempotent(t *testing.T) {
	k := relay.Key{URL: "http://a.example/a", Path: "/a"}
	mgr := newFakeManager()
	desired := map[relay.Key]relay.Params{k: {BurstSize: 4096}}

	if errs := Apply(mgr, nil, desired); len(errs) != 0 {
		t.Fatalf("unexpected errors on first apply: %v", errs)
	}
	if mgr.starts != 1 {
		t.Fatalf("expected 1 start on first apply, got %d", mgr.starts)
	}

	if errs := Apply(mgr, nil, desired); len(errs) != 0 {
		t.Fatalf("unexpected errors on second apply: %v", errs)
	}
	if mgr.starts != 1 || mgr.stops != 0 {
		t.Fatalf("expected the second apply to be a no-op, got starts=%d stops=%d", mgr.starts, mgr.stops)
	}
}

// TestCloseRemovedMountsPreservesUnaffectedMounts covers spec §8
// scenario 5: removing mount /a from config closes its mount (clients
// disconnected) while mount /b, unchanged, is unaffected by reference
// identity.
func TestCloseRemovedMountsPreservesUnaffectedMounts(t *testing.T) {
	registry := bus.NewRegistry()
	mountA, _ := registry.GetOrCreate(bus.NewMountKey("/a"))
	mountB, _ := registry.GetOrCreate(bus.NewMountKey("/b"))

	pubA := bus.NewPublisher("a", "a", "video/MP2T", nil, 0, 0, false)
	pubB := bus.NewPublisher("b", "b", "video/MP2T", nil, 0, 0, false)
	mountA.AttachPublisher(pubA)
	mountB.AttachPublisher(pubB)

	cfg := cfgWithMounts(config.MountConfig{Path: "/b", SourceURLs: []string{"http://x/y"}})
	CloseRemovedMounts(registry, cfg)

	if registry.Get(bus.NewMountKey("/a")) != nil {
		t.Error("expected mount /a to be removed from the registry")
	}
	if got := registry.Get(bus.NewMountKey("/b")); got != mountB {
		t.Error("expected mount /b to persist by reference identity")
	}
	if !mountB.HasPublisher() {
		t.Error("expected mount /b's publisher to remain attached and untouched")
	}
}

// TestApplyPropagatesChangedParamsWithoutRestart covers spec §4.7 step
// 4: a relay that stays running across a reconfig has its changed
// burst_size/keepalive pushed into the Manager's bookkeeping and the
// attached Publisher in place, with no stop/start churn.
func TestApplyPropagatesChangedParamsWithoutRestart(t *testing.T) {
	k := relay.Key{URL: "http://a.example/a", Path: "/a"}
	registry := bus.NewRegistry()
	mount, _ := registry.GetOrCreate(bus.NewMountKey("/a"))
	pub := bus.NewPublisher("a", "a", "video/MP2T", nil, 1000, 30, true)
	mount.AttachPublisher(pub)

	mgr := newFakeManager(k)
	mgr.running[k] = relay.Params{BurstSize: 1000, KeepaliveSeconds: 30, HasKeepalive: true}

	desired := map[relay.Key]relay.Params{k: {BurstSize: 4096, KeepaliveSeconds: 60, HasKeepalive: true}}

	if errs := Apply(mgr, registry, desired); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if mgr.starts != 0 || mgr.stops != 0 {
		t.Fatalf("expected no start/stop churn, got starts=%d stops=%d", mgr.starts, mgr.stops)
	}
	if got := mgr.running[k]; got.BurstSize != 4096 || got.KeepaliveSeconds != 60 {
		t.Errorf("expected the manager's bookkeeping to reflect the new params, got %+v", got)
	}
	if pub.Burst.Size() > 4096 {
		t.Errorf("expected the publisher's burst queue to fit the new 4096 budget, holding %d bytes", pub.Burst.Size())
	}
	if pub.KeepaliveSeconds != 60 {
		t.Errorf("expected KeepaliveSeconds = 60, got %d", pub.KeepaliveSeconds)
	}
}

func boolPtr(b bool) *bool { return &b }
