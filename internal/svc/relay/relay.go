package relay

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"relaycast/internal/core/bus"
)

// Params carries the effective (root-default-resolved) per-relay
// settings a Manager needs to start or update a relay (spec §4.7 step
// 2's "effective burst_size/keepalive").
type Params struct {
	BurstSize        int64
	KeepaliveSeconds int
	HasKeepalive     bool
	MaxQueueSize     int64
	OnDemand         bool
}

// Relay is the common behavior of both transport variants: run until
// the upstream ends or ctx is cancelled, and report the last observed
// lifecycle error (nil on a clean, intentional stop).
type Relay interface {
	Run(ctx context.Context) error
	Close()

	// Trigger wakes a relay parked in an on-demand Idle state so it
	// proceeds to connect (spec §4.6). A no-op for a relay that isn't
	// on-demand, isn't idle, or doesn't model an Idle state at all.
	Trigger()
}

// New builds a Relay for key.URL relaying into mount key.Path, selecting
// the UDP or HTTP variant from the URL scheme (spec §6 "Supported URL
// schemes").
func New(registry *bus.Registry, key Key, params Params) (Relay, error) {
	u, err := url.Parse(key.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url %q: %w", key.URL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "udp", "multicast":
		return NewUDPRelay(registry, key, u, params)
	case "http":
		return NewHTTPRelay(registry, key, u, params)
	default:
		return nil, fmt.Errorf("unsupported relay url scheme %q", u.Scheme)
	}
}
