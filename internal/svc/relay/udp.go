package relay

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"relaycast/internal/core/bus"
	"relaycast/internal/core/demux"
)

// minStartBuffer is MIN_START_BUFFER from savate/relay.py: the relay
// withholds publisher registration until this many bytes have arrived,
// filtering out dead sources that open a socket but never send.
const minStartBuffer = 64 << 10

// UDPState is the UDPRelay lifecycle (spec §4.5: Bind -> Warmup ->
// Publishing -> Closed).
type UDPState uint8

const (
	UDPStateBind UDPState = iota
	UDPStateWarmup
	UDPStatePublishing
	UDPStateClosed
)

func (s UDPState) String() string {
	switch s {
	case UDPStateBind:
		return "bind"
	case UDPStateWarmup:
		return "warmup"
	case UDPStatePublishing:
		return "publishing"
	case UDPStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// UDPRelay pulls a UDP or multicast MPEG-TS source into a Mount.
type UDPRelay struct {
	key      Key
	params   Params
	registry *bus.Registry

	conn     net.PacketConn
	state    atomic.Int32
	closeMu  sync.Mutex
	closed   bool
}

// NewUDPRelay binds the relay's listening socket and returns a relay
// ready to Run. Binding happens here (rather than deferred into Run)
// so a bind failure surfaces immediately to the caller, mirroring
// savate/relay.py's UDPRelay.__init__ doing the same.
func NewUDPRelay(registry *bus.Registry, key Key, u *url.URL, params Params) (*UDPRelay, error) {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		return nil, fmt.Errorf("udp relay url %q is missing a port", key.URL)
	}

	var conn net.PacketConn
	var err error
	if u.Scheme == "multicast" {
		group := &net.UDPAddr{IP: net.ParseIP(host), Port: mustAtoi(port)}
		conn, err = net.ListenMulticastUDP("udp", nil, group)
	} else {
		conn, err = net.ListenPacket("udp", net.JoinHostPort(host, port))
	}
	if err != nil {
		return nil, fmt.Errorf("bind udp relay %q: %w", key.URL, err)
	}

	r := &UDPRelay{key: key, params: params, registry: registry, conn: conn}
	r.state.Store(int32(UDPStateBind))
	return r, nil
}

// State returns the current lifecycle state.
func (r *UDPRelay) State() UDPState {
	return UDPState(r.state.Load())
}

// Run accumulates datagrams until MIN_START_BUFFER bytes have arrived
// (Warmup), then registers a Publisher on the mount and feeds every
// subsequent datagram to it (Publishing) until ctx is cancelled or the
// socket errors.
func (r *UDPRelay) Run(ctx context.Context) error {
	mount, _ := r.registry.GetOrCreate(bus.NewMountKey(r.key.Path))

	r.state.Store(int32(UDPStateWarmup))

	go func() {
		<-ctx.Done()
		r.Close()
	}()

	var warmup []byte
	buf := make([]byte, 65536)
	published := false

	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			r.state.Store(int32(UDPStateClosed))
			if published {
				mount.BeginDraining()
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("udp relay %s read: %w", r.key, err)
		}

		if !published {
			warmup = append(warmup, buf[:n]...)
			if len(warmup) < minStartBuffer {
				continue
			}

			demuxer := demux.NewMPEGTSDemuxer()
			pub := bus.NewPublisher(uuid.NewString(), addr.String(), "video/MP2T", demuxer, r.params.BurstSize, r.params.KeepaliveSeconds, r.params.HasKeepalive)
			if !mount.AttachPublisher(pub) {
				r.state.Store(int32(UDPStateClosed))
				return fmt.Errorf("udp relay %s: mount %s already has an active publisher", r.key, r.key.Path)
			}
			mount.Publish(warmup)
			warmup = nil
			published = true
			r.state.Store(int32(UDPStatePublishing))
			continue
		}

		mount.Publish(append([]byte(nil), buf[:n]...))
	}
}

// Trigger is a no-op: spec §4.5's UDP relay has no Idle/on-demand
// state, it always binds and warms up immediately regardless of
// on_demand.
func (r *UDPRelay) Trigger() {}

// Close unregisters the socket. Safe to call multiple times.
func (r *UDPRelay) Close() {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.conn.Close()
}

func mustAtoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
