package relay

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaycast/internal/core/bus"
	"relaycast/internal/core/demux"
)

// HTTPState is the HTTPRelay lifecycle (spec §4.6: Connecting ->
// Requesting -> ReadingResponse -> Streaming | Closed, plus an Idle
// state for on-demand relays that haven't been asked for yet).
type HTTPState uint8

const (
	HTTPStateIdle HTTPState = iota
	HTTPStateConnecting
	HTTPStateRequesting
	HTTPStateReadingResponse
	HTTPStateStreaming
	HTTPStateClosed
)

func (s HTTPState) String() string {
	switch s {
	case HTTPStateIdle:
		return "idle"
	case HTTPStateConnecting:
		return "connecting"
	case HTTPStateRequesting:
		return "requesting"
	case HTTPStateReadingResponse:
		return "reading_response"
	case HTTPStateStreaming:
		return "streaming"
	case HTTPStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const dialTimeout = 10 * time.Second

// HTTPRelay pulls an HTTP/Icecast-style source into a Mount.
type HTTPRelay struct {
	key    Key
	params Params
	target *url.URL

	registry *bus.Registry

	mu     sync.Mutex
	state  HTTPState
	conn   net.Conn
	closed bool

	trigger     chan struct{}
	triggerOnce sync.Once
}

// NewHTTPRelay prepares (but does not yet connect) a relay for u. The
// actual dial happens in Run, unlike savate/relay.py's HTTPRelay which
// connects from its constructor -- deferring it here lets the caller
// drive on_demand relays (spec §4.6 Idle state) without an upstream
// connection until a subscriber actually attaches.
func NewHTTPRelay(registry *bus.Registry, key Key, u *url.URL, params Params) (*HTTPRelay, error) {
	if u.Hostname() == "" {
		return nil, fmt.Errorf("http relay url %q is missing a host", key.URL)
	}
	return &HTTPRelay{key: key, params: params, target: u, registry: registry, state: HTTPStateIdle, trigger: make(chan struct{})}, nil
}

// Trigger wakes this relay if it is parked in Idle waiting for an
// on-demand subscriber (spec §4.6). Safe to call multiple times or on
// a relay that was never on-demand.
func (r *HTTPRelay) Trigger() {
	r.triggerOnce.Do(func() { close(r.trigger) })
}

// State returns the current lifecycle state.
func (r *HTTPRelay) State() HTTPState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *HTTPRelay) setState(s HTTPState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run connects, sends the relay request, parses the response headers
// and then streams the response body into the mount until ctx is
// cancelled or the connection ends.
func (r *HTTPRelay) Run(ctx context.Context) error {
	mount, _ := r.registry.GetOrCreate(bus.NewMountKey(r.key.Path))

	if r.params.OnDemand {
		r.setState(HTTPStateIdle)
		select {
		case <-r.trigger:
		case <-ctx.Done():
			return nil
		}
	}

	r.setState(HTTPStateConnecting)

	dialer := net.Dialer{Timeout: dialTimeout}
	host := net.JoinHostPort(r.target.Hostname(), portOrDefault(r.target))
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		r.setState(HTTPStateClosed)
		return fmt.Errorf("http relay %s connect: %w", r.key, err)
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.Close()
	}()

	r.setState(HTTPStateRequesting)
	if _, err := conn.Write(buildRequest(r.target)); err != nil {
		r.setState(HTTPStateClosed)
		conn.Close()
		return fmt.Errorf("http relay %s write request: %w", r.key, err)
	}

	r.setState(HTTPStateReadingResponse)
	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, nil)
	if err != nil {
		r.setState(HTTPStateClosed)
		conn.Close()
		return fmt.Errorf("http relay %s read response: %w", r.key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.setState(HTTPStateClosed)
		conn.Close()
		return fmt.Errorf("http relay %s: unexpected response %d %s", r.key, resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	demuxer := demux.ForContentType(contentType)
	pub := bus.NewPublisher(uuid.NewString(), conn.RemoteAddr().String(), contentType, demuxer, r.params.BurstSize, r.params.KeepaliveSeconds, r.params.HasKeepalive)
	if !mount.AttachPublisher(pub) {
		r.setState(HTTPStateClosed)
		conn.Close()
		return fmt.Errorf("http relay %s: mount %s already has an active publisher", r.key, r.key.Path)
	}

	r.setState(HTTPStateStreaming)
	buf := make([]byte, 65536)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			mount.Publish(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			r.setState(HTTPStateClosed)
			mount.BeginDraining()
			conn.Close()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("http relay %s body read: %w", r.key, err)
		}
	}
}

// Close unconditionally tears down the connection. Safe to call
// multiple times.
func (r *HTTPRelay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.conn != nil {
		r.conn.Close()
	}
}

func portOrDefault(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	return "80"
}

// buildRequest constructs the exact bytes of the relay GET request
// (spec §6 wire example): selector from the URL path/query, an
// icy-metadata request header, Connection: close and an explicit
// zero-length Content-Length.
func buildRequest(u *url.URL) []byte {
	selector := u.Path
	if selector == "" {
		selector = "/"
	}
	if u.RawQuery != "" {
		selector += "?" + u.RawQuery
	}

	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(selector)
	b.WriteString(" HTTP/1.0\r\n")
	b.WriteString("Host: ")
	b.WriteString(u.Hostname())
	b.WriteString("\r\n")
	b.WriteString("icy-metadata: 1\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("Content-Length: 0\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}
