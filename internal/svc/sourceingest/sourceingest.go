// Package sourceingest implements the push-publish ingress path
// (spec.md §3's "a push-publisher request is accepted"): an
// Icecast-style source client issues SOURCE or PUT against a mount
// path with a Content-Type header and a streamed body.
package sourceingest

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"relaycast/internal/authhandler"
	"relaycast/internal/core/bus"
	"relaycast/internal/core/demux"
)

// MountParams carries the effective per-mount burst/keepalive settings
// a Publisher created by this handler should use (spec §4.7's
// "effective burst_size/keepalive" resolution, shared with the
// relay.Params shape).
type MountParams struct {
	BurstSize        int64
	KeepaliveSeconds int
	HasKeepalive     bool
}

// ParamsLookup resolves the effective settings for a mount path,
// typically backed by the loaded config's EffectiveBurstSize/
// EffectiveKeepalive resolvers.
type ParamsLookup func(mountPath string) MountParams

// Handler accepts source-client connections and feeds them into the
// bus as Publishers, converging on bus.Mount.Publish -- the same call
// the HTTP/UDP relays use -- so status pages and subscribers cannot
// tell which ingress path produced a given mount's bytes.
type Handler struct {
	registry *bus.Registry
	auth     func() authhandler.Chain
	params   ParamsLookup
	logger   zerolog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc // mount path -> active ingest cancel
}

// NewHandler creates a source-ingest handler bound to registry. auth
// is re-read on every connection so a reconfiguration that rebuilds
// the auth chain (spec §4.7) takes effect for the next source without
// restarting this handler; a nil auth means no auth is ever applied.
func NewHandler(registry *bus.Registry, auth func() authhandler.Chain, params ParamsLookup, logger zerolog.Logger) *Handler {
	if auth == nil {
		auth = func() authhandler.Chain { return nil }
	}
	if params == nil {
		params = func(string) MountParams { return MountParams{} }
	}
	return &Handler{
		registry: registry,
		auth:     auth,
		params:   params,
		logger:   logger.With().Str("component", "sourceingest").Logger(),
		active:   make(map[string]context.CancelFunc),
	}
}

// sourceMethodListener rewrites a leading "SOURCE " request line to
// "PUT " at the connection level, the way Icecast's legacy source
// protocol is accepted by an http.Server that otherwise only knows
// standard HTTP methods.
type sourceMethodListener struct {
	net.Listener
}

// WrapListener returns a net.Listener that transparently rewrites
// SOURCE requests to PUT before they reach the HTTP server.
func WrapListener(ln net.Listener) net.Listener {
	return &sourceMethodListener{Listener: ln}
}

func (l *sourceMethodListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &sourceMethodConn{Conn: conn}, nil
}

type sourceMethodConn struct {
	net.Conn
	reader *bufio.Reader
	once   sync.Once
}

func (c *sourceMethodConn) Read(b []byte) (int, error) {
	c.once.Do(func() {
		c.reader = bufio.NewReaderSize(c.Conn, 4096)
		peek, err := c.reader.Peek(7)
		if err != nil {
			return
		}
		if string(peek) == "SOURCE " {
			discard := make([]byte, 7)
			_, _ = c.reader.Read(discard)
			c.reader = bufio.NewReaderSize(io.MultiReader(strings.NewReader("PUT "), c.reader), 4096)
		}
	})
	return c.reader.Read(b)
}

// ServeHTTP accepts one source connection, attaches a Publisher to
// the mount named by the request path, and streams the hijacked
// connection's bytes into the mount until the client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed, use PUT (or SOURCE)", http.StatusMethodNotAllowed)
		return
	}

	mountPath := r.URL.Path
	if mountPath == "" || mountPath == "/" {
		http.Error(w, "mount path required", http.StatusBadRequest)
		return
	}

	if allow, err := h.auth().Authorize(r, mountPath); err != nil || !allow {
		w.Header().Set("WWW-Authenticate", `Bearer`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	if _, busy := h.active[mountPath]; busy {
		h.mu.Unlock()
		http.Error(w, "mount already has an active source", http.StatusConflict)
		return
	}
	h.mu.Unlock()

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		h.logger.Error().Err(err).Str("mount", mountPath).Msg("source-ingest hijack failed")
		return
	}
	defer conn.Close()

	// Proxies commonly forward a streaming PUT with Content-Length: 0
	// and no chunked Transfer-Encoding, which makes r.Body read EOF
	// immediately; hijacking and reading the raw connection bypasses
	// Go's HTTP body framing entirely.
	conn.Write([]byte("HTTP/1.1 200 OK\r\nConnection: close\r\n\r\n"))

	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.active[mountPath] = cancel
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.active, mountPath)
		h.mu.Unlock()
		cancel()
	}()

	mount, _ := h.registry.GetOrCreate(bus.NewMountKey(mountPath))
	demuxer := demux.ForContentType(contentType)
	mp := h.params(mountPath)
	pub := bus.NewPublisher(uuid.NewString(), r.RemoteAddr, contentType, demuxer, mp.BurstSize, mp.KeepaliveSeconds, mp.HasKeepalive)
	if !mount.AttachPublisher(pub) {
		h.logger.Warn().Str("mount", mountPath).Msg("source-ingest: mount already has an active publisher")
		return
	}

	h.logger.Info().Str("mount", mountPath).Str("content_type", contentType).Str("remote_addr", r.RemoteAddr).Msg("source connected")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	readBuf := make([]byte, 65536)
	for {
		n, err := buf.Reader.Read(readBuf)
		if n > 0 {
			mount.Publish(append([]byte(nil), readBuf[:n]...))
		}
		if err != nil {
			break
		}
	}

	mount.BeginDraining()
	h.logger.Info().Str("mount", mountPath).Msg("source disconnected")
}
