package server

import (
	"net/http"
	"time"

	"relaycast/internal/authhandler"
	"relaycast/internal/core/bus"
)

// onDemandWaitTimeout bounds how long a GET against an on-demand mount
// with no publisher yet will wait for the just-triggered relay to
// connect before giving up (spec §4.6).
const onDemandWaitTimeout = 10 * time.Second

// mountHandler serves GET requests against a mount path by attaching
// the requester as a Subscriber and streaming the publisher's burst
// queue plus live fan-out to the response body, per spec §4.8's
// accept-loop dispatch ("resolve against sources[path], run each auth
// handler in order, attach the subscriber").
type mountHandler struct {
	registry        *bus.Registry
	authChain       func() authhandler.Chain
	clientsLimit    func() int
	totalClients    func() int
	maxQueueSize    func(mountPath string) int64
	triggerOnDemand func(mountPath string)
}

func newMountHandler(registry *bus.Registry, authChain func() authhandler.Chain, clientsLimit, totalClients func() int, maxQueueSize func(string) int64, triggerOnDemand func(string)) *mountHandler {
	if triggerOnDemand == nil {
		triggerOnDemand = func(string) {}
	}
	return &mountHandler{
		registry:        registry,
		authChain:       authChain,
		clientsLimit:    clientsLimit,
		totalClients:    totalClients,
		maxQueueSize:    maxQueueSize,
		triggerOnDemand: triggerOnDemand,
	}
}

func (h *mountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mount := h.registry.Get(bus.NewMountKey(r.URL.Path))
	if mount == nil {
		http.NotFound(w, r)
		return
	}
	if !mount.HasPublisher() {
		// The mount exists (a relay or push-publish ingress has
		// claimed the path) but has no publisher yet -- the case for
		// an on-demand relay still parked in Idle. Wake it and give it
		// a window to connect before 404ing.
		h.triggerOnDemand(r.URL.Path)
		if !mount.WaitForPublisher(r.Context(), onDemandWaitTimeout) {
			http.NotFound(w, r)
			return
		}
	}

	if chain := h.authChain(); chain != nil {
		allow, err := chain.Authorize(r, r.URL.Path)
		if err != nil || !allow {
			w.Header().Set("WWW-Authenticate", `Bearer`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	// Global client limit (spec §4.8): reject with 503 before a socket
	// is committed to a subscriber.
	if limit := h.clientsLimit(); limit > 0 && h.totalClients() >= limit {
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", mount.Publisher().ContentType)
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	if r.Method == http.MethodHead {
		return
	}

	sub := mount.AttachSubscriber(r.RemoteAddr, w, h.maxQueueSize(r.URL.Path))
	defer mount.DetachSubscriber(sub.ID)

	notify := sub.Notify()
	overflow := sub.Overflowed()
	closeNotify := r.Context().Done()

	for {
		if drained, err := sub.Sink.Flush(); err != nil {
			return
		} else if drained && flusher != nil {
			flusher.Flush()
		}

		select {
		case <-closeNotify:
			return
		case <-overflow:
			sub.Sink.Flush()
			return
		case <-notify:
			continue
		case <-time.After(30 * time.Second):
			// Periodic wakeup in case a notify was missed between the
			// last flush and the select, and to let an idle connection
			// still observe closeNotify promptly.
		}
	}
}
