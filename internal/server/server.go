package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"relaycast/internal/authhandler"
	"relaycast/internal/config"
	"relaycast/internal/core/bus"
	"relaycast/internal/reconfig"
	"relaycast/internal/statshandler"
	"relaycast/internal/statushandler"
	"relaycast/internal/svc/health"
	"relaycast/internal/svc/relay"
	"relaycast/internal/svc/sourceingest"
	"relaycast/internal/svc/statswatch"
)

// idleSweepInterval is how often the inactivity sweep runs, detaching
// subscribers that have gone quiet and closing mounts whose keepalive
// window has lapsed without a source reconnect (spec §4.4, §4.8).
const idleSweepInterval = 5 * time.Second

// subscriberIdleTimeout disconnects a subscriber that has made no
// read/write progress for this long, catching sockets a TCP half-close
// never notified the write loop about.
const subscriberIdleTimeout = 60 * time.Second

// relayTickInterval drives Manager.Tick, draining any relay restarts
// whose delay has elapsed.
const relayTickInterval = time.Second

// Server wires the bus registry, relay manager, and the three
// pluggable handler registries behind a chi router.
type Server struct {
	logger zerolog.Logger

	registry     *bus.Registry
	relayManager *relay.Manager

	mu           sync.RWMutex
	cfg          *config.Config
	authChain    authhandler.Chain
	statusReg    *statushandler.Registry
	statsReg     *statshandler.Registry
	maxQueueSize map[string]int64

	sourceIngest *sourceingest.Handler
	mountHandler *mountHandler

	totalClients atomic.Int64

	httpServer *http.Server

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs a Server from cfg. The server is not started until
// Start is called.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	s := &Server{
		logger:       logger,
		registry:     bus.NewRegistry(),
		maxQueueSize: make(map[string]int64),
	}
	s.relayManager = relay.NewManager(s.registry)

	if err := s.applyConfigLocked(cfg); err != nil {
		return nil, fmt.Errorf("apply initial config: %w", err)
	}

	s.sourceIngest = sourceingest.NewHandler(s.registry, s.currentAuthChain, s.sourceIngestParams, logger)
	s.mountHandler = newMountHandler(s.registry, s.currentAuthChain, s.clientsLimit,
		func() int {
			total := 0
			for _, key := range s.registry.List() {
				if m := s.registry.Get(key); m != nil {
					total += m.SubscriberCount()
				}
			}
			return total
		}, s.mountMaxQueueSize, s.relayManager.TriggerOnDemand)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))

	healthMux := http.NewServeMux()
	health.New().RegisterRoutes(healthMux)
	router.Handle("/healthz", healthMux)

	statsMux := http.NewServeMux()
	statswatch.NewService(s.buildSnapshot, 2*time.Second).RegisterRoutes(statsMux)
	router.Handle("/stats/ws", statsMux)

	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.buildSnapshot()
		if h := s.statsReg.MetricsHandler(); h != nil {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})

	router.Handle("/*", http.HandlerFunc(s.dispatch))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming responses manage their own pace
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// dispatch implements spec §4.8's accept-loop routing, minus the
// /metrics, /healthz and /stats/ws paths already handled by dedicated
// chi routes above: a status page bound to this exact path wins first,
// then PUT (SOURCE is rewritten to PUT by sourceingest.WrapListener)
// reaches the push-publish ingress, and everything else is a
// subscriber GET/HEAD against a relayed or published mount.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	if handler, ok := s.currentStatusRegistry().Lookup(r.URL.Path); ok {
		handler.ServeStatus(w, r, s.buildSnapshot())
		return
	}
	if r.Method == http.MethodPut {
		s.sourceIngest.ServeHTTP(w, r)
		return
	}
	s.mountHandler.ServeHTTP(w, r)
}

// currentStatusRegistry returns the status-handler registry built by
// the most recent Reconfigure, so a rebuilt registry (spec §4.7: auth
// and status handlers are rebuilt "from scratch" on reconfiguration)
// is visible to the next request without restarting the listener.
func (s *Server) currentStatusRegistry() *statushandler.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusReg
}

// Start begins serving HTTP requests and running the background relay
// tick and inactivity sweep loops. It blocks until the listener closes
// or Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	// Source clients may speak Icecast's legacy "SOURCE <path>" request
	// line instead of PUT; rewrite it at the raw connection so the
	// standard net/http server still parses a well-formed request.
	ln = sourceingest.WrapListener(ln)

	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel
	s.bgWG.Add(2)
	go s.runInactivitySweep(ctx)
	go s.runRelayTick(ctx)

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("listening")
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server, every running relay, and
// the background loops.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.relayManager.StopAll()
	s.bgWG.Wait()
	return s.httpServer.Shutdown(ctx)
}

// Reconfigure diffs the server onto cfg using the reconfiguration
// engine (spec §4.7): rebuilds the handler registries from scratch,
// converges relays onto the newly desired set, and closes any mount
// whose path was dropped from the config.
func (s *Server) Reconfigure(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyConfigLocked(cfg)
}

func (s *Server) applyConfigLocked(cfg *config.Config) error {
	authReg := authhandler.NewRegistry()
	chain, err := reconfig.BuildAuthChain(authReg, cfg)
	if err != nil {
		return fmt.Errorf("build auth chain: %w", err)
	}

	statusReg := statushandler.NewRegistry()
	if err := reconfig.BuildStatusRegistry(statusReg, cfg); err != nil {
		return fmt.Errorf("build status registry: %w", err)
	}

	statsReg := statshandler.NewRegistry()
	if err := reconfig.BuildStatsRegistry(statsReg, cfg); err != nil {
		return fmt.Errorf("build statistics registry: %w", err)
	}

	desired := reconfig.Desired(cfg, s.resolveAllAddrs)
	if errs := reconfig.Apply(s.relayManager, s.registry, desired); len(errs) > 0 {
		for _, e := range errs {
			s.logger.Error().Err(e).Msg("relay start failed during reconfiguration")
		}
	}
	reconfig.CloseRemovedMounts(s.registry, cfg)

	maxQueueSize := make(map[string]int64, len(cfg.Mounts))
	for i := range cfg.Mounts {
		maxQueueSize[cfg.Mounts[i].Path] = cfg.EffectiveMaxQueueSize(&cfg.Mounts[i])
	}

	s.cfg = cfg
	s.authChain = chain
	s.statusReg = statusReg
	s.statsReg = statsReg
	s.maxQueueSize = maxQueueSize
	return nil
}

// resolveAllAddrs backs reconfig.Desired's net_resolve_all fan-out,
// resolved fresh at every reconfiguration rather than cached, so a DNS
// change is picked up on the next reload without a restart.
func (s *Server) resolveAllAddrs(sourceURL string) []string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addrs, err := net.DefaultResolver.LookupHost(ctx, u.Hostname())
	if err != nil {
		s.logger.Warn().Err(err).Str("source_url", sourceURL).Msg("net_resolve_all: lookup failed")
		return nil
	}
	return addrs
}

func (s *Server) currentAuthChain() authhandler.Chain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authChain
}

func (s *Server) clientsLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.ClientsLimit
}

func (s *Server) mountMaxQueueSize(mountPath string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxQueueSize[mountPath]
}

func (s *Server) sourceIngestParams(mountPath string) sourceingest.MountParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.cfg.Mounts {
		if s.cfg.Mounts[i].Path != mountPath {
			continue
		}
		m := &s.cfg.Mounts[i]
		seconds, has := s.cfg.EffectiveKeepalive(m)
		return sourceingest.MountParams{
			BurstSize:        s.cfg.EffectiveBurstSize(m),
			KeepaliveSeconds: seconds,
			HasKeepalive:     has,
		}
	}
	return sourceingest.MountParams{}
}

// buildSnapshot walks every mount in the registry to assemble the
// source/client tree every status format and the statistics sinks
// render from (spec §6), and feeds it to the statistics registry as a
// side effect so /metrics stays current without a separate sweep.
func (s *Server) buildSnapshot() statushandler.StatsSnapshot {
	sources := make(map[string][]statushandler.SourceEntry)
	var queueSizes []int64
	var total int

	for _, key := range s.registry.List() {
		mount := s.registry.Get(key)
		if mount == nil || !mount.HasPublisher() {
			continue
		}
		pub := mount.Publisher()
		entry := statushandler.SourceEntry{Address: pub.PeerAddr}
		for _, sub := range mount.Subscribers() {
			entry.Clients = append(entry.Clients, statushandler.ClientEntry{
				ID:      sub.ID,
				Address: sub.Addr,
			})
			queueSizes = append(queueSizes, sub.Sink.Queued())
			total++
		}
		sources[key.Path] = append(sources[key.Path], entry)
	}

	snap := statushandler.BuildSnapshot(sources, queueSizes)

	s.mu.RLock()
	statsReg := s.statsReg
	s.mu.RUnlock()
	if statsReg != nil {
		statsReg.ObserveAll(snap)
	}
	s.totalClients.Store(int64(total))
	return snap
}

func (s *Server) runInactivitySweep(ctx context.Context) {
	defer s.bgWG.Done()
	ticker := time.NewTicker(idleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Server) sweepOnce() {
	now := time.Now()
	for _, key := range s.registry.List() {
		mount := s.registry.Get(key)
		if mount == nil {
			continue
		}
		for _, sub := range mount.Subscribers() {
			if sub.IdleSince() > subscriberIdleTimeout {
				mount.DetachSubscriber(sub.ID)
			}
		}
		if mount.DrainExpired(now) {
			mount.Close()
		}
		s.registry.RemoveIfEmpty(key)
	}
}

func (s *Server) runRelayTick(ctx context.Context) {
	defer s.bgWG.Done()
	ticker := time.NewTicker(relayTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.relayManager.Tick(now)
		}
	}
}

// requestLogger logs each request's method, path, status and latency
// at Info level once it completes.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
