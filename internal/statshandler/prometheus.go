package statshandler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relaycast/internal/statushandler"
)

// PrometheusHandler exports StatsSnapshot fields as Prometheus gauges
// under /metrics (spec's EXPANSION "Statistics handler sink"), giving
// the `statistics` config block a concrete wired implementation.
type PrometheusHandler struct {
	registry *prometheus.Registry
	clients  prometheus.Gauge
	queue    *prometheus.GaugeVec
	handler  http.Handler
}

func newPrometheusHandler(options map[string]interface{}) (StatsHandler, error) {
	reg := prometheus.NewRegistry()

	clients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_clients_total",
		Help: "Total number of currently connected subscribers across all mounts.",
	})
	queue := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relay_queue_bytes",
		Help: "Per-subscriber output queue size statistics, in bytes.",
	}, []string{"quantile"})

	reg.MustRegister(clients, queue)

	return &PrometheusHandler{
		registry: reg,
		clients:  clients,
		queue:    queue,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// Observe updates the exported gauges from snap.
func (h *PrometheusHandler) Observe(snap statushandler.StatsSnapshot) {
	h.clients.Set(float64(snap.TotalClients))
	h.queue.WithLabelValues("min").Set(float64(snap.MinQueueSize))
	h.queue.WithLabelValues("max").Set(float64(snap.MaxQueueSize))
	h.queue.WithLabelValues("median").Set(float64(snap.MedianQueueSize))
	h.queue.WithLabelValues("mean").Set(snap.AverageQueueSize)
}

// ServeHTTP satisfies http.Handler so Registry.MetricsHandler can
// expose this sink directly.
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}
