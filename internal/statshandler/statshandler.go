// Package statshandler implements the statistics sink registry (spec
// §6 "statistics" config), giving that config block a concrete
// exporter: Prometheus gauges built from the same StatsSnapshot the
// status handlers render.
package statshandler

import (
	"fmt"
	"net/http"

	"relaycast/internal/statushandler"
)

// StatsHandler consumes a StatsSnapshot, typically updating exported
// metrics as a side effect.
type StatsHandler interface {
	Observe(snap statushandler.StatsSnapshot)
}

// Constructor builds a StatsHandler from its config's inline options.
type Constructor func(options map[string]interface{}) (StatsHandler, error)

// Registry is a compile-time map from config handler names to
// constructors, plus the sinks built from a config's `statistics`
// sequence.
type Registry struct {
	constructors map[string]Constructor
	sinks        []StatsHandler
}

// NewRegistry creates a Registry pre-populated with the built-in
// Prometheus sink.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register("prometheus", newPrometheusHandler)
	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.constructors[name] = ctor
}

// Add constructs a handler by name and appends it to the sink list,
// returning a configuration error for an unknown name.
func (r *Registry) Add(name string, options map[string]interface{}) error {
	ctor, ok := r.constructors[name]
	if !ok {
		return fmt.Errorf("unknown statistics handler %q", name)
	}
	h, err := ctor(options)
	if err != nil {
		return fmt.Errorf("statistics handler %q: %w", name, err)
	}
	r.sinks = append(r.sinks, h)
	return nil
}

// ObserveAll feeds snap to every registered sink.
func (r *Registry) ObserveAll(snap statushandler.StatsSnapshot) {
	for _, sink := range r.sinks {
		sink.Observe(snap)
	}
}

// MetricsHandler returns the first sink that also implements
// http.Handler (the Prometheus sink's /metrics endpoint), or nil if
// none do.
func (r *Registry) MetricsHandler() http.Handler {
	for _, sink := range r.sinks {
		if h, ok := sink.(http.Handler); ok {
			return h
		}
	}
	return nil
}
