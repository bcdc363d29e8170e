package statushandler

import (
	"fmt"
	"net/http"
)

// StatusHandler renders a StatsSnapshot in one response format.
type StatusHandler interface {
	ServeStatus(w http.ResponseWriter, r *http.Request, snap StatsSnapshot)
}

// Constructor builds a StatusHandler from its config's inline options.
type Constructor func(options map[string]interface{}) (StatusHandler, error)

// Registry is a compile-time map from config handler names to
// constructors (spec §9 handler registry redesign), plus the
// path -> handler bindings built from a config's `status` mapping.
type Registry struct {
	constructors map[string]Constructor
	bindings     map[string]StatusHandler
}

// NewRegistry creates a Registry pre-populated with the four built-in
// formats (spec §6/§8: plaintext, HTML, JSON, static file).
func NewRegistry() *Registry {
	r := &Registry{
		constructors: make(map[string]Constructor),
		bindings:     make(map[string]StatusHandler),
	}
	r.Register("plain", newPlainHandler)
	r.Register("html", newHTMLHandler)
	r.Register("json", newJSONHandler)
	r.Register("static_file", newStaticFileHandler)
	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.constructors[name] = ctor
}

// Bind constructs a handler by name and binds it to path, returning a
// configuration error for an unknown name.
func (r *Registry) Bind(path, name string, options map[string]interface{}) error {
	ctor, ok := r.constructors[name]
	if !ok {
		return fmt.Errorf("unknown status handler %q", name)
	}
	h, err := ctor(options)
	if err != nil {
		return fmt.Errorf("status handler %q at %q: %w", name, path, err)
	}
	r.bindings[path] = h
	return nil
}

// Lookup returns the handler bound to path, if any.
func (r *Registry) Lookup(path string) (StatusHandler, bool) {
	h, ok := r.bindings[path]
	return h, ok
}

// Paths returns every bound status path, for route registration.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.bindings))
	for p := range r.bindings {
		paths = append(paths, p)
	}
	return paths
}
