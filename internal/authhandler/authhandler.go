// Package authhandler implements the compile-time auth handler
// registry spec §9 redesigns dynamic "module.Class" handler loading
// into: config references a handler by name, and unknown names are a
// configuration error.
package authhandler

import (
	"fmt"
	"net/http"
)

// AuthHandler authorizes an incoming subscriber or source-ingest
// request against one mount path.
type AuthHandler interface {
	Authorize(r *http.Request, mount string) (allow bool, err error)
}

// Constructor builds an AuthHandler from its config's inline options.
type Constructor func(options map[string]interface{}) (AuthHandler, error)

// Registry is a compile-time map from config handler names to
// constructors. The handlers built from a config's `auth` sequence
// are held separately, in a Chain.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates a Registry pre-populated with the built-in
// handlers (spec's EXPANSION "Auth handler plugins").
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register("static_token", newStaticTokenHandler)
	r.Register("jwt", newJWTHandler)
	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.constructors[name] = ctor
}

// Build constructs a handler by name with the given inline options,
// returning a configuration error for an unknown name (spec §9).
func (r *Registry) Build(name string, options map[string]interface{}) (AuthHandler, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown auth handler %q", name)
	}
	return ctor(options)
}

// Chain is an ordered sequence of AuthHandlers. A request is allowed
// if every handler in the chain allows it (spec §6 "auth chain");
// an empty chain allows everything.
type Chain []AuthHandler

// Authorize runs every handler in order, short-circuiting on the
// first denial or error.
func (c Chain) Authorize(r *http.Request, mount string) (bool, error) {
	for _, h := range c {
		allow, err := h.Authorize(r, mount)
		if err != nil {
			return false, err
		}
		if !allow {
			return false, nil
		}
	}
	return true, nil
}

func optionString(options map[string]interface{}, key string) (string, bool) {
	v, ok := options[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
