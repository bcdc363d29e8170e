package authhandler

import (
	"fmt"
	"net/http"
	"strings"
)

// StaticTokenHandler authorizes requests carrying a shared-secret
// bearer token: `Authorization: Bearer <token>` matching the
// configured token exactly.
type StaticTokenHandler struct {
	token string
}

func newStaticTokenHandler(options map[string]interface{}) (AuthHandler, error) {
	token, ok := optionString(options, "token")
	if !ok || token == "" {
		return nil, fmt.Errorf("static_token auth handler requires a non-empty %q option", "token")
	}
	return &StaticTokenHandler{token: token}, nil
}

// Authorize reports whether r carries the configured bearer token.
// The mount argument is unused -- this handler applies uniformly.
func (h *StaticTokenHandler) Authorize(r *http.Request, mount string) (bool, error) {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if !strings.HasPrefix(v, prefix) {
		return false, nil
	}
	return strings.TrimPrefix(v, prefix) == h.token, nil
}
