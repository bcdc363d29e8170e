package authhandler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTHandler authorizes requests carrying a bearer JWT, HMAC-signed
// with a configured secret and, when configured, scoped to an
// audience.
type JWTHandler struct {
	secret   []byte
	audience string
}

func newJWTHandler(options map[string]interface{}) (AuthHandler, error) {
	secret, ok := optionString(options, "secret")
	if !ok || secret == "" {
		return nil, fmt.Errorf("jwt auth handler requires a non-empty %q option", "secret")
	}
	audience, _ := optionString(options, "audience")
	return &JWTHandler{secret: []byte(secret), audience: audience}, nil
}

// Authorize validates the bearer token's signature, expiry and
// (when configured) audience.
func (h *JWTHandler) Authorize(r *http.Request, mount string) (bool, error) {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if !strings.HasPrefix(v, prefix) {
		return false, nil
	}
	raw := strings.TrimPrefix(v, prefix)

	var opts []jwt.ParserOption
	if h.audience != "" {
		opts = append(opts, jwt.WithAudience(h.audience))
	}

	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.secret, nil
	}, opts...)
	if err != nil {
		return false, nil
	}
	return true, nil
}
