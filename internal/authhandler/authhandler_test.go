package authhandler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestRegistryBuildUnknownHandler(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Build("bogus", nil); err == nil {
		t.Fatal("expected an error for an unknown handler name")
	}
}

func TestStaticTokenHandlerAuthorize(t *testing.T) {
	r := NewRegistry()
	h, err := r.Build("static_token", map[string]interface{}{"token": "secret"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/m", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if allow, err := h.Authorize(req, "/m"); err != nil || !allow {
		t.Errorf("Authorize = (%v, %v), want (true, nil)", allow, err)
	}

	bad := httptest.NewRequest(http.MethodGet, "/m", nil)
	bad.Header.Set("Authorization", "Bearer wrong")
	if allow, _ := h.Authorize(bad, "/m"); allow {
		t.Error("expected Authorize to reject a mismatched token")
	}

	missing := httptest.NewRequest(http.MethodGet, "/m", nil)
	if allow, _ := h.Authorize(missing, "/m"); allow {
		t.Error("expected Authorize to reject a request with no Authorization header")
	}
}

func TestStaticTokenHandlerRequiresToken(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Build("static_token", map[string]interface{}{}); err == nil {
		t.Fatal("expected an error for a missing token option")
	}
}

func TestJWTHandlerAuthorize(t *testing.T) {
	secret := []byte("top-secret")
	r := NewRegistry()
	h, err := r.Build("jwt", map[string]interface{}{"secret": string(secret)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/m", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	if allow, err := h.Authorize(req, "/m"); err != nil || !allow {
		t.Errorf("Authorize = (%v, %v), want (true, nil)", allow, err)
	}
}

func TestJWTHandlerRejectsExpired(t *testing.T) {
	secret := []byte("top-secret")
	r := NewRegistry()
	h, err := r.Build("jwt", map[string]interface{}{"secret": string(secret)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/m", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	if allow, _ := h.Authorize(req, "/m"); allow {
		t.Error("expected Authorize to reject an expired token")
	}
}

func TestJWTHandlerRejectsWrongAudience(t *testing.T) {
	secret := []byte("top-secret")
	r := NewRegistry()
	h, err := r.Build("jwt", map[string]interface{}{"secret": string(secret), "audience": "listeners"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		Audience:  jwt.ClaimStrings{"other"},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/m", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	if allow, _ := h.Authorize(req, "/m"); allow {
		t.Error("expected Authorize to reject a token with the wrong audience")
	}
}

func TestChainShortCircuitsOnDenial(t *testing.T) {
	r := NewRegistry()
	allowAll, _ := r.Build("static_token", map[string]interface{}{"token": "a"})
	denyAll, _ := r.Build("static_token", map[string]interface{}{"token": "b"})
	chain := Chain{allowAll, denyAll}

	req := httptest.NewRequest(http.MethodGet, "/m", nil)
	req.Header.Set("Authorization", "Bearer a")
	if allow, err := chain.Authorize(req, "/m"); err != nil || allow {
		t.Errorf("Authorize = (%v, %v), want (false, nil) since the second handler denies", allow, err)
	}
}
