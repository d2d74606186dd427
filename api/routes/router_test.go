package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/piersideeats/dispatch-backend/pkg/auth"
	"github.com/piersideeats/dispatch-backend/pkg/config"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

func testRouter(t *testing.T) (http.Handler, config.JWTConfig) {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "piersideeats", ExpirationMinutes: 60},
	}
	router := NewRouter(cfg, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	return router, cfg.JWT
}

func bearer(t *testing.T, cfg config.JWTConfig, role enums.ActorRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		ActorID: uuid.New(),
		Role:    role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthLive(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if env := resp.Header().Get("X-Pierside-Env"); env != "test" {
		t.Fatalf("expected env header, got %q", env)
	}
}

func TestRiderRoutesRequireToken(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rider/delivery-requests", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAdminRoutesRejectRiderRole(t *testing.T) {
	router, jwtCfg := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("Authorization", bearer(t, jwtCfg, enums.RoleRider))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestRiderRoutesRejectAdminRole(t *testing.T) {
	router, jwtCfg := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rider/efficiency", nil)
	req.Header.Set("Authorization", bearer(t, jwtCfg, enums.RoleAdmin))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
