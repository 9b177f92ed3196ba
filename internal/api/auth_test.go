package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"camrent/internal/config"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHTTPAuth(t *testing.T) {
	cfg := config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: "reader-key", Name: "dashboard", Permissions: []string{permReadBookings}},
				{Key: "manager-key", Name: "console"},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}
	h := NewHTTPAuth(cfg).Wrap(okHandler())

	do := func(method, path, key string) int {
		req := httptest.NewRequest(method, path, nil)
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("Success", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/v1/bookings", "reader-key"))
	})

	t.Run("MissingHeader", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/bookings", ""))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/bookings", "nope"))
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/api/v1/dialogs", "reader-key"))
		assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/api/v1/bookings/refresh", "reader-key"))
	})

	t.Run("EmptyPermissionsAllowAll", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/v1/dialogs", "manager-key"))
	})

	t.Run("HealthIsOpen", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/healthz", ""))
	})
}

func TestHTTPAuthRateLimit(t *testing.T) {
	cfg := config.APIConfig{
		RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 2},
	}
	h := NewHTTPAuth(cfg).Wrap(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		req.Header.Set("x-api-key", "k1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("x-api-key", "k2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCredential(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, credential(req).Token)

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", credential(req).Token)

	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	assert.Empty(t, credential(req).Token)
}
