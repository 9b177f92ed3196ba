package api

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"camrent/internal/config"
	"camrent/internal/domain"
)

const (
	apiKeyHeaderDefault = "x-api-key"
	permReadBookings    = "read:bookings"
	permRunWorkflows    = "write:workflows"
	clientKeyUnknown    = "unknown"
)

var (
	errMissingAPIKey    = errors.New("missing api key header")
	errInvalidAPIKey    = errors.New("invalid api key")
	errPermissionDenied = errors.New("permission denied")
)

// HTTPAuth provides API-key auth and per-key rate limiting for the console API.
type HTTPAuth struct {
	cfg     config.APIConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m, limiter: newRateLimiter(cfg.RateLimit)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			client, err := a.checkAuth(r)
			if err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, "", err.Error())
				return
			}
			infoFrom(r.Context()).client = client.Name
		}

		if a.limiter.enabled() && !a.limiter.getLimiter(a.clientKey(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "", "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) header() string {
	h := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if h == "" {
		h = apiKeyHeaderDefault
	}
	return h
}

func (a *HTTPAuth) checkAuth(r *http.Request) (config.APIClientKey, error) {
	apiKey := strings.TrimSpace(r.Header.Get(a.header()))
	if apiKey == "" {
		return config.APIClientKey{}, errMissingAPIKey
	}

	var (
		client config.APIClientKey
		found  bool
	)
	for k, c := range a.clients {
		if subtle.ConstantTimeCompare([]byte(k), []byte(apiKey)) == 1 {
			client, found = c, true
		}
	}
	if !found {
		return config.APIClientKey{}, errInvalidAPIKey
	}

	if err := checkPermissions(client, r); err != nil {
		return config.APIClientKey{}, err
	}
	return client, nil
}

func checkPermissions(client config.APIClientKey, r *http.Request) error {
	required := requiredPermissionHTTP(r)
	if required == "" {
		return nil
	}
	// If permissions list is empty, treat as allow-all.
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/dialogs"):
		return permRunWorkflows
	case path == "/api/v1/bookings/refresh":
		return permRunWorkflows
	case strings.HasPrefix(path, "/api/v1/"):
		return permReadBookings
	}
	return ""
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.header())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

// credential forwards the manager's bearer token to the workflow layer.
// A missing token yields an empty credential, which the gateway rejects.
func credential(r *http.Request) domain.Credential {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return domain.Credential{Token: strings.TrimSpace(h[7:])}
	}
	return domain.Credential{}
}
