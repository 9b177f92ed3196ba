package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"camrent/internal/config"
	"camrent/internal/contract"
	"camrent/internal/dialog"
	"camrent/internal/domain"
	"camrent/internal/filter"
	"camrent/internal/metrics"
	"camrent/internal/models"
	"camrent/internal/status"
	"camrent/internal/workload"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Console is the workflow surface the API drives.
type Console interface {
	Open(ctx context.Context, kind models.DialogKind, bookingID string) (models.DialogState, error)
	Close(ctx context.Context, id string) error
	Dialog(id string) (models.DialogState, error)
	ApplyFilters(criteria filter.Criteria) []models.Booking
	TabCounts(query string) [filter.TabMax + 1]int
	RequestTransition(ctx context.Context, cred domain.Credential, dialogID string, t status.Transition) (*status.Result, error)
	ComputeWorkload(ctx context.Context, cred domain.Credential, dialogID string) (*workload.View, error)
	AssignStaff(ctx context.Context, cred domain.Credential, dialogID, staffID string, task models.TaskType) (*models.Assignment, error)
	RunContractStep(ctx context.Context, cred domain.Credential, dialogID string, step dialog.ContractStep, in dialog.StepInput) (*dialog.StepResult, error)
}

type BlobSource interface {
	Get(url string) (*contract.Blob, bool)
}

type NoticeSource interface {
	Drain() []domain.Notice
}

// Deps wires the server. Inbox may be nil.
type Deps struct {
	Console  Console
	Store    domain.BookingSource
	Blobs    BlobSource
	Inbox    NoticeSource
	Location *time.Location
	Logger   *zerolog.Logger
}

// HTTPServer exposes the back-office console API.
type HTTPServer struct {
	cfg      config.APIConfig
	deps     Deps
	server   *http.Server
	auth     *HTTPAuth
	validate *validator.Validate
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Deps) *HTTPServer {
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	srv := &HTTPServer{
		cfg:      cfg,
		deps:     deps,
		auth:     NewHTTPAuth(cfg),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("POST /api/v1/bookings/refresh", srv.handleRefresh)
	mux.HandleFunc("GET /api/v1/bookings/export", srv.handleExport)
	mux.HandleFunc("POST /api/v1/dialogs", srv.handleOpenDialog)
	mux.HandleFunc("GET /api/v1/dialogs/{id}", srv.handleGetDialog)
	mux.HandleFunc("DELETE /api/v1/dialogs/{id}", srv.handleCloseDialog)
	mux.HandleFunc("POST /api/v1/dialogs/{id}/transition", srv.handleTransition)
	mux.HandleFunc("GET /api/v1/dialogs/{id}/workload", srv.handleWorkload)
	mux.HandleFunc("POST /api/v1/dialogs/{id}/assign", srv.handleAssign)
	mux.HandleFunc("POST /api/v1/dialogs/{id}/contract/{step}", srv.handleContractStep)
	mux.HandleFunc("GET /api/v1/blobs/{handle}", srv.handleBlob)
	mux.HandleFunc("GET /api/v1/notifications", srv.handleNotifications)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           loggingMiddleware(logger, srv.auth.Wrap(capturePattern(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.deps.Store != nil {
		if at := s.deps.Store.RefreshedAt(); !at.IsZero() {
			resp["refreshed_at"] = at
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// maxBodyBytes caps request bodies; the largest legitimate one is a
// base64 signature image.
const maxBodyBytes = 4 << 20

// decode reads a JSON body into dst and validates it.
func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "", "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeError(w, http.StatusBadRequest, "", fmt.Sprintf("field %s failed %s validation", strings.ToLower(fe.Field()), fe.Tag()))
			return false
		}
		writeError(w, http.StatusBadRequest, "", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, kind domain.Kind, message string) {
	body := map[string]string{"error": message}
	if kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, statusCode, body)
}

// writeDomainError maps a workflow error kind to an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	writeError(w, statusForKind(kind), kind, domain.MessageOf(err))
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindInvalidTransition:
		return http.StatusConflict
	case domain.KindMissingSelection, domain.KindEmptySignature:
		return http.StatusUnprocessableEntity
	case domain.KindRemoteRejected, domain.KindContractCreateFailed:
		return http.StatusBadGateway
	case domain.KindNetworkUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindBusy:
		return http.StatusLocked
	case domain.KindDialogClosed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

const requestIDHeader = "X-Request-ID"

// requestInfo is filled in by inner handlers and read back by the logging
// middleware, since wrapped requests are copies.
type requestInfo struct {
	client  string
	pattern string
}

type requestInfoKey struct{}

func infoFrom(ctx context.Context) *requestInfo {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info
	}
	return &requestInfo{}
}

func capturePattern(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		infoFrom(r.Context()).pattern = r.Pattern
	})
}

func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	base := logger.With().Str("component", "http").Logger()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		info := &requestInfo{}
		r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		endpoint := info.pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)

		base.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Str("client", info.client).
			Dur("duration", dur).
			Msg("http request")
	})
}
