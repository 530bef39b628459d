package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/postflow/postflow-go/internal/contracts"
	"github.com/postflow/postflow-go/internal/gateway"
	"github.com/postflow/postflow-go/internal/oauth"
	"github.com/postflow/postflow-go/internal/observability"
	"github.com/postflow/postflow-go/internal/platform"
	"github.com/postflow/postflow-go/internal/publish"
	"github.com/postflow/postflow-go/internal/reqcontext"
	"github.com/postflow/postflow-go/internal/storage"
)

// OAuthFlows drives authorization initiation and callback handling.
type OAuthFlows interface {
	Initiate(ctx context.Context, userID, platformName, callbackURL string) (*oauth.InitiationResult, error)
	HandleCallback(ctx context.Context, platformName, code, state string) oauth.RedirectResult
}

// PublishService covers the connected-account operations.
type PublishService interface {
	Status(ctx context.Context, userID, platformName string) (*publish.ConnectionStatus, error)
	Post(ctx context.Context, userID, platformName, content string) (map[string]any, error)
	Disconnect(ctx context.Context, userID, platformName string) error
}

// AttemptLister reads the OAuth attempt audit trail.
type AttemptLister interface {
	ListRecentAttempts(limit int) ([]*storage.AttemptRecord, error)
}

// Server provides the HTTP API with chi router
type Server struct {
	flows       OAuthFlows
	publisher   PublishService
	attempts    AttemptLister
	logger      *zap.SugaredLogger
	frontendURL string
	router      *chi.Mux
	metrics     *observability.MetricsManager
	tracing     *observability.TracingManager
}

// NewServer creates a new HTTP API server. metrics and tracing may be nil.
func NewServer(flows OAuthFlows, publisher PublishService, attempts AttemptLister, frontendURL string, logger *zap.SugaredLogger, metrics *observability.MetricsManager, tracing *observability.TracingManager) *Server {
	s := &Server{
		flows:       flows,
		publisher:   publisher,
		attempts:    attempts,
		logger:      logger,
		frontendURL: frontendURL,
		router:      chi.NewRouter(),
		metrics:     metrics,
		tracing:     tracing,
	}

	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	if s.tracing != nil {
		s.router.Use(s.tracing.HTTPMiddleware())
	}
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware())
	}

	// Core middleware
	s.router.Use(middleware.Recoverer)
	s.router.Use(CorrelationMiddleware)
	s.router.Use(RequestLoggerMiddleware(s.logger))

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Get("/api/attempts", s.handleListAttempts)

	s.router.Route("/{platform}", func(r chi.Router) {
		r.Post("/auth", s.handleAuth)
		r.Get("/callback", s.handleCallback)
		r.Get("/status", s.handleStatus)
		r.Post("/post", s.handlePost)
		r.Delete("/disconnect", s.handleDisconnect)
	})
}

// authRequest is the optional body of POST /{platform}/auth.
type authRequest struct {
	CallbackURL string `json:"callback_url,omitempty"`
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	platformName := chi.URLParam(r, "platform")
	userID := reqcontext.GetUserID(ctx)

	var req authRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
	}

	result, err := s.flows.Initiate(ctx, userID, platformName, req.CallbackURL)
	if err != nil {
		status, code := s.mapError(err)
		GetLogger(ctx).Warnw("Authorization initiation failed",
			"platform", platformName, "code", code, "error", err)
		s.writeError(w, status, code)
		return
	}

	s.writeSuccess(w, result)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	platformName := chi.URLParam(r, "platform")
	query := r.URL.Query()

	result := s.flows.HandleCallback(ctx, platformName, query.Get("code"), query.Get("state"))

	message := "connected"
	if result.Status != "success" {
		message = string(result.Reason)
	}

	redirect, err := url.Parse(s.frontendURL)
	if err != nil {
		s.logger.Errorw("Invalid frontend URL", "url", s.frontendURL, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	q := redirect.Query()
	q.Set("status", result.Status)
	q.Set("platform", result.Platform)
	q.Set("message", message)
	redirect.RawQuery = q.Encode()

	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	platformName := chi.URLParam(r, "platform")
	userID := reqcontext.GetUserID(ctx)

	status, err := s.publisher.Status(ctx, userID, platformName)
	if err != nil {
		httpStatus, code := s.mapError(err)
		s.writeError(w, httpStatus, code)
		return
	}

	s.writeSuccess(w, status)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	platformName := chi.URLParam(r, "platform")

	var req contracts.PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = reqcontext.GetUserID(ctx)
	}

	result, err := s.publisher.Post(ctx, userID, platformName, req.Content)
	if err != nil {
		status, code := s.mapError(err)
		GetLogger(ctx).Warnw("Post publication failed",
			"platform", platformName, "code", code, "error", err)
		if s.metrics != nil {
			s.metrics.RecordPost(platformName, "error")
		}
		s.writeError(w, status, code)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPost(platformName, "success")
	}
	s.writeSuccess(w, result)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	platformName := chi.URLParam(r, "platform")
	userID := reqcontext.GetUserID(ctx)

	if err := s.publisher.Disconnect(ctx, userID, platformName); err != nil {
		status, code := s.mapError(err)
		s.writeError(w, status, code)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordDisconnect(platformName)
	}
	s.writeSuccess(w, contracts.DisconnectResponse{
		Message: platformName + " account disconnected",
	})
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	limit := storage.DefaultAttemptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		limit = parsed
	}

	records, err := s.attempts.ListRecentAttempts(limit)
	if err != nil {
		s.logger.Errorw("Failed to list attempts", "error", err)
		s.writeError(w, http.StatusInternalServerError, "storage_error")
		return
	}

	views := make([]contracts.AttemptView, 0, len(records))
	for _, rec := range records {
		views = append(views, contracts.AttemptView{
			ID:            rec.ID,
			CorrelationID: rec.CorrelationID,
			UserID:        rec.UserID,
			Platform:      rec.Platform,
			Outcome:       rec.Outcome,
			Reason:        rec.Reason,
			DurationMS:    rec.DurationMS,
			Timestamp:     rec.Timestamp,
		})
	}

	s.writeSuccess(w, views)
}

// mapError converts domain errors into an HTTP status and machine-readable
// code. Raw error text never reaches the response body.
func (s *Server) mapError(err error) (int, string) {
	var unsupported *platform.ErrUnsupported
	var rpcErr *gateway.RPCError

	switch {
	case errors.As(err, &unsupported):
		return http.StatusBadRequest, "unsupported_platform"
	case errors.Is(err, publish.ErrNotConnected):
		return http.StatusConflict, "not_connected"
	case errors.As(err, &rpcErr):
		return http.StatusUnprocessableEntity, "application_error"
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, gateway.ErrProtocol),
		errors.Is(err, oauth.ErrMissingAuthURL),
		errors.Is(err, oauth.ErrMissingState):
		return http.StatusBadGateway, "upstream_protocol_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// JSON response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorw("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code string) {
	s.writeJSON(w, status, contracts.NewErrorResponse(code))
}

func (s *Server) writeSuccess(w http.ResponseWriter, data interface{}) {
	s.writeJSON(w, http.StatusOK, contracts.NewSuccessResponse(data))
}
