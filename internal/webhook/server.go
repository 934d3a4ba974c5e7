package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alpineops/vouchergw/internal/metrics"
	"github.com/alpineops/vouchergw/internal/order"
)

// Server is the webhook intake HTTP server.
type Server struct {
	config Config
	runner OrderRunner
	logger *slog.Logger
	server *http.Server

	// inflight tracks fire-and-forget background runs so shutdown can drain.
	inflight sync.WaitGroup
}

// New creates a new intake server.
func New(config Config, runner OrderRunner, logger *slog.Logger) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	return &Server{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// Start runs the intake server (blocking) until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("intake server starting",
		"listen", s.config.Listen,
		"dev_endpoint", s.config.DevEndpointEnabled,
	)
	if s.config.Secret == "" {
		s.logger.Warn("no webhook secret configured; signature verification is bypassed")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("intake server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("intake server shutdown failed: %w", err)
		}
		s.inflight.Wait()
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("intake server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post("/webhook/woocommerce", s.handleWebhook)
	r.Post("/webhook/test-manual", s.handleManual)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// loggingMiddleware logs HTTP requests (never the body; it may hold PII).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleWebhook receives a signed order-status delivery.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// Raw bytes first: the signature covers the body exactly as sent.
	body, err := s.readBody(w, r)
	if err != nil {
		return
	}

	signature := r.Header.Get(s.config.SignatureHeader)
	if signature != "" {
		if s.config.Secret == "" {
			s.logger.Warn("signed delivery received but no secret configured; skipping verification")
		} else if !VerifySignature(body, signature, s.config.Secret) {
			s.logger.Warn("invalid webhook signature", "request_id", middleware.GetReqID(r.Context()))
			metrics.RecordEvent("rejected")
			s.respondError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	} else {
		s.logger.Warn("unsigned webhook delivery; skipping verification")
	}

	s.acceptEvent(w, r, body)
}

// handleManual is the dev-only trigger: same processing path, no signature.
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	if !s.config.DevEndpointEnabled {
		s.logger.Warn("manual webhook called but dev endpoint is disabled")
		s.respondError(w, http.StatusForbidden, "manual endpoint disabled")
		return
	}

	body, err := s.readBody(w, r)
	if err != nil {
		return
	}
	s.acceptEvent(w, r, body)
}

// acceptEvent parses, filters, and schedules an event. Shared by the signed
// and manual paths.
func (s *Server) acceptEvent(w http.ResponseWriter, r *http.Request, body []byte) {
	ev, err := order.ParseEvent(body)
	if err != nil {
		s.logger.Error("invalid webhook payload", "error", err)
		metrics.RecordEvent("rejected")
		s.respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	s.logger.Info("webhook received", "order_id", ev.OrderID, "status", ev.Status, "site", ev.Site)

	if !order.ShouldProcess(ev) {
		metrics.RecordEvent("ignored")
		s.respondJSON(w, http.StatusOK, IgnoredResponse{
			Message: fmt.Sprintf("order %s status %q - not processing", ev.OrderID, ev.Status),
		})
		return
	}

	metrics.RecordEvent("accepted")
	s.schedule(ev)

	s.respondJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", OrderID: ev.OrderID})
}

// schedule hands the event to an independent background unit. The request
// lifecycle ends here; the runner owns the order from now on.
func (s *Server) schedule(ev order.Event) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.runner.Run(context.Background(), ev)
	}()
}

// readBody reads the request body with the configured size limit. On failure
// it writes the error response and returns a non-nil error.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limited := io.LimitReader(r.Body, s.config.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return nil, err
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return nil, fmt.Errorf("payload too large")
	}
	return body, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response with no internal detail.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
