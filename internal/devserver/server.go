package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/thruflo/gamecheck/internal/logging"
	"github.com/thruflo/gamecheck/internal/stream"
)

// heartbeatInterval is how often idle event streams get a comment line.
const heartbeatInterval = 15 * time.Second

// Config holds server configuration options.
type Config struct {
	// Addr is the listen address. ":0" picks a free port.
	Addr string
	// StepInterval is the time between launch progress steps.
	StepInterval time.Duration
	// FailEvery makes every nth finished test fail (0 = never).
	FailEvery int
	// StreamLifetime closes each event stream after this long, forcing
	// clients to reconnect (0 = never).
	StreamLifetime time.Duration
	RateLimit      RateLimitConfig
}

// DefaultConfig returns the configuration used by gamecheck-devserver.
func DefaultConfig() Config {
	return Config{
		Addr:         ":3000",
		StepInterval: 500 * time.Millisecond,
		RateLimit:    DefaultRateLimitConfig(),
	}
}

// Server serves the game test backend API over HTTP.
type Server struct {
	cfg     Config
	backend *Backend
	limiter *rateLimiter
	logger  *logging.Logger
	router  *mux.Router

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	started  bool
}

// NewServer creates a Server with an empty backend.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.StepInterval <= 0 {
		return nil, fmt.Errorf("step interval must be positive, got %s", cfg.StepInterval)
	}
	if cfg.FailEvery < 0 {
		return nil, fmt.Errorf("fail-every must not be negative, got %d", cfg.FailEvery)
	}

	logger := logging.Component("devserver")
	s := &Server{
		cfg:    *cfg,
		logger: logger,
		backend: NewBackend(
			WithStepInterval(cfg.StepInterval),
			WithFailEvery(cfg.FailEvery),
			WithBackendLogger(logger),
		),
		limiter: newRateLimiter(cfg.RateLimit, logger),
	}
	s.router = s.routes()
	return s, nil
}

// Backend returns the in-memory test runner.
func (s *Server) Backend() *Backend {
	return s.backend
}

// Handler returns the HTTP handler. The backend only processes submissions
// while Run or Start is active.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address, runs the backend and serves
// until ctx is canceled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener
	ctx, s.cancel = context.WithCancel(ctx)

	// No write timeout: event streams stay open.
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.started = true
	s.mu.Unlock()

	go s.backend.Run(ctx)
	go s.cleanupLimiter(ctx)
	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	s.logger.Info("dev backend listening", "url", s.BaseURL())
	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.server == nil {
		return nil
	}

	// Ends event streams and the backend loop.
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.started = false
	return nil
}

// ListenAddr returns the address the server is listening on, or "" if it
// has not started.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the API root clients should use.
func (s *Server) BaseURL() string {
	addr := s.ListenAddr()
	if addr == "" {
		return ""
	}
	return "http://" + addr + "/api"
}

func (s *Server) cleanupLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.cleanup()
		}
	}
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	// Routes live on the root router: a subrouter answers 404 on a method
	// mismatch instead of 405.
	r.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
	r.HandleFunc(apiPath(stream.EndpointGameStats), s.handleGameStats).Methods(http.MethodGet)
	r.HandleFunc(apiPath(stream.EndpointCatalogue), s.withRateLimit(s.handleSubmit)).Methods(http.MethodPost)
	r.HandleFunc(apiPath(stream.EndpointReset), s.handleReset).Methods(http.MethodPost)
	r.HandleFunc(apiPath(stream.EndpointServerStatus), s.handleServerStatus).Methods(http.MethodGet)
	r.HandleFunc(apiPath(stream.EndpointDownloadCSV), s.handleDownloadCSV).Methods(http.MethodGet)
	r.HandleFunc(apiPath(stream.EndpointDownloadPDF), s.handleDownloadPDF).Methods(http.MethodGet)
	r.HandleFunc(apiPath(stream.EndpointEvents), s.handleEvents).Methods(http.MethodGet)
	return r
}

func apiPath(endpoint string) string {
	return "/api/" + endpoint
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method " + r.Method + " not allowed"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"request_id", r.Header.Get("X-Request-ID"), "took", time.Since(start))
	})
}

// withRateLimit rejects requests over the per-client limit with 429.
func (s *Server) withRateLimit(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		res := s.limiter.check(client)
		if !res.Allowed {
			s.logger.Warn("submission rejected", "client", client, "reason", res.Reason, "retry_after", res.RetryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": res.Reason})
			return
		}
		handler(w, r)
	}
}

func (s *Server) handleGameStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Snapshot())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req stream.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	resp, err := s.backend.Submit(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.backend.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Server reset successfully"})
}

func (s *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "online"})
}

func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="test-history.csv"`)
	if err := s.backend.WriteHistoryCSV(w); err != nil {
		s.logger.Error("failed to write report", "error", err)
	}
}

func (s *Server) handleDownloadPDF(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "pdf reports are not available on the dev backend"})
}

// handleEvents streams backend pushes as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	msgs, unsubscribe := s.backend.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	var lifetime <-chan time.Time
	if s.cfg.StreamLifetime > 0 {
		timer := time.NewTimer(s.cfg.StreamLifetime)
		defer timer.Stop()
		lifetime = timer.C
	}
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-lifetime:
			s.logger.Debug("closing event stream", "after", s.cfg.StreamLifetime)
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
