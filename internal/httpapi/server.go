// Package httpapi exposes the game over a JSON REST API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/L-Mariam/Grocery-Guessr/game"
	"github.com/L-Mariam/Grocery-Guessr/telemetry"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// Server serves the game API.
type Server struct {
	manager *game.Manager
	config  *core.Config
	logger  core.Logger

	mu      sync.Mutex
	server  *http.Server
	stopped bool
}

// NewServer creates a Server for manager configured by cfg.
func NewServer(manager *game.Manager, cfg *core.Config, logger core.Logger) *Server {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("http")
	}
	return &Server{manager: manager, config: cfg, logger: logger}
}

// Handler returns the full middleware chain around the router: tracing,
// CORS, request logging, panic recovery and identity, outermost first.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router()
	handler = IdentityMiddleware(s.config.HTTP.IdentityHeader)(handler)
	handler = core.RecoveryMiddleware(s.logger)(handler)
	handler = core.LoggingMiddleware(s.logger, s.config.Development.Enabled)(handler)
	handler = core.CORSMiddleware(&s.config.HTTP.CORS)(handler)
	handler = telemetry.TracingMiddleware(s.config.Name, &telemetry.TracingMiddlewareConfig{
		ExcludedPaths: []string{"/health"},
	})(handler)
	return handler
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.root).Methods(http.MethodGet)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/currencies", s.currencies).Methods(http.MethodGet)
	r.HandleFunc("/achievements", s.achievements).Methods(http.MethodGet)

	// Posts
	r.HandleFunc("/posts", requireUser(s.createPost)).Methods(http.MethodPost)
	r.HandleFunc("/posts/{postId}", s.getPost).Methods(http.MethodGet)
	r.HandleFunc("/posts/{postId}/guesses", requireUser(s.submitGuess)).Methods(http.MethodPost)
	r.HandleFunc("/posts/{postId}/reveal", requireUser(s.revealPost)).Methods(http.MethodGet)

	// Players
	r.HandleFunc("/users/{username}/stats", s.userStats).Methods(http.MethodGet)
	r.HandleFunc("/me/stats", requireUser(s.myStats)).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard", s.leaderboard).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failure(w, http.StatusNotFound, "Not found.", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failure(w, http.StatusMethodNotAllowed, "Method not allowed.", nil)
	})
	return r
}

// Start listens on the configured address and blocks until the server
// stops. A graceful Stop makes it return nil.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	if s.server != nil {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.HTTP.ReadTimeout,
		WriteTimeout: s.config.HTTP.WriteTimeout,
		IdleTimeout:  s.config.HTTP.IdleTimeout,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", map[string]interface{}{
		"address": addr,
		"cors":    s.config.HTTP.CORS.Enabled,
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully drains in-flight requests, bounded by the shutdown
// timeout. A Start that has not begun listening yet returns immediately.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.stopped = true
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	timeout := s.config.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("Stopping HTTP server", map[string]interface{}{"timeout": timeout.String()})
	return srv.Shutdown(shutdownCtx)
}
