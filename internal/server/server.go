// Package server serves the entity cleaner's panel assets and websocket
// commands.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("entitycleaner.server")

// Server is the HTTP and websocket front of the entity cleaner.
type Server struct {
	httpServer      *http.Server
	addr            string
	shutdownTimeout time.Duration

	registry *Registry
	auth     Authenticator
	version  string
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// Version is reported to websocket clients during the handshake.
	Version string
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8124,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Version:         "dev",
	}
}

// New creates a server dispatching websocket commands from registry.
func New(cfg Config, registry *Registry, auth Authenticator) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s := &Server{
		addr:            addr,
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        registry,
		auth:            auth,
		version:         cfg.Version,
	}

	// Websocket sessions reset their connection deadlines after the upgrade.
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/panels", s.handlePanels).Methods(http.MethodGet)
	r.HandleFunc("/api/websocket", s.handleWebsocket)
	r.PathPrefix("/").Handler(s.registry.staticHandler())
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Infof("server listening on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Infof("shutting down server")
		timeout := s.shutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Annotate(err, "server shutdown")
		}
		logger.Infof("server shut down gracefully")
		return nil
	case err := <-errChan:
		return errors.Trace(err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"commands": s.registry.CommandTypes(),
	})
}

func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	admin := false
	if token, ok := bearerToken(r); ok {
		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid access token"})
			return
		}
		admin = user.IsAdmin
	}
	writeJSON(w, http.StatusOK, s.registry.Panels(admin))
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warningf("failed to write response: %v", err)
	}
}
