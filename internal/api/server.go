// Package api serves aggregate statistics over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/api/handlers"
	"github.com/ramonehamilton/deckstats/internal/stats"
)

const shutdownTimeout = 10 * time.Second

// Server is the read API.
type Server struct {
	cfg      Config
	router   *chi.Mux
	logger   *slog.Logger
	services *Services
}

// Config holds the listener and middleware settings.
type Config struct {
	Host string
	Port int
	// RequestTimeout bounds a request, including any rebuild of a stale
	// family it triggers.
	RequestTimeout time.Duration
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns a config listening on port 8080 of every interface.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		RequestTimeout: 2 * time.Minute,
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
	}
}

// Services holds the components the handlers read from. People and Importer
// are optional.
type Services struct {
	Stats    *stats.Service
	Loader   *aggregate.Loader
	People   handlers.PersonResolver
	Importer handlers.CardImporter
}

// NewServer builds the router. Zero fields of cfg take their defaults.
func NewServer(cfg *Config, services *Services) (*Server, error) {
	if services == nil || services.Stats == nil || services.Loader == nil {
		return nil, errors.New("stats service and loader are required")
	}
	c := *DefaultConfig()
	if cfg != nil {
		c.Host, c.Port, c.Logger = cfg.Host, cfg.Port, cfg.Logger
		if cfg.RequestTimeout > 0 {
			c.RequestTimeout = cfg.RequestTimeout
		}
		if len(cfg.AllowedOrigins) > 0 {
			c.AllowedOrigins = cfg.AllowedOrigins
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	s := &Server{
		cfg:      c,
		router:   chi.NewRouter(),
		logger:   c.Logger,
		services: services,
	}
	s.router.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
		middleware.Timeout(c.RequestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins: c.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}),
		requireJSONBody,
	)
	s.setupRoutes()
	return s, nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("Handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}

// requireJSONBody rejects POST bodies that are not application/json.
func requireJSONBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.ContentLength > 0 {
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// ListenAndServe listens on Addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully, letting in-flight requests finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
