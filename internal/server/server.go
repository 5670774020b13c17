// Package server exposes a tracked application over HTTP: the host renderer
// serving views, the admin API and HTML report over the tracker, and the live
// render feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/frewsxcv/template-tally/internal/config"
	"github.com/frewsxcv/template-tally/internal/logging"
	"github.com/frewsxcv/template-tally/internal/tally"
)

// Reporter produces template render reports.
type Reporter interface {
	Report(ctx context.Context) (*tally.Report, error)
}

// ViewRenderer renders a template of the views directory.
type ViewRenderer interface {
	RenderView(ctx context.Context, name string, data map[string]any, w io.Writer) error
}

// HealthReporter serves a detailed health check.
type HealthReporter interface {
	HTTPHandler() http.HandlerFunc
}

// Feed serves the live render event stream and can be shut down.
type Feed interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	Shutdown(ctx context.Context) error
}

// Server serves views, the admin API, the report page and the render feed.
type Server struct {
	config   config.ServerConfig
	reporter Reporter
	views    ViewRenderer
	feed     Feed
	health   HealthReporter
	logger   logging.Logger

	serverMutex sync.RWMutex
	httpServer  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger.WithComponent("server")
	}
}

// WithHealth serves /health from health instead of a static "ok".
func WithHealth(health HealthReporter) Option {
	return func(s *Server) {
		s.health = health
	}
}

// WithViews enables /views/ rendering through views.
func WithViews(views ViewRenderer) Option {
	return func(s *Server) {
		s.views = views
	}
}

// WithFeed enables the /ws/renders event stream.
func WithFeed(feed Feed) Option {
	return func(s *Server) {
		s.feed = feed
	}
}

// New creates a server reporting through reporter.
func New(cfg config.ServerConfig, reporter Reporter, opts ...Option) *Server {
	s := &Server{
		config:   cfg,
		reporter: reporter,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the server's routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.health != nil {
		mux.HandleFunc("GET /health", s.health.HTTPHandler())
	} else {
		mux.HandleFunc("GET /health", s.handleHealth)
	}
	mux.HandleFunc("GET /api/templates/rendered", s.handleRendered)
	mux.HandleFunc("GET /api/templates/unrendered", s.handleUnrendered)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /report", s.handleReportPage)
	if s.feed != nil {
		mux.HandleFunc("GET /ws/renders", s.feed.HandleWebSocket)
	}
	if s.views != nil {
		mux.HandleFunc("GET /views/{path...}", s.handleView)
	}

	return s.addMiddleware(mux)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	s.logger.Info(ctx, "Server listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

// Shutdown stops the feed and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.feed != nil {
		if err := s.feed.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("feed shutdown: %w", err))
		}
	}

	s.serverMutex.RLock()
	server := s.httpServer
	s.serverMutex.RUnlock()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *Server) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String())
	})
}
