package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"currencyconv/internal/converter"
	"currencyconv/internal/storage"
)

// Options configure the HTTP API.
type Options struct {
	Addr             string
	Mode             string
	ShutdownTimeout  time.Duration
	DefaultPrecision int
}

// Deps are the collaborators the handlers read from. Snapshots and Alerts may
// be nil, in which case the history endpoints answer 503.
type Deps struct {
	Session   *converter.Session
	Snapshots storage.SnapshotStore
	Alerts    storage.AlertStore
}

// Server exposes conversion over HTTP.
type Server struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger
	engine *gin.Engine
}

// NewServer builds the gin engine and registers routes.
func NewServer(opts Options, deps Deps, logger zerolog.Logger) (*Server, error) {
	if deps.Session == nil {
		return nil, errors.New("api: converter session is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.DefaultPrecision < 0 {
		opts.DefaultPrecision = converter.DefaultPrecision
	}

	switch opts.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(opts.Mode)
	case "":
		gin.SetMode(gin.ReleaseMode)
	default:
		return nil, fmt.Errorf("api: unknown server mode %q", opts.Mode)
	}

	s := &Server{
		opts:   opts,
		deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(s.logger))
	s.registerRoutes(engine)
	s.engine = engine
	return s, nil
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.healthz)

	v1 := engine.Group("/api")
	{
		v1.GET("/rates", s.getRates)
		v1.POST("/convert", s.convert)
		v1.POST("/refresh", s.refresh)
		v1.GET("/history", s.history)
		v1.GET("/alerts", s.alerts)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	s.logger.Info().Msg("http api stopped")
	return nil
}
