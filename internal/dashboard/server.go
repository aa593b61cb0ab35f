// Package dashboard is the HTTP surface: JSON API routes, error rendering,
// background import hand-off and the status event stream.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testyard/internal/alias"
	"github.com/zulandar/testyard/internal/auth"
	"github.com/zulandar/testyard/internal/bug"
	"github.com/zulandar/testyard/internal/metrics"
	"github.com/zulandar/testyard/internal/notify"
	"github.com/zulandar/testyard/internal/status"
	"github.com/zulandar/testyard/internal/worker"
	"gorm.io/gorm"
)

// Server holds what handlers need.
type Server struct {
	DB       *gorm.DB
	Projects *alias.Registry
	Auth     *auth.Service
	Board    *status.Board
	Pool     *worker.Pool
	Notifier *notify.Notifier
	Bugs     *bug.Store
	Logger   *slog.Logger

	// StatusPoll is how often the status stream re-reads an entry.
	StatusPoll time.Duration
}

func (s *Server) validate() error {
	switch {
	case s.DB == nil:
		return errors.New("dashboard: db is required")
	case s.Projects == nil:
		return errors.New("dashboard: alias registry is required")
	case s.Auth == nil:
		return errors.New("dashboard: auth service is required")
	case s.Board == nil:
		return errors.New("dashboard: status board is required")
	case s.Pool == nil:
		return errors.New("dashboard: worker pool is required")
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Bugs == nil {
		s.Bugs = &bug.Store{DB: s.DB, Logger: s.Logger}
	}
	if s.StatusPoll <= 0 {
		s.StatusPoll = time.Second
	}
	return nil
}

// Router builds the gin engine serving every route.
func (s *Server) Router() (*gin.Engine, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.Logger), metrics.Middleware())
	registerRoutes(router, s)
	return router, nil
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Server *Server
	Addr   string
	Out    io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Server == nil {
		return fmt.Errorf("dashboard: server is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := opts.Server.Router()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "testyard listening on %s\n", opts.Addr)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
