// Package api serves stored evaluation runs over HTTP. It is read-only; runs
// are produced by the batch entrypoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golopo/ports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server represents the run browser HTTP server
type Server struct {
	router *gin.Engine
	http   *http.Server
	runs   *RunHandler
	logger *zap.Logger
}

// NewServer builds the router for addr, e.g. ":8080".
func NewServer(addr string, reader ports.RunReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		runs:   NewRunHandler(reader),
		logger: logger,
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok\n")
	})

	api := s.router.Group("/api")
	{
		api.GET("/runs", s.runs.ListRuns)
		api.GET("/runs/:id", s.runs.GetRun)
		api.GET("/runs/:id/cells", s.runs.GetCells)
		api.GET("/runs/:id/report", s.runs.GetReport)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("api server stopped")
	return nil
}
