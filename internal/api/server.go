package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

const defaultShutdownTimeout = 10 * time.Second

type Server struct {
	listenAddr      string
	shutdownTimeout time.Duration
	app             *fiber.App
	logger          *slog.Logger
}

func NewServer(addr string, shutdownTimeout time.Duration, handler *RequestHandler) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	var (
		app   = fiber.New(fiber.Config{ErrorHandler: ErrorHandler, DisableStartupMessage: true})
		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)

	check.Get("/healthy", NewCheckHandler().HandleHealthy)
	apiv1.Post("/query", handler.HandleQuery)
	apiv1.Post("/search", handler.HandleSearch)
	apiv1.Post("/process-docs", handler.HandleProcessDocs)

	return &Server{
		listenAddr:      addr,
		shutdownTimeout: shutdownTimeout,
		app:             app,
		logger:          slog.Default(),
	}
}

// App exposes the fiber app, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", s.listenAddr)
		errCh <- s.app.Listen(s.listenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
