package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wcatz/dashboard-builder/internal/mirror"
	"github.com/wcatz/dashboard-builder/internal/workspace"
)

// maxBodyBytes bounds request bodies; exported dashboards are well below it.
const maxBodyBytes = 4 << 20

// Server is the JSON API over a workspace.
type Server struct {
	ws     *workspace.Workspace
	mirror *mirror.Mirror
	logger *zap.Logger
	mux    *http.ServeMux
}

// New creates a server for ws. m may be nil when mirroring is off.
func New(ws *workspace.Workspace, m *mirror.Mirror, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ws:     ws,
		mirror: m,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the server wrapped in the request logging and CORS
// middleware.
func (s *Server) Handler() http.Handler {
	return LogRequests(s.logger, CORS(s))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	return Serve(ctx, addr, s.Handler(), s.logger)
}

// Serve runs h on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	logger.Info("server stopped", zap.String("addr", addr))
	return nil
}
