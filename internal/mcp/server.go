package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/dbcontext"
)

const serverName = "dbscope"

// Server exposes the engine's operations as MCP tools, either over stdio
// or over streamable HTTP.
type Server struct {
	engine *dbcontext.Engine
	mcp    *server.MCPServer
	logger *zap.Logger
}

func NewServer(engine *dbcontext.Engine, version string, logger *zap.Logger) *Server {
	s := &Server{
		engine: engine,
		mcp:    server.NewMCPServer(serverName, version),
		logger: logger,
	}
	s.registerTools()
	return s
}

// ServeStdio serves MCP over stdin/stdout and blocks until the client
// disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// Handler returns the HTTP routes: the MCP endpoint at /mcp and a health
// check at /health.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Handle("/mcp", server.NewStreamableHTTPServer(s.mcp))
	r.Get("/health", s.handleHealth)

	return r
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully with a 10 second deadline.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.engine.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"status":"unavailable","error":%q}`, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
