package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/GenLoc-2025/GenLoc/internal/config"
	"github.com/GenLoc-2025/GenLoc/internal/logging"
	"github.com/GenLoc-2025/GenLoc/internal/observability"
	"github.com/GenLoc-2025/GenLoc/internal/rpc/localize"
	toolrpc "github.com/GenLoc-2025/GenLoc/internal/rpc/tools"
)

// Server hosts the localization endpoints plus health and metrics.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  localize.Runner
	metrics *observability.Metrics
	closer  func() error
}

// NewServer builds the codebase index and the agent, then constructs a daemon instance.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	logger = logging.OrNop(logger)
	metrics := observability.NewMetrics()
	runner, err := localize.NewLocalizerRunner(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, logger: logger, runner: runner, metrics: metrics, closer: runner.Close}, nil
}

// NewServerWithRunner constructs a daemon around an existing runner.
func NewServerWithRunner(cfg *config.Config, logger *zap.Logger, runner localize.Runner, metrics *observability.Metrics) *Server {
	return &Server{cfg: cfg, logger: logging.OrNop(logger), runner: runner, metrics: metrics}
}

// Handler returns the routed HTTP handler, wrapped for h2c so Connect clients can use HTTP/2.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle(toolrpc.SchemaPath, toolrpc.SchemaHandler{})
	mux.Handle(localize.RankPath, localize.NewHandler(s.runner, s.metrics, s.logger))
	path, handler := localize.NewConnectHandler(s.runner, s.metrics)
	mux.Handle(path, handler)

	return h2c.NewHandler(mux, &http2.Server{})
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting genloc daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down genloc daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if s.closer != nil {
		if err := s.closer(); err != nil {
			s.logger.Warn("closing trace logs", zap.Error(err))
		}
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled || s.metrics == nil {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
