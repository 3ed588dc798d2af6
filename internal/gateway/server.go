package gateway

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aidevops/gateway/internal/config"
	"github.com/aidevops/gateway/internal/logging"
)

// Server runs the gateway's HTTP listener and the health check loop.
type Server struct {
	gateway *Gateway
	httpSrv *http.Server
	cfg     *config.Config
}

// NewServer creates a server around a freshly built gateway.
func NewServer(cfg *config.Config) (*Server, error) {
	gw, err := New(cfg)
	if err != nil {
		return nil, err
	}

	return &Server{
		gateway: gw,
		cfg:     cfg,
		httpSrv: &http.Server{
			Addr:              cfg.Listen,
			Handler:           gw.Handler(),
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
		},
	}, nil
}

// Gateway returns the underlying gateway, mainly for tests.
func (s *Server) Gateway() *Gateway {
	return s.gateway
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext serves until ctx is canceled.
func (s *Server) RunContext(ctx context.Context) error {
	s.gateway.Checker().Start(ctx)
	defer s.gateway.Checker().Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("Gateway listening",
			zap.String("addr", s.httpSrv.Addr),
			zap.Int("services", s.gateway.registry.Len()),
			zap.Bool("auth_enabled", s.cfg.Auth.Enabled),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logging.Info("Shutting down gracefully")

		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logging.Info("Server shutdown complete")
	return nil
}
