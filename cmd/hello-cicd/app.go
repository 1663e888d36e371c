package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aescanero/hello-cicd/internal/application/reload"
	"github.com/aescanero/hello-cicd/internal/config"
	"github.com/aescanero/hello-cicd/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/hello-cicd/pkg/api/grpc"
	"github.com/aescanero/hello-cicd/pkg/api/http"
)

// app owns every long-lived component of the process
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	collector   *prometheus.Collector
	httpServer  *http.Server
	adminServer *http.Server
	grpcServer  *grpc.Server
	reloader    *reload.Reloader

	errCh    chan error
	reloadCh chan struct{}
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		collector: prometheus.NewCollector(Version),
		errCh:     make(chan error, 3),
		reloadCh:  make(chan struct{}, 1),
	}

	// gin's mode is global; set it once for every server
	http.SetMode(cfg.Debug)

	a.httpServer = http.NewServer(&http.Config{
		Addr:    cfg.GetHTTPAddr(),
		Debug:   cfg.Debug,
		Metrics: a.collector,
		Logger:  logger,
	})

	if cfg.Admin.Port != 0 {
		a.adminServer = http.NewAdminServer(&http.AdminConfig{
			Addr:     cfg.GetAdminAddr(),
			Target:   a.httpServer,
			Gatherer: a.collector.Registry(),
			Logger:   logger,
		})
	}

	if cfg.ReloadActive() {
		paths, err := reloadPaths(cfg.Reload.ExtraFiles)
		if err != nil {
			return nil, err
		}

		a.reloader, err = reload.NewReloader(&reload.Config{
			Paths:    paths,
			Debounce: cfg.Reload.Debounce,
			OnChange: a.requestReload,
			Logger:   logger.With(zap.String("component", "reloader")),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create reloader: %w", err)
		}
	}

	return a, nil
}

// reloadPaths returns the running executable plus any extra files
func reloadPaths(extra []string) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return append([]string{exe}, extra...), nil
}

func (a *app) requestReload() {
	select {
	case a.reloadCh <- struct{}{}:
	default:
	}
}

// start binds every enabled listener, then serves. Any bind failure aborts startup.
func (a *app) start() error {
	if err := a.httpServer.Listen(); err != nil {
		return err
	}

	if a.adminServer != nil {
		if err := a.adminServer.Listen(); err != nil {
			return err
		}
	}

	if a.cfg.GRPC.Port != 0 {
		grpcServer, err := grpc.NewServer(&grpc.Config{
			Addr:   a.cfg.GetGRPCAddr(),
			Logger: a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create gRPC server: %w", err)
		}
		a.grpcServer = grpcServer
	}

	a.serve(a.httpServer.Serve)
	if a.adminServer != nil {
		a.serve(a.adminServer.Serve)
	}
	if a.grpcServer != nil {
		a.serve(a.grpcServer.Start)
		a.grpcServer.SetServing(true)
	}

	if a.reloader != nil {
		if err := a.reloader.Start(); err != nil {
			return fmt.Errorf("failed to start reloader: %w", err)
		}
	}

	a.logger.Info("hello-cicd started",
		zap.String("http_addr", a.httpServer.Addr()),
		zap.Int("admin_port", a.cfg.Admin.Port),
		zap.Int("grpc_port", a.cfg.GRPC.Port),
		zap.Bool("reload", a.reloader != nil))

	return nil
}

func (a *app) serve(fn func() error) {
	go func() {
		if err := fn(); err != nil {
			a.errCh <- err
		}
	}()
}

// shutdown stops components in reverse dependency order
func (a *app) shutdown(ctx context.Context) error {
	var errs []error

	if a.reloader != nil {
		a.reloader.Stop()
	}

	if a.grpcServer != nil {
		a.grpcServer.SetServing(false)
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if a.adminServer != nil {
		if err := a.adminServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if a.grpcServer != nil {
		if err := a.grpcServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// run starts the app and blocks until ctx is cancelled, a server fails or
// the reloader asks for a restart. restart reports the last case.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (restart bool, err error) {
	a, err := newApp(cfg, logger)
	if err != nil {
		return false, err
	}

	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
		defer cancel()
		return a.shutdown(shutdownCtx)
	}

	if err := a.start(); err != nil {
		_ = shutdown()
		return false, err
	}

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err = <-a.errCh:
		logger.Error("server stopped unexpectedly", zap.Error(err))
	case <-a.reloadCh:
		restart = true
	}

	if serr := shutdown(); serr != nil {
		logger.Error("shutdown error", zap.Error(serr))
		if err == nil {
			err = serr
		}
	}

	return restart, err
}
