package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StateReporter exposes the lifecycle state of a monitored server
type StateReporter interface {
	State() State
}

// AdminConfig holds admin server configuration
type AdminConfig struct {
	Addr     string
	Target   StateReporter
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewAdminServer creates the admin server exposing /health and /metrics.
// It runs on its own listener so the public route table stays untouched.
func NewAdminServer(cfg *AdminConfig) *Server {
	// Scrapes and probes are frequent, keep them out of the info log
	s := newServer("admin", cfg.Addr, false, cfg.Logger, zapcore.DebugLevel)

	s.router.GET("/health", healthHandler(cfg.Target))

	if cfg.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	return s
}
