package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// State is the lifecycle state of a Server
type State int32

const (
	StateNotStarted State = iota
	StateListening
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MetricsRecorder receives per-request measurements
type MetricsRecorder interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
	IncInFlight()
	DecInFlight()
	RecordGreeting()
}

// Server represents an HTTP listener with its gin router
type Server struct {
	name    string
	router  *gin.Engine
	server  *http.Server
	metrics MetricsRecorder
	logger  *zap.Logger

	mu       sync.RWMutex
	listener net.Listener
	state    atomic.Int32
}

// Config holds HTTP server configuration
type Config struct {
	Addr    string
	Debug   bool
	Metrics MetricsRecorder
	Logger  *zap.Logger
}

// NewServer creates the public HTTP server. Its route table holds
// exactly one entry, GET /, and is not modified after construction.
func NewServer(cfg *Config) *Server {
	// Metrics wrap recovery so requests that panic are counted as 500s
	var outer []gin.HandlerFunc
	if cfg.Metrics != nil {
		outer = append(outer, metricsMiddleware(cfg.Metrics))
	}

	s := newServer("http", cfg.Addr, cfg.Debug, cfg.Logger, zapcore.InfoLevel, outer...)
	s.metrics = cfg.Metrics

	s.setupRoutes()

	return s
}

// SetMode selects gin's process-wide mode. Call it once, before any
// server is built.
func SetMode(debug bool) {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
}

// newServer builds the engine and middleware shared by every listener.
// outer handlers run before everything else, recovery included.
func newServer(name, addr string, debug bool, logger *zap.Logger, logLevel zapcore.Level, outer ...gin.HandlerFunc) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.RedirectTrailingSlash = false
	router.Use(outer...)
	router.Use(requestID())
	router.Use(requestLogger(logger, logLevel))
	router.Use(recovery(logger, debug))

	s := &Server{
		name:   name,
		router: router,
		logger: logger.With(zap.String("server", name)),
	}

	s.server = &http.Server{
		Addr:    addr,
		Handler: router,
	}

	return s
}

// setupRoutes configures the public route table
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleGreeting)
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// State returns the current lifecycle state
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the bound address once listening, otherwise the configured one
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Listen binds the server socket. Bind failures are returned, not retried.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateNotStarted {
		return fmt.Errorf("%s server already started", s.name)
	}

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s server on %s: %w", s.name, s.server.Addr, err)
	}

	s.listener = listener
	s.state.Store(int32(StateListening))

	s.logger.Info("listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Serve serves requests on the bound listener until Shutdown
func (s *Server) Serve() error {
	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()

	if listener == nil {
		return fmt.Errorf("%s server is not listening", s.name)
	}
	defer s.state.Store(int32(StateStopped))

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve %s: %w", s.name, err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	s.state.Store(int32(StateStopped))

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown %s server: %w", s.name, err)
	}

	// Shutdown only closes listeners passed to Serve
	s.mu.RLock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.RUnlock()

	s.logger.Info("shut down complete")
	return nil
}
