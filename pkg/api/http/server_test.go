package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMetrics struct {
	mu        sync.Mutex
	requests  []string
	inFlight  int
	greetings int
}

func (f *fakeMetrics) ObserveRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, method+" "+route+" "+http.StatusText(status))
}

func (f *fakeMetrics) IncInFlight() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight++
}

func (f *fakeMetrics) DecInFlight() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
}

func (f *fakeMetrics) RecordGreeting() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.greetings++
}

func newTestServer(t *testing.T, metrics MetricsRecorder) *Server {
	t.Helper()
	cfg := &Config{Addr: "127.0.0.1:0", Logger: zap.NewNop()}
	if metrics != nil {
		cfg.Metrics = metrics
	}
	return NewServer(cfg)
}

func serve(s *Server, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestGreeting(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name    string
		target  string
		headers map[string]string
	}{
		{name: "plain", target: "/"},
		{name: "query string", target: "/?name=ci&debug=1"},
		{name: "arbitrary headers", target: "/", headers: map[string]string{
			"Accept":        "application/json",
			"Authorization": "Bearer whatever",
			"User-Agent":    "curl/8.0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, http.MethodGet, tt.target, tt.headers)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "Hello, AWS CI/CD!", rr.Body.String())
			assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))
		})
	}
}

func TestUnknownPaths(t *testing.T) {
	s := newTestServer(t, nil)

	for _, target := range []string{"/nonexistent", "/favicon.ico", "/index.html", "/nonexistent/", "/health", "/metrics"} {
		t.Run(target, func(t *testing.T) {
			rr := serve(s, http.MethodGet, target, nil)

			assert.Equal(t, http.StatusNotFound, rr.Code)
			assert.Equal(t, "404 page not found", rr.Body.String())
		})
	}
}

func TestWrongMethodOnRoot(t *testing.T) {
	s := newTestServer(t, nil)

	methods := []string{
		http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions,
	}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			rr := serve(s, method, "/", nil)

			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			assert.NotEqual(t, Greeting, rr.Body.String())
		})
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("generated when absent", func(t *testing.T) {
		rr := serve(s, http.MethodGet, "/", nil)
		assert.Len(t, rr.Header().Get(RequestIDHeader), 36)
	})

	t.Run("echoed when supplied", func(t *testing.T) {
		rr := serve(s, http.MethodGet, "/", map[string]string{RequestIDHeader: "pipeline-42"})
		assert.Equal(t, "pipeline-42", rr.Header().Get(RequestIDHeader))
	})

	t.Run("replaced when oversized", func(t *testing.T) {
		rr := serve(s, http.MethodGet, "/", map[string]string{RequestIDHeader: strings.Repeat("x", 500)})
		assert.Len(t, rr.Header().Get(RequestIDHeader), 36)
	})

	t.Run("set on 404", func(t *testing.T) {
		rr := serve(s, http.MethodGet, "/missing", nil)
		assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	})
}

func TestMetricsMiddleware(t *testing.T) {
	metrics := &fakeMetrics{}
	s := newTestServer(t, metrics)

	serve(s, http.MethodGet, "/", nil)
	serve(s, http.MethodGet, "/missing", nil)
	serve(s, http.MethodPost, "/", nil)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	assert.Equal(t, []string{
		"GET / OK",
		"GET  Not Found",
		"POST  Method Not Allowed",
	}, metrics.requests)
	assert.Equal(t, 1, metrics.greetings)
	assert.Equal(t, 0, metrics.inFlight)
}

func TestMetricsMiddleware_CountsPanics(t *testing.T) {
	metrics := &fakeMetrics{}
	s := newTestServer(t, metrics)
	s.router.GET("/boom", func(*gin.Context) { panic("kaboom") })

	rr := serve(s, http.MethodGet, "/boom", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	assert.Equal(t, []string{"GET /boom Internal Server Error"}, metrics.requests)
	assert.Equal(t, 0, metrics.inFlight)
}

func TestSetMode_NotChangedByServers(t *testing.T) {
	previous := gin.Mode()
	defer gin.SetMode(previous)

	SetMode(true)
	NewServer(&Config{Addr: "127.0.0.1:0", Debug: true, Logger: zap.NewNop()})
	NewAdminServer(&AdminConfig{Addr: "127.0.0.1:0", Logger: zap.NewNop()})
	assert.Equal(t, gin.DebugMode, gin.Mode())

	SetMode(false)
	NewServer(&Config{Addr: "127.0.0.1:0", Debug: true, Logger: zap.NewNop()})
	assert.Equal(t, gin.ReleaseMode, gin.Mode())
}

func TestRecovery(t *testing.T) {
	t.Run("release mode hides details", func(t *testing.T) {
		s := NewServer(&Config{Addr: "127.0.0.1:0", Logger: zap.NewNop()})
		s.router.GET("/boom", func(*gin.Context) { panic("kaboom") })

		rr := serve(s, http.MethodGet, "/boom", nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Empty(t, rr.Body.String())
	})

	t.Run("debug mode shows the panic", func(t *testing.T) {
		s := NewServer(&Config{Addr: "127.0.0.1:0", Debug: true, Logger: zap.NewNop()})
		s.router.GET("/boom", func(*gin.Context) { panic("kaboom") })

		rr := serve(s, http.MethodGet, "/boom", nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "panic: kaboom")
		assert.Contains(t, rr.Body.String(), "goroutine")
		assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))
	})
}

func TestLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, StateNotStarted, s.State())

	require.NoError(t, s.Listen())
	assert.Equal(t, StateListening, s.State())
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()

	resp, err := http.Get("http://" + s.Addr() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, Greeting, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-errCh)
	assert.Equal(t, StateStopped, s.State())
}

func TestListen_Twice(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.Listen())
	defer func() { _ = s.Shutdown(context.Background()) }()

	err := s.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestListen_PortInUse(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	s := NewServer(&Config{Addr: occupied.Addr().String(), Logger: zap.NewNop()})

	err = s.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind http server")
	assert.Equal(t, StateNotStarted, s.State())
}

func TestServe_WithoutListen(t *testing.T) {
	s := newTestServer(t, nil)

	err := s.Serve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not listening")
}

func TestConcurrentRequests(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.Listen())
	go func() { _ = s.Serve() }()
	defer func() { _ = s.Shutdown(context.Background()) }()

	const workers = 16
	bodies := make([]string, workers)
	codes := make([]int, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Get("http://" + s.Addr() + "/")
			if err != nil {
				return
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			bodies[i] = string(b)
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		assert.Equal(t, http.StatusOK, codes[i], "request %d", i)
		assert.Equal(t, Greeting, bodies[i], "request %d", i)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "not_started", StateNotStarted.String())
	assert.Equal(t, "listening", StateListening.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
