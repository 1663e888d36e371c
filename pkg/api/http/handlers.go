package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Greeting is the body served on GET /
const Greeting = "Hello, AWS CI/CD!"

// HealthResponse represents a health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// handleGreeting serves the greeting
func (s *Server) handleGreeting(c *gin.Context) {
	if s.metrics != nil {
		s.metrics.RecordGreeting()
	}
	c.String(http.StatusOK, Greeting)
}

// healthHandler reports healthy while the target server is listening
func healthHandler(target StateReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := StateNotStarted
		if target != nil {
			state = target.State()
		}

		status, code := "healthy", http.StatusOK
		if state != StateListening {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks: map[string]string{
				"http": state.String(),
			},
		})
	}
}
