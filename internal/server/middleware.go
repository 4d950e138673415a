package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/models"
)

// exemptPaths skip auth and rate limiting.
var exemptPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
	"/metrics":      true,
}

func respondError(c *gin.Context, err *apierrors.APIError) {
	c.AbortWithStatusJSON(err.HTTPStatus, models.APIResponse{
		Success: false,
		Error:   err,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request handled", map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		})
	}
}

// apiKeyAuth checks X-API-Key against the configured keys. With no keys
// configured, auth is disabled.
func (s *Server) apiKeyAuth() gin.HandlerFunc {
	keys := make(map[string]bool, len(s.cfg.Security.APIKeys))
	for _, k := range s.cfg.Security.APIKeys {
		keys[k] = true
	}

	return func(c *gin.Context) {
		if len(keys) == 0 || exemptPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		if !keys[c.GetHeader("X-API-Key")] {
			respondError(c, apierrors.New(apierrors.ErrCodeUnauthorized))
			return
		}
		c.Next()
	}
}

// bodySizeLimit caps request bodies; handlers reading past the cap get a
// MaxBytesError which surfaces as 413.
func (s *Server) bodySizeLimit() gin.HandlerFunc {
	maxSize := s.cfg.Security.MaxBodySize
	return func(c *gin.Context) {
		if maxSize > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.Limiter == nil || exemptPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		clientID := c.GetHeader("X-API-Key")
		if clientID == "" {
			clientID = c.ClientIP()
		}

		allowed, retryAfter, err := s.deps.Limiter.Allow(c.Request.Context(), clientID)
		if err != nil {
			// limiter backend trouble must not take the API down
			s.logger.Warn("rate limiter unavailable", map[string]interface{}{"error": err.Error()})
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			respondError(c, apierrors.NewRateLimitError(retryAfter))
			return
		}
		c.Next()
	}
}
