package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS allows the single configured browser origin.
func (s *Server) CORS() gin.HandlerFunc {
	origin := s.cfg.AllowedOrigin
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// MessageRateLimit gates message and image endpoints per caller. Clients
// identify themselves via X-External-Id; anonymous callers share a bucket
// keyed on their IP.
func (s *Server) MessageRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.msgLimiter.Enabled() {
			c.Next()
			return
		}

		key := c.GetHeader("X-External-Id")
		if key == "" {
			key = c.ClientIP()
		}

		res, err := s.msgLimiter.AllowAccount(c.Request.Context(), key)
		if err != nil {
			// Redis being down must not take chat down with it.
			c.Next()
			return
		}
		if !res.Allowed {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), c.FullPath(), "token_bucket")
			AbortWithError(c, ErrRateLimited)
			return
		}
		s.obsMetrics.RecordRateLimitAllowed(c.Request.Context(), c.FullPath())
		c.Next()
	}
}
