package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/pathfinder/internal/apperr"
	"github.com/dharsanguruparan/pathfinder/internal/session"
)

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		evt := s.log.Info()
		if len(c.Errors) > 0 || c.Writer.Status() >= http.StatusInternalServerError {
			evt = s.log.Error().Str("errors", c.Errors.String())
		}
		evt.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request processed")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// resolveSession attaches the caller's identity, if any, to the request
// context. Anonymous requests pass through unchanged.
func (s *Server) resolveSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(session.CookieName)
		if err == nil && token != "" {
			if id := s.deps.Auth.Resolve(c.Request.Context(), token); id != nil {
				c.Request = c.Request.WithContext(session.WithIdentity(c.Request.Context(), id))
			}
		}
		c.Next()
	}
}

func identity(c *gin.Context) *session.Identity {
	return session.FromContext(c.Request.Context())
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity(c)
		switch {
		case id == nil:
			fail(c, apperr.ErrUnauthorized, "")
		case !id.IsAdmin():
			fail(c, apperr.ErrForbidden, "")
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity(c)
		switch {
		case id == nil:
			fail(c, apperr.ErrUnauthorized, "")
		case !id.IsUser():
			fail(c, apperr.ErrForbidden, "")
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}
