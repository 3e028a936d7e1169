package http

import (
	"strconv"
	"time"

	"marketplace-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

const (
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"
	headerRequestID = "X-Request-ID"

	actorKey     = "actor"
	requestIDKey = "requestId"
)

// RequestID propagates the caller's request id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func AccessLog(log logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"requestId", c.GetString(requestIDKey),
		)
	}
}

// RequireUser reads the identity injected by the upstream gateway.
func (h *Handler) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.GetHeader(headerUserID), 10, 64)
		if err != nil || id == 0 {
			h.respondError(c, domain.ErrUnauthenticated)
			return
		}
		role := domain.RoleUser
		if raw := c.GetHeader(headerUserRole); raw != "" {
			r, ok := domain.ParseRole(raw)
			if !ok {
				h.respondError(c, domain.ErrUnauthenticated.WithDetail("unknown role %q", raw))
				return
			}
			role = r
		}
		c.Set(actorKey, domain.Actor{UserID: id, Role: role})
		c.Next()
	}
}

// RequireRole must run after RequireUser.
func (h *Handler) RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		h.respondError(c, domain.ErrForbidden)
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	v, _ := c.Get(actorKey)
	a, _ := v.(domain.Actor)
	return a
}
