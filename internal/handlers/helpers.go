package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"recordsdesk/internal/authz"
	"recordsdesk/internal/middleware"
	"recordsdesk/internal/services"
)

// ActorResolver turns the authenticated user id into an actor.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID int64, accessKey string) (authz.Actor, error)
}

// actorOf resolves the caller; on failure the response is already written.
func actorOf(c *gin.Context, res ActorResolver) (authz.Actor, bool) {
	a, err := res.ResolveActor(c.Request.Context(), userIDFromCtx(c), accessKeyFromCtx(c))
	if err != nil {
		respondError(c, err)
		return authz.Actor{}, false
	}
	return a, true
}

func userIDFromCtx(c *gin.Context) int64 {
	v, ok := c.Get(middleware.CtxUserID)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func accessKeyFromCtx(c *gin.Context) string {
	v, _ := c.Get(middleware.CtxAccessKey)
	s, _ := v.(string)
	return s
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func parseOptionalInt64(c *gin.Context, name string) (*int64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	return &n, true
}

// respondError maps service errors onto HTTP responses. State-guard misses
// answer 200 with applied=false so repeated form posts are harmless.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoop), errors.Is(err, services.ErrTaskResolved):
		c.JSON(http.StatusOK, gin.H{"applied": false, "reason": err.Error()})
	case errors.Is(err, services.ErrBadLogin):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNoAllotment):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrDelivery):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.Printf("[http][%s %s][err] %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
