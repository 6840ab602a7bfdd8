package middleware

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/models"
)

// RequireRoles rejects callers whose role, set by AuthGuard, is not listed.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if !roleAllowed(role, roles) {
			forbidRole(c, role)
			return
		}
		c.Next()
	}
}

func roleAllowed(role string, roles []string) bool {
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	return false
}

func forbidRole(c *gin.Context, role string) {
	log.Printf("[AUTH] [ERROR] role %q denied on %s", role, c.FullPath())
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"success": false,
		"message": fmt.Sprintf("User role %s is not authorized to access this route", role),
	})
}

// ActorFrom returns the authenticated caller injected by AuthGuard.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	value, ok := c.Get(ContextUserID)
	if !ok {
		return models.Actor{}, false
	}
	id, ok := value.(primitive.ObjectID)
	if !ok || id.IsZero() {
		return models.Actor{}, false
	}
	return models.Actor{ID: id, Role: c.GetString(ContextRole)}, true
}
