package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"supplyhub/internal/apperr"
	"supplyhub/internal/middleware"
	"supplyhub/internal/models"
)

const requestTimeout = 5 * time.Second

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "server error"})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Client().Ping(checkCtx, readpref.Primary())
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	log.Printf("[%s] returning error %d: %s", route, status, message)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// respondError writes a service error. Application errors keep their status
// and message; anything else is logged and reported as a 500.
func respondError(c *gin.Context, route string, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		log.Printf("[%s] [ERROR] %+v", route, err)
		respondWithError(c, http.StatusInternalServerError, route, "server error")
		return
	}

	body := gin.H{"success": false, "message": appErr.Message}
	for k, v := range appErr.Details {
		body[k] = v
	}
	log.Printf("[%s] returning error %d: %s", route, appErr.Status(), appErr.Message)
	c.AbortWithStatusJSON(appErr.Status(), body)
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": true, "message": message})
}

func respondPage(c *gin.Context, data interface{}, count int, p pagination) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      count,
		"pagination": p,
		"data":       data,
	})
}

// requireActor reads the caller set by middleware.AuthGuard.
func requireActor(c *gin.Context, route string) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, route, "Not authorized")
		return models.Actor{}, false
	}
	return actor, true
}

// objectIDParam parses a path parameter. Malformed ids are reported as a
// missing resource.
func objectIDParam(c *gin.Context, name, route, resource string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param(name)))
	if err != nil {
		respondWithError(c, http.StatusNotFound, route, resource+" not found")
		return primitive.NilObjectID, false
	}
	return id, true
}

func parseFloatQuery(c *gin.Context, key string) (float64, bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
