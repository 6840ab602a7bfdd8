package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

func Health(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /health"
		defer handlePanic(c, route)

		database := "up"
		status := http.StatusOK
		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			database = "down"
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"success":   status == http.StatusOK,
			"status":    database,
			"timestamp": time.Now().UTC(),
		})
	}
}
