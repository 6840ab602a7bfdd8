package handlers

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"supplyhub/internal/payment"
)

const webhookSecretHeader = "X-Webhook-Secret"

// PaymentEventHandler applies gateway webhook events.
type PaymentEventHandler interface {
	HandleEvent(ctx context.Context, event payment.Event) error
}

// PaymentWebhook accepts gateway events carrying the shared secret. An empty
// secret disables the endpoint.
func PaymentWebhook(handler PaymentEventHandler, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/webhook"
		defer handlePanic(c, route)

		if secret == "" {
			respondWithError(c, http.StatusServiceUnavailable, route, "Webhooks are not configured")
			return
		}
		given := strings.TrimSpace(c.GetHeader(webhookSecretHeader))
		if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			respondWithError(c, http.StatusUnauthorized, route, "Invalid webhook secret")
			return
		}

		var event payment.Event
		if err := c.ShouldBindJSON(&event); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		if err := handler.HandleEvent(ctx, event); err != nil {
			respondError(c, route, err)
			return
		}

		log.Printf("[PAYMENT] [INFO] webhook %s (%s) applied", event.ID, event.Type)
		c.JSON(http.StatusOK, gin.H{"success": true, "received": true})
	}
}
