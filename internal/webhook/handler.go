package webhook

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Processor consumes the message changes carried by a webhook delivery.
type Processor interface {
	ProcessChange(ctx context.Context, value ChangeValue)
}

type Handler struct {
	verifyToken string
	processor   Processor
	logger      *zap.Logger
}

func NewHandler(verifyToken string, processor Processor, logger *zap.Logger) *Handler {
	return &Handler{
		verifyToken: verifyToken,
		processor:   processor,
		logger:      logger,
	}
}

// Verify answers the provider's subscription handshake: echo the challenge
// iff the mode is subscribe and the shared secret matches.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || token != h.verifyToken {
		c.Status(http.StatusForbidden)
		return
	}
	h.logger.Info("webhook subscription verified")
	c.String(http.StatusOK, challenge)
}

// Receive handles event delivery. It always acknowledges with 200 so the
// provider stops redelivering; internal failures are logged, never surfaced.
func (h *Handler) Receive(c *gin.Context) {
	var payload Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("malformed webhook payload", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	if payload.Object == "whatsapp_business_account" {
		for _, entry := range payload.Entry {
			for _, change := range entry.Changes {
				if change.Field != "messages" {
					continue
				}
				h.processor.ProcessChange(c.Request.Context(), change.Value)
			}
		}
	}

	c.Status(http.StatusOK)
}
