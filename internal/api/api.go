package api

import (
	"context"
	"errors"
	"net/http"

	"whatsapp-console/internal/dispatch"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

// ProviderClient is the read side of the messaging API used by the console
// handlers (connectivity checks, template registry).
type ProviderClient interface {
	ValidateConnection(ctx context.Context, wabaID string) bool
	GetTemplates(ctx context.Context, wabaID string) ([]whatsapp.TemplateSummary, error)
}

// ClientFactory builds a ProviderClient from a channel access credential.
type ClientFactory func(accessToken string) ProviderClient

// respondDispatchError maps the dispatch error taxonomy onto HTTP codes.
// Callers always get a reason string, never a stack trace.
func respondDispatchError(c *gin.Context, err error) {
	var verr *dispatch.ValidationError
	var derr *dispatch.DispatchError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": verr.Error()})
	case errors.Is(err, dispatch.ErrChannelNotConnected):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Channel is not connected"})
	case errors.As(err, &derr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to send message", "details": derr.Reason})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Channel or contact not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
