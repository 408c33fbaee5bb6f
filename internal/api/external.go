package api

import (
	"errors"
	"net/http"
	"strings"

	"whatsapp-console/internal/dispatch"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const apiTokenKey = "apiToken"

// AuthenticateApiToken guards the external API: Bearer token, minimum
// length, active lookup. Every authenticated call touches the token's
// last-used timestamp.
func AuthenticateApiToken(st *store.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token required in 'Bearer <token>' format",
			})
			return
		}

		secret := strings.TrimPrefix(authHeader, "Bearer ")
		if len(secret) < 32 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		token, err := st.ApiTokenBySecret(c.Request.Context(), secret)
		if err != nil || !token.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or inactive token"})
			return
		}

		if err := st.TouchApiToken(c.Request.Context(), secret); err != nil {
			logger.Warn("failed to record token usage", zap.Uint("token_id", token.ID), zap.Error(err))
		}
		c.Set(apiTokenKey, token)
		c.Next()
	}
}

type ExternalHandler struct {
	store      *store.Store
	dispatcher *dispatch.Dispatcher
}

func NewExternalHandler(st *store.Store, dispatcher *dispatch.Dispatcher) *ExternalHandler {
	return &ExternalHandler{store: st, dispatcher: dispatcher}
}

type ExternalSendRequest struct {
	To             string            `json:"to"`
	Message        string            `json:"message"`
	Template       string            `json:"template"`
	TemplateParams map[string]string `json:"template_params"`
}

// SendMessage is the programmatic send entry point: get-or-create the
// contact, resolve a channel (token default or first connected) and run the
// same dispatch pipeline as the console.
func (h *ExternalHandler) SendMessage(c *gin.Context) {
	var req ExternalSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if req.To == "" || (req.Message == "" && req.Template == "") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Parameters 'to' and either 'message' or 'template' are required",
		})
		return
	}

	ctx := c.Request.Context()
	contact, err := h.store.GetOrCreateContact(ctx, req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to resolve contact", "details": err.Error()})
		return
	}

	token := c.MustGet(apiTokenKey).(*models.ApiToken)
	var channelID uint
	if token.DefaultChannelID != nil {
		channelID = *token.DefaultChannelID
	} else {
		channel, err := h.store.FirstConnectedChannel(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "No connected channel available"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve channel"})
			return
		}
		channelID = channel.ID
	}

	sendReq := &dispatch.SendRequest{
		ChannelID: channelID,
		ContactID: contact.ID,
		Type:      models.TypeText,
		Content:   req.Message,
	}
	if req.Template != "" {
		sendReq.Type = models.TypeTemplate
		sendReq.Content = "Template: " + req.Template
		sendReq.TemplateName = req.Template
		sendReq.TemplateParams = req.TemplateParams
	}

	message, err := h.dispatcher.SendOutbound(ctx, sendReq)
	if err != nil {
		respondDispatchError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message_id":  message.ProviderMessageID,
		"internal_id": message.ID,
	})
}
