package api

import (
	"net/http"
	"strconv"

	"whatsapp-console/internal/dispatch"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	store      *store.Store
	dispatcher *dispatch.Dispatcher
}

func NewMessageHandler(st *store.Store, dispatcher *dispatch.Dispatcher) *MessageHandler {
	return &MessageHandler{store: st, dispatcher: dispatcher}
}

func (h *MessageHandler) List(c *gin.Context) {
	channelID, _ := strconv.ParseUint(c.Query("channelId"), 10, 32)
	contactID, _ := strconv.ParseUint(c.Query("contactId"), 10, 32)
	limit, _ := strconv.Atoi(c.Query("limit"))

	messages, err := h.store.Messages(c.Request.Context(), uint(channelID), uint(contactID), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

type SendMessageRequest struct {
	ChannelID      uint              `json:"channelId" binding:"required"`
	ContactID      uint              `json:"contactId" binding:"required"`
	Type           string            `json:"type" binding:"required"`
	Content        string            `json:"content"`
	TemplateName   string            `json:"templateName"`
	TemplateParams map[string]string `json:"templateParams"`
	LanguageCode   string            `json:"languageCode"`
	MediaRef       string            `json:"mediaRef"`
	Caption        string            `json:"caption"`
}

// Send dispatches an outbound message. A provider failure still leaves a
// durable failed row; the caller gets the reason in the response details.
func (h *MessageHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	message, err := h.dispatcher.SendOutbound(c.Request.Context(), &dispatch.SendRequest{
		ChannelID:      req.ChannelID,
		ContactID:      req.ContactID,
		Type:           req.Type,
		Content:        req.Content,
		TemplateName:   req.TemplateName,
		TemplateParams: req.TemplateParams,
		LanguageCode:   req.LanguageCode,
		MediaRef:       req.MediaRef,
		Caption:        req.Caption,
	})
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}
