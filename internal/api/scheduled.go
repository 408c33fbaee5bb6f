package api

import (
	"errors"
	"net/http"
	"time"

	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"

	"github.com/gin-gonic/gin"
)

type ScheduledHandler struct {
	store *store.Store
}

func NewScheduledHandler(st *store.Store) *ScheduledHandler {
	return &ScheduledHandler{store: st}
}

func (h *ScheduledHandler) List(c *gin.Context) {
	rows, err := h.store.ScheduledMessages(c.Request.Context(), c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scheduled messages"})
		return
	}
	if rows == nil {
		rows = []models.ScheduledMessage{}
	}
	c.JSON(http.StatusOK, rows)
}

type CreateScheduledRequest struct {
	ChannelID    uint      `json:"channelId" binding:"required"`
	ContactID    *uint     `json:"contactId"`
	Content      string    `json:"content" binding:"required"`
	MessageType  string    `json:"messageType" binding:"omitempty,oneof=text template"`
	TemplateID   *uint     `json:"templateId"`
	ScheduledFor time.Time `json:"scheduledFor" binding:"required"`
	Metadata     string    `json:"metadata"`
}

func (h *ScheduledHandler) Create(c *gin.Context) {
	var req CreateScheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if !req.ScheduledFor.After(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduledFor must be in the future"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.Channel(ctx, req.ChannelID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Channel not found"})
		return
	}
	if req.ContactID != nil {
		if _, err := h.store.Contact(ctx, *req.ContactID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Contact not found"})
			return
		}
	}

	row := &models.ScheduledMessage{
		ChannelID:    req.ChannelID,
		ContactID:    req.ContactID,
		Content:      req.Content,
		MessageType:  defaultString(req.MessageType, "text"),
		TemplateID:   req.TemplateID,
		ScheduledFor: req.ScheduledFor,
		Status:       "pending",
		Metadata:     req.Metadata,
	}
	if err := h.store.CreateScheduledMessage(ctx, row); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to schedule message"})
		return
	}
	c.JSON(http.StatusCreated, row)
}

// Cancel takes a pending row out of the dispatch queue. Rows already sent,
// failed or cancelled are left alone.
func (h *ScheduledHandler) Cancel(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scheduled message id"})
		return
	}
	if err := h.store.CancelScheduledMessage(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Scheduled message not found or not pending"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel scheduled message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ScheduledHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scheduled message id"})
		return
	}
	if err := h.store.DeleteScheduledMessage(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Scheduled message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete scheduled message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
