package api

import (
	"errors"
	"net/http"
	"strconv"

	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChannelHandler struct {
	store   *store.Store
	clients ClientFactory
	logger  *zap.Logger
}

func NewChannelHandler(st *store.Store, clients ClientFactory, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{store: st, clients: clients, logger: logger}
}

func (h *ChannelHandler) List(c *gin.Context) {
	channels, err := h.store.Channels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch channels"})
		return
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	c.JSON(http.StatusOK, channels)
}

type CreateChannelRequest struct {
	Name          string `json:"name" binding:"required"`
	PhoneNumber   string `json:"phoneNumber" binding:"required"`
	PhoneNumberID string `json:"phoneNumberId"`
	WabaID        string `json:"wabaId" binding:"required"`
	AccessToken   string `json:"accessToken" binding:"required"`
}

// Create validates connectivity with the provider before persisting the
// channel as connected.
func (h *ChannelHandler) Create(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	client := h.clients(req.AccessToken)
	if !client.ValidateConnection(c.Request.Context(), req.WabaID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "WhatsApp Business API connection failed",
			"details": "Check that the access token and WABA ID are correct and the account has the required permissions",
		})
		return
	}

	channel := &models.Channel{
		Name:          req.Name,
		PhoneNumber:   req.PhoneNumber,
		PhoneNumberID: req.PhoneNumberID,
		WabaID:        req.WabaID,
		AccessToken:   req.AccessToken,
		Status:        models.ChannelDisconnected,
	}
	if err := h.store.CreateChannel(c.Request.Context(), channel); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Channel already exists",
				"details": "A channel with this phone number already exists",
			})
			return
		}
		h.logger.Error("channel create failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create channel"})
		return
	}

	if err := h.store.UpdateChannelStatus(c.Request.Context(), channel.ID, models.ChannelConnected); err != nil {
		h.logger.Error("channel status update failed", zap.Uint("channel_id", channel.ID), zap.Error(err))
	}

	created, err := h.store.Channel(c.Request.Context(), channel.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load created channel"})
		return
	}
	h.logger.Info("channel created",
		zap.Uint("channel_id", created.ID),
		zap.String("phone_number", created.PhoneNumber),
	)
	c.JSON(http.StatusCreated, created)
}

type UpdateChannelRequest struct {
	Name          *string `json:"name"`
	PhoneNumber   *string `json:"phoneNumber"`
	PhoneNumberID *string `json:"phoneNumberId"`
	WabaID        *string `json:"wabaId"`
	AccessToken   *string `json:"accessToken"`
}

// Update applies partial changes; rotating the credential or WABA ID
// re-validates connectivity and refreshes the connection status.
func (h *ChannelHandler) Update(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}

	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	existing, err := h.store.Channel(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.PhoneNumberID != nil {
		updates["phone_number_id"] = *req.PhoneNumberID
	}
	if req.WabaID != nil {
		updates["waba_id"] = *req.WabaID
	}
	if req.AccessToken != nil {
		updates["access_token"] = *req.AccessToken
	}

	if req.AccessToken != nil || req.WabaID != nil {
		token := existing.AccessToken
		if req.AccessToken != nil {
			token = *req.AccessToken
		}
		waba := existing.WabaID
		if req.WabaID != nil {
			waba = *req.WabaID
		}
		if h.clients(token).ValidateConnection(c.Request.Context(), waba) {
			updates["status"] = models.ChannelConnected
		} else {
			updates["status"] = models.ChannelError
		}
	}

	updated, err := h.store.UpdateChannel(c.Request.Context(), id, updates)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update channel"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ChannelHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel id"})
		return
	}
	if err := h.store.DeleteChannel(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete channel"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	return uint(id), err
}
