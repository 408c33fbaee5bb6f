package api

import (
	"errors"
	"net/http"
	"strconv"

	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"

	"github.com/gin-gonic/gin"
)

type ChatbotHandler struct {
	store *store.Store
}

func NewChatbotHandler(st *store.Store) *ChatbotHandler {
	return &ChatbotHandler{store: st}
}

func (h *ChatbotHandler) List(c *gin.Context) {
	channelID, _ := strconv.ParseUint(c.Query("channelId"), 10, 32)
	rules, err := h.store.ChatbotRules(c.Request.Context(), uint(channelID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rules"})
		return
	}
	if rules == nil {
		rules = []models.ChatbotRule{}
	}
	c.JSON(http.StatusOK, rules)
}

type CreateChatbotRuleRequest struct {
	ChannelID    uint   `json:"channelId" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Trigger      string `json:"trigger" binding:"required"`
	TriggerType  string `json:"triggerType" binding:"omitempty,oneof=keyword regex time"`
	Response     string `json:"response" binding:"required"`
	ResponseType string `json:"responseType" binding:"omitempty,oneof=text template"`
	TemplateID   *uint  `json:"templateId"`
	Priority     int    `json:"priority" binding:"omitempty,min=1,max=10"`
	Conditions   string `json:"conditions"`
}

func (h *ChatbotHandler) Create(c *gin.Context) {
	var req CreateChatbotRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.Channel(ctx, req.ChannelID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Channel not found"})
		return
	}
	if req.ResponseType == "template" {
		if req.TemplateID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "templateId is required for template responses"})
			return
		}
		if _, err := h.store.Template(ctx, *req.TemplateID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Template not found"})
			return
		}
	}

	rule := &models.ChatbotRule{
		ChannelID:    req.ChannelID,
		Name:         req.Name,
		Trigger:      req.Trigger,
		TriggerType:  defaultString(req.TriggerType, "keyword"),
		Response:     req.Response,
		ResponseType: defaultString(req.ResponseType, "text"),
		TemplateID:   req.TemplateID,
		IsActive:     true,
		Priority:     req.Priority,
		Conditions:   req.Conditions,
	}
	if rule.Priority == 0 {
		rule.Priority = 1
	}
	if err := h.store.CreateChatbotRule(ctx, rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create rule"})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

type UpdateChatbotRuleRequest struct {
	Name         *string `json:"name"`
	Trigger      *string `json:"trigger"`
	TriggerType  *string `json:"triggerType"`
	Response     *string `json:"response"`
	ResponseType *string `json:"responseType"`
	TemplateID   *uint   `json:"templateId"`
	Priority     *int    `json:"priority"`
	Conditions   *string `json:"conditions"`
}

func (h *ChatbotHandler) Update(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule id"})
		return
	}

	var req UpdateChatbotRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Trigger != nil {
		updates["trigger"] = *req.Trigger
	}
	if req.TriggerType != nil {
		updates["trigger_type"] = *req.TriggerType
	}
	if req.Response != nil {
		updates["response"] = *req.Response
	}
	if req.ResponseType != nil {
		updates["response_type"] = *req.ResponseType
	}
	if req.TemplateID != nil {
		updates["template_id"] = *req.TemplateID
	}
	if req.Priority != nil {
		if *req.Priority < 1 || *req.Priority > 10 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Priority must be between 1 and 10"})
			return
		}
		updates["priority"] = *req.Priority
	}
	if req.Conditions != nil {
		updates["conditions"] = *req.Conditions
	}

	updated, err := h.store.UpdateChatbotRule(c.Request.Context(), id, updates)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update rule"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Toggle flips the active flag.
func (h *ChatbotHandler) Toggle(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule id"})
		return
	}

	ctx := c.Request.Context()
	rule, err := h.store.ChatbotRule(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}
	updated, err := h.store.UpdateChatbotRule(ctx, id, map[string]interface{}{"is_active": !rule.IsActive})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to toggle rule"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ChatbotHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule id"})
		return
	}
	if err := h.store.DeleteChatbotRule(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rule"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
