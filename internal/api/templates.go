package api

import (
	"errors"
	"net/http"
	"regexp"

	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var templateNamePattern = regexp.MustCompile(`^[a-z0-9_]{3,50}$`)

type TemplateHandler struct {
	store   *store.Store
	clients ClientFactory
	logger  *zap.Logger
}

func NewTemplateHandler(st *store.Store, clients ClientFactory, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{store: st, clients: clients, logger: logger}
}

func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.store.Templates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch templates"})
		return
	}
	if templates == nil {
		templates = []models.Template{}
	}
	c.JSON(http.StatusOK, templates)
}

type CreateTemplateRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
	Category    string `json:"category" binding:"required,oneof=marketing transactional support utility"`
	Language    string `json:"language"`
	Content     string `json:"content" binding:"required"`
	Parameters  string `json:"parameters"`
}

// Create registers a local template in pending status; approval arrives
// through sync with the provider registry.
func (h *TemplateHandler) Create(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if !templateNamePattern.MatchString(req.Name) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid template name",
			"details": "Use 3-50 lowercase letters, digits and underscores",
		})
		return
	}

	template := &models.Template{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Category:    req.Category,
		Language:    req.Language,
		Content:     req.Content,
		Parameters:  req.Parameters,
		Status:      "pending",
	}
	if template.Language == "" {
		template.Language = "en_US"
	}
	if err := h.store.CreateTemplate(c.Request.Context(), template); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A template with this name already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create template"})
		return
	}
	c.JSON(http.StatusCreated, template)
}

type UpdateTemplateRequest struct {
	DisplayName *string `json:"displayName"`
	Category    *string `json:"category"`
	Language    *string `json:"language"`
	Status      *string `json:"status"`
	Content     *string `json:"content"`
	Parameters  *string `json:"parameters"`
}

func (h *TemplateHandler) Update(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template id"})
		return
	}

	var req UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Language != nil {
		updates["language"] = *req.Language
	}
	if req.Status != nil {
		switch *req.Status {
		case "pending", "approved", "rejected":
			updates["status"] = *req.Status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template status"})
			return
		}
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.Parameters != nil {
		updates["parameters"] = *req.Parameters
	}

	updated, err := h.store.UpdateTemplate(c.Request.Context(), id, updates)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update template"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

type SyncTemplatesRequest struct {
	ChannelID uint `json:"channelId"`
}

// Sync pulls the provider's template registry and reconciles it with the
// local table. Credentials come from the requested channel, defaulting to
// the first connected one.
func (h *TemplateHandler) Sync(c *gin.Context) {
	var req SyncTemplatesRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	var channel *models.Channel
	var err error
	if req.ChannelID != 0 {
		channel, err = h.store.Channel(ctx, req.ChannelID)
	} else {
		channel, err = h.store.FirstConnectedChannel(ctx)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No connected channel available for template sync"})
		return
	}

	summaries, err := h.clients(channel.AccessToken).GetTemplates(ctx, channel.WabaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to fetch templates from provider", "details": err.Error()})
		return
	}

	created, updated, skipped := 0, 0, 0
	for _, summary := range summaries {
		incoming := &models.Template{
			Name:               summary.Name,
			DisplayName:        summary.Name,
			Category:           summary.Category,
			Language:           summary.Language,
			Status:             normalizeTemplateStatus(summary.Status),
			ProviderTemplateID: summary.ID,
		}
		isNew, err := h.store.UpsertTemplateFromProvider(ctx, incoming)
		if err != nil {
			h.logger.Warn("template sync skipped entry",
				zap.String("template", summary.Name),
				zap.Error(err),
			)
			skipped++
			continue
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": gin.H{
			"created": created,
			"updated": updated,
			"skipped": skipped,
			"total":   len(summaries),
		},
	})
}

// normalizeTemplateStatus maps provider statuses (APPROVED, REJECTED, ...)
// onto the local lifecycle.
func normalizeTemplateStatus(providerStatus string) string {
	switch providerStatus {
	case "APPROVED", "approved":
		return "approved"
	case "REJECTED", "rejected":
		return "rejected"
	default:
		return "pending"
	}
}
