package api

import (
	"errors"
	"net/http"
	"strings"

	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TokenHandler struct {
	store *store.Store
}

func NewTokenHandler(st *store.Store) *TokenHandler {
	return &TokenHandler{store: st}
}

// List returns tokens with their secrets masked; the full secret is only
// ever shown in the Create response.
func (h *TokenHandler) List(c *gin.Context) {
	tokens, err := h.store.ApiTokens(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tokens"})
		return
	}
	for i := range tokens {
		tokens[i].Token = maskToken(tokens[i].Token)
	}
	if tokens == nil {
		tokens = []models.ApiToken{}
	}
	c.JSON(http.StatusOK, tokens)
}

func maskToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:8] + "..." + token[len(token)-4:]
}

type CreateTokenRequest struct {
	Name             string `json:"name" binding:"required"`
	DefaultChannelID *uint  `json:"defaultChannelId"`
}

func (h *TokenHandler) Create(c *gin.Context) {
	var req CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	// 36 chars, comfortably above the 32-char auth minimum.
	secret := "wab_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	token := &models.ApiToken{
		Token:            secret,
		Name:             req.Name,
		DefaultChannelID: req.DefaultChannelID,
		IsActive:         true,
	}
	if err := h.store.CreateApiToken(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create token"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": secret, "apiToken": token})
}

func (h *TokenHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token id"})
		return
	}
	if err := h.store.DeleteApiToken(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
