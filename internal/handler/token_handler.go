package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/geoseq/sequences-backend-go/internal/service"
	"github.com/geoseq/sequences-backend-go/pkg/response"
)

// TokenHandler handles HTTP requests for integration tokens
type TokenHandler struct {
	tokenService *service.TokenService
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(tokenService *service.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

// Set handles PUT /api/v1/tokens/:integration
func (h *TokenHandler) Set(c *gin.Context) {
	var body struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "Token is required")
		return
	}

	if err := h.tokenService.Set(c.Param("integration"), body.Token); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, gin.H{"integration": c.Param("integration")})
}

// Clear handles DELETE /api/v1/tokens/:integration
func (h *TokenHandler) Clear(c *gin.Context) {
	if err := h.tokenService.Clear(c.Param("integration")); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, gin.H{"cleared": c.Param("integration")})
}

// List handles GET /api/v1/tokens. Tokens are reported by presence only;
// the secrets themselves never leave the backend.
func (h *TokenHandler) List(c *gin.Context) {
	tokens, err := h.tokenService.GetAll()
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	present := make(map[string]bool, len(tokens))
	for integration := range tokens {
		present[integration] = true
	}
	response.Success(c, present)
}
