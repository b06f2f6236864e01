package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/geoseq/sequences-backend-go/internal/service"
	"github.com/geoseq/sequences-backend-go/internal/store"
	"github.com/geoseq/sequences-backend-go/pkg/response"
)

// NadirHandler handles nadir preview generation and GPX parsing, the two
// preparatory steps the client runs before finalizing.
type NadirHandler struct {
	sequenceService *service.SequenceService
}

// NewNadirHandler creates a new nadir handler
func NewNadirHandler(sequenceService *service.SequenceService) *NadirHandler {
	return &NadirHandler{sequenceService: sequenceService}
}

// Preview handles POST /api/v1/nadir/preview: composite the candidate logo
// onto the target image at each of the 16 percentages and return the temp
// file paths keyed by percentage.
func (h *NadirHandler) Preview(c *gin.Context) {
	var body struct {
		LogoPath  string `json:"logoPath" binding:"required"`
		ImagePath string `json:"imagePath" binding:"required"`
		Width     int    `json:"width" binding:"required"`
		Height    int    `json:"height" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "logoPath, imagePath, width and height are required")
		return
	}

	preview, err := h.sequenceService.GeneratePreview(body.LogoPath, body.ImagePath, body.Width, body.Height)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, preview)
}

// ParseGPX handles POST /api/v1/gpx/parse: the raw GPX document in the
// request body comes back as track points ready for correlation.
func (h *NadirHandler) ParseGPX(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil || len(data) == 0 {
		response.BadRequest(c, "GPX document body is required")
		return
	}

	points, err := store.ParseGPX(data)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"points": points,
		"count":  len(points),
	})
}
