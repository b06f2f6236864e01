package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/geoseq/sequences-backend-go/internal/models"
	"github.com/geoseq/sequences-backend-go/internal/service"
	"github.com/geoseq/sequences-backend-go/pkg/response"
)

// SequenceHandler handles HTTP requests for the sequence pipeline
type SequenceHandler struct {
	sequenceService *service.SequenceService
}

// NewSequenceHandler creates a new sequence handler
func NewSequenceHandler(sequenceService *service.SequenceService) *SequenceHandler {
	return &SequenceHandler{sequenceService: sequenceService}
}

// Finalize handles POST /api/v1/sequences. With "Accept: text/event-stream"
// it streams per-image progress as server-sent events and finishes with a
// terminal "result" or "error" event; otherwise it blocks and answers with
// a plain JSON result.
func (h *SequenceHandler) Finalize(c *gin.Context) {
	var desc models.SequenceDescriptor
	if err := c.ShouldBindJSON(&desc); err != nil {
		response.BadRequest(c, "Invalid sequence descriptor")
		return
	}

	if c.GetHeader("Accept") != "text/event-stream" {
		h.finalizeBlocking(c, &desc)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	progress := make(chan string, 16)
	type outcome struct {
		result *models.Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer close(progress)
		result, err := h.sequenceService.Finalize(c.Request.Context(), &desc, func(message string) {
			select {
			case progress <- message:
			case <-c.Request.Context().Done():
			}
		})
		done <- outcome{result: result, err: err}
	}()

	c.Stream(func(w io.Writer) bool {
		message, ok := <-progress
		if !ok {
			final := <-done
			if final.err != nil {
				c.SSEvent("error", finalizeErrorPayload(final.err))
			} else {
				c.SSEvent("result", final.result)
			}
			return false
		}
		c.SSEvent("progress", message)
		return true
	})
}

// finalizeBlocking runs the pipeline without streaming; progress messages
// are dropped.
func (h *SequenceHandler) finalizeBlocking(c *gin.Context, desc *models.SequenceDescriptor) {
	result, err := h.sequenceService.Finalize(c.Request.Context(), desc, nil)
	if err != nil {
		var validation *models.ValidationError
		switch {
		case errors.Is(err, models.ErrAlreadyExists):
			response.Conflict(c, err.Error())
		case errors.As(err, &validation):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err.Error())
		}
		return
	}
	response.Success(c, result)
}

func finalizeErrorPayload(err error) gin.H {
	payload := gin.H{"message": err.Error()}

	var validation *models.ValidationError
	switch {
	case errors.Is(err, models.ErrAlreadyExists):
		payload["kind"] = "already_exists"
	case errors.As(err, &validation):
		payload["kind"] = "validation"
	default:
		payload["kind"] = "internal"
	}
	return payload
}

// List handles GET /api/v1/sequences
func (h *SequenceHandler) List(c *gin.Context) {
	summaries, err := h.sequenceService.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, summaries)
}

// Remove handles DELETE /api/v1/sequences/:name
func (h *SequenceHandler) Remove(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		response.BadRequest(c, "Sequence name is required")
		return
	}
	if err := h.sequenceService.Remove(name); err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"removed": name})
}

// Reset handles POST /api/v1/sequences/:name/reset. The body carries the
// descriptor so preview temp files can be removed along with the working
// directory.
func (h *SequenceHandler) Reset(c *gin.Context) {
	var desc models.SequenceDescriptor
	if err := c.ShouldBindJSON(&desc); err != nil {
		response.BadRequest(c, "Invalid sequence descriptor")
		return
	}
	if desc.Name == "" {
		desc.Name = c.Param("name")
	}

	if err := h.sequenceService.Reset(&desc); err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"reset": desc.Name})
}
