package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printworker/internal/core"
	"github.com/orrn/printworker/internal/render"
)

const maxPayloadBytes = 1 << 20

type RenderHandler struct {
	renderer core.DocumentRenderer
}

func NewRenderHandler(renderer core.DocumentRenderer) *RenderHandler {
	return &RenderHandler{renderer: renderer}
}

// Preview lays out the posted payload as :type and returns the text without
// printing it or touching the job store.
func (h *RenderHandler) Preview(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read body"})
		return
	}

	doc, err := h.renderer.Render(c.Param("type"), payload)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, render.ErrUnknownType) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "render failed", Message: err.Error()})
		return
	}

	c.String(http.StatusOK, doc)
}
