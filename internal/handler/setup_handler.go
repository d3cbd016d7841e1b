package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/pkg/response"
)

type setupService interface {
	Active(ctx context.Context) (*models.SetupData, error)
	FormOptions(ctx context.Context) models.FormOptions
	Invalidate(ctx context.Context) error
}

// SetupHandler exposes the admission vocabulary.
type SetupHandler struct {
	setup setupService
}

// NewSetupHandler builds a new handler.
func NewSetupHandler(setup setupService) *SetupHandler {
	return &SetupHandler{setup: setup}
}

// Get godoc
// @Summary Active setup vocabulary
// @Tags Setup
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /setup [get]
func (h *SetupHandler) Get(c *gin.Context) {
	data, err := h.setup.Active(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}

// FormOptions godoc
// @Summary Admission form option lists
// @Description Each list loads independently; a failed list carries its own error and the rest still render.
// @Tags Setup
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /setup/form-options [get]
func (h *SetupHandler) FormOptions(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.setup.FormOptions(c.Request.Context()), nil)
}

// InvalidateCache godoc
// @Summary Drop cached vocabulary
// @Tags Setup
// @Success 204
// @Router /setup/cache [delete]
func (h *SetupHandler) InvalidateCache(c *gin.Context) {
	if err := h.setup.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
