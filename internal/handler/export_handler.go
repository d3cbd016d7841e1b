package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ims-console-api/internal/dto"
	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/internal/service"
	"github.com/noah-isme/ims-console-api/pkg/response"
)

type exportJobService interface {
	CreateJob(ctx context.Context, exportType models.ExportType, req dto.ExportRequest, actor models.Actor) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id string, actor models.Actor) (*dto.ExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler exposes asynchronous roster exports.
type ExportHandler struct {
	exports   exportJobService
	validator requestValidator
}

// NewExportHandler builds a new handler.
func NewExportHandler(exports exportJobService, validator requestValidator) *ExportHandler {
	return &ExportHandler{exports: exports, validator: validator}
}

// ExportAdmissions godoc
// @Summary Queue an admission roster export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /exports/admissions [post]
func (h *ExportHandler) ExportAdmissions(c *gin.Context) {
	h.create(c, models.ExportTypeAdmissions)
}

// ExportConversions godoc
// @Summary Queue a conversion ledger export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /exports/conversions [post]
func (h *ExportHandler) ExportConversions(c *gin.Context) {
	h.create(c, models.ExportTypeConversions)
}

func (h *ExportHandler) create(c *gin.Context, exportType models.ExportType) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ExportRequest
	if !bindJSON(c, &req, h.validator, "export") {
		return
	}
	resp, err := h.exports.CreateJob(c.Request.Context(), exportType, req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, resp, nil)
}

// Status godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	resp, err := h.exports.GetStatus(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Download godoc
// @Summary Download a finished export
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.exports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := "text/csv; charset=utf-8"
	if download.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
		"Cache-Control":       "no-store",
	})
}
