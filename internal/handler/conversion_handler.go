package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/pkg/response"
)

type conversionLedger interface {
	Ledger(ctx context.Context, filter models.ConversionFilter) ([]models.ConversionRecord, *models.Pagination, error)
}

// ConversionHandler exposes the enquiry conversion ledger.
type ConversionHandler struct {
	ledger conversionLedger
}

// NewConversionHandler builds a new handler.
func NewConversionHandler(ledger conversionLedger) *ConversionHandler {
	return &ConversionHandler{ledger: ledger}
}

// List godoc
// @Summary List enquiry conversions
// @Tags Conversions
// @Produce json
// @Param enquiryId query string false "Enquiry ID"
// @Param mode query string false "client or atomic"
// @Param reconcileStatus query string false "pending, reconciled or failed"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /conversions [get]
func (h *ConversionHandler) List(c *gin.Context) {
	filter := models.ConversionFilter{
		EnquiryID:       c.Query("enquiryId"),
		Mode:            models.ConversionMode(c.Query("mode")),
		ReconcileStatus: models.ReconcileStatus(c.Query("reconcileStatus")),
		Page:            queryInt(c, "page"),
		PageSize:        queryInt(c, "pageSize"),
	}
	records, pagination, err := h.ledger.Ledger(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}
