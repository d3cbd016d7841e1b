package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ims-console-api/internal/dto"
	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/pkg/response"
)

type enquiryService interface {
	List(ctx context.Context, filter models.EnquiryFilter) ([]models.EnquiryListItem, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.EnquiryListItem, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateEnquiryStatusRequest) (*models.EnquiryListItem, error)
}

type enquiryStager interface {
	StageByID(ctx context.Context, actor models.Actor, enquiryID string) (*models.StageResult, error)
}

type enquiryConverter interface {
	ConvertEnquiry(ctx context.Context, actor models.Actor, enquiryID string, req dto.ConvertEnquiryRequest) (*models.AdmissionResult, error)
}

// EnquiryHandler exposes enquiry reads, status changes and the two conversion entry points.
type EnquiryHandler struct {
	enquiries enquiryService
	stager    enquiryStager
	converter enquiryConverter
	validator requestValidator
}

// NewEnquiryHandler builds a new handler.
func NewEnquiryHandler(enquiries enquiryService, stager enquiryStager, converter enquiryConverter, validator requestValidator) *EnquiryHandler {
	return &EnquiryHandler{enquiries: enquiries, stager: stager, converter: converter, validator: validator}
}

// List godoc
// @Summary List enquiries
// @Tags Enquiries
// @Produce json
// @Param search query string false "Search text"
// @Param status query string false "Status filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enquiries [get]
func (h *EnquiryHandler) List(c *gin.Context) {
	filter := models.EnquiryFilter{
		Search: c.Query("search"),
		Status: models.EnquiryStatus(c.Query("status")),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	}
	items, pagination, err := h.enquiries.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get enquiry
// @Tags Enquiries
// @Produce json
// @Param id path string true "Enquiry ID"
// @Success 200 {object} response.Envelope
// @Router /enquiries/{id} [get]
func (h *EnquiryHandler) Get(c *gin.Context) {
	item, err := h.enquiries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// UpdateStatus godoc
// @Summary Change enquiry status
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param id path string true "Enquiry ID"
// @Param payload body dto.UpdateEnquiryStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enquiries/{id}/status [put]
func (h *EnquiryHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateEnquiryStatusRequest
	if !bindJSON(c, &req, h.validator, "status") {
		return
	}
	item, err := h.enquiries.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Stage godoc
// @Summary Stage an enquiry for conversion
// @Description Copies the enquiry into the caller's pending conversion slot and returns the admission form route.
// @Tags Enquiries
// @Produce json
// @Param id path string true "Enquiry ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enquiries/{id}/stage [post]
func (h *EnquiryHandler) Stage(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.stager.StageByID(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Convert godoc
// @Summary Convert an enquiry in one backend call
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param id path string true "Enquiry ID"
// @Param payload body dto.ConvertEnquiryRequest true "Admission fields"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enquiries/{id}/convert [post]
func (h *EnquiryHandler) Convert(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ConvertEnquiryRequest
	if !bindJSON(c, &req, nil, "admission") {
		return
	}
	result, err := h.converter.ConvertEnquiry(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
