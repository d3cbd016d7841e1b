package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ims-console-api/internal/dto"
	"github.com/noah-isme/ims-console-api/internal/middleware"
	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/internal/service"
	"github.com/noah-isme/ims-console-api/pkg/response"
)

type admissionService interface {
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Admission, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateAdmissionStatusRequest) (*models.Admission, error)
	CheckForm(form dto.AdmissionForm) dto.ValidateFormResponse
	Submit(ctx context.Context, actor models.Actor, req dto.SubmitAdmissionRequest) (*models.AdmissionResult, error)
	Slip(ctx context.Context, id string) ([]byte, string, error)
}

type formPrefiller interface {
	Consume(ctx context.Context, actor models.Actor, token string) (dto.AdmissionFormState, bool)
}

// AdmissionHandler exposes the admission form and admission records.
type AdmissionHandler struct {
	admissions admissionService
	prefill    formPrefiller
	validator  requestValidator
}

// NewAdmissionHandler builds a new handler.
func NewAdmissionHandler(admissions admissionService, prefill formPrefiller, validator requestValidator) *AdmissionHandler {
	return &AdmissionHandler{admissions: admissions, prefill: prefill, validator: validator}
}

// List godoc
// @Summary List admissions
// @Tags Admissions
// @Produce json
// @Param search query string false "Search text"
// @Param status query string false "Status filter"
// @Param source query string false "Source filter"
// @Param course query string false "Course id"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admissions [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	filter := models.AdmissionFilter{
		Search: c.Query("search"),
		Status: models.AdmissionStatus(c.Query("status")),
		Source: models.AdmissionSource(c.Query("source")),
		Course: c.Query("course"),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	}
	items, pagination, err := h.admissions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get admission
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	admission, err := h.admissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// UpdateStatus godoc
// @Summary Change admission status
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body dto.UpdateAdmissionStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/status [put]
func (h *AdmissionHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateAdmissionStatusRequest
	if !bindJSON(c, &req, h.validator, "status") {
		return
	}
	admission, err := h.admissions.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// Form godoc
// @Summary Admission form initial state
// @Description Returns the form prefilled from the caller's staged enquiry when fromEnquiry=true and the token matches, else a blank form.
// @Tags Admissions
// @Produce json
// @Param fromEnquiry query bool false "Open from a staged enquiry"
// @Param token query string false "Conversion token"
// @Success 200 {object} response.Envelope
// @Router /admissions/form [get]
func (h *AdmissionHandler) Form(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	state := dto.AdmissionFormState{Form: dto.AdmissionForm{}}
	if fromEnquiry, _ := strconv.ParseBool(c.Query("fromEnquiry")); fromEnquiry {
		state, _ = h.prefill.Consume(c.Request.Context(), actor, c.Query("token"))
	}
	middleware.SetMeta(c, "prefilled", state.Prefilled)
	response.JSON(c, http.StatusOK, state, nil, middleware.ExtractMeta(c))
}

// Normalize godoc
// @Summary Normalise one form field
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body dto.NormalizeFieldRequest true "Field payload"
// @Success 200 {object} response.Envelope
// @Router /admissions/form/normalize [post]
func (h *AdmissionHandler) Normalize(c *gin.Context) {
	var req dto.NormalizeFieldRequest
	if !bindJSON(c, &req, h.validator, "normalize") {
		return
	}
	event := req.Event
	if event == "" {
		event = service.EventChange
	}
	response.JSON(c, http.StatusOK, dto.NormalizeFieldResponse{
		Field: req.Field,
		Value: service.NormalizeField(req.Field, req.Value, event),
	}, nil)
}

// Validate godoc
// @Summary Validate the whole form
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body dto.AdmissionForm true "Form"
// @Success 200 {object} response.Envelope
// @Router /admissions/form/validate [post]
func (h *AdmissionHandler) Validate(c *gin.Context) {
	var form dto.AdmissionForm
	if !bindJSON(c, &form, nil, "admission") {
		return
	}
	response.JSON(c, http.StatusOK, h.admissions.CheckForm(form), nil)
}

// Submit godoc
// @Summary Submit the admission form
// @Description Creates the admission; when the form came from a staged enquiry the enquiry is then marked converted. A failed reconcile still returns 201 with reconciled=false.
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body dto.SubmitAdmissionRequest true "Form and conversion token"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /admissions [post]
func (h *AdmissionHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitAdmissionRequest
	if !bindJSON(c, &req, nil, "admission") {
		return
	}
	result, err := h.admissions.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Slip godoc
// @Summary Admission acknowledgement PDF
// @Tags Admissions
// @Produce application/pdf
// @Param id path string true "Admission ID"
// @Success 200 {file} file
// @Router /admissions/{id}/slip [get]
func (h *AdmissionHandler) Slip(c *gin.Context) {
	data, filename, err := h.admissions.Slip(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", data)
}
