package dto

import "github.com/noah-isme/ims-console-api/internal/models"

// UpdateEnquiryStatusRequest is the body of PUT /enquiries/:id/status.
type UpdateEnquiryStatusRequest struct {
	Status models.EnquiryStatus `json:"status" validate:"required"`
	Notes  string               `json:"notes"`
}
