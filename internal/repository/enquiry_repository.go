package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/pkg/imsclient"
)

// EnquiryRepository reads and updates enquiries held by the IMS backend.
type EnquiryRepository struct {
	client *imsclient.Client
}

// NewEnquiryRepository constructs the repository.
func NewEnquiryRepository(client *imsclient.Client) *EnquiryRepository {
	return &EnquiryRepository{client: client}
}

// List returns one page of enquiries and the total the backend reports.
func (r *EnquiryRepository) List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int, error) {
	query := pageQuery(filter.Page, filter.Limit)
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}

	var enquiries []models.Enquiry
	meta, err := r.client.Get(ctx, "/enquiries", query, &enquiries)
	if err != nil {
		return nil, 0, fmt.Errorf("list enquiries: %w", err)
	}
	return enquiries, totalOf(meta, len(enquiries)), nil
}

// Get returns a single enquiry.
func (r *EnquiryRepository) Get(ctx context.Context, id string) (*models.Enquiry, error) {
	var enquiry models.Enquiry
	if _, err := r.client.Get(ctx, "/enquiries/"+url.PathEscape(id), nil, &enquiry); err != nil {
		return nil, fmt.Errorf("get enquiry: %w", err)
	}
	return &enquiry, nil
}

// UpdateStatus writes the enquiry status, and for conversions the admission back-reference.
func (r *EnquiryRepository) UpdateStatus(ctx context.Context, id string, update models.EnquiryStatusUpdate) error {
	if err := r.client.Put(ctx, "/enquiries/"+url.PathEscape(id)+"/status", update, nil); err != nil {
		return fmt.Errorf("update enquiry status: %w", err)
	}
	return nil
}

// ConvertToAdmission calls the backend's single-step conversion. The backend answers with
// either the admission or {admission, enquiry}.
func (r *EnquiryRepository) ConvertToAdmission(ctx context.Context, id string, payload models.AdmissionCreate) (*models.Admission, error) {
	var raw json.RawMessage
	if err := r.client.Post(ctx, "/enquiries/"+url.PathEscape(id)+"/convert-to-admission", payload, &raw); err != nil {
		return nil, fmt.Errorf("convert enquiry: %w", err)
	}

	var wrapped struct {
		Admission *models.Admission `json:"admission"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Admission != nil {
		return wrapped.Admission, nil
	}
	var admission models.Admission
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &admission); err != nil {
			return nil, fmt.Errorf("decode converted admission: %w", err)
		}
	}
	return &admission, nil
}

func pageQuery(page, limit int) url.Values {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return query
}

func totalOf(meta *imsclient.Meta, fallback int) int {
	if meta != nil && meta.Total > 0 {
		return meta.Total
	}
	return fallback
}
