package repository

import (
	"context"
	"fmt"
	"net/url"

	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/pkg/imsclient"
)

// AdmissionRepository reads and writes admissions held by the IMS backend.
type AdmissionRepository struct {
	client *imsclient.Client
}

// NewAdmissionRepository constructs the repository.
func NewAdmissionRepository(client *imsclient.Client) *AdmissionRepository {
	return &AdmissionRepository{client: client}
}

// List returns one page of admissions and the reported total.
func (r *AdmissionRepository) List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error) {
	query := pageQuery(filter.Page, filter.Limit)
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.Source != "" {
		query.Set("source", string(filter.Source))
	}
	if filter.Course != "" {
		query.Set("course", filter.Course)
	}

	var admissions []models.Admission
	meta, err := r.client.Get(ctx, "/admissions", query, &admissions)
	if err != nil {
		return nil, 0, fmt.Errorf("list admissions: %w", err)
	}
	return admissions, totalOf(meta, len(admissions)), nil
}

// Get returns a single admission.
func (r *AdmissionRepository) Get(ctx context.Context, id string) (*models.Admission, error) {
	var admission models.Admission
	if _, err := r.client.Get(ctx, "/admissions/"+url.PathEscape(id), nil, &admission); err != nil {
		return nil, fmt.Errorf("get admission: %w", err)
	}
	return &admission, nil
}

// Create posts a new admission and returns the stored record.
func (r *AdmissionRepository) Create(ctx context.Context, payload models.AdmissionCreate) (*models.Admission, error) {
	var admission models.Admission
	if err := r.client.Post(ctx, "/admissions", payload, &admission); err != nil {
		return nil, fmt.Errorf("create admission: %w", err)
	}
	return &admission, nil
}

// UpdateStatus changes the admission status.
func (r *AdmissionRepository) UpdateStatus(ctx context.Context, id string, update models.AdmissionStatusUpdate) (*models.Admission, error) {
	var admission models.Admission
	if err := r.client.Put(ctx, "/admissions/"+url.PathEscape(id)+"/status", update, &admission); err != nil {
		return nil, fmt.Errorf("update admission status: %w", err)
	}
	return &admission, nil
}
