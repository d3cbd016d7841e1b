package repository

import (
	"context"
	"fmt"
	"net/url"

	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/pkg/imsclient"
)

// SetupRepository reads the controlled vocabularies from the IMS backend.
type SetupRepository struct {
	client *imsclient.Client
}

// NewSetupRepository constructs the repository.
func NewSetupRepository(client *imsclient.Client) *SetupRepository {
	return &SetupRepository{client: client}
}

// GetAll returns the bulk vocabulary bundle.
func (r *SetupRepository) GetAll(ctx context.Context) (*models.SetupData, error) {
	var data models.SetupData
	if _, err := r.client.Get(ctx, "/setup", nil, &data); err != nil {
		return nil, fmt.Errorf("get setup data: %w", err)
	}
	return &data, nil
}

// ActiveCourses returns the courses open for admission.
func (r *SetupRepository) ActiveCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if _, err := r.client.Get(ctx, "/courses/active", nil, &courses); err != nil {
		return nil, fmt.Errorf("list active courses: %w", err)
	}
	return courses, nil
}

// ActiveFaculty returns up to 100 active faculty members.
func (r *SetupRepository) ActiveFaculty(ctx context.Context) ([]models.Faculty, error) {
	query := url.Values{"status": {"active"}, "limit": {"100"}}
	var faculty []models.Faculty
	if _, err := r.client.Get(ctx, "/faculty", query, &faculty); err != nil {
		return nil, fmt.Errorf("list active faculty: %w", err)
	}
	return faculty, nil
}
