package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ims-console-api/internal/dto"
	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
)

type mockEnquiryRepo struct {
	enquiries  map[string]*models.Enquiry
	total      int
	lastFilter models.EnquiryFilter
	updates    []models.EnquiryStatusUpdate
	updateErr  error
	converted  *models.Admission
	convertErr error
	converts   []models.AdmissionCreate
	calls      int
}

func newMockEnquiryRepo(enquiries ...models.Enquiry) *mockEnquiryRepo {
	repo := &mockEnquiryRepo{enquiries: make(map[string]*models.Enquiry)}
	for i := range enquiries {
		e := enquiries[i]
		repo.enquiries[e.ID] = &e
	}
	return repo
}

func (m *mockEnquiryRepo) List(_ context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int, error) {
	m.calls++
	m.lastFilter = filter
	out := make([]models.Enquiry, 0, len(m.enquiries))
	for _, id := range []string{"e1", "e2", "e3"} {
		if e, ok := m.enquiries[id]; ok {
			out = append(out, *e)
		}
	}
	return out, m.total, nil
}

func (m *mockEnquiryRepo) Get(_ context.Context, id string) (*models.Enquiry, error) {
	m.calls++
	e, ok := m.enquiries[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Enquiry not found")
	}
	clone := *e
	return &clone, nil
}

func (m *mockEnquiryRepo) UpdateStatus(_ context.Context, _ string, update models.EnquiryStatusUpdate) error {
	m.calls++
	m.updates = append(m.updates, update)
	return m.updateErr
}

func (m *mockEnquiryRepo) ConvertToAdmission(_ context.Context, _ string, payload models.AdmissionCreate) (*models.Admission, error) {
	m.calls++
	m.converts = append(m.converts, payload)
	if m.convertErr != nil {
		return nil, m.convertErr
	}
	return m.converted, nil
}

func TestEnquiryServiceListMarksConvertible(t *testing.T) {
	repo := newMockEnquiryRepo(
		models.Enquiry{ID: "e1", Status: models.EnquiryStatusNew},
		models.Enquiry{ID: "e2", Status: models.EnquiryStatusRejected},
		models.Enquiry{ID: "e3", Status: models.EnquiryStatusFollowUp, ConvertedToAdmission: true},
	)
	repo.total = 3
	svc := NewEnquiryService(repo, nil)

	items, pagination, err := svc.List(context.Background(), models.EnquiryFilter{Search: "  ravi "})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.True(t, items[0].CanConvert)
	assert.False(t, items[1].CanConvert)
	assert.Empty(t, items[1].AllowedTransitions)
	assert.False(t, items[2].CanConvert)
	assert.Empty(t, items[2].AllowedTransitions)
	assert.Equal(t, "ravi", repo.lastFilter.Search)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 3}, pagination)
}

func TestEnquiryServiceListRejectsUnknownStatus(t *testing.T) {
	svc := NewEnquiryService(newMockEnquiryRepo(), nil)
	_, _, err := svc.List(context.Background(), models.EnquiryFilter{Status: "archived"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEnquiryServiceUpdateStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    models.EnquiryStatus
		to      models.EnquiryStatus
		wantErr *appErrors.Error
	}{
		{"new to contacted", models.EnquiryStatusNew, models.EnquiryStatusContacted, nil},
		{"lost reopened", models.EnquiryStatusLost, models.EnquiryStatusFollowUp, nil},
		{"follow up to new", models.EnquiryStatusFollowUp, models.EnquiryStatusNew, appErrors.ErrInvalidTransition},
		{"rejected is terminal", models.EnquiryStatusRejected, models.EnquiryStatusContacted, appErrors.ErrInvalidTransition},
		{"converted is terminal", models.EnquiryStatusConverted, models.EnquiryStatusLost, appErrors.ErrInvalidTransition},
		{"converted cannot be set", models.EnquiryStatusNew, models.EnquiryStatusConverted, appErrors.ErrValidation},
		{"unknown status", models.EnquiryStatusNew, "archived", appErrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockEnquiryRepo(models.Enquiry{ID: "e1", Status: tc.from})
			svc := NewEnquiryService(repo, nil)

			item, err := svc.UpdateStatus(context.Background(), "e1", dto.UpdateEnquiryStatusRequest{Status: tc.to, Notes: " called back "})
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, appErrors.Is(err, tc.wantErr), err.Error())
				assert.Empty(t, repo.updates)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, item.Status)
			require.Len(t, repo.updates, 1)
			assert.Equal(t, models.EnquiryStatusUpdate{Status: tc.to, Notes: "called back"}, repo.updates[0])
		})
	}
}

func TestEnquiryServiceUpdateStatusLinkedToAdmission(t *testing.T) {
	repo := newMockEnquiryRepo(models.Enquiry{ID: "e1", Status: models.EnquiryStatusFollowUp, ConvertedToAdmission: true})
	svc := NewEnquiryService(repo, nil)

	_, err := svc.UpdateStatus(context.Background(), "e1", dto.UpdateEnquiryStatusRequest{Status: models.EnquiryStatusLost})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
	assert.Contains(t, err.Error(), "linked to an admission")
	assert.Empty(t, repo.updates)
}

func TestEnquiryServiceUpdateStatusNotFound(t *testing.T) {
	svc := NewEnquiryService(newMockEnquiryRepo(), nil)
	_, err := svc.UpdateStatus(context.Background(), "missing", dto.UpdateEnquiryStatusRequest{Status: models.EnquiryStatusLost})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
