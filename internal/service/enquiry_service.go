package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/ims-console-api/internal/dto"
	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
)

type enquiryRepository interface {
	List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int, error)
	Get(ctx context.Context, id string) (*models.Enquiry, error)
	UpdateStatus(ctx context.Context, id string, update models.EnquiryStatusUpdate) error
	ConvertToAdmission(ctx context.Context, id string, payload models.AdmissionCreate) (*models.Admission, error)
}

// EnquiryService proxies enquiry reads and guards manual status changes.
type EnquiryService struct {
	repo   enquiryRepository
	logger *zap.Logger
}

// NewEnquiryService constructs the enquiry service.
func NewEnquiryService(repo enquiryRepository, logger *zap.Logger) *EnquiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnquiryService{repo: repo, logger: logger}
}

// List returns a page of enquiries, each marked with whether it can still be converted.
func (s *EnquiryService) List(ctx context.Context, filter models.EnquiryFilter) ([]models.EnquiryListItem, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown enquiry status %q", filter.Status))
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	filter.Search = strings.TrimSpace(filter.Search)

	enquiries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	items := make([]models.EnquiryListItem, 0, len(enquiries))
	for _, enquiry := range enquiries {
		items = append(items, models.EnquiryListItem{
			Enquiry:            enquiry,
			CanConvert:         enquiry.CanConvert(),
			AllowedTransitions: allowedTransitions(enquiry),
		})
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.Limit, TotalCount: total}, nil
}

// Get returns one enquiry.
func (s *EnquiryService) Get(ctx context.Context, id string) (*models.EnquiryListItem, error) {
	enquiry, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EnquiryListItem{
		Enquiry:            *enquiry,
		CanConvert:         enquiry.CanConvert(),
		AllowedTransitions: allowedTransitions(*enquiry),
	}, nil
}

// UpdateStatus applies a manual status change. Terminal enquiries cannot move, and
// "converted" is only ever set by a successful admission.
func (s *EnquiryService) UpdateStatus(ctx context.Context, id string, req dto.UpdateEnquiryStatusRequest) (*models.EnquiryListItem, error) {
	next := req.Status
	if !next.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown enquiry status %q", next))
	}
	if next == models.EnquiryStatusConverted {
		return nil, appErrors.WithFields(
			appErrors.Clone(appErrors.ErrValidation, "enquiries are marked converted by creating an admission"),
			map[string]string{"status": "converted cannot be set directly"},
		)
	}

	enquiry, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	current := enquiry.Status
	if !enquiry.CanConvert() {
		if enquiry.ConvertedToAdmission && !current.IsTerminal() {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enquiry is already linked to an admission and can no longer change status")
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("enquiry is %s and can no longer change status", current))
	}
	if !current.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move enquiry from %s to %s", current, next))
	}

	if err := s.repo.UpdateStatus(ctx, id, models.EnquiryStatusUpdate{Status: next, Notes: strings.TrimSpace(req.Notes)}); err != nil {
		return nil, err
	}
	s.logger.Sugar().Infow("enquiry status updated", "enquiry_id", id, "from", current, "to", next)

	enquiry.Status = next
	return &models.EnquiryListItem{
		Enquiry:            *enquiry,
		CanConvert:         enquiry.CanConvert(),
		AllowedTransitions: next.AllowedTransitions(),
	}, nil
}

// allowedTransitions is empty once an enquiry is linked to an admission, whatever its status says.
func allowedTransitions(e models.Enquiry) []models.EnquiryStatus {
	if !e.CanConvert() {
		return []models.EnquiryStatus{}
	}
	return e.Status.AllowedTransitions()
}
