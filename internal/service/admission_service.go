package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ims-console-api/internal/dto"
	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
	"github.com/noah-isme/ims-console-api/pkg/export"
)

// Submission outcomes reported to metrics.
const (
	submissionCreated = "created"
	submissionInvalid = "invalid"
	submissionFailed  = "failed"
)

type admissionRepository interface {
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error)
	Get(ctx context.Context, id string) (*models.Admission, error)
	Create(ctx context.Context, payload models.AdmissionCreate) (*models.Admission, error)
	UpdateStatus(ctx context.Context, id string, update models.AdmissionStatusUpdate) (*models.Admission, error)
}

type admissionNumberSequence interface {
	Next(ctx context.Context, year int) (int, error)
}

type formVocabulary interface {
	ResolveBatch(ctx context.Context, label string) (*models.Batch, error)
	ResolveCourse(ctx context.Context, label string) (*models.Course, error)
	ResolveFaculty(ctx context.Context, label string) (*models.Faculty, error)
}

type documentRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
}

// AdmissionConfig controls numbering and post-submit navigation.
type AdmissionConfig struct {
	NumberPrefix string
	ListRoute    string
}

// AdmissionService validates and submits admission forms and proxies admission reads.
type AdmissionService struct {
	repo        admissionRepository
	numbers     admissionNumberSequence
	conversions *ConversionService
	vocab       formVocabulary
	validator   *AdmissionValidator
	pdf         documentRenderer
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         AdmissionConfig
	now         func() time.Time
}

// NewAdmissionService constructs the admission service.
func NewAdmissionService(
	repo admissionRepository,
	numbers admissionNumberSequence,
	conversions *ConversionService,
	vocab formVocabulary,
	validator *AdmissionValidator,
	pdf documentRenderer,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg AdmissionConfig,
) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = NewAdmissionValidator(nil)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "ADM"
	}
	if cfg.ListRoute == "" {
		cfg.ListRoute = "/admissions"
	}
	return &AdmissionService{
		repo:        repo,
		numbers:     numbers,
		conversions: conversions,
		vocab:       vocab,
		validator:   validator,
		pdf:         pdf,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// FormatAdmissionNo renders prefix, year and a zero-padded sequence: ADM20250001.
// Sequences past 9999 simply grow wider.
func FormatAdmissionNo(prefix string, year, seq int) string {
	return fmt.Sprintf("%s%d%04d", prefix, year, seq)
}

// CheckForm normalises and validates a form without submitting it.
func (s *AdmissionService) CheckForm(form dto.AdmissionForm) dto.ValidateFormResponse {
	errs := s.validator.Validate(NormalizeForm(form))
	return dto.ValidateFormResponse{
		Valid:      len(errs) == 0,
		Errors:     errs,
		FirstError: s.validator.FirstError(errs),
	}
}

// Submit validates the form, creates the admission and, when the form came from a staged
// enquiry, reconciles that enquiry. A failed reconcile does not fail the submit.
func (s *AdmissionService) Submit(ctx context.Context, actor models.Actor, req dto.SubmitAdmissionRequest) (*models.AdmissionResult, error) {
	form := req.AdmissionForm
	pending := s.conversions.Pending(ctx, actor, req.ConversionToken)
	if pending == nil && carriesEnquiry(form) {
		s.logger.Sugar().Infow("refusing enquiry form without a staged conversion", "enquiry_id", form.EnquiryID, "user_id", actor.ID)
		return nil, appErrors.Clone(appErrors.ErrConversionExpired, "")
	}
	if pending != nil {
		// the enquiry may have been rejected or converted by someone else since it was staged
		if _, err := s.conversions.LoadConvertible(ctx, pending.EnquiryID); err != nil {
			if appErrors.Is(err, appErrors.ErrNotConvertible) {
				s.conversions.Release(ctx, actor, pending)
			}
			return nil, err
		}
		form.Source = string(models.AdmissionSourceEnquiry)
		form.EnquiryID = pending.EnquiryID
		form.EnquiryNo = pending.EnquiryNo
	}

	payload, err := s.preparePayload(ctx, form)
	if err != nil {
		return nil, err
	}

	admission, err := s.repo.Create(ctx, *payload)
	if err != nil {
		s.metrics.RecordSubmission(submissionFailed)
		return nil, createError(err)
	}
	if admission.AdmissionNo == "" {
		admission.AdmissionNo = payload.AdmissionNo
	}
	s.metrics.RecordSubmission(submissionCreated)
	s.logger.Sugar().Infow("admission created",
		"admission_id", admission.ID,
		"admission_no", admission.AdmissionNo,
		"source", payload.Source,
		"user_id", actor.ID,
	)

	result := &models.AdmissionResult{Admission: *admission, Redirect: s.cfg.ListRoute}
	if pending != nil {
		result.FromEnquiry = true
		result.Reconciled = s.conversions.Complete(ctx, actor, pending, admission)
	}
	return result, nil
}

// carriesEnquiry reports whether a form claims to come from an enquiry.
func carriesEnquiry(form dto.AdmissionForm) bool {
	return strings.TrimSpace(form.EnquiryID) != "" ||
		strings.TrimSpace(form.EnquiryNo) != "" ||
		strings.EqualFold(strings.TrimSpace(form.Source), string(models.AdmissionSourceEnquiry))
}

// ConvertEnquiry creates the admission through the backend's single convert call.
func (s *AdmissionService) ConvertEnquiry(ctx context.Context, actor models.Actor, enquiryID string, req dto.ConvertEnquiryRequest) (*models.AdmissionResult, error) {
	enquiry, err := s.conversions.LoadConvertible(ctx, enquiryID)
	if err != nil {
		return nil, err
	}
	form := req.AdmissionForm
	form.Source = string(models.AdmissionSourceEnquiry)
	form.EnquiryID = enquiry.ID
	form.EnquiryNo = enquiry.EnquiryNo

	payload, err := s.preparePayload(ctx, form)
	if err != nil {
		return nil, err
	}
	admission, err := s.conversions.ConvertAtomic(ctx, actor, *enquiry, *payload)
	if err != nil {
		s.metrics.RecordSubmission(submissionFailed)
		return nil, createError(err)
	}
	s.metrics.RecordSubmission(submissionCreated)
	return &models.AdmissionResult{
		Admission:   *admission,
		Redirect:    s.cfg.ListRoute,
		Reconciled:  true,
		FromEnquiry: true,
	}, nil
}

// preparePayload derives display strings, normalises, validates and numbers the form.
func (s *AdmissionService) preparePayload(ctx context.Context, form dto.AdmissionForm) (*models.AdmissionCreate, error) {
	form = NormalizeForm(s.deriveDisplay(ctx, form))
	if errs := s.validator.Validate(form); len(errs) > 0 {
		s.metrics.RecordSubmission(submissionInvalid)
		first := s.validator.FirstError(errs)
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, first.Message), errs)
	}

	year := s.now().Year()
	seq, err := s.numbers.Next(ctx, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate admission number")
	}
	payload := buildAdmissionPayload(form, FormatAdmissionNo(s.cfg.NumberPrefix, year, seq), s.now())
	return &payload, nil
}

// deriveDisplay fills the display strings of the id-carrying fields. Ids that no longer
// resolve keep whatever display string the form sent.
func (s *AdmissionService) deriveDisplay(ctx context.Context, form dto.AdmissionForm) dto.AdmissionForm {
	if s.vocab == nil {
		return form
	}
	if form.BatchID != "" {
		if batch, err := s.vocab.ResolveBatch(ctx, form.BatchID); err == nil {
			form.PreferredBatch = batch.Label()
		}
	}
	if form.FacultyID != "" {
		if faculty, err := s.vocab.ResolveFaculty(ctx, form.FacultyID); err == nil {
			form.FacultyAllotted = faculty.Name
		}
	}
	if form.Course != "" {
		if course, err := s.vocab.ResolveCourse(ctx, form.Course); err == nil {
			form.Course = course.ID
			form.CourseName = course.Name
		}
	}
	return form
}

// buildAdmissionPayload assembles the create body with every field present.
func buildAdmissionPayload(form dto.AdmissionForm, admissionNo string, now time.Time) models.AdmissionCreate {
	year, _ := strconv.Atoi(form.YearOfPassing)
	return models.AdmissionCreate{
		AdmissionNo:       admissionNo,
		EnquiryNo:         form.EnquiryNo,
		EnquiryID:         form.EnquiryID,
		FullName:          form.FullName,
		Gender:            form.Gender,
		DateOfBirth:       form.DateOfBirth,
		Email:             form.Email,
		MobileNumber:      form.MobileNumber,
		FatherName:        form.FatherName,
		FatherNumber:      form.FatherNumber,
		MotherName:        form.MotherName,
		MotherNumber:      form.MotherNumber,
		AadharNumber:      form.AadharNumber,
		Address:           form.Address,
		City:              form.City,
		State:             form.State,
		Pincode:           form.Pincode,
		Place:             form.Place,
		LastQualification: form.LastQualification,
		YearOfPassing:     year,
		SchoolCollege:     form.SchoolCollege,
		Course:            form.Course,
		BatchID:           form.BatchID,
		PreferredBatch:    form.PreferredBatch,
		FacultyID:         form.FacultyID,
		FacultyAllotted:   form.FacultyAllotted,
		Category:          form.Category,
		ReferenceName:     form.ReferenceName,
		ReferenceNumber:   form.ReferenceNumber,
		Remarks:           form.Remarks,
		Source:            models.AdmissionSource(form.Source),
		Status:            models.AdmissionStatusAdmitted,
		AdmissionDate:     now.Format("2006-01-02"),
	}
}

// createError keeps backend field errors, with their messages joined as the alert text, and
// session failures as they are. Anything else becomes a generic create failure.
func createError(err error) error {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrValidation.Code:
		if appErr.Message == "" || appErr.Message == appErrors.ErrValidation.Message {
			if joined := joinFieldMessages(appErr.Fields); joined != "" {
				return appErrors.Clone(appErr, joined)
			}
		}
		return appErr
	case appErrors.ErrSessionExpired.Code, appErrors.ErrUnauthorized.Code, appErrors.ErrForbidden.Code, appErrors.ErrNotConvertible.Code:
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrAdmissionCreateFailed.Code, appErrors.ErrAdmissionCreateFailed.Status, appErrors.ErrAdmissionCreateFailed.Message)
}

// joinFieldMessages concatenates field messages in field order for the alert text.
func joinFieldMessages(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for field, message := range fields {
		if strings.TrimSpace(message) != "" {
			names = append(names, field)
		}
	}
	sort.Strings(names)
	messages := make([]string, 0, len(names))
	for _, field := range names {
		messages = append(messages, fields[field])
	}
	return strings.Join(messages, ", ")
}

// List returns a page of admissions.
func (s *AdmissionService) List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown admission status %q", filter.Status))
	}
	if filter.Source != "" && !filter.Source.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown admission source %q", filter.Source))
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	filter.Search = strings.TrimSpace(filter.Search)

	admissions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	return admissions, &models.Pagination{Page: filter.Page, PageSize: filter.Limit, TotalCount: total}, nil
}

// Get returns one admission.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.Admission, error) {
	return s.repo.Get(ctx, id)
}

// UpdateStatus changes an admission's status.
func (s *AdmissionService) UpdateStatus(ctx context.Context, id string, req dto.UpdateAdmissionStatusRequest) (*models.Admission, error) {
	if !req.Status.Valid() {
		return nil, appErrors.WithFields(
			appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown admission status %q", req.Status)),
			map[string]string{"status": "Status is not a recognised admission status"},
		)
	}
	admission, err := s.repo.UpdateStatus(ctx, id, models.AdmissionStatusUpdate{Status: req.Status, Remarks: strings.TrimSpace(req.Remarks)})
	if err != nil {
		return nil, err
	}
	s.logger.Sugar().Infow("admission status updated", "admission_id", id, "status", req.Status)
	return admission, nil
}

// Slip renders the one-page admission acknowledgement and its download filename.
func (s *AdmissionService) Slip(ctx context.Context, id string) ([]byte, string, error) {
	admission, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	doc := admissionSlip(*admission, s.now())
	data, err := s.pdf.RenderDocument(doc)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render admission slip")
	}
	name := admission.AdmissionNo
	if name == "" {
		name = admission.ID
	}
	return data, fmt.Sprintf("admission_%s.pdf", sanitizeFilename(name)), nil
}

func admissionSlip(a models.Admission, now time.Time) export.Document {
	admissionDate := ""
	if !a.AdmissionDate.IsZero() {
		admissionDate = a.AdmissionDate.Format("02 Jan 2006")
	}
	return export.Document{
		Title:    "Admission Acknowledgement",
		Subtitle: fmt.Sprintf("Admission No. %s", a.AdmissionNo),
		Sections: []export.Section{
			{Title: "Student", Lines: [][2]string{
				{"Full name", a.FullName},
				{"Gender", a.Gender},
				{"Date of birth", a.DateOfBirth},
				{"Mobile number", a.MobileNumber},
				{"Email", a.Email},
				{"Aadhar number", maskAadhar(a.AadharNumber)},
			}},
			{Title: "Family", Lines: [][2]string{
				{"Father's name", a.FatherName},
				{"Father's number", a.FatherNumber},
				{"Mother's name", a.MotherName},
			}},
			{Title: "Address", Lines: [][2]string{
				{"Address", a.Address},
				{"Area", a.Place},
				{"City", a.City},
				{"State", a.State},
				{"Pincode", a.Pincode},
			}},
			{Title: "Course", Lines: [][2]string{
				{"Course", a.Course.Display()},
				{"Preferred batch", a.PreferredBatch},
				{"Faculty allotted", a.FacultyAllotted},
				{"Admission date", admissionDate},
				{"Source", string(a.Source)},
				{"Enquiry no.", a.EnquiryNo},
			}},
			{Title: "Fees", Lines: [][2]string{
				{"Total", fmt.Sprintf("%.2f", a.TotalFees)},
				{"Paid", fmt.Sprintf("%.2f", a.FeesPaid)},
				{"Due", fmt.Sprintf("%.2f", a.FeesDue)},
			}},
		},
		Footer:    "This acknowledgement is system generated and does not require a signature.",
		Generated: now,
	}
}

func maskAadhar(value string) string {
	if len(value) != 12 {
		return value
	}
	return "XXXX XXXX " + value[8:]
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
