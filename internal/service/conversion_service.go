package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ims-console-api/internal/dto"
	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
)

const reconcileTimeout = 10 * time.Second

type stagingStore interface {
	Save(ctx context.Context, pending models.PendingConversion, ttl time.Duration) error
	Load(ctx context.Context, ownerID string) (*models.PendingConversion, error)
	Delete(ctx context.Context, ownerID string) error
	DeleteIfToken(ctx context.Context, ownerID, token string) (bool, error)
}

type conversionLedger interface {
	Create(ctx context.Context, record *models.ConversionRecord) error
	UpdateReconcile(ctx context.Context, id string, status models.ReconcileStatus, reconcileErr string, at *time.Time) error
	List(ctx context.Context, filter models.ConversionFilter) ([]models.ConversionRecord, int, error)
}

type vocabularyResolver interface {
	ResolveBatch(ctx context.Context, label string) (*models.Batch, error)
	ResolveQualification(ctx context.Context, label string) (*models.Qualification, error)
	ResolveArea(ctx context.Context, label string) (*models.Area, error)
	ResolveCourse(ctx context.Context, label string) (*models.Course, error)
}

// ConversionConfig tunes staging and ledger behaviour.
type ConversionConfig struct {
	StagingTTL    time.Duration
	FormRoute     string
	LedgerEnabled bool
}

// ConversionService bridges an enquiry into the admission form: it stages a copy of the
// enquiry for the signed-in user, hands it to the form once, and marks the enquiry
// converted after the admission exists.
type ConversionService struct {
	enquiries enquiryRepository
	staging   stagingStore
	ledger    conversionLedger
	vocab     vocabularyResolver
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ConversionConfig
	now       func() time.Time
}

// NewConversionService constructs the conversion service. ledger and metrics may be nil.
func NewConversionService(enquiries enquiryRepository, staging stagingStore, ledger conversionLedger, vocab vocabularyResolver, metrics *MetricsService, logger *zap.Logger, cfg ConversionConfig) *ConversionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StagingTTL <= 0 {
		cfg.StagingTTL = 2 * time.Hour
	}
	if cfg.FormRoute == "" {
		cfg.FormRoute = "/admissions/new"
	}
	return &ConversionService{
		enquiries: enquiries,
		staging:   staging,
		ledger:    ledger,
		vocab:     vocab,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// StagedFieldsFromEnquiry copies an enquiry onto the admission field names.
// Nothing is validated; missing values stay empty.
func StagedFieldsFromEnquiry(e models.Enquiry) models.StagedFields {
	return models.StagedFields{
		FullName:          e.ApplicantName,
		Gender:            e.Gender,
		DateOfBirth:       e.DateOfBirth,
		Email:             e.Email,
		FatherName:        e.GuardianName,
		FatherNumber:      firstNonBlank(e.GuardianContact, e.WhatsappNo),
		MobileNumber:      e.ContactNo,
		Address:           firstNonBlank(e.Address, e.Place),
		Place:             e.Place,
		City:              e.City,
		State:             e.State,
		LastQualification: e.Qualification,
		PreferredBatch:    e.BatchTime,
		InterestedCourse:  e.CourseInterested.Key(),
		ReferenceName:     e.Reference,
		EnquiryNo:         e.EnquiryNo,
		EnquiryID:         e.ID,
		Remarks:           models.RemarksFromEnquiry,
	}
}

// Stage copies enquiry into the actor's conversion slot, replacing anything staged before.
// Converted or rejected enquiries are refused without touching the slot.
func (s *ConversionService) Stage(ctx context.Context, actor models.Actor, enquiry models.Enquiry) (*models.StageResult, error) {
	if !enquiry.CanConvert() {
		return nil, notConvertible(enquiry)
	}

	now := s.now().UTC()
	pending := models.PendingConversion{
		Token:     uuid.NewString(),
		OwnerID:   actor.ID,
		EnquiryID: enquiry.ID,
		EnquiryNo: enquiry.EnquiryNo,
		Fields:    StagedFieldsFromEnquiry(enquiry),
		StagedAt:  now,
		ExpiresAt: now.Add(s.cfg.StagingTTL),
	}
	if err := s.staging.Save(ctx, pending, s.cfg.StagingTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stage conversion")
	}
	s.metrics.RecordStaged()
	s.logger.Sugar().Infow("enquiry staged for conversion", "enquiry_id", enquiry.ID, "enquiry_no", enquiry.EnquiryNo, "user_id", actor.ID)

	query := url.Values{"fromEnquiry": {"true"}, "token": {pending.Token}}
	return &models.StageResult{
		Token:     pending.Token,
		Redirect:  s.cfg.FormRoute + "?" + query.Encode(),
		Fields:    pending.Fields,
		ExpiresAt: pending.ExpiresAt,
	}, nil
}

// StageByID loads the enquiry then stages it.
func (s *ConversionService) StageByID(ctx context.Context, actor models.Actor, enquiryID string) (*models.StageResult, error) {
	enquiry, err := s.enquiries.Get(ctx, enquiryID)
	if err != nil {
		return nil, err
	}
	return s.Stage(ctx, actor, *enquiry)
}

// LoadConvertible loads the enquiry and refuses it when it can no longer be converted.
func (s *ConversionService) LoadConvertible(ctx context.Context, enquiryID string) (*models.Enquiry, error) {
	enquiry, err := s.enquiries.Get(ctx, enquiryID)
	if err != nil {
		return nil, err
	}
	if !enquiry.CanConvert() {
		return nil, notConvertible(*enquiry)
	}
	return enquiry, nil
}

// Pending returns the actor's staged conversion when token matches it, else nil.
func (s *ConversionService) Pending(ctx context.Context, actor models.Actor, token string) *models.PendingConversion {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	pending, err := s.staging.Load(ctx, actor.ID)
	if err != nil {
		s.logger.Sugar().Debugw("no usable staged conversion", "user_id", actor.ID, "error", err)
		return nil
	}
	if pending.Token != token || pending.OwnerID != actor.ID || pending.Expired(s.now()) {
		s.logger.Sugar().Debugw("staged conversion does not match", "user_id", actor.ID)
		return nil
	}
	return pending
}

// Consume turns the staged conversion into a prefilled admission form. Any problem
// with the slot yields a blank form and ok=false. The slot is left in place so a
// reload before submitting still finds it.
func (s *ConversionService) Consume(ctx context.Context, actor models.Actor, token string) (dto.AdmissionFormState, bool) {
	blank := dto.AdmissionFormState{Form: dto.AdmissionForm{}}
	pending := s.Pending(ctx, actor, token)
	if pending == nil {
		return blank, false
	}

	f := pending.Fields
	form := dto.AdmissionForm{
		FullName:          titleCase(f.FullName),
		Gender:            strings.TrimSpace(f.Gender),
		DateOfBirth:       normalizeDate(f.DateOfBirth),
		Email:             strings.TrimSpace(f.Email),
		FatherName:        titleCase(f.FatherName),
		FatherNumber:      NormalizeField("fatherNumber", f.FatherNumber, EventChange),
		MobileNumber:      NormalizeField("mobileNumber", f.MobileNumber, EventChange),
		Address:           strings.TrimSpace(f.Address),
		Place:             strings.TrimSpace(f.Place),
		City:              strings.TrimSpace(f.City),
		State:             strings.TrimSpace(f.State),
		LastQualification: strings.TrimSpace(f.LastQualification),
		PreferredBatch:    strings.TrimSpace(f.PreferredBatch),
		CourseName:        strings.TrimSpace(f.InterestedCourse),
		ReferenceName:     titleCase(f.ReferenceName),
		Remarks:           f.Remarks,
		Source:            string(models.AdmissionSourceEnquiry),
		EnquiryNo:         f.EnquiryNo,
		EnquiryID:         f.EnquiryID,
	}
	warnings := s.resolveVocabulary(ctx, &form)

	return dto.AdmissionFormState{
		Form:            form,
		Prefilled:       true,
		ConversionToken: pending.Token,
		Warnings:        warnings,
	}, true
}

// resolveVocabulary maps the enquiry's free-text values onto vocabulary entries.
// Values that match nothing, or more than one entry, are kept as text and reported.
func (s *ConversionService) resolveVocabulary(ctx context.Context, form *dto.AdmissionForm) []string {
	if s.vocab == nil {
		return nil
	}
	var warnings []string
	warn := func(err error) {
		warnings = append(warnings, appErrors.FromError(err).Message)
	}

	if form.PreferredBatch != "" {
		if batch, err := s.vocab.ResolveBatch(ctx, form.PreferredBatch); err == nil {
			form.BatchID = batch.ID
			form.PreferredBatch = batch.Label()
		} else {
			warn(err)
		}
	}
	if form.CourseName != "" {
		if course, err := s.vocab.ResolveCourse(ctx, form.CourseName); err == nil {
			form.Course = course.ID
			form.CourseName = course.Name
		} else {
			warn(err)
		}
	}
	if form.LastQualification != "" {
		if q, err := s.vocab.ResolveQualification(ctx, form.LastQualification); err == nil {
			form.LastQualification = q.Name
		} else {
			warn(err)
		}
	}
	if form.Place != "" {
		if area, err := s.vocab.ResolveArea(ctx, form.Place); err == nil {
			form.Place = area.Name
		} else {
			warn(err)
		}
	}
	return warnings
}

// Discard empties the actor's conversion slot.
func (s *ConversionService) Discard(ctx context.Context, actor models.Actor) error {
	if err := s.staging.Delete(ctx, actor.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard staged conversion")
	}
	return nil
}

// Reconcile marks the enquiry converted and links it to the admission.
func (s *ConversionService) Reconcile(ctx context.Context, enquiryID, admissionID string) error {
	converted := true
	return s.enquiries.UpdateStatus(ctx, enquiryID, models.EnquiryStatusUpdate{
		Status:               models.EnquiryStatusConverted,
		ConvertedToAdmission: &converted,
		AdmissionID:          admissionID,
	})
}

// Complete runs after an admission was created from a staged conversion: it reconciles
// the enquiry, records the outcome and frees the slot. A failed reconcile is logged and
// recorded but never undone or retried; the return value only reports it.
func (s *ConversionService) Complete(ctx context.Context, actor models.Actor, pending *models.PendingConversion, admission *models.Admission) bool {
	// the admission already exists, so finish even if the caller went away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()

	record := s.openRecord(ctx, actor, pending.EnquiryID, pending.EnquiryNo, admission, models.ConversionModeClient)

	reconciled := true
	if err := s.Reconcile(ctx, pending.EnquiryID, admission.ID); err != nil {
		reconciled = false
		s.logger.Sugar().Warnw("enquiry reconcile failed",
			"enquiry_id", pending.EnquiryID,
			"admission_id", admission.ID,
			"admission_no", admission.AdmissionNo,
			"error", err,
		)
		s.closeRecord(ctx, record, models.ReconcileStatusFailed, err.Error())
	} else {
		s.closeRecord(ctx, record, models.ReconcileStatusReconciled, "")
	}
	s.metrics.RecordConversion(models.ConversionModeClient, reconciled)

	s.Release(ctx, actor, pending)
	return reconciled
}

// Release frees the actor's slot if it still holds pending.
func (s *ConversionService) Release(ctx context.Context, actor models.Actor, pending *models.PendingConversion) {
	if _, err := s.staging.DeleteIfToken(ctx, actor.ID, pending.Token); err != nil {
		s.logger.Sugar().Warnw("failed to clear staged conversion", "user_id", actor.ID, "error", err)
	}
}

// ConvertAtomic asks the backend to create the admission and mark the enquiry converted
// in one call.
func (s *ConversionService) ConvertAtomic(ctx context.Context, actor models.Actor, enquiry models.Enquiry, payload models.AdmissionCreate) (*models.Admission, error) {
	if !enquiry.CanConvert() {
		return nil, notConvertible(enquiry)
	}
	admission, err := s.enquiries.ConvertToAdmission(ctx, enquiry.ID, payload)
	if err != nil {
		return nil, err
	}
	if admission.AdmissionNo == "" {
		admission.AdmissionNo = payload.AdmissionNo
	}

	record := s.openRecord(ctx, actor, enquiry.ID, enquiry.EnquiryNo, admission, models.ConversionModeAtomic)
	s.closeRecord(ctx, record, models.ReconcileStatusReconciled, "")
	s.metrics.RecordConversion(models.ConversionModeAtomic, true)
	s.logger.Sugar().Infow("enquiry converted", "enquiry_id", enquiry.ID, "admission_id", admission.ID, "mode", models.ConversionModeAtomic)

	if pending, err := s.staging.Load(ctx, actor.ID); err == nil && pending.EnquiryID == enquiry.ID {
		if _, err := s.staging.DeleteIfToken(ctx, actor.ID, pending.Token); err != nil {
			s.logger.Sugar().Warnw("failed to clear staged conversion", "user_id", actor.ID, "error", err)
		}
	}
	return admission, nil
}

// Ledger lists conversion records.
func (s *ConversionService) Ledger(ctx context.Context, filter models.ConversionFilter) ([]models.ConversionRecord, *models.Pagination, error) {
	if s.ledger == nil {
		return []models.ConversionRecord{}, &models.Pagination{Page: 1, PageSize: filter.PageSize}, nil
	}
	if filter.Mode != "" && filter.Mode != models.ConversionModeClient && filter.Mode != models.ConversionModeAtomic {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown conversion mode %q", filter.Mode))
	}
	if filter.ReconcileStatus != "" && !filter.ReconcileStatus.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown reconcile status %q", filter.ReconcileStatus))
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	records, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversions")
	}
	return records, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *ConversionService) openRecord(ctx context.Context, actor models.Actor, enquiryID, enquiryNo string, admission *models.Admission, mode models.ConversionMode) *models.ConversionRecord {
	if s.ledger == nil || !s.cfg.LedgerEnabled {
		return nil
	}
	record := &models.ConversionRecord{
		EnquiryID:       enquiryID,
		EnquiryNo:       enquiryNo,
		AdmissionID:     admission.ID,
		AdmissionNo:     admission.AdmissionNo,
		Mode:            mode,
		ReconcileStatus: models.ReconcileStatusPending,
		ActorID:         actor.ID,
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		s.logger.Sugar().Warnw("failed to record conversion", "enquiry_id", enquiryID, "admission_id", admission.ID, "error", err)
		return nil
	}
	return record
}

func (s *ConversionService) closeRecord(ctx context.Context, record *models.ConversionRecord, status models.ReconcileStatus, reconcileErr string) {
	if record == nil {
		return
	}
	var at *time.Time
	if status == models.ReconcileStatusReconciled {
		now := s.now().UTC()
		at = &now
	}
	if err := s.ledger.UpdateReconcile(ctx, record.ID, status, reconcileErr, at); err != nil {
		s.logger.Sugar().Warnw("failed to update conversion record", "record_id", record.ID, "error", err)
		return
	}
	record.ReconcileStatus = status
	record.ReconcileError = reconcileErr
	record.ReconciledAt = at
}

func notConvertible(e models.Enquiry) *appErrors.Error {
	if e.ConvertedToAdmission || e.Status == models.EnquiryStatusConverted {
		return appErrors.Clone(appErrors.ErrNotConvertible, fmt.Sprintf("enquiry %s is already converted", e.EnquiryNo))
	}
	return appErrors.Clone(appErrors.ErrNotConvertible, fmt.Sprintf("enquiry %s is %s and cannot be converted", e.EnquiryNo, e.Status))
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
