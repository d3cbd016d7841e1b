package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ims-console-api/internal/dto"
	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
	"github.com/noah-isme/ims-console-api/pkg/export"
)

type mockAdmissionRepo struct {
	created   []models.AdmissionCreate
	createErr error
	admission *models.Admission
	updates   []models.AdmissionStatusUpdate
	filter    models.AdmissionFilter
}

func (m *mockAdmissionRepo) List(_ context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error) {
	m.filter = filter
	return []models.Admission{{ID: "adm-1"}}, 41, nil
}

func (m *mockAdmissionRepo) Get(_ context.Context, id string) (*models.Admission, error) {
	if m.admission == nil || m.admission.ID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Admission not found")
	}
	return m.admission, nil
}

func (m *mockAdmissionRepo) Create(_ context.Context, payload models.AdmissionCreate) (*models.Admission, error) {
	m.created = append(m.created, payload)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.Admission{ID: "adm-1", FullName: payload.FullName, Source: payload.Source}, nil
}

func (m *mockAdmissionRepo) UpdateStatus(_ context.Context, id string, update models.AdmissionStatusUpdate) (*models.Admission, error) {
	m.updates = append(m.updates, update)
	return &models.Admission{ID: id, Status: update.Status}, nil
}

type stubSequence struct {
	next  int
	years []int
	err   error
}

func (s *stubSequence) Next(_ context.Context, year int) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	s.years = append(s.years, year)
	return s.next, nil
}

type stubRenderer struct {
	doc export.Document
}

func (r *stubRenderer) RenderDocument(doc export.Document) ([]byte, error) {
	r.doc = doc
	return []byte("%PDF-1.3"), nil
}

type admissionFixture struct {
	*conversionFixture
	admissions *AdmissionService
	repo       *mockAdmissionRepo
	seq        *stubSequence
	pdf        *stubRenderer
}

func newAdmissionFixture(enquiries ...models.Enquiry) *admissionFixture {
	conv := newConversionFixture(enquiries...)
	repo := &mockAdmissionRepo{}
	seq := &stubSequence{}
	pdf := &stubRenderer{}
	svc := NewAdmissionService(repo, seq, conv.svc, conv.setupSvc, newTestValidator(), pdf, conv.metrics, nil, AdmissionConfig{
		NumberPrefix: "ADM",
		ListRoute:    "/admissions",
	})
	svc.now = func() time.Time { return time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC) }
	return &admissionFixture{conversionFixture: conv, admissions: svc, repo: repo, seq: seq, pdf: pdf}
}

func TestFormatAdmissionNo(t *testing.T) {
	assert.Equal(t, "ADM20250001", FormatAdmissionNo("ADM", 2025, 1))
	assert.Equal(t, "ADM20259999", FormatAdmissionNo("ADM", 2025, 9999))
	assert.Equal(t, "ADM202510000", FormatAdmissionNo("ADM", 2025, 10000))
}

func TestSubmitWalkInAdmission(t *testing.T) {
	fx := newAdmissionFixture()
	form := validForm()
	form.Course = "c2"
	form.BatchID = "b3"
	form.PreferredBatch = ""
	form.FacultyID = "f1"
	form.FacultyAllotted = ""
	form.FullName = "ravi KUMAR"

	result, err := fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: form})
	require.NoError(t, err)
	assert.Equal(t, "/admissions", result.Redirect)
	assert.False(t, result.FromEnquiry)
	assert.Equal(t, "ADM20250001", result.Admission.AdmissionNo)
	assert.Equal(t, []int{2025}, fx.seq.years)

	require.Len(t, fx.repo.created, 1)
	payload := fx.repo.created[0]
	assert.Equal(t, "Ravi Kumar", payload.FullName)
	assert.Equal(t, "Evening", payload.PreferredBatch)
	assert.Equal(t, "Anita Sharma", payload.FacultyAllotted)
	assert.Equal(t, "c2", payload.Course)
	assert.Equal(t, 2022, payload.YearOfPassing)
	assert.Equal(t, models.AdmissionSourceWalkIn, payload.Source)
	assert.Equal(t, models.AdmissionStatusAdmitted, payload.Status)
	assert.Equal(t, "2025-07-14", payload.AdmissionDate)
	assert.Zero(t, payload.TotalFees)
	assert.Empty(t, payload.Email)
	assert.Empty(t, fx.conversionFixture.repo.updates)
}

func TestSubmitInvalidFormNeverCallsBackend(t *testing.T) {
	fx := newAdmissionFixture()
	form := validForm()
	form.Pincode = "30200"
	form.MotherName = "  "

	_, err := fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: form})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "Mother's name is required", appErr.Message)
	assert.Len(t, appErr.Fields, 2)
	assert.Empty(t, fx.repo.created)
	assert.Empty(t, fx.seq.years)
}

func TestSubmitFromStagedEnquiryReconciles(t *testing.T) {
	fx := newAdmissionFixture(raviEnquiry())
	staged, err := fx.svc.Stage(context.Background(), counsellor, raviEnquiry())
	require.NoError(t, err)
	state, ok := fx.svc.Consume(context.Background(), counsellor, staged.Token)
	require.True(t, ok)

	form := completeStagedForm(state.Form)
	form.Source = "website"
	result, err := fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: form, ConversionToken: state.ConversionToken})
	require.NoError(t, err)
	assert.True(t, result.FromEnquiry)
	assert.True(t, result.Reconciled)

	payload := fx.repo.created[0]
	assert.Equal(t, models.AdmissionSourceEnquiry, payload.Source)
	assert.Equal(t, "e1", payload.EnquiryID)
	assert.Equal(t, "ENQ-0042", payload.EnquiryNo)
	assert.Equal(t, models.RemarksFromEnquiry, payload.Remarks)

	require.Len(t, fx.conversionFixture.repo.updates, 1)
	assert.Equal(t, "adm-1", fx.conversionFixture.repo.updates[0].AdmissionID)
	assert.Nil(t, fx.svc.Pending(context.Background(), counsellor, staged.Token))
}

func TestSubmitReconcileFailureStillSucceeds(t *testing.T) {
	fx := newAdmissionFixture(raviEnquiry())
	fx.conversionFixture.repo.updateErr = errors.New("connection reset")
	staged, err := fx.svc.Stage(context.Background(), counsellor, raviEnquiry())
	require.NoError(t, err)
	state, _ := fx.svc.Consume(context.Background(), counsellor, staged.Token)

	result, err := fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{
		AdmissionForm:   completeStagedForm(state.Form),
		ConversionToken: staged.Token,
	})
	require.NoError(t, err)
	assert.Equal(t, "adm-1", result.Admission.ID)
	assert.Equal(t, "/admissions", result.Redirect)
	assert.False(t, result.Reconciled)
	assert.Equal(t, []models.ReconcileStatus{models.ReconcileStatusFailed}, fx.ledger.updates)
}

func TestSubmitWithStaleTokenIsPlainSubmission(t *testing.T) {
	fx := newAdmissionFixture(raviEnquiry())
	_, err := fx.svc.Stage(context.Background(), counsellor, raviEnquiry())
	require.NoError(t, err)

	result, err := fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: validForm(), ConversionToken: "stale"})
	require.NoError(t, err)
	assert.False(t, result.FromEnquiry)
	assert.Empty(t, fx.conversionFixture.repo.updates)
	assert.Equal(t, models.AdmissionSourceWalkIn, fx.repo.created[0].Source)
}

func TestSubmitRefusesEnquiryChangedSinceStaging(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(e *models.Enquiry)
	}{
		{"rejected by another user", func(e *models.Enquiry) { e.Status = models.EnquiryStatusRejected }},
		{"converted by another user", func(e *models.Enquiry) { e.ConvertedToAdmission = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newAdmissionFixture(raviEnquiry())
			staged, err := fx.svc.Stage(context.Background(), counsellor, raviEnquiry())
			require.NoError(t, err)
			state, ok := fx.svc.Consume(context.Background(), counsellor, staged.Token)
			require.True(t, ok)
			tc.mutate(fx.conversionFixture.repo.enquiries["e1"])

			_, err = fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{
				AdmissionForm:   completeStagedForm(state.Form),
				ConversionToken: staged.Token,
			})
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrNotConvertible.Code, appErr.Code)
			assert.Equal(t, http.StatusConflict, appErr.Status)
			assert.Empty(t, fx.repo.created)
			assert.Empty(t, fx.seq.years)
			assert.Empty(t, fx.conversionFixture.repo.updates)
			assert.Empty(t, fx.ledger.records)
			assert.Nil(t, fx.svc.Pending(context.Background(), counsellor, staged.Token))
		})
	}
}

func TestSubmitPrefilledFormAfterSlotExpired(t *testing.T) {
	fx := newAdmissionFixture(raviEnquiry())
	staged, err := fx.svc.Stage(context.Background(), counsellor, raviEnquiry())
	require.NoError(t, err)
	state, ok := fx.svc.Consume(context.Background(), counsellor, staged.Token)
	require.True(t, ok)

	later := time.Now().Add(3 * time.Hour)
	fx.svc.now = func() time.Time { return later }

	_, err = fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{
		AdmissionForm:   completeStagedForm(state.Form),
		ConversionToken: staged.Token,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConversionExpired))
	assert.Empty(t, fx.repo.created)
	assert.Empty(t, fx.conversionFixture.repo.updates)
	assert.Empty(t, fx.ledger.records)
}

func TestSubmitEnquiryFormWithoutToken(t *testing.T) {
	fx := newAdmissionFixture(raviEnquiry())
	form := validForm()
	form.EnquiryID = "e1"

	_, err := fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: form})
	assert.True(t, appErrors.Is(err, appErrors.ErrConversionExpired))

	form = validForm()
	form.Source = "enquiry"
	_, err = fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: form})
	assert.True(t, appErrors.Is(err, appErrors.ErrConversionExpired))
	assert.Empty(t, fx.repo.created)
}

func TestSubmitBackendFieldErrors(t *testing.T) {
	fx := newAdmissionFixture()
	fx.repo.createErr = appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, ""), map[string]string{
		"mobileNumber": "Mobile number already registered",
		"aadharNumber": "Aadhar already registered",
	})

	_, err := fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: validForm()})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "Aadhar already registered, Mobile number already registered", appErr.Message)
	assert.Equal(t, "Aadhar already registered", appErr.Fields["aadharNumber"])
	assert.Equal(t, "Mobile number already registered", appErr.Fields["mobileNumber"])

	fx.repo.createErr = appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "Invalid email, Mobile number exists"), map[string]string{
		"email":        "Invalid email",
		"mobileNumber": "Mobile number exists",
	})
	_, err = fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: validForm()})
	assert.Equal(t, "Invalid email, Mobile number exists", appErrors.FromError(err).Message)
}

func TestSubmitGenericFailure(t *testing.T) {
	fx := newAdmissionFixture()
	fx.repo.createErr = appErrors.Clone(appErrors.ErrUpstream, "boom")

	_, err := fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: validForm()})
	assert.True(t, appErrors.Is(err, appErrors.ErrAdmissionCreateFailed))

	fx.repo.createErr = appErrors.ErrSessionExpired
	_, err = fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: validForm()})
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionExpired))
}

func TestSubmitNumberAllocationFailure(t *testing.T) {
	fx := newAdmissionFixture()
	fx.seq.err = errors.New("db down")
	_, err := fx.admissions.Submit(context.Background(), counsellor, dto.SubmitAdmissionRequest{AdmissionForm: validForm()})
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, fx.repo.created)
}

func TestConvertEnquiryAtomic(t *testing.T) {
	fx := newAdmissionFixture(raviEnquiry())
	fx.conversionFixture.repo.converted = &models.Admission{ID: "adm-5"}

	result, err := fx.admissions.ConvertEnquiry(context.Background(), counsellor, "e1", dto.ConvertEnquiryRequest{AdmissionForm: validForm()})
	require.NoError(t, err)
	assert.True(t, result.Reconciled)
	assert.Equal(t, "ADM20250001", result.Admission.AdmissionNo)
	require.Len(t, fx.conversionFixture.repo.converts, 1)
	assert.Equal(t, models.AdmissionSourceEnquiry, fx.conversionFixture.repo.converts[0].Source)
	assert.Equal(t, "e1", fx.conversionFixture.repo.converts[0].EnquiryID)
}

func TestConvertEnquiryRefusesRejected(t *testing.T) {
	e := raviEnquiry()
	e.Status = models.EnquiryStatusRejected
	fx := newAdmissionFixture(e)

	_, err := fx.admissions.ConvertEnquiry(context.Background(), counsellor, "e1", dto.ConvertEnquiryRequest{AdmissionForm: validForm()})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotConvertible))
	assert.Empty(t, fx.seq.years)
	assert.Empty(t, fx.conversionFixture.repo.converts)
}

func TestCheckForm(t *testing.T) {
	fx := newAdmissionFixture()
	form := validForm()
	form.MobileNumber = "98765-43210"
	resp := fx.admissions.CheckForm(form)
	assert.True(t, resp.Valid)
	assert.Nil(t, resp.FirstError)

	form.Gender = ""
	resp = fx.admissions.CheckForm(form)
	assert.False(t, resp.Valid)
	require.NotNil(t, resp.FirstError)
	assert.Equal(t, "gender", resp.FirstError.Field)
}

func TestAdmissionListAndStatus(t *testing.T) {
	fx := newAdmissionFixture()
	_, pagination, err := fx.admissions.List(context.Background(), models.AdmissionFilter{Status: models.AdmissionStatusActive, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 10, TotalCount: 41}, pagination)

	_, _, err = fx.admissions.List(context.Background(), models.AdmissionFilter{Source: "tv"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	updated, err := fx.admissions.UpdateStatus(context.Background(), "adm-1", dto.UpdateAdmissionStatusRequest{Status: models.AdmissionStatusDropped})
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionStatusDropped, updated.Status)

	_, err = fx.admissions.UpdateStatus(context.Background(), "adm-1", dto.UpdateAdmissionStatusRequest{Status: "paused"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAdmissionSlip(t *testing.T) {
	fx := newAdmissionFixture()
	fx.repo.admission = &models.Admission{
		ID:           "adm-1",
		AdmissionNo:  "ADM20250001",
		FullName:     "Ravi Kumar",
		AadharNumber: "123412345678",
		Course:       models.Ref{ID: "c1", Name: "DCA"},
	}

	data, filename, err := fx.admissions.Slip(context.Background(), "adm-1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))
	assert.Equal(t, "admission_ADM20250001.pdf", filename)
	assert.Equal(t, "Admission No. ADM20250001", fx.pdf.doc.Subtitle)
	assert.Equal(t, [2]string{"Aadhar number", "XXXX XXXX 5678"}, fx.pdf.doc.Sections[0].Lines[5])
	assert.Equal(t, [2]string{"Course", "DCA"}, fx.pdf.doc.Sections[3].Lines[0])

	_, _, err = fx.admissions.Slip(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

// completeStagedForm fills the fields an enquiry never carries.
func completeStagedForm(form dto.AdmissionForm) dto.AdmissionForm {
	form.MotherName = "Lata Devi"
	form.AadharNumber = "123412341234"
	form.Pincode = "302017"
	form.YearOfPassing = "2022"
	form.SchoolCollege = "Govt College"
	form.FacultyID = "f1"
	form.Category = "general"
	return form
}

func TestEndToEndRaviKumar(t *testing.T) {
	enquiry := models.Enquiry{
		ID:               "e7",
		EnquiryNo:        "ENQ20251234",
		ApplicantName:    "ravi kumar",
		ContactNo:        "9876543210",
		GuardianName:     "suresh kumar",
		GuardianContact:  "9123456780",
		Qualification:    "B.Sc",
		BatchTime:        "Morning Batch (09:00 to 11:00)",
		CourseInterested: models.Ref{Raw: "BCA"},
		Status:           models.EnquiryStatusNew,
	}
	fx := newAdmissionFixture(enquiry)

	staged, err := fx.svc.Stage(context.Background(), counsellor, enquiry)
	require.NoError(t, err)
	state, ok := fx.svc.Consume(context.Background(), counsellor, staged.Token)
	require.True(t, ok)

	form := state.Form
	assert.Equal(t, "Ravi Kumar", form.FullName)
	assert.Equal(t, "9876543210", form.MobileNumber)
	assert.Equal(t, "Suresh Kumar", form.FatherName)
	assert.Equal(t, "9123456780", form.FatherNumber)
	assert.Equal(t, "B.Sc", form.LastQualification)
	assert.Equal(t, "Morning Batch (09:00 to 11:00)", form.PreferredBatch)
	assert.Equal(t, "Converted from Enquiry...", form.Remarks)
	assert.Equal(t, "ENQ20251234", form.EnquiryNo)
	assert.Empty(t, form.Email)
	assert.Empty(t, form.DateOfBirth)
	assert.Len(t, state.Warnings, 3)
}
