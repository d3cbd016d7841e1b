package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ims-console-api/internal/dto"
	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
)

type admissionServiceMock struct {
	filter     models.AdmissionFilter
	items      []models.Admission
	pagination *models.Pagination
	check      dto.ValidateFormResponse
	submitted  *dto.SubmitAdmissionRequest
	result     *models.AdmissionResult
	submitErr  error
	slip       []byte
}

func (m *admissionServiceMock) List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, *models.Pagination, error) {
	m.filter = filter
	return m.items, m.pagination, nil
}

func (m *admissionServiceMock) Get(ctx context.Context, id string) (*models.Admission, error) {
	return &models.Admission{ID: id}, nil
}

func (m *admissionServiceMock) UpdateStatus(ctx context.Context, id string, req dto.UpdateAdmissionStatusRequest) (*models.Admission, error) {
	return &models.Admission{ID: id, Status: req.Status}, nil
}

func (m *admissionServiceMock) CheckForm(form dto.AdmissionForm) dto.ValidateFormResponse {
	return m.check
}

func (m *admissionServiceMock) Submit(ctx context.Context, actor models.Actor, req dto.SubmitAdmissionRequest) (*models.AdmissionResult, error) {
	m.submitted = &req
	return m.result, m.submitErr
}

func (m *admissionServiceMock) Slip(ctx context.Context, id string) ([]byte, string, error) {
	return m.slip, "admission_ADM20250001.pdf", nil
}

type prefillStub struct {
	state    dto.AdmissionFormState
	consumed []string
}

func (p *prefillStub) Consume(ctx context.Context, actor models.Actor, token string) (dto.AdmissionFormState, bool) {
	p.consumed = append(p.consumed, token)
	return p.state, p.state.Prefilled
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *appErrors.Error       `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestAdmissionHandlerFormPrefillsFromStagedEnquiry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	prefill := &prefillStub{state: dto.AdmissionFormState{
		Form:            dto.AdmissionForm{FullName: "Ravi Kumar", Source: "enquiry", EnquiryNo: "ENQ20251234"},
		Prefilled:       true,
		ConversionToken: "tok-1",
	}}
	handler := NewAdmissionHandler(&admissionServiceMock{}, prefill, fieldsValidatorStub{})

	c, w := newGinContext(http.MethodGet, "/admissions/form?fromEnquiry=true&token=tok-1", nil)
	withAdmin(c)
	handler.Form(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"tok-1"}, prefill.consumed)
	env := decodeEnvelope(t, w.Body.Bytes())
	var state dto.AdmissionFormState
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.True(t, state.Prefilled)
	assert.Equal(t, "Ravi Kumar", state.Form.FullName)
	assert.Equal(t, true, env.Meta["prefilled"])
}

func TestAdmissionHandlerFormBlankWithoutFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	prefill := &prefillStub{state: dto.AdmissionFormState{Prefilled: true}}
	handler := NewAdmissionHandler(&admissionServiceMock{}, prefill, fieldsValidatorStub{})

	c, w := newGinContext(http.MethodGet, "/admissions/form?token=tok-1", nil)
	withAdmin(c)
	handler.Form(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, prefill.consumed)
	assert.Contains(t, w.Body.String(), `"prefilled":false`)
}

func TestAdmissionHandlerNormalize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAdmissionHandler(&admissionServiceMock{}, &prefillStub{}, fieldsValidatorStub{})

	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "mobile keeps digits", body: `{"field":"mobileNumber","value":"98-765 43210"}`, want: "9876543210"},
		{name: "name title cased on blur", body: `{"field":"fullName","value":"ravi kumar","event":"blur"}`, want: "Ravi Kumar"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newGinContext(http.MethodPost, "/admissions/form/normalize", []byte(tc.body))
			handler.Normalize(c)
			require.Equal(t, http.StatusOK, w.Code)
			var resp dto.NormalizeFieldResponse
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Data, &resp))
			assert.Equal(t, tc.want, resp.Value)
		})
	}
}

func TestAdmissionHandlerValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &admissionServiceMock{check: dto.ValidateFormResponse{
		Errors:     map[string]string{"motherName": "Mother's name is required"},
		FirstError: &dto.FieldMessage{Field: "motherName", Message: "Mother's name is required"},
	}}
	handler := NewAdmissionHandler(svc, &prefillStub{}, fieldsValidatorStub{})

	c, w := newGinContext(http.MethodPost, "/admissions/form/validate", []byte(`{"fullName":"Ravi Kumar"}`))
	handler.Validate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mother's name is required")
	assert.Contains(t, w.Body.String(), `"valid":false`)
}

func TestAdmissionHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &admissionServiceMock{result: &models.AdmissionResult{
		Admission:   models.Admission{ID: "adm-1", AdmissionNo: "ADM20250001"},
		Redirect:    "/admissions",
		Reconciled:  true,
		FromEnquiry: true,
	}}
	handler := NewAdmissionHandler(svc, &prefillStub{}, fieldsValidatorStub{})

	c, w := newGinContext(http.MethodPost, "/admissions", []byte(`{"fullName":"Ravi Kumar","conversionToken":"tok-1"}`))
	withAdmin(c)
	handler.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.submitted)
	assert.Equal(t, "tok-1", svc.submitted.ConversionToken)
	assert.Equal(t, "Ravi Kumar", svc.submitted.FullName)
	assert.Contains(t, w.Body.String(), "ADM20250001")
}

func TestAdmissionHandlerSubmitFieldErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &admissionServiceMock{submitErr: appErrors.WithFields(appErrors.ErrValidation, map[string]string{"aadharNumber": "Aadhar already registered"})}
	handler := NewAdmissionHandler(svc, &prefillStub{}, fieldsValidatorStub{})

	c, w := newGinContext(http.MethodPost, "/admissions", []byte(`{"fullName":"Ravi Kumar"}`))
	withAdmin(c)
	handler.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.NotNil(t, env.Error)
	assert.Equal(t, "Aadhar already registered", env.Error.Fields["aadharNumber"])
}

func TestAdmissionHandlerListForwardsFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &admissionServiceMock{
		items:      []models.Admission{{ID: "adm-1"}},
		pagination: &models.Pagination{Page: 2, PageSize: 20, TotalCount: 41},
	}
	handler := NewAdmissionHandler(svc, &prefillStub{}, fieldsValidatorStub{})

	c, w := newGinContext(http.MethodGet, "/admissions?status=admitted&source=enquiry&page=2&limit=20", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AdmissionStatusAdmitted, svc.filter.Status)
	assert.Equal(t, models.AdmissionSourceEnquiry, svc.filter.Source)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}

func TestAdmissionHandlerSlip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAdmissionHandler(&admissionServiceMock{slip: []byte("%PDF-1.3")}, &prefillStub{}, fieldsValidatorStub{})

	c, w := newGinContext(http.MethodGet, "/admissions/adm-1/slip", nil)
	c.Params = gin.Params{{Key: "id", Value: "adm-1"}}
	handler.Slip(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "admission_ADM20250001.pdf")
	assert.Equal(t, "%PDF-1.3", w.Body.String())
}
