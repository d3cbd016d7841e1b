package dto

import "github.com/noah-isme/ims-console-api/internal/models"

// AdmissionForm is the flat, all-string admission form. Field order here is the order
// validation errors are reported in.
// Course, BatchID and FacultyID carry vocabulary ids; PreferredBatch, FacultyAllotted and
// CourseName are the display strings derived from them.
type AdmissionForm struct {
	FullName          string `json:"fullName" validate:"notblank"`
	Gender            string `json:"gender" validate:"notblank"`
	DateOfBirth       string `json:"dateOfBirth" validate:"notblank"`
	MobileNumber      string `json:"mobileNumber" validate:"notblank,phone"`
	FatherName        string `json:"fatherName" validate:"notblank"`
	FatherNumber      string `json:"fatherNumber" validate:"notblank,phone"`
	MotherName        string `json:"motherName" validate:"notblank"`
	AadharNumber      string `json:"aadharNumber" validate:"notblank,aadhar"`
	Address           string `json:"address" validate:"notblank"`
	City              string `json:"city" validate:"notblank"`
	State             string `json:"state" validate:"notblank"`
	Pincode           string `json:"pincode" validate:"notblank,pincode"`
	Place             string `json:"place" validate:"notblank"`
	LastQualification string `json:"lastQualification" validate:"notblank"`
	YearOfPassing     string `json:"yearOfPassing" validate:"notblank,passing_year"`
	SchoolCollege     string `json:"schoolCollege" validate:"notblank"`
	Course            string `json:"course" validate:"notblank"`
	PreferredBatch    string `json:"preferredBatch" validate:"notblank"`
	FacultyAllotted   string `json:"facultyAllotted" validate:"notblank"`
	Category          string `json:"category" validate:"notblank"`
	Source            string `json:"source" validate:"notblank,admission_source"`
	Email             string `json:"email" validate:"omitempty,email"`
	MotherNumber      string `json:"motherNumber" validate:"omitempty,phone"`
	ReferenceName     string `json:"referenceName"`
	ReferenceNumber   string `json:"referenceNumber" validate:"omitempty,phone"`
	Remarks           string `json:"remarks"`

	CourseName string `json:"courseName"`
	BatchID    string `json:"batchId"`
	FacultyID  string `json:"facultyId"`
	EnquiryNo  string `json:"enquiryNo"`
	EnquiryID  string `json:"enquiryId"`
}

// AdmissionFormState is what GET /admissions/form returns: the form plus whether it
// was prefilled from a staged enquiry.
type AdmissionFormState struct {
	Form            AdmissionForm `json:"form"`
	Prefilled       bool          `json:"prefilled"`
	ConversionToken string        `json:"conversionToken,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// SubmitAdmissionRequest is the body of POST /admissions.
type SubmitAdmissionRequest struct {
	AdmissionForm
	ConversionToken string `json:"conversionToken"`
}

// ConvertEnquiryRequest is the body of POST /enquiries/:id/convert. The form fills the
// admission fields the enquiry lacks.
type ConvertEnquiryRequest struct {
	AdmissionForm
}

// NormalizeFieldRequest asks for one field to be normalised as the form would on change or blur.
type NormalizeFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
	Event string `json:"event" validate:"omitempty,oneof=change blur"`
}

// NormalizeFieldResponse carries the normalised value.
type NormalizeFieldResponse struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// ValidateFormResponse reports whole-form validation.
type ValidateFormResponse struct {
	Valid      bool              `json:"valid"`
	Errors     map[string]string `json:"errors"`
	FirstError *FieldMessage     `json:"firstError,omitempty"`
}

// FieldMessage is a single field validation message.
type FieldMessage struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// UpdateAdmissionStatusRequest is the body of PUT /admissions/:id/status.
type UpdateAdmissionStatusRequest struct {
	Status  models.AdmissionStatus `json:"status" validate:"required"`
	Remarks string                 `json:"remarks"`
}
