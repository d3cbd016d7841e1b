package models

import (
	"encoding/json"
	"time"
)

// AdmissionStatus is the lifecycle status of an admission.
type AdmissionStatus string

const (
	AdmissionStatusAdmitted  AdmissionStatus = "admitted"
	AdmissionStatusActive    AdmissionStatus = "active"
	AdmissionStatusCompleted AdmissionStatus = "completed"
	AdmissionStatusDropped   AdmissionStatus = "dropped"
	AdmissionStatusCancelled AdmissionStatus = "cancelled"
)

// Valid reports whether s is a known admission status.
func (s AdmissionStatus) Valid() bool {
	switch s {
	case AdmissionStatusAdmitted, AdmissionStatusActive, AdmissionStatusCompleted,
		AdmissionStatusDropped, AdmissionStatusCancelled:
		return true
	}
	return false
}

// AdmissionSource records how the applicant reached the institute.
type AdmissionSource string

const (
	AdmissionSourceWalkIn   AdmissionSource = "walk_in"
	AdmissionSourceWebsite  AdmissionSource = "website"
	AdmissionSourceEnquiry  AdmissionSource = "enquiry"
	AdmissionSourceReferral AdmissionSource = "referral"
	AdmissionSourcePhone    AdmissionSource = "phone"
	AdmissionSourceOther    AdmissionSource = "other"
)

// AdmissionSources lists every accepted source in display order.
var AdmissionSources = []AdmissionSource{
	AdmissionSourceWalkIn, AdmissionSourceWebsite, AdmissionSourceEnquiry,
	AdmissionSourceReferral, AdmissionSourcePhone, AdmissionSourceOther,
}

// Valid reports whether s is a known source.
func (s AdmissionSource) Valid() bool {
	for _, candidate := range AdmissionSources {
		if s == candidate {
			return true
		}
	}
	return false
}

// Admission is an enrollment record owned by the IMS backend.
type Admission struct {
	ID                string          `json:"_id"`
	AdmissionNo       string          `json:"admissionNo"`
	EnquiryNo         string          `json:"enquiryNo"`
	EnquiryID         string          `json:"enquiryId"`
	FullName          string          `json:"fullName"`
	Gender            string          `json:"gender"`
	DateOfBirth       string          `json:"dateOfBirth"`
	Email             string          `json:"email"`
	MobileNumber      string          `json:"mobileNumber"`
	FatherName        string          `json:"fatherName"`
	FatherNumber      string          `json:"fatherNumber"`
	MotherName        string          `json:"motherName"`
	MotherNumber      string          `json:"motherNumber"`
	AadharNumber      string          `json:"aadharNumber"`
	Address           string          `json:"address"`
	City              string          `json:"city"`
	State             string          `json:"state"`
	Pincode           string          `json:"pincode"`
	Place             string          `json:"place"`
	LastQualification string          `json:"lastQualification"`
	YearOfPassing     json.Number     `json:"yearOfPassing"`
	SchoolCollege     string          `json:"schoolCollege"`
	Course            Ref             `json:"course"`
	BatchID           string          `json:"batchId"`
	PreferredBatch    string          `json:"preferredBatch"`
	FacultyID         string          `json:"facultyId"`
	FacultyAllotted   string          `json:"facultyAllotted"`
	Category          string          `json:"category"`
	ReferenceName     string          `json:"referenceName"`
	ReferenceNumber   string          `json:"referenceNumber"`
	Remarks           string          `json:"remarks"`
	Source            AdmissionSource `json:"source"`
	Status            AdmissionStatus `json:"status"`
	TotalFees         float64         `json:"totalFees"`
	FeesPaid          float64         `json:"feesPaid"`
	FeesDue           float64         `json:"feesDue"`
	AdmissionDate     time.Time       `json:"admissionDate"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// AdmissionCreate is the body of POST /admissions. Every field is always sent;
// the backend treats some as required that the form treats as optional.
type AdmissionCreate struct {
	AdmissionNo       string          `json:"admissionNo"`
	EnquiryNo         string          `json:"enquiryNo"`
	EnquiryID         string          `json:"enquiryId"`
	FullName          string          `json:"fullName"`
	Gender            string          `json:"gender"`
	DateOfBirth       string          `json:"dateOfBirth"`
	Email             string          `json:"email"`
	MobileNumber      string          `json:"mobileNumber"`
	FatherName        string          `json:"fatherName"`
	FatherNumber      string          `json:"fatherNumber"`
	MotherName        string          `json:"motherName"`
	MotherNumber      string          `json:"motherNumber"`
	AadharNumber      string          `json:"aadharNumber"`
	Address           string          `json:"address"`
	City              string          `json:"city"`
	State             string          `json:"state"`
	Pincode           string          `json:"pincode"`
	Place             string          `json:"place"`
	LastQualification string          `json:"lastQualification"`
	YearOfPassing     int             `json:"yearOfPassing"`
	SchoolCollege     string          `json:"schoolCollege"`
	Course            string          `json:"course"`
	BatchID           string          `json:"batchId"`
	PreferredBatch    string          `json:"preferredBatch"`
	FacultyID         string          `json:"facultyId"`
	FacultyAllotted   string          `json:"facultyAllotted"`
	Category          string          `json:"category"`
	ReferenceName     string          `json:"referenceName"`
	ReferenceNumber   string          `json:"referenceNumber"`
	Remarks           string          `json:"remarks"`
	Source            AdmissionSource `json:"source"`
	Status            AdmissionStatus `json:"status"`
	TotalFees         float64         `json:"totalFees"`
	FeesPaid          float64         `json:"feesPaid"`
	FeesDue           float64         `json:"feesDue"`
	AdmissionDate     string          `json:"admissionDate"`
}

// AdmissionFilter captures the list query forwarded to the backend.
type AdmissionFilter struct {
	Search string
	Status AdmissionStatus
	Source AdmissionSource
	Course string
	Page   int
	Limit  int
}

// AdmissionStatusUpdate is the body of PUT /admissions/:id/status.
type AdmissionStatusUpdate struct {
	Status  AdmissionStatus `json:"status"`
	Remarks string          `json:"remarks,omitempty"`
}

// AdmissionResult is what a successful submit returns to the console.
type AdmissionResult struct {
	Admission   Admission `json:"admission"`
	Redirect    string    `json:"redirect"`
	Reconciled  bool      `json:"reconciled"`
	FromEnquiry bool      `json:"fromEnquiry"`
}
