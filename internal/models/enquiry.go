package models

import "time"

// EnquiryStatus is the lifecycle status of a lead.
type EnquiryStatus string

const (
	EnquiryStatusNew       EnquiryStatus = "new"
	EnquiryStatusContacted EnquiryStatus = "contacted"
	EnquiryStatusFollowUp  EnquiryStatus = "follow_up"
	EnquiryStatusConverted EnquiryStatus = "converted"
	EnquiryStatusRejected  EnquiryStatus = "rejected"
	EnquiryStatusLost      EnquiryStatus = "lost"
)

// converted is never a manual target; only a successful admission sets it.
var enquiryTransitions = map[EnquiryStatus][]EnquiryStatus{
	EnquiryStatusNew:       {EnquiryStatusContacted, EnquiryStatusFollowUp, EnquiryStatusRejected, EnquiryStatusLost},
	EnquiryStatusContacted: {EnquiryStatusFollowUp, EnquiryStatusRejected, EnquiryStatusLost},
	EnquiryStatusFollowUp:  {EnquiryStatusContacted, EnquiryStatusRejected, EnquiryStatusLost},
	EnquiryStatusLost:      {EnquiryStatusContacted, EnquiryStatusFollowUp},
}

// Valid reports whether s is a known status.
func (s EnquiryStatus) Valid() bool {
	switch s {
	case EnquiryStatusNew, EnquiryStatusContacted, EnquiryStatusFollowUp,
		EnquiryStatusConverted, EnquiryStatusRejected, EnquiryStatusLost:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s EnquiryStatus) IsTerminal() bool {
	return s == EnquiryStatusConverted || s == EnquiryStatusRejected
}

// AllowedTransitions lists the statuses a manual update may move s to.
func (s EnquiryStatus) AllowedTransitions() []EnquiryStatus {
	next := enquiryTransitions[s]
	out := make([]EnquiryStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether a manual update from s to next is allowed.
func (s EnquiryStatus) CanTransitionTo(next EnquiryStatus) bool {
	for _, candidate := range enquiryTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Enquiry is a lead record owned by the IMS backend.
type Enquiry struct {
	ID                   string        `json:"_id"`
	EnquiryNo            string        `json:"enquiryNo"`
	ApplicantName        string        `json:"applicantName"`
	Gender               string        `json:"gender"`
	DateOfBirth          string        `json:"dateOfBirth"`
	ContactNo            string        `json:"contactNo"`
	WhatsappNo           string        `json:"whatsappNo"`
	GuardianName         string        `json:"guardianName"`
	GuardianContact      string        `json:"guardianContact"`
	Email                string        `json:"email"`
	Qualification        string        `json:"qualification"`
	CourseInterested     Ref           `json:"courseInterested"`
	BatchTime            string        `json:"batchTime"`
	Place                string        `json:"place"`
	City                 string        `json:"city"`
	State                string        `json:"state"`
	Address              string        `json:"address"`
	Reference            string        `json:"reference"`
	EnquiryMethod        string        `json:"enquiryMethod"`
	Status               EnquiryStatus `json:"status"`
	ConvertedToAdmission bool          `json:"convertedToAdmission"`
	AdmissionID          Ref           `json:"admissionId"`
	Remarks              string        `json:"remarks"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// CanConvert reports whether the enquiry may still be turned into an admission.
func (e Enquiry) CanConvert() bool {
	return !e.Status.IsTerminal() && !e.ConvertedToAdmission
}

// EnquiryListItem decorates an enquiry with what the console may do with it.
type EnquiryListItem struct {
	Enquiry
	CanConvert         bool            `json:"canConvert"`
	AllowedTransitions []EnquiryStatus `json:"allowedTransitions"`
}

// EnquiryFilter captures the list query forwarded to the backend.
type EnquiryFilter struct {
	Search string
	Status EnquiryStatus
	Page   int
	Limit  int
}

// EnquiryStatusUpdate is the body of PUT /enquiries/:id/status.
type EnquiryStatusUpdate struct {
	Status               EnquiryStatus `json:"status"`
	Notes                string        `json:"notes,omitempty"`
	ConvertedToAdmission *bool         `json:"convertedToAdmission,omitempty"`
	AdmissionID          string        `json:"admissionId,omitempty"`
}
