package models

import "time"

// RemarksFromEnquiry is the fixed remark every staged conversion carries.
const RemarksFromEnquiry = "Converted from Enquiry..."

// StagedFields is the flat field copy taken from an enquiry at stage time.
// Every value is a string and absent values are empty, never missing.
type StagedFields struct {
	FullName          string `json:"fullName"`
	Gender            string `json:"gender"`
	DateOfBirth       string `json:"dateOfBirth"`
	Email             string `json:"email"`
	FatherName        string `json:"fatherName"`
	FatherNumber      string `json:"fatherNumber"`
	MobileNumber      string `json:"mobileNumber"`
	Address           string `json:"address"`
	Place             string `json:"place"`
	City              string `json:"city"`
	State             string `json:"state"`
	LastQualification string `json:"lastQualification"`
	PreferredBatch    string `json:"preferredBatch"`
	InterestedCourse  string `json:"interestedCourse"`
	ReferenceName     string `json:"referenceName"`
	EnquiryNo         string `json:"enquiryNo"`
	EnquiryID         string `json:"enquiryId"`
	Remarks           string `json:"remarks"`
}

// PendingConversion is the single staged conversion a console user may hold.
// It is produced by staging an enquiry and consumed by the admission form holding Token.
type PendingConversion struct {
	Token     string       `json:"token"`
	OwnerID   string       `json:"ownerId"`
	EnquiryID string       `json:"enquiryId"`
	EnquiryNo string       `json:"enquiryNo"`
	Fields    StagedFields `json:"fields"`
	StagedAt  time.Time    `json:"stagedAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Expired reports whether the slot outlived its TTL at now.
func (p PendingConversion) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// StageResult is returned to the console after staging.
type StageResult struct {
	Token     string       `json:"token"`
	Redirect  string       `json:"redirect"`
	Fields    StagedFields `json:"fields"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// ConversionMode records which path produced an admission from an enquiry.
type ConversionMode string

const (
	// ConversionModeClient is create-admission followed by a separate reconcile call.
	ConversionModeClient ConversionMode = "client"
	// ConversionModeAtomic is the backend's single convert-to-admission call.
	ConversionModeAtomic ConversionMode = "atomic"
)

// ReconcileStatus tracks whether the source enquiry was marked converted.
type ReconcileStatus string

const (
	ReconcileStatusPending    ReconcileStatus = "pending"
	ReconcileStatusReconciled ReconcileStatus = "reconciled"
	ReconcileStatusFailed     ReconcileStatus = "failed"
)

// Valid reports whether s is a known reconcile status.
func (s ReconcileStatus) Valid() bool {
	switch s {
	case ReconcileStatusPending, ReconcileStatusReconciled, ReconcileStatusFailed:
		return true
	}
	return false
}

// ConversionRecord is one ledger row per admission created from an enquiry.
type ConversionRecord struct {
	ID              string          `db:"id" json:"id"`
	EnquiryID       string          `db:"enquiry_id" json:"enquiry_id"`
	EnquiryNo       string          `db:"enquiry_no" json:"enquiry_no"`
	AdmissionID     string          `db:"admission_id" json:"admission_id"`
	AdmissionNo     string          `db:"admission_no" json:"admission_no"`
	Mode            ConversionMode  `db:"mode" json:"mode"`
	ReconcileStatus ReconcileStatus `db:"reconcile_status" json:"reconcile_status"`
	ReconcileError  string          `db:"reconcile_error" json:"reconcile_error,omitempty"`
	ActorID         string          `db:"actor_id" json:"actor_id"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	ReconciledAt    *time.Time      `db:"reconciled_at" json:"reconciled_at,omitempty"`
}

// ConversionFilter narrows ledger listings.
type ConversionFilter struct {
	EnquiryID       string
	Mode            ConversionMode
	ReconcileStatus ReconcileStatus
	Page            int
	PageSize        int
}
