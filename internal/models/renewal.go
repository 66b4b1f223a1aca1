package models

import "time"

// RenewalStatus tracks a renewal request through review.
type RenewalStatus string

const (
	RenewalStatusPending     RenewalStatus = "PENDING"
	RenewalStatusUnderReview RenewalStatus = "UNDER_REVIEW"
	RenewalStatusApproved    RenewalStatus = "APPROVED"
	RenewalStatusRejected    RenewalStatus = "REJECTED"
)

// Terminal reports whether the status permits no further decisions.
func (s RenewalStatus) Terminal() bool {
	return s == RenewalStatusApproved || s == RenewalStatusRejected
}

// RenewalRequest asks to extend an active allocation's validity. Only
// submittable while the allocation is ACTIVE and inside the pre-expiry
// window.
type RenewalRequest struct {
	ID              string        `db:"id" json:"id"`
	AllocationID    string        `db:"allocation_id" json:"allocation_id"`
	HallID          string        `db:"hall_id" json:"hall_id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	AcademicYear    string        `db:"academic_year" json:"academic_year"`
	Remarks         string        `db:"remarks" json:"remarks,omitempty"`
	ProofAttachment string        `db:"proof_attachment" json:"proof_attachment"`
	Status          RenewalStatus `db:"status" json:"status"`
	RequestedAt     time.Time     `db:"requested_at" json:"requested_at"`
	ReviewedAt      *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewerID      *string       `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewNote      *string       `db:"review_note" json:"review_note,omitempty"`
	ExtensionMonths *int          `db:"extension_months" json:"extension_months,omitempty"`
}

// RenewalFilter provides filters for listing renewal requests.
type RenewalFilter struct {
	HallID    string
	StudentID string
	Status    RenewalStatus
	Page      int
	PageSize  int
}

// SubmitRenewalRequest is the student-facing renewal submission.
type SubmitRenewalRequest struct {
	AcademicYear    string `json:"academic_year" validate:"required"`
	Remarks         string `json:"remarks,omitempty"`
	ProofAttachment string `json:"proof_attachment" validate:"required"`
}

// DecideRenewalRequest records an admin review decision.
type DecideRenewalRequest struct {
	Status          RenewalStatus `json:"status" validate:"required,oneof=UNDER_REVIEW APPROVED REJECTED"`
	Note            *string       `json:"note,omitempty"`
	ExtensionMonths *int          `json:"extension_months,omitempty"`
}

// RenewalEligibility reports whether the caller may currently request a
// renewal, and why not otherwise.
type RenewalEligibility struct {
	Eligible     bool       `json:"eligible"`
	Reason       string     `json:"reason,omitempty"`
	AllocationID string     `json:"allocation_id,omitempty"`
	WindowOpens  *time.Time `json:"window_opens,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}
