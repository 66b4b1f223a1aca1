package models

import "time"

// NotificationEventType enumerates allocation lifecycle events pushed to
// the notification dispatcher. Delivery transport is an external concern.
type NotificationEventType string

const (
	EventInterviewScheduled    NotificationEventType = "INTERVIEW_SCHEDULED"
	EventAllocationAssigned    NotificationEventType = "ALLOCATION_ASSIGNED"
	EventAllocationVacated     NotificationEventType = "ALLOCATION_VACATED"
	EventAllocationTransferred NotificationEventType = "ALLOCATION_TRANSFERRED"
	EventWaitlisted            NotificationEventType = "WAITLISTED"
	EventRenewalDecided        NotificationEventType = "RENEWAL_DECIDED"
)

// NotificationEvent is the payload handed to the Notifier.
type NotificationEvent struct {
	Type       NotificationEventType  `json:"type"`
	HallID     string                 `json:"hall_id"`
	StudentID  string                 `json:"student_id"`
	ResourceID string                 `json:"resource_id"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}
