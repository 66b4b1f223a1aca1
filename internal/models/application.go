package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ApplicationStatus is the authoritative lifecycle enum for applications.
type ApplicationStatus string

const (
	ApplicationStatusPending    ApplicationStatus = "Pending"
	ApplicationStatusScheduled  ApplicationStatus = "Scheduled"
	ApplicationStatusRejected   ApplicationStatus = "Rejected"
	ApplicationStatusAlloted    ApplicationStatus = "Alloted"
	ApplicationStatusNotAlloted ApplicationStatus = "NotAlloted"
)

// legacyStatusAliases maps status strings still sent by older clients to
// the authoritative enum. Normalisation happens once, at the API boundary.
var legacyStatusAliases = map[string]ApplicationStatus{
	"Open":      ApplicationStatusPending,
	"Submitted": ApplicationStatusPending,
	"Selected":  ApplicationStatusScheduled,
	"Declined":  ApplicationStatusRejected,
}

// NormalizeStatus resolves a raw status string, accepting legacy aliases.
// The boolean reports whether the input named a known status at all.
func NormalizeStatus(raw string) (ApplicationStatus, bool) {
	switch ApplicationStatus(raw) {
	case ApplicationStatusPending, ApplicationStatusScheduled, ApplicationStatusRejected,
		ApplicationStatusAlloted, ApplicationStatusNotAlloted:
		return ApplicationStatus(raw), true
	}
	if mapped, ok := legacyStatusAliases[raw]; ok {
		return mapped, true
	}
	return "", false
}

// IsTerminal reports whether the status permits no further pipeline moves.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusRejected || s == ApplicationStatusAlloted || s == ApplicationStatusNotAlloted
}

// Answers holds the applicant's responses keyed by form field ID,
// persisted as JSONB. Values are strings or arrays of strings depending
// on the field type.
type Answers map[string]interface{}

// Value marshals answers to JSON for persistence.
func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		a = Answers{}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the answers map.
func (a *Answers) Scan(value interface{}) error {
	if value == nil {
		*a = Answers{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for Answers", value)
	}
	if len(data) == 0 {
		*a = Answers{}
		return nil
	}
	if err := json.Unmarshal(data, a); err != nil {
		return fmt.Errorf("unmarshal answers: %w", err)
	}
	return nil
}

// Application is a student's seat request against a hall admission form.
// Immutable once Alloted/Rejected apart from status and interview linkage.
type Application struct {
	ID               string            `db:"id" json:"id"`
	FormID           string            `db:"form_id" json:"form_id"`
	HallID           string            `db:"hall_id" json:"hall_id"`
	StudentID        string            `db:"student_id" json:"student_id"`
	StudentName      string            `db:"student_name" json:"student_name"`
	Department       string            `db:"department" json:"department"`
	Session          string            `db:"session" json:"session"`
	ProgramLevel     string            `db:"program_level" json:"program_level"`
	Answers          Answers           `db:"answers" json:"answers"`
	ApplicationScore float64           `db:"application_score" json:"application_score"`
	Status           ApplicationStatus `db:"status" json:"status"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
}

// ApplicationFilter provides filters for listing applications.
type ApplicationFilter struct {
	FormID       string
	HallID       string
	Status       ApplicationStatus
	Department   string
	Session      string
	ProgramLevel string
	Page         int
	PageSize     int
}
