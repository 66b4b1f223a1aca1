package models

import "time"

// Candidate is a derived, never-persisted projection of an application
// with a confirmed interview. Recomputed on demand so score and status
// can never drift from the underlying records.
type Candidate struct {
	ApplicationID    string    `db:"application_id" json:"application_id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	StudentName      string    `db:"student_name" json:"student_name"`
	Department       string    `db:"department" json:"department"`
	Session          string    `db:"session" json:"session"`
	ProgramLevel     string    `db:"program_level" json:"program_level"`
	ApplicationScore float64   `db:"application_score" json:"application_score"`
	InterviewScore   float64   `db:"interview_score" json:"interview_score"`
	TotalScore       float64   `db:"total_score" json:"total_score"`
	SubmittedAt      time.Time `db:"submitted_at" json:"submitted_at"`
}

// CandidateFilter narrows the candidate pool before ranking. Filtering
// never changes the relative order of the remaining candidates.
type CandidateFilter struct {
	HallID       string
	ProgramLevel string
	Department   string
	Session      string
}
