package models

import "time"

// Interview is the 1:1 interview slot for an application. Score stays nil
// until confirmed; confirmation removes it from the scheduling queue.
type Interview struct {
	ID            string     `db:"id" json:"id"`
	ApplicationID string     `db:"application_id" json:"application_id"`
	HallID        string     `db:"hall_id" json:"hall_id"`
	Date          string     `db:"interview_date" json:"date"`
	Time          string     `db:"interview_time" json:"time"`
	Venue         string     `db:"venue" json:"venue"`
	Score         *float64   `db:"score" json:"interview_score,omitempty"`
	ConfirmedAt   *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// InterviewDetail enriches an Interview with applicant context.
type InterviewDetail struct {
	Interview
	StudentID        string            `db:"student_id" json:"student_id"`
	StudentName      string            `db:"student_name" json:"student_name"`
	Department       string            `db:"department" json:"department"`
	ApplicationScore float64           `db:"application_score" json:"application_score"`
	Status           ApplicationStatus `db:"status" json:"status"`
}

// InterviewFilter provides filters for listing interviews.
type InterviewFilter struct {
	HallID       string
	AwaitingOnly bool
	Date         string
	Page         int
	PageSize     int
}

// ScheduleInterviewsRequest batches interview slots for many applications.
type ScheduleInterviewsRequest struct {
	ApplicationIDs []string `json:"application_ids" validate:"required,min=1,dive,required"`
	Date           string   `json:"date" validate:"required"`
	Time           string   `json:"time" validate:"required"`
	Venue          string   `json:"venue" validate:"required"`
}

// ConfirmInterviewScoreRequest records the outcome of one interview.
type ConfirmInterviewScoreRequest struct {
	Score float64 `json:"score" validate:"min=0"`
}
