package models

import "time"

// WaitlistEntry holds a candidate who could not be immediately seated.
// Position comes from a per-hall monotonic counter: insertion order,
// never reused after removals, never re-sorted by score.
type WaitlistEntry struct {
	ID            string    `db:"id" json:"id"`
	ApplicationID string    `db:"application_id" json:"application_id"`
	HallID        string    `db:"hall_id" json:"hall_id"`
	Position      int       `db:"position" json:"position"`
	ScoreSnapshot float64   `db:"score_snapshot" json:"score_snapshot"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// WaitlistEntryDetail enriches an entry with applicant context.
type WaitlistEntryDetail struct {
	WaitlistEntry
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	Department  string `db:"department" json:"department"`
}

// AddWaitlistRequest places an application on the hall waitlist.
type AddWaitlistRequest struct {
	ApplicationID string `json:"application_id" validate:"required"`
}

// PromoteWaitlistRequest seats a waitlisted candidate in a chosen room.
type PromoteWaitlistRequest struct {
	RoomID string `json:"room_id" validate:"required"`
}

// BulkRemoveWaitlistRequest removes several waitlist entries at once.
type BulkRemoveWaitlistRequest struct {
	EntryIDs []string `json:"entry_ids" validate:"required,min=1,dive,required"`
}
