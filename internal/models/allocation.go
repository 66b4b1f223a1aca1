package models

import "time"

// AllocationStatus tracks whether a student still holds the room.
type AllocationStatus string

const (
	AllocationStatusActive  AllocationStatus = "ACTIVE"
	AllocationStatusVacated AllocationStatus = "VACATED"
)

// Allocation binds a student to a room. At most one ACTIVE allocation may
// exist per student; VACATED rows are immutable history.
type Allocation struct {
	ID            string           `db:"id" json:"id"`
	ApplicationID *string          `db:"application_id" json:"application_id,omitempty"`
	StudentID     string           `db:"student_id" json:"student_id"`
	RoomID        string           `db:"room_id" json:"room_id"`
	HallID        string           `db:"hall_id" json:"hall_id"`
	Status        AllocationStatus `db:"status" json:"status"`
	// Reason is present only for manual, out-of-band assignments.
	Reason           *string    `db:"reason" json:"reason,omitempty"`
	AllocatedAt      time.Time  `db:"allocated_at" json:"allocated_at"`
	VacatedAt        *time.Time `db:"vacated_at" json:"vacated_at,omitempty"`
	VacationReason   *string    `db:"vacation_reason" json:"vacation_reason,omitempty"`
	RenewalExpiresAt time.Time  `db:"renewal_expires_at" json:"renewal_expires_at"`
}

// AllocationDetail enriches an Allocation with room context.
type AllocationDetail struct {
	Allocation
	RoomNumber  string `db:"room_number" json:"room_number"`
	FloorNumber int    `db:"floor_number" json:"floor_number"`
	StudentName string `db:"student_name" json:"student_name"`
}

// AllocationFilter provides filters for listing allocations.
type AllocationFilter struct {
	HallID    string
	RoomID    string
	StudentID string
	Status    AllocationStatus
	Page      int
	PageSize  int
}

// AssignAllocationRequest seats a ranked candidate in a room.
type AssignAllocationRequest struct {
	ApplicationID string `json:"application_id" validate:"required"`
	RoomID        string `json:"room_id" validate:"required"`
}

// ManualAssignRequest seats a student outside the candidate pipeline.
// The reason is mandatory and lands on the allocation record.
type ManualAssignRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	RoomID    string `json:"room_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

// StudentSearchResult answers the manual-assign lookup. Seats held in
// another hall are reported as occupied without their details.
type StudentSearchResult struct {
	StudentID  string      `json:"student_id"`
	Allocated  bool        `json:"allocated"`
	Allocation *Allocation `json:"allocation,omitempty"`
}

// TransferAllocationRequest moves an active allocation to another room.
type TransferAllocationRequest struct {
	RoomID string `json:"room_id" validate:"required"`
}

// CancelAllocationRequest vacates one allocation. Reason is optional on
// the single-cancel path.
type CancelAllocationRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// BulkCancelRequest vacates several allocations with one shared,
// mandatory reason.
type BulkCancelRequest struct {
	AllocationIDs []string `json:"allocation_ids" validate:"required,min=1,dive,required"`
	Reason        string   `json:"reason" validate:"required"`
}

// BulkCancelResult reports per-allocation outcomes of a bulk cancel.
type BulkCancelResult struct {
	Cancelled []string          `json:"cancelled"`
	Failed    map[string]string `json:"failed,omitempty"`
}
