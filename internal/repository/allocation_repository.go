package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

const allocationColumns = `id, application_id, student_id, room_id, hall_id, status, reason, allocated_at, vacated_at, vacation_reason, renewal_expires_at`

// AllocationRepository owns allocation rows and the room occupancy
// counters they move. Every write that touches a counter runs inside a
// single transaction holding the room row lock, so the capacity check is
// always against the committed occupancy, never a stale read.
type AllocationRepository struct {
	db *sqlx.DB
}

// NewAllocationRepository constructs the repository.
func NewAllocationRepository(db *sqlx.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// AssignParams carries everything needed to seat a student.
type AssignParams struct {
	// ApplicationID is nil for manual, out-of-band assignments.
	ApplicationID *string
	StudentID     string
	RoomID        string
	HallID        string
	// Reason is set only on the manual path.
	Reason           *string
	RenewalExpiresAt time.Time
}

// Assign seats a student in a room as one atomic unit: lock room, re-check
// eligibility and capacity, enforce single active allocation per student,
// insert the allocation, bump the counter, flip the application to Alloted
// and drop any waitlist entry. Two concurrent calls for the last seat
// serialise on the row lock; the loser gets ErrRoomFull.
func (r *AllocationRepository) Assign(ctx context.Context, params AssignParams) (alloc *models.Allocation, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assign transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	room, err := lockRoom(ctx, tx, params.RoomID, params.HallID)
	if err != nil {
		return nil, err
	}
	if !room.Status.Assignable() {
		return nil, appErrors.ErrRoomNotEligible
	}
	if room.CurrentOccupancy >= room.Capacity {
		return nil, appErrors.ErrRoomFull
	}

	var existing int
	const activeQuery = `SELECT 1 FROM allocations WHERE student_id = $1 AND status = 'ACTIVE' LIMIT 1`
	if err = tx.GetContext(ctx, &existing, activeQuery, params.StudentID); err == nil {
		return nil, appErrors.ErrAlreadyAllocated
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check active allocation: %w", err)
	}
	err = nil

	now := time.Now().UTC()
	allocation := &models.Allocation{
		ID:               uuid.NewString(),
		ApplicationID:    params.ApplicationID,
		StudentID:        params.StudentID,
		RoomID:           params.RoomID,
		HallID:           params.HallID,
		Status:           models.AllocationStatusActive,
		Reason:           params.Reason,
		AllocatedAt:      now,
		RenewalExpiresAt: params.RenewalExpiresAt,
	}
	const insertQuery = `INSERT INTO allocations (id, application_id, student_id, room_id, hall_id, status, reason, allocated_at, renewal_expires_at)
        VALUES (:id, :application_id, :student_id, :room_id, :hall_id, :status, :reason, :allocated_at, :renewal_expires_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, allocation); err != nil {
		return nil, fmt.Errorf("insert allocation: %w", err)
	}

	if err = adjustOccupancy(ctx, tx, params.RoomID, +1); err != nil {
		return nil, err
	}

	if params.ApplicationID != nil {
		const statusQuery = `UPDATE applications SET status = $2 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, statusQuery, *params.ApplicationID, models.ApplicationStatusAlloted); err != nil {
			return nil, fmt.Errorf("mark application alloted: %w", err)
		}
		const waitlistQuery = `DELETE FROM waitlist_entries WHERE application_id = $1`
		if _, err = tx.ExecContext(ctx, waitlistQuery, *params.ApplicationID); err != nil {
			return nil, fmt.Errorf("remove waitlist entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assign: %w", err)
	}
	return allocation, nil
}

// Transfer moves an active allocation to a new room as an atomic pair:
// both room rows are locked in id order, the target capacity is checked,
// and either both counters move or neither does.
func (r *AllocationRepository) Transfer(ctx context.Context, allocationID, newRoomID, hallID string) (alloc *models.Allocation, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transfer transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	allocation, err := lockAllocation(ctx, tx, allocationID, hallID)
	if err != nil {
		return nil, err
	}
	if allocation.Status != models.AllocationStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "allocation is not active")
	}
	if allocation.RoomID == newRoomID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "allocation already occupies this room")
	}

	// Deterministic lock order prevents deadlock between two transfers
	// crossing the same room pair.
	roomIDs := []string{allocation.RoomID, newRoomID}
	sort.Strings(roomIDs)
	rooms := make(map[string]*models.Room, 2)
	for _, id := range roomIDs {
		room, lockErr := lockRoom(ctx, tx, id, hallID)
		if lockErr != nil {
			err = lockErr
			return nil, err
		}
		rooms[id] = room
	}

	target := rooms[newRoomID]
	if !target.Status.Assignable() {
		return nil, appErrors.ErrRoomNotEligible
	}
	if target.CurrentOccupancy >= target.Capacity {
		return nil, appErrors.ErrRoomFull
	}

	if err = adjustOccupancy(ctx, tx, allocation.RoomID, -1); err != nil {
		return nil, err
	}
	if err = adjustOccupancy(ctx, tx, newRoomID, +1); err != nil {
		return nil, err
	}

	const updateQuery = `UPDATE allocations SET room_id = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, allocationID, newRoomID); err != nil {
		return nil, fmt.Errorf("move allocation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer: %w", err)
	}
	allocation.RoomID = newRoomID
	return allocation, nil
}

// Cancel vacates an active allocation: VACATED status, vacated_at and
// reason stamped, room counter decremented. Vacated rows become
// read-only history; cancelling twice is a conflict.
func (r *AllocationRepository) Cancel(ctx context.Context, allocationID, hallID string, reason *string) (alloc *models.Allocation, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	allocation, err := lockAllocation(ctx, tx, allocationID, hallID)
	if err != nil {
		return nil, err
	}
	if allocation.Status != models.AllocationStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "allocation already vacated")
	}

	if _, err = lockRoom(ctx, tx, allocation.RoomID, hallID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	const updateQuery = `UPDATE allocations SET status = 'VACATED', vacated_at = $2, vacation_reason = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, allocationID, now, reason); err != nil {
		return nil, fmt.Errorf("vacate allocation: %w", err)
	}

	if err = adjustOccupancy(ctx, tx, allocation.RoomID, -1); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	allocation.Status = models.AllocationStatusVacated
	allocation.VacatedAt = &now
	allocation.VacationReason = reason
	return allocation, nil
}

// List returns allocation details filtered by the provided criteria.
func (r *AllocationRepository) List(ctx context.Context, filter models.AllocationFilter) ([]models.AllocationDetail, int, error) {
	base := `FROM allocations a
LEFT JOIN rooms r ON r.id = a.room_id
LEFT JOIN applications ap ON ap.id = a.application_id`
	var conditions []string
	var args []interface{}

	if filter.HallID != "" {
		conditions = append(conditions, fmt.Sprintf("a.hall_id = $%d", len(args)+1))
		args = append(args, filter.HallID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("a.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.application_id, a.student_id, a.room_id, a.hall_id, a.status, a.reason,
        a.allocated_at, a.vacated_at, a.vacation_reason, a.renewal_expires_at,
        COALESCE(r.room_number, '') AS room_number, COALESCE(r.floor_number, 0) AS floor_number,
        COALESCE(ap.student_name, '') AS student_name
        %s ORDER BY a.allocated_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var allocations []models.AllocationDetail
	if err := r.db.SelectContext(ctx, &allocations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list allocations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count allocations: %w", err)
	}
	return allocations, total, nil
}

// FindByID returns an allocation by its ID.
func (r *AllocationRepository) FindByID(ctx context.Context, id string) (*models.Allocation, error) {
	query := fmt.Sprintf("SELECT %s FROM allocations WHERE id = $1", allocationColumns)
	var allocation models.Allocation
	if err := r.db.GetContext(ctx, &allocation, query, id); err != nil {
		return nil, err
	}
	return &allocation, nil
}

// FindActiveByStudent returns the student's ACTIVE allocation if any.
func (r *AllocationRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.Allocation, error) {
	query := fmt.Sprintf("SELECT %s FROM allocations WHERE student_id = $1 AND status = 'ACTIVE'", allocationColumns)
	var allocation models.Allocation
	if err := r.db.GetContext(ctx, &allocation, query, studentID); err != nil {
		return nil, err
	}
	return &allocation, nil
}

func lockRoom(ctx context.Context, tx *sqlx.Tx, roomID, hallID string) (*models.Room, error) {
	query := fmt.Sprintf("SELECT %s FROM rooms WHERE id = $1 AND hall_id = $2 FOR UPDATE", roomColumns)
	var room models.Room
	if err := tx.GetContext(ctx, &room, query, roomID, hallID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, fmt.Errorf("lock room: %w", err)
	}
	return &room, nil
}

func lockAllocation(ctx context.Context, tx *sqlx.Tx, allocationID, hallID string) (*models.Allocation, error) {
	query := fmt.Sprintf("SELECT %s FROM allocations WHERE id = $1 AND hall_id = $2 FOR UPDATE", allocationColumns)
	var allocation models.Allocation
	if err := tx.GetContext(ctx, &allocation, query, allocationID, hallID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return nil, fmt.Errorf("lock allocation: %w", err)
	}
	return &allocation, nil
}

// adjustOccupancy moves the counter under the already-held row lock and
// keeps the AVAILABLE/OCCUPIED pair in sync with fullness. The guard
// clause makes the counter bounds part of the statement itself.
func adjustOccupancy(ctx context.Context, tx *sqlx.Tx, roomID string, delta int) error {
	const query = `UPDATE rooms
        SET current_occupancy = current_occupancy + $2,
            status = CASE
                WHEN status IN ('AVAILABLE', 'OCCUPIED') AND current_occupancy + $2 >= capacity THEN 'OCCUPIED'
                WHEN status IN ('AVAILABLE', 'OCCUPIED') THEN 'AVAILABLE'
                ELSE status
            END,
            updated_at = $3
        WHERE id = $1
          AND current_occupancy + $2 >= 0
          AND current_occupancy + $2 <= capacity`
	result, err := tx.ExecContext(ctx, query, roomID, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adjust occupancy: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust occupancy result: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrRoomFull
	}
	return nil
}
