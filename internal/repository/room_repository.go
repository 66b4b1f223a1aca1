package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hall-adp-api/internal/models"
)

const roomColumns = `id, hall_id, floor_number, room_number, capacity, current_occupancy, status, created_at, updated_at`

// RoomRepository handles persistence of rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms filtered by the provided criteria.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	base := "FROM rooms"
	var conditions []string
	var args []interface{}

	if filter.HallID != "" {
		conditions = append(conditions, fmt.Sprintf("hall_id = $%d", len(args)+1))
		args = append(args, filter.HallID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.FloorNumber != nil {
		conditions = append(conditions, fmt.Sprintf("floor_number = $%d", len(args)+1))
		args = append(args, *filter.FloorNumber)
	}
	if filter.AssignableOnly {
		conditions = append(conditions, "status NOT IN ('MAINTENANCE', 'UNDER_REPAIR', 'RESERVED')")
		conditions = append(conditions, "current_occupancy < capacity")
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
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY floor_number ASC, room_number ASC LIMIT %d OFFSET %d",
		roomColumns, base+clause, size, offset)

	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}
	return rooms, total, nil
}

// ListAssignable returns rooms eligible for new occupants in the hall.
func (r *RoomRepository) ListAssignable(ctx context.Context, hallID string) ([]models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms
        WHERE hall_id = $1
          AND status NOT IN ('MAINTENANCE', 'UNDER_REPAIR', 'RESERVED')
          AND current_occupancy < capacity
        ORDER BY floor_number ASC, room_number ASC`, roomColumns)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, hallID); err != nil {
		return nil, fmt.Errorf("list assignable rooms: %w", err)
	}
	return rooms, nil
}

// FindByID returns a room by its ID.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	query := fmt.Sprintf("SELECT %s FROM rooms WHERE id = $1", roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// ExistsRoomNumber checks for a duplicate room number within the hall.
func (r *RoomRepository) ExistsRoomNumber(ctx context.Context, hallID, roomNumber, excludeID string) (bool, error) {
	query := "SELECT 1 FROM rooms WHERE hall_id = $1 AND room_number = $2"
	args := []interface{}{hallID, roomNumber}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check room number: %w", err)
	}
	return true, nil
}

// Create persists a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now
	if room.Status == "" {
		room.Status = models.RoomStatusAvailable
	}
	const query = `INSERT INTO rooms (id, hall_id, floor_number, room_number, capacity, current_occupancy, status, created_at, updated_at)
        VALUES (:id, :hall_id, :floor_number, :room_number, :capacity, :current_occupancy, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update modifies room attributes. Capacity may never drop below the
// current occupancy; the WHERE guard enforces it atomically.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) (bool, error) {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms
        SET floor_number = :floor_number, room_number = :room_number, capacity = :capacity,
            status = :status, updated_at = :updated_at
        WHERE id = :id AND :capacity >= current_occupancy`
	result, err := r.db.NamedExecContext(ctx, query, room)
	if err != nil {
		return false, fmt.Errorf("update room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update room result: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a room only while it has no occupants.
func (r *RoomRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM rooms WHERE id = $1 AND current_occupancy = 0`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete room result: %w", err)
	}
	return affected > 0, nil
}

// Summary aggregates seat usage for a hall.
func (r *RoomRepository) Summary(ctx context.Context, hallID string) (*models.HallOccupancySummary, error) {
	const query = `SELECT $1 AS hall_id,
        COUNT(*) AS total_rooms,
        COALESCE(SUM(capacity), 0) AS total_capacity,
        COALESCE(SUM(current_occupancy), 0) AS total_occupied,
        COALESCE(SUM(CASE WHEN status NOT IN ('MAINTENANCE', 'UNDER_REPAIR', 'RESERVED')
            THEN capacity - current_occupancy ELSE 0 END), 0) AS assignable_seats
        FROM rooms WHERE hall_id = $1`
	var summary models.HallOccupancySummary
	if err := r.db.GetContext(ctx, &summary, query, hallID); err != nil {
		return nil, fmt.Errorf("hall summary: %w", err)
	}
	return &summary, nil
}
