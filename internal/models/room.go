package models

import "time"

// RoomStatus enumerates room availability states. Rooms in maintenance,
// repair, or reserved states are excluded from assignment regardless of
// occupancy.
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "AVAILABLE"
	RoomStatusOccupied    RoomStatus = "OCCUPIED"
	RoomStatusMaintenance RoomStatus = "MAINTENANCE"
	RoomStatusUnderRepair RoomStatus = "UNDER_REPAIR"
	RoomStatusReserved    RoomStatus = "RESERVED"
)

// Assignable reports whether the status permits new occupants.
func (s RoomStatus) Assignable() bool {
	switch s {
	case RoomStatusMaintenance, RoomStatusUnderRepair, RoomStatusReserved:
		return false
	}
	return true
}

// Room is a hall room with a denormalised occupancy counter. The counter
// is only ever moved inside a transaction that holds the row lock, so
// 0 <= current_occupancy <= capacity holds at all times.
type Room struct {
	ID               string     `db:"id" json:"id"`
	HallID           string     `db:"hall_id" json:"hall_id"`
	FloorNumber      int        `db:"floor_number" json:"floor_number"`
	RoomNumber       string     `db:"room_number" json:"room_number"`
	Capacity         int        `db:"capacity" json:"capacity"`
	CurrentOccupancy int        `db:"current_occupancy" json:"current_occupancy"`
	Status           RoomStatus `db:"status" json:"status"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// RoomFilter provides filters for listing rooms.
type RoomFilter struct {
	HallID         string
	Status         RoomStatus
	FloorNumber    *int
	AssignableOnly bool
	Page           int
	PageSize       int
}

// RoomRequest creates or updates a room.
type RoomRequest struct {
	FloorNumber int        `json:"floor_number" validate:"min=0"`
	RoomNumber  string     `json:"room_number" validate:"required"`
	Capacity    int        `json:"capacity" validate:"required,min=1"`
	Status      RoomStatus `json:"status,omitempty"`
}

// HallOccupancySummary aggregates seat usage for the dashboard endpoint.
type HallOccupancySummary struct {
	HallID         string `db:"hall_id" json:"hall_id"`
	TotalRooms     int    `db:"total_rooms" json:"total_rooms"`
	TotalCapacity  int    `db:"total_capacity" json:"total_capacity"`
	TotalOccupied  int    `db:"total_occupied" json:"total_occupied"`
	AssignableSeat int    `db:"assignable_seats" json:"assignable_seats"`
}
