package service

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type roomStore interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	ListAssignable(ctx context.Context, hallID string) ([]models.Room, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	ExistsRoomNumber(ctx context.Context, hallID, roomNumber, excludeID string) (bool, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Summary(ctx context.Context, hallID string) (*models.HallOccupancySummary, error)
}

// RoomService manages the hall's room inventory. Occupancy counters are
// owned by the allocation transactions; this layer only ever changes
// room attributes under guards that respect them.
type RoomService struct {
	rooms     roomStore
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService builds a RoomService with sane defaults.
func NewRoomService(rooms roomStore, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{rooms: rooms, cache: cache, validator: validate, logger: logger}
}

// List returns rooms in the admin's hall.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter, claims *models.JWTClaims) ([]models.Room, int, error) {
	if claims == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	filter.HallID = claims.HallID
	rooms, total, err := s.rooms.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, total, nil
}

// Get returns one room, hall scoped.
func (s *RoomService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Room, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if claims.HallID != "" && room.HallID != claims.HallID {
		return nil, appErrors.ErrForbidden
	}
	return room, nil
}

// Create adds a room to the hall. Room numbers must be unique within the
// hall and carry the floor number as their prefix.
func (s *RoomService) Create(ctx context.Context, req models.RoomRequest, claims *models.JWTClaims) (*models.Room, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	exists, err := s.rooms.ExistsRoomNumber(ctx, claims.HallID, req.RoomNumber, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "room number already exists in this hall")
	}

	room := &models.Room{
		HallID:      claims.HallID,
		FloorNumber: req.FloorNumber,
		RoomNumber:  req.RoomNumber,
		Capacity:    req.Capacity,
		Status:      req.Status,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	s.invalidate(ctx, claims.HallID)
	return room, nil
}

// Update changes room attributes. Shrinking capacity below the current
// occupancy is refused.
func (s *RoomService) Update(ctx context.Context, id string, req models.RoomRequest, claims *models.JWTClaims) (*models.Room, error) {
	room, err := s.Get(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	if req.RoomNumber != room.RoomNumber {
		exists, err := s.rooms.ExistsRoomNumber(ctx, room.HallID, req.RoomNumber, room.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room number")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "room number already exists in this hall")
		}
	}

	room.FloorNumber = req.FloorNumber
	room.RoomNumber = req.RoomNumber
	room.Capacity = req.Capacity
	if req.Status != "" {
		room.Status = req.Status
	}

	updated, err := s.rooms.Update(ctx, room)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrConflict, "capacity cannot drop below current occupancy")
	}
	s.invalidate(ctx, room.HallID)
	return room, nil
}

// Delete removes an empty room. Occupied rooms cannot be deleted.
func (s *RoomService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	room, err := s.Get(ctx, id, claims)
	if err != nil {
		return err
	}
	deleted, err := s.rooms.Delete(ctx, room.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrConflict, "room still has occupants")
	}
	s.invalidate(ctx, room.HallID)
	return nil
}

// Assignable returns the rooms currently open for new occupants.
func (s *RoomService) Assignable(ctx context.Context, claims *models.JWTClaims) ([]models.Room, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	rooms, err := s.rooms.ListAssignable(ctx, claims.HallID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignable rooms")
	}
	return rooms, nil
}

// Summary aggregates seat usage for the admin's hall.
func (s *RoomService) Summary(ctx context.Context, claims *models.JWTClaims) (*models.HallOccupancySummary, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	summary, err := s.rooms.Summary(ctx, claims.HallID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall summary")
	}
	return summary, nil
}

func (s *RoomService) validateRequest(req models.RoomRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	if req.Status != "" && !validRoomStatus(req.Status) {
		return appErrors.Clone(appErrors.ErrValidation, "unknown room status")
	}
	// Room numbers encode their floor: room 101 sits on floor 1.
	if !strings.HasPrefix(req.RoomNumber, strconv.Itoa(req.FloorNumber)) {
		return appErrors.Clone(appErrors.ErrValidation, "room number must start with its floor number")
	}
	return nil
}

func validRoomStatus(status models.RoomStatus) bool {
	switch status {
	case models.RoomStatusAvailable, models.RoomStatusOccupied, models.RoomStatusMaintenance,
		models.RoomStatusUnderRepair, models.RoomStatusReserved:
		return true
	}
	return false
}

func (s *RoomService) invalidate(ctx context.Context, hallID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, hallID)
	}
}
