package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
	"github.com/noah-isme/hall-adp-api/pkg/response"
)

type roomService interface {
	List(ctx context.Context, filter models.RoomFilter, claims *models.JWTClaims) ([]models.Room, int, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Room, error)
	Create(ctx context.Context, req models.RoomRequest, claims *models.JWTClaims) (*models.Room, error)
	Update(ctx context.Context, id string, req models.RoomRequest, claims *models.JWTClaims) (*models.Room, error)
	Delete(ctx context.Context, id string, claims *models.JWTClaims) error
	Assignable(ctx context.Context, claims *models.JWTClaims) ([]models.Room, error)
	Summary(ctx context.Context, claims *models.JWTClaims) (*models.HallOccupancySummary, error)
}

// RoomHandler exposes room inventory endpoints.
type RoomHandler struct {
	service roomService
}

// NewRoomHandler builds a new handler.
func NewRoomHandler(service roomService) *RoomHandler {
	return &RoomHandler{service: service}
}

// List godoc
// @Summary List rooms in the admin's hall
// @Tags Rooms
// @Produce json
// @Param status query string false "Status filter"
// @Param floor query int false "Floor filter"
// @Param assignable query bool false "Only rooms open for new occupants"
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	page, pageSize := pageParams(c)
	filter := models.RoomFilter{
		Status:         models.RoomStatus(c.Query("status")),
		AssignableOnly: c.Query("assignable") == "true",
		Page:           page,
		PageSize:       pageSize,
	}
	if raw := c.Query("floor"); raw != "" {
		if floor, err := strconv.Atoi(raw); err == nil {
			filter.FloorNumber = &floor
		}
	}
	rooms, total, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// Assignable godoc
// @Summary List rooms currently open for assignment
// @Tags Rooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms/assignable [get]
func (h *RoomHandler) Assignable(c *gin.Context) {
	claims := claimsFromContext(c)
	rooms, err := h.service.Assignable(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// Summary godoc
// @Summary Aggregate seat usage for the hall
// @Tags Rooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms/summary [get]
func (h *RoomHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	summary, err := h.service.Summary(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Get godoc
// @Summary Get one room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id} [get]
func (h *RoomHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	room, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Create godoc
// @Summary Create a room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param payload body models.RoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Router /rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}
	room, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// Update godoc
// @Summary Update a room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body models.RoomRequest true "Room payload"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id} [put]
func (h *RoomHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}
	room, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Delete godoc
// @Summary Delete an empty room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 204 {object} response.Envelope
// @Router /rooms/{id} [delete]
func (h *RoomHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
