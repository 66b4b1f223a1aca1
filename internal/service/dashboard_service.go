package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type dashboardRoomReader interface {
	Summary(ctx context.Context, hallID string) (*models.HallOccupancySummary, error)
}

type dashboardWaitlistReader interface {
	List(ctx context.Context, hallID string) ([]models.WaitlistEntryDetail, error)
}

// DashboardSnapshot is the admin dashboard payload. Served from a short
// lived cache, so figures may trail the committed state by the TTL.
type DashboardSnapshot struct {
	Occupancy     models.HallOccupancySummary `json:"occupancy"`
	WaitlistDepth int                         `json:"waitlist_depth"`
	GeneratedAt   time.Time                   `json:"generated_at"`
}

// DashboardService aggregates hall figures behind a Redis cache. Writes
// on the allocation path invalidate the hall's keys, so a fresh read
// after any mutation sees committed data.
type DashboardService struct {
	rooms    dashboardRoomReader
	waitlist dashboardWaitlistReader
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewDashboardService builds a DashboardService.
func NewDashboardService(rooms dashboardRoomReader, waitlist dashboardWaitlistReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{rooms: rooms, waitlist: waitlist, cache: cache, ttl: ttl, logger: logger}
}

func dashboardKey(hallID string) string {
	return fmt.Sprintf("dashboard:%s:summary", hallID)
}

// Snapshot returns the hall dashboard, from cache when fresh.
func (s *DashboardService) Snapshot(ctx context.Context, claims *models.JWTClaims) (*DashboardSnapshot, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	hallID := claims.HallID

	var snapshot DashboardSnapshot
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, dashboardKey(hallID), &snapshot); hit {
			return &snapshot, nil
		}
	}

	summary, err := s.rooms.Summary(ctx, hallID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occupancy summary")
	}
	entries, err := s.waitlist.List(ctx, hallID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist")
	}

	snapshot = DashboardSnapshot{
		Occupancy:     *summary,
		WaitlistDepth: len(entries),
		GeneratedAt:   time.Now().UTC(),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardKey(hallID), snapshot, s.ttl); err != nil {
			s.logger.Warn("failed to cache dashboard snapshot", zap.Error(err))
		}
	}
	return &snapshot, nil
}

// Invalidate drops the hall's cached dashboard after a mutation.
func (s *DashboardService) Invalidate(ctx context.Context, hallID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("dashboard:%s:*", hallID)); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.String("hall_id", hallID), zap.Error(err))
	}
}
