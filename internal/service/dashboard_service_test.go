package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type cacheRepoStub struct {
	store    map[string][]byte
	sets     []string
	patterns []string
}

func (s *cacheRepoStub) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (s *cacheRepoStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.store == nil {
		s.store = map[string][]byte{}
	}
	s.store[key] = data
	s.sets = append(s.sets, key)
	return nil
}

func (s *cacheRepoStub) DeleteByPattern(_ context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	s.store = nil
	return nil
}

type dashboardRoomStub struct {
	summary *models.HallOccupancySummary
	calls   int
}

func (s *dashboardRoomStub) Summary(_ context.Context, hallID string) (*models.HallOccupancySummary, error) {
	s.calls++
	return s.summary, nil
}

type dashboardWaitlistStub struct {
	entries []models.WaitlistEntryDetail
}

func (s dashboardWaitlistStub) List(_ context.Context, hallID string) ([]models.WaitlistEntryDetail, error) {
	return s.entries, nil
}

func TestDashboardServiceSnapshotCaches(t *testing.T) {
	repo := &cacheRepoStub{}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	rooms := &dashboardRoomStub{summary: &models.HallOccupancySummary{HallID: "hall-1", TotalRooms: 5, TotalCapacity: 20, TotalOccupied: 11, AssignableSeat: 9}}
	waitlist := dashboardWaitlistStub{entries: []models.WaitlistEntryDetail{{}, {}}}
	svc := NewDashboardService(rooms, waitlist, cache, time.Minute, nil)

	first, err := svc.Snapshot(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 2, first.WaitlistDepth)
	assert.Equal(t, 9, first.Occupancy.AssignableSeat)
	assert.Equal(t, 1, rooms.calls)
	assert.Equal(t, []string{"dashboard:hall-1:summary"}, repo.sets)

	// Second read is served from cache without touching the readers.
	second, err := svc.Snapshot(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.Equal(t, first.WaitlistDepth, second.WaitlistDepth)
	assert.Equal(t, 1, rooms.calls)
}

func TestDashboardServiceInvalidateForcesRefresh(t *testing.T) {
	repo := &cacheRepoStub{}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	rooms := &dashboardRoomStub{summary: &models.HallOccupancySummary{HallID: "hall-1"}}
	svc := NewDashboardService(rooms, dashboardWaitlistStub{}, cache, time.Minute, nil)

	_, err := svc.Snapshot(context.Background(), adminClaims())
	require.NoError(t, err)

	svc.Invalidate(context.Background(), "hall-1")
	assert.Equal(t, []string{"dashboard:hall-1:*"}, repo.patterns)

	_, err = svc.Snapshot(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 2, rooms.calls)
}

func TestDashboardServiceSnapshotWithoutCache(t *testing.T) {
	rooms := &dashboardRoomStub{summary: &models.HallOccupancySummary{HallID: "hall-1"}}
	svc := NewDashboardService(rooms, dashboardWaitlistStub{}, nil, 0, nil)

	snapshot, err := svc.Snapshot(context.Background(), adminClaims())
	require.NoError(t, err)
	assert.False(t, snapshot.GeneratedAt.IsZero())
}
