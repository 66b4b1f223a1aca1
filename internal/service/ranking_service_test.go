package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type candidateReaderStub struct {
	candidates []models.Candidate
	err        error
	filters    []models.CandidateFilter
}

func (s *candidateReaderStub) ListCandidates(_ context.Context, filter models.CandidateFilter) ([]models.Candidate, error) {
	s.filters = append(s.filters, filter)
	out := make([]models.Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out, s.err
}

func candidatePool() []models.Candidate {
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	return []models.Candidate{
		{ApplicationID: "app-b", TotalScore: 85, SubmittedAt: base},
		{ApplicationID: "app-a", TotalScore: 90, SubmittedAt: base.Add(time.Hour)},
		{ApplicationID: "app-d", TotalScore: 85, SubmittedAt: base.Add(time.Minute)},
		{ApplicationID: "app-c", TotalScore: 85, SubmittedAt: base},
	}
}

func TestRankingServiceOrdersByScoreThenTime(t *testing.T) {
	reader := &candidateReaderStub{candidates: candidatePool()}
	svc := NewRankingService(reader, nil)

	ranked, err := svc.Rank(context.Background(), models.CandidateFilter{}, adminClaims())
	require.NoError(t, err)
	require.Len(t, ranked, 4)

	// Highest score first even though it was submitted later.
	assert.Equal(t, "app-a", ranked[0].ApplicationID)
	// Score tie breaks on submission time, then on application ID.
	assert.Equal(t, "app-b", ranked[1].ApplicationID)
	assert.Equal(t, "app-c", ranked[2].ApplicationID)
	assert.Equal(t, "app-d", ranked[3].ApplicationID)
}

func TestRankingServiceScopesToHall(t *testing.T) {
	reader := &candidateReaderStub{}
	svc := NewRankingService(reader, nil)

	_, err := svc.Rank(context.Background(), models.CandidateFilter{HallID: "hall-9"}, adminClaims())
	require.NoError(t, err)
	require.Len(t, reader.filters, 1)
	assert.Equal(t, "hall-1", reader.filters[0].HallID)
}

func TestRankingServiceTopN(t *testing.T) {
	reader := &candidateReaderStub{candidates: candidatePool()}
	svc := NewRankingService(reader, nil)

	top, err := svc.TopN(context.Background(), models.CandidateFilter{}, 2, adminClaims())
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "app-a", top[0].ApplicationID)
	assert.Equal(t, "app-b", top[1].ApplicationID)
}

func TestRankingServiceTopNClampsToPool(t *testing.T) {
	reader := &candidateReaderStub{candidates: candidatePool()}
	svc := NewRankingService(reader, nil)

	top, err := svc.TopN(context.Background(), models.CandidateFilter{}, 50, adminClaims())
	require.NoError(t, err)
	assert.Len(t, top, 4)
}

func TestRankingServiceTopNRejectsNonPositive(t *testing.T) {
	svc := NewRankingService(&candidateReaderStub{}, nil)

	_, err := svc.TopN(context.Background(), models.CandidateFilter{}, 0, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
