package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type candidateReader interface {
	ListCandidates(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, error)
}

// RankingService produces the ordered candidate list used for seat
// offers. The candidate pool is a projection over applications with a
// confirmed interview; nothing here is persisted.
type RankingService struct {
	candidates candidateReader
	logger     *zap.Logger
}

// NewRankingService builds a RankingService.
func NewRankingService(candidates candidateReader, logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{candidates: candidates, logger: logger}
}

// Rank returns the filtered candidate pool in offer order: total score
// descending, then submission time, then application ID. Equal inputs
// always produce the same order.
func (s *RankingService) Rank(ctx context.Context, filter models.CandidateFilter, claims *models.JWTClaims) ([]models.Candidate, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter.HallID = claims.HallID

	candidates, err := s.candidates.ListCandidates(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidates")
	}

	sortCandidates(candidates)
	return candidates, nil
}

// TopN returns the first n ranked candidates. n must be positive; a pool
// smaller than n is returned whole.
func (s *RankingService) TopN(ctx context.Context, filter models.CandidateFilter, n int, claims *models.JWTClaims) ([]models.Candidate, error) {
	if n <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "limit must be positive")
	}
	candidates, err := s.Rank(ctx, filter, claims)
	if err != nil {
		return nil, err
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n], nil
}

// sortCandidates orders the pool deterministically. The query already
// orders rows this way; sorting again keeps the contract independent of
// the storage layer.
func sortCandidates(candidates []models.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ApplicationID < b.ApplicationID
	})
}
