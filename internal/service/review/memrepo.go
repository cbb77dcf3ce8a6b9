package review

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/boardwise/movecoach/internal/domain"
)

// memrepo is the in-memory repository used when no database is
// configured.
type memrepo struct {
	mu      sync.RWMutex
	reviews map[string]*domain.GameExplanations
}

func NewMemoryRepository() Repository {
	return &memrepo{reviews: make(map[string]*domain.GameExplanations)}
}

func (m *memrepo) SaveExplanations(ctx context.Context, ge *domain.GameExplanations) error {
	if ge == nil || ge.GameID == "" {
		return fmt.Errorf("nil or unkeyed explanations payload")
	}
	m.mu.Lock()
	m.reviews[ge.GameID] = cloneExplanations(ge)
	m.mu.Unlock()
	return nil
}

func (m *memrepo) GetExplanations(ctx context.Context, gameID string) (*domain.GameExplanations, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ge, ok := m.reviews[gameID]
	if !ok {
		return nil, nil
	}
	return cloneExplanations(ge), nil
}

func (m *memrepo) RecentReviews(ctx context.Context, limit int) ([]ReviewSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	items := make([]ReviewSummary, 0, len(m.reviews))
	for _, ge := range m.reviews {
		items = append(items, ReviewSummary{
			GameID:    ge.GameID,
			RunID:     ge.RunID,
			Model:     ge.Model,
			Moves:     len(ge.Moves),
			CreatedAt: ge.CreatedAt,
		})
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].GameID < items[j].GameID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func cloneExplanations(ge *domain.GameExplanations) *domain.GameExplanations {
	clone := *ge
	clone.Moves = make(map[int]domain.MoveExplanation, len(ge.Moves))
	for k, v := range ge.Moves {
		clone.Moves[k] = v
	}
	clone.Errors = append([]string(nil), ge.Errors...)
	return &clone
}
