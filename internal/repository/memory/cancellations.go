package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/repository"
)

type Cancellations struct {
	mu    sync.RWMutex
	byPNR map[string]domain.Cancellation
}

func NewCancellations() *Cancellations {
	return &Cancellations{byPNR: make(map[string]domain.Cancellation)}
}

func (s *Cancellations) Insert(ctx context.Context, c *domain.Cancellation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPNR[c.PNR]; ok {
		return domain.ErrAlreadyCancelled
	}
	s.byPNR[c.PNR] = *c
	pnr := c.PNR
	onRollback(ctx, func() {
		s.mu.Lock()
		delete(s.byPNR, pnr)
		s.mu.Unlock()
	})
	return nil
}

func (s *Cancellations) GetByPNR(_ context.Context, pnr string) (*domain.Cancellation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byPNR[pnr]
	if !ok {
		return nil, fmt.Errorf("cancellation for %s: %w", pnr, domain.ErrNotFound)
	}
	return &c, nil
}

func (s *Cancellations) ListByUser(_ context.Context, userID string) ([]domain.Cancellation, error) {
	s.mu.RLock()
	out := make([]domain.Cancellation, 0)
	for _, c := range s.byPNR {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Len returns the number of stored cancellations.
func (s *Cancellations) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPNR)
}

var _ repository.CancellationRepository = (*Cancellations)(nil)
