package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/repository"
)

type Reservations struct {
	mu   sync.RWMutex
	byID map[string]*domain.Reservation
}

func NewReservations() *Reservations {
	return &Reservations{byID: make(map[string]*domain.Reservation)}
}

func (s *Reservations) Insert(ctx context.Context, r *domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.PNR]; ok {
		return domain.ErrDuplicatePNR
	}
	s.byID[r.PNR] = r.Clone()
	pnr := r.PNR
	onRollback(ctx, func() {
		s.mu.Lock()
		delete(s.byID, pnr)
		s.mu.Unlock()
	})
	return nil
}

func (s *Reservations) GetByPNR(_ context.Context, pnr string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[pnr]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return r.Clone(), nil
}

func (s *Reservations) ListByUser(_ context.Context, userID string) ([]domain.Reservation, error) {
	s.mu.RLock()
	out := make([]domain.Reservation, 0)
	for _, r := range s.byID {
		if r.UserID == userID {
			out = append(out, *r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookedAt.Equal(out[j].BookedAt) {
			return out[i].BookedAt.After(out[j].BookedAt)
		}
		return out[i].PNR < out[j].PNR
	})
	return out, nil
}

func (s *Reservations) ListPendingBefore(_ context.Context, cutoff time.Time, after domain.PendingCursor, limit int) ([]domain.Reservation, error) {
	s.mu.RLock()
	out := make([]domain.Reservation, 0)
	for _, r := range s.byID {
		if r.Status != domain.ReservationStatusPendingPayment || !r.BookedAt.Before(cutoff) {
			continue
		}
		if !after.IsZero() && !after.Before(r) {
			continue
		}
		out = append(out, *r.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookedAt.Equal(out[j].BookedAt) {
			return out[i].BookedAt.Before(out[j].BookedAt)
		}
		return out[i].PNR < out[j].PNR
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Reservations) UpdateStatus(ctx context.Context, pnr string, from, to domain.ReservationStatus, at time.Time) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[pnr]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	if r.Status != from {
		if r.Status == domain.ReservationStatusCancelled {
			return nil, domain.ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("%s is %s, not %s: %w", pnr, r.Status, from, domain.ErrInvalidState)
	}
	prevStatus, prevUpdated := r.Status, r.UpdatedAt
	r.Status = to
	r.UpdatedAt = at
	onRollback(ctx, func() {
		s.mu.Lock()
		r.Status = prevStatus
		r.UpdatedAt = prevUpdated
		s.mu.Unlock()
	})
	return r.Clone(), nil
}

var _ repository.ReservationRepository = (*Reservations)(nil)
