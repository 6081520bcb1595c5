package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/repository"
)

// Payments joins against reservations to list a user's history.
type Payments struct {
	mu           sync.RWMutex
	rows         []domain.Payment
	reservations *Reservations
}

func NewPayments(reservations *Reservations) *Payments {
	return &Payments{reservations: reservations}
}

func (s *Payments) Insert(ctx context.Context, p *domain.Payment) error {
	s.mu.Lock()
	s.rows = append(s.rows, *p)
	s.mu.Unlock()
	id := p.ID
	onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.rows {
			if s.rows[i].ID == id {
				s.rows = append(s.rows[:i], s.rows[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (s *Payments) ListByPNR(_ context.Context, pnr string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Payment, 0)
	for _, p := range s.rows {
		if p.PNR == pnr {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Payments) ListByUser(ctx context.Context, userID string) ([]domain.UserPayment, error) {
	s.mu.RLock()
	rows := append([]domain.Payment(nil), s.rows...)
	s.mu.RUnlock()

	out := make([]domain.UserPayment, 0)
	for _, p := range rows {
		r, err := s.reservations.GetByPNR(ctx, p.PNR)
		if err != nil {
			if errors.Is(err, domain.ErrReservationNotFound) {
				continue
			}
			return nil, err
		}
		if r.UserID == userID {
			out = append(out, domain.UserPayment{Payment: p, JourneyDate: r.JourneyDate})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Payments) CountByPNR(ctx context.Context, pnr string) (int, error) {
	list, err := s.ListByPNR(ctx, pnr)
	return len(list), err
}

var _ repository.PaymentRepository = (*Payments)(nil)
