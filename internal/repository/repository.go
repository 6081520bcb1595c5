package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/railbooking/internal/domain"
)

// Transactor runs fn so that every repository call made with the ctx passed
// to fn commits or rolls back together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TrainRunRepository is the seat inventory. It is the only writer of
// available seats.
type TrainRunRepository interface {
	List(ctx context.Context) ([]domain.TrainRun, error)
	GetByID(ctx context.Context, id int64) (*domain.TrainRun, error)
	// Search returns runs between the two stations, compared case-insensitively.
	Search(ctx context.Context, source, destination string) ([]domain.TrainRun, error)
	// SearchByNumber returns runs whose train number contains number.
	SearchByNumber(ctx context.Context, number string) ([]domain.TrainRun, error)
	// Reserve holds count seats or returns domain.ErrInsufficientSeats.
	Reserve(ctx context.Context, id int64, count int) error
	// Release returns count seats. It refuses with domain.ErrInventoryInconsistency
	// rather than pushing available seats past total seats.
	Release(ctx context.Context, id int64, count int) error
}

type ReservationRepository interface {
	// Insert returns domain.ErrDuplicatePNR if the PNR is taken.
	Insert(ctx context.Context, r *domain.Reservation) error
	GetByPNR(ctx context.Context, pnr string) (*domain.Reservation, error)
	// ListByUser returns the user's reservations, newest booking first.
	ListByUser(ctx context.Context, userID string) ([]domain.Reservation, error)
	// ListPendingBefore returns up to limit pending reservations booked before
	// cutoff and positioned after the cursor, ordered by booking time then PNR.
	ListPendingBefore(ctx context.Context, cutoff time.Time, after domain.PendingCursor, limit int) ([]domain.Reservation, error)
	// UpdateStatus moves the reservation from one status to another. It returns
	// domain.ErrInvalidState when the stored status is not from.
	UpdateStatus(ctx context.Context, pnr string, from, to domain.ReservationStatus, at time.Time) (*domain.Reservation, error)
}

type CancellationRepository interface {
	// Insert returns domain.ErrAlreadyCancelled if the reservation already has one.
	Insert(ctx context.Context, c *domain.Cancellation) error
	GetByPNR(ctx context.Context, pnr string) (*domain.Cancellation, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Cancellation, error)
}

type PaymentRepository interface {
	Insert(ctx context.Context, p *domain.Payment) error
	ListByPNR(ctx context.Context, pnr string) ([]domain.Payment, error)
	// ListByUser returns every payment on the user's reservations, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.UserPayment, error)
	CountByPNR(ctx context.Context, pnr string) (int, error)
}
