package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/railbooking/internal/clock"
	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/keylock"
	"github.com/Domenick1991/railbooking/internal/repository"
	"github.com/Domenick1991/railbooking/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultRefundPercent = 80
	DefaultCancelReason  = "User requested cancellation"
	// ExpiryReason is recorded on reservations cancelled for non-payment.
	ExpiryReason = "payment timeout"

	maxPNRAttempts = 3
)

type UseCase interface {
	Create(ctx context.Context, input CreateInput) (*domain.Reservation, error)
	ConfirmPayment(ctx context.Context, pnr string, outcome domain.PaymentOutcome) (*domain.Reservation, error)
	Cancel(ctx context.Context, pnr, reason string, by Initiator) (*domain.Cancellation, error)
	GetByPNR(ctx context.Context, pnr string) (*domain.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Reservation, error)
	ListCancellationsByUser(ctx context.Context, userID string) ([]domain.Cancellation, error)
}

// Locker serializes status transitions of one reservation.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Notifier delivers booking messages. Implementations must not block and
// report their own failures; the reservation is already committed.
type Notifier interface {
	NotifyBookingConfirmed(ctx context.Context, r domain.Reservation)
	NotifyCancelled(ctx context.Context, r domain.Reservation, c domain.Cancellation)
}

type PNRGenerator interface {
	Next() string
}

type CreateInput struct {
	UserID      string             `json:"user_id"`
	TrainRunID  int64              `json:"train_run_id"`
	JourneyDate time.Time          `json:"journey_date"`
	Passengers  []domain.Passenger `json:"passengers"`
}

// Initiator identifies who asked for a cancellation.
type Initiator struct {
	Kind   domain.Initiator
	UserID string
}

func ByUser(userID string) Initiator {
	return Initiator{Kind: domain.InitiatorUser, UserID: userID}
}

func BySystem() Initiator {
	return Initiator{Kind: domain.InitiatorSystem}
}

type Service struct {
	tx            repository.Transactor
	runs          repository.TrainRunRepository
	reservations  repository.ReservationRepository
	cancellations repository.CancellationRepository
	pnrs          PNRGenerator
	locks         Locker
	notifier      Notifier
	clock         clock.Clock
	log           *zap.Logger
	refundPercent int
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLocker(l Locker) Option {
	return func(s *Service) { s.locks = l }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithPNRGenerator(g PNRGenerator) Option {
	return func(s *Service) { s.pnrs = g }
}

func WithRefundPercent(pct int) Option {
	return func(s *Service) { s.refundPercent = pct }
}

func NewService(
	tx repository.Transactor,
	runs repository.TrainRunRepository,
	reservations repository.ReservationRepository,
	cancellations repository.CancellationRepository,
	opts ...Option,
) *Service {
	s := &Service{
		tx:            tx,
		runs:          runs,
		reservations:  reservations,
		cancellations: cancellations,
		locks:         keylock.New(),
		notifier:      nopNotifier{},
		clock:         clock.Real{},
		log:           zap.NewNop(),
		refundPercent: DefaultRefundPercent,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pnrs == nil {
		s.pnrs = newPNRGenerator(s.clock)
	}
	return s
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "reservation.create",
		attribute.Int64("train_run_id", input.TrainRunID), attribute.Int("passengers", len(input.Passengers)))
	defer span.End()

	res, err := s.create(ctx, input)
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("pnr", res.PNR))
	return res, nil
}

func (s *Service) create(ctx context.Context, input CreateInput) (*domain.Reservation, error) {
	now := s.clock.Now()
	if err := validateCreate(input, now); err != nil {
		return nil, err
	}

	run, err := s.runs.GetByID(ctx, input.TrainRunID)
	if err != nil {
		return nil, fmt.Errorf("load train run %d: %w", input.TrainRunID, err)
	}

	count := len(input.Passengers)
	res := &domain.Reservation{
		UserID:         input.UserID,
		TrainRunID:     run.ID,
		JourneyDate:    dateOf(input.JourneyDate),
		PassengerCount: count,
		TotalFare:      run.Fare.Times(count),
		Status:         domain.ReservationStatusPendingPayment,
		Passengers:     normalizePassengers(input.Passengers),
		BookedAt:       now,
		UpdatedAt:      now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.runs.Reserve(ctx, run.ID, count); err != nil {
			if errors.Is(err, domain.ErrInsufficientSeats) {
				return domain.ErrNoSeatsAvailable
			}
			return fmt.Errorf("reserve seats: %w", err)
		}
		return s.insertWithFreshPNR(ctx, res)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoSeatsAvailable) {
			s.log.Info("no seats available",
				zap.Int64("train_run_id", run.ID), zap.Int("requested", count), zap.String("user_id", input.UserID))
		}
		return nil, err
	}

	s.log.Info("reservation created",
		zap.String("pnr", res.PNR),
		zap.String("user_id", res.UserID),
		zap.Int64("train_run_id", res.TrainRunID),
		zap.Int("passengers", count),
		zap.Stringer("total_fare", res.TotalFare))
	return res, nil
}

func (s *Service) insertWithFreshPNR(ctx context.Context, res *domain.Reservation) error {
	for attempt := 0; attempt < maxPNRAttempts; attempt++ {
		res.PNR = s.pnrs.Next()
		err := s.reservations.Insert(ctx, res)
		if errors.Is(err, domain.ErrDuplicatePNR) {
			s.log.Warn("pnr collision, retrying", zap.String("pnr", res.PNR), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return nil
	}
	return fmt.Errorf("allocate pnr after %d attempts: %w", maxPNRAttempts, domain.ErrDuplicatePNR)
}

// ConfirmPayment applies a gateway outcome. Only a successful outcome moves the
// reservation; seats were already held by Create.
func (s *Service) ConfirmPayment(ctx context.Context, pnr string, outcome domain.PaymentOutcome) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "reservation.confirm_payment",
		attribute.String("pnr", pnr), attribute.String("payment_status", string(outcome.Status)))
	defer span.End()

	res, changed, err := s.confirm(ctx, pnr, outcome)
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	if changed {
		s.notifier.NotifyBookingConfirmed(ctx, *res)
	}
	return res, nil
}

func (s *Service) confirm(ctx context.Context, pnr string, outcome domain.PaymentOutcome) (*domain.Reservation, bool, error) {
	unlock, err := s.locks.Lock(ctx, pnr)
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", pnr, err)
	}
	defer unlock()

	current, err := s.reservations.GetByPNR(ctx, pnr)
	if err != nil {
		return nil, false, err
	}

	switch current.Status {
	case domain.ReservationStatusConfirmed:
		if outcome.Succeeded() {
			return current, false, nil
		}
		return nil, false, fmt.Errorf("%s already confirmed: %w", pnr, domain.ErrInvalidState)
	case domain.ReservationStatusCancelled:
		return nil, false, domain.ErrAlreadyCancelled
	}

	if !outcome.Succeeded() {
		s.log.Info("payment not successful, reservation stays pending",
			zap.String("pnr", pnr), zap.String("payment_status", string(outcome.Status)), zap.String("reason", outcome.Reason))
		return current, false, nil
	}

	updated, err := s.reservations.UpdateStatus(ctx, pnr, domain.ReservationStatusPendingPayment, domain.ReservationStatusConfirmed, s.clock.Now())
	if err != nil {
		return nil, false, err
	}
	s.log.Info("reservation confirmed", zap.String("pnr", pnr), zap.String("transaction_id", outcome.TransactionID))
	return updated, true, nil
}

// Cancel is the single path that releases seats, for users and the expiry sweeper alike.
func (s *Service) Cancel(ctx context.Context, pnr, reason string, by Initiator) (*domain.Cancellation, error) {
	ctx, span := telemetry.StartSpan(ctx, "reservation.cancel",
		attribute.String("pnr", pnr), attribute.String("initiator", string(by.Kind)))
	defer span.End()

	res, c, err := s.cancel(ctx, pnr, reason, by)
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("refund_paise", int64(c.RefundAmount)))
	s.notifier.NotifyCancelled(ctx, *res, *c)
	return c, nil
}

func (s *Service) cancel(ctx context.Context, pnr, reason string, by Initiator) (*domain.Reservation, *domain.Cancellation, error) {
	unlock, err := s.locks.Lock(ctx, pnr)
	if err != nil {
		return nil, nil, fmt.Errorf("lock %s: %w", pnr, err)
	}
	defer unlock()

	current, err := s.reservations.GetByPNR(ctx, pnr)
	if err != nil {
		return nil, nil, err
	}
	if by.Kind == domain.InitiatorUser && current.UserID != by.UserID {
		return nil, nil, domain.ErrReservationNotFound
	}
	if current.Status == domain.ReservationStatusCancelled {
		return nil, nil, domain.ErrAlreadyCancelled
	}
	if by.Kind == domain.InitiatorSystem && current.Status != domain.ReservationStatusPendingPayment {
		return nil, nil, fmt.Errorf("%s is %s: %w", pnr, current.Status, domain.ErrInvalidState)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCancelReason
	}

	now := s.clock.Now()
	c := &domain.Cancellation{
		ID:           uuid.NewString(),
		PNR:          pnr,
		UserID:       current.UserID,
		Reason:       reason,
		RefundAmount: current.TotalFare.Percent(s.refundPercent),
		RefundStatus: domain.RefundStatusPending,
		CancelledBy:  by.Kind,
		CreatedAt:    now,
	}

	var cancelled *domain.Reservation
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, err := s.reservations.UpdateStatus(ctx, pnr, current.Status, domain.ReservationStatusCancelled, now)
		if err != nil {
			return err
		}
		if err := s.cancellations.Insert(ctx, c); err != nil {
			return err
		}
		if err := s.runs.Release(ctx, current.TrainRunID, current.PassengerCount); err != nil {
			return fmt.Errorf("release seats: %w", err)
		}
		cancelled = updated
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInventoryInconsistency) {
			s.log.Error("seat release refused, inventory inconsistent",
				zap.String("pnr", pnr), zap.Int64("train_run_id", current.TrainRunID),
				zap.Int("seats", current.PassengerCount), zap.Error(err))
		}
		return nil, nil, err
	}

	s.log.Info("reservation cancelled",
		zap.String("pnr", pnr),
		zap.String("initiator", string(by.Kind)),
		zap.String("previous_status", current.Status.String()),
		zap.String("reason", reason),
		zap.Stringer("refund", c.RefundAmount))
	return cancelled, c, nil
}

func (s *Service) GetByPNR(ctx context.Context, pnr string) (*domain.Reservation, error) {
	if strings.TrimSpace(pnr) == "" {
		return nil, domain.NewValidationError("pnr", "is required")
	}
	return s.reservations.GetByPNR(ctx, pnr)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Reservation, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	return s.reservations.ListByUser(ctx, userID)
}

func (s *Service) ListCancellationsByUser(ctx context.Context, userID string) ([]domain.Cancellation, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	return s.cancellations.ListByUser(ctx, userID)
}

type nopNotifier struct{}

func (nopNotifier) NotifyBookingConfirmed(context.Context, domain.Reservation) {}

func (nopNotifier) NotifyCancelled(context.Context, domain.Reservation, domain.Cancellation) {}

var _ UseCase = (*Service)(nil)
