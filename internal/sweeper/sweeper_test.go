package sweeper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/railbooking/internal/clock"
	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/repository/memory"
	"github.com/Domenick1991/railbooking/internal/service/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type env struct {
	clock         *clock.Fake
	runs          *memory.TrainRuns
	reservations  *memory.Reservations
	cancellations *memory.Cancellations
	lifecycle     *reservation.Service
}

func newEnv(t *testing.T, seats int) *env {
	t.Helper()
	e := &env{
		clock: clock.NewFake(t0),
		runs: memory.NewTrainRuns(domain.TrainRun{
			ID: 1, Number: "12627", Name: "Karnataka Express", Source: "SBC", Destination: "NDLS",
			Class: "SL", TotalSeats: seats, AvailableSeats: seats, Fare: domain.Rupees(750),
		}),
		reservations:  memory.NewReservations(),
		cancellations: memory.NewCancellations(),
	}
	e.lifecycle = reservation.NewService(memory.NewTransactor(), e.runs, e.reservations, e.cancellations,
		reservation.WithClock(e.clock), reservation.WithLogger(zaptest.NewLogger(t)))
	return e
}

func (e *env) book(t *testing.T, passengers int) *domain.Reservation {
	t.Helper()
	return e.bookOn(t, 1, passengers)
}

func (e *env) bookOn(t *testing.T, runID int64, passengers int) *domain.Reservation {
	t.Helper()
	ps := make([]domain.Passenger, passengers)
	for i := range ps {
		ps[i] = domain.Passenger{Name: fmt.Sprintf("P%d", i), Age: 40, Gender: "M"}
	}
	res, err := e.lifecycle.Create(context.Background(), reservation.CreateInput{
		UserID: "user-1", TrainRunID: runID, JourneyDate: t0.AddDate(0, 1, 0), Passengers: ps,
	})
	require.NoError(t, err)
	return res
}

func (e *env) available(t *testing.T) int {
	t.Helper()
	run, err := e.runs.GetByID(context.Background(), 1)
	require.NoError(t, err)
	return run.AvailableSeats
}

func (e *env) sweeper(t *testing.T, cfg Config) *Sweeper {
	return New(e.reservations, e.lifecycle, cfg, e.clock, zaptest.NewLogger(t))
}

func TestSweepOnce_ExpiresUnpaidReservation(t *testing.T) {
	e := newEnv(t, 10)
	res := e.book(t, 3)
	s := e.sweeper(t, Config{HoldTimeout: 5 * time.Minute})

	e.clock.Advance(6 * time.Minute)
	n, err := s.SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stored, err := e.reservations.GetByPNR(context.Background(), res.PNR)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCancelled, stored.Status)
	c, err := e.cancellations.GetByPNR(context.Background(), res.PNR)
	require.NoError(t, err)
	assert.Equal(t, "payment timeout", c.Reason)
	assert.Equal(t, domain.InitiatorSystem, c.CancelledBy)
	assert.Equal(t, 10, e.available(t))
}

func TestSweepOnce_LeavesFreshAndPaidReservations(t *testing.T) {
	e := newEnv(t, 10)
	paid := e.book(t, 1)
	_, err := e.lifecycle.ConfirmPayment(context.Background(), paid.PNR, domain.PaymentOutcome{Status: domain.PaymentStatusSuccess})
	require.NoError(t, err)
	e.clock.Advance(2 * time.Minute)
	fresh := e.book(t, 1)
	s := e.sweeper(t, Config{HoldTimeout: 5 * time.Minute})

	e.clock.Advance(4 * time.Minute)
	n, err := s.SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	for _, pnr := range []string{paid.PNR, fresh.PNR} {
		stored, err := e.reservations.GetByPNR(context.Background(), pnr)
		require.NoError(t, err)
		assert.NotEqual(t, domain.ReservationStatusCancelled, stored.Status)
	}
	assert.Equal(t, 8, e.available(t))
}

func TestSweepOnce_RespectsBatchSize(t *testing.T) {
	e := newEnv(t, 20)
	for i := 0; i < 5; i++ {
		e.book(t, 1)
	}
	s := e.sweeper(t, Config{HoldTimeout: time.Minute, BatchSize: 2})
	e.clock.Advance(2 * time.Minute)

	first, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	second, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	third, err := s.SweepOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, []int{first, second, third})
	assert.Equal(t, 20, e.available(t))
	assert.Equal(t, int64(5), s.Stats().Expired)
}

func TestSweepOnce_PagesPastHoldsThatCannotBeReleased(t *testing.T) {
	e := newEnv(t, 10)
	e.runs.Put(domain.TrainRun{
		ID: 2, Number: "12628", Name: "Karnataka Express", Source: "NDLS", Destination: "SBC",
		Class: "SL", TotalSeats: 1, AvailableSeats: 1, Fare: domain.Rupees(750),
	})
	stuck := e.bookOn(t, 2, 1)
	// The run's counter is back at full, so releasing the held seat is refused.
	require.NoError(t, e.runs.Release(context.Background(), 2, 1))
	e.clock.Advance(time.Second)
	healthy := e.book(t, 1)
	s := e.sweeper(t, Config{HoldTimeout: 5 * time.Minute, BatchSize: 1})
	e.clock.Advance(6 * time.Minute)

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	for i := 0; i < 3; i++ {
		n, err = s.SweepOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	stored, err := e.reservations.GetByPNR(context.Background(), healthy.PNR)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCancelled, stored.Status)
	stored, err = e.reservations.GetByPNR(context.Background(), stuck.PNR)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusPendingPayment, stored.Status)
	assert.Equal(t, 10, e.available(t))
	st := s.Stats()
	assert.Equal(t, int64(1), st.Expired)
	assert.Equal(t, int64(4), st.Failures)
}

func TestSweepOnce_StopsPagingAfterProgress(t *testing.T) {
	lister := &MockLister{}
	canceller := &MockCanceller{}
	first := domain.Reservation{PNR: "AAAAAAAAAA", BookedAt: t0.Add(-time.Hour)}
	second := domain.Reservation{PNR: "BBBBBBBBBB", BookedAt: t0.Add(-time.Hour)}
	lister.On("ListPendingBefore", mock.Anything, mock.Anything, domain.PendingCursor{}, 1).
		Return([]domain.Reservation{first}, nil).Once()
	lister.On("ListPendingBefore", mock.Anything, mock.Anything, domain.CursorAt(&first), 1).
		Return([]domain.Reservation{second}, nil).Once()
	canceller.On("Cancel", mock.Anything, "AAAAAAAAAA", reservation.ExpiryReason, reservation.BySystem()).
		Return(nil, fmt.Errorf("release seats: %w", domain.ErrInventoryInconsistency)).Once()
	canceller.On("Cancel", mock.Anything, "BBBBBBBBBB", reservation.ExpiryReason, reservation.BySystem()).
		Return(nil, domain.ErrAlreadyCancelled).Once()

	s := New(lister, canceller, Config{BatchSize: 1}, clock.NewFake(t0), zaptest.NewLogger(t))
	n, err := s.SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(1), s.Stats().AlreadySettled)
	lister.AssertExpectations(t)
	canceller.AssertExpectations(t)
}

type MockCanceller struct {
	mock.Mock
}

func (m *MockCanceller) Cancel(ctx context.Context, pnr, reason string, by reservation.Initiator) (*domain.Cancellation, error) {
	args := m.Called(ctx, pnr, reason, by)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cancellation), args.Error(1)
}

type MockLister struct {
	mock.Mock
}

func (m *MockLister) ListPendingBefore(ctx context.Context, cutoff time.Time, after domain.PendingCursor, limit int) ([]domain.Reservation, error) {
	args := m.Called(ctx, cutoff, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func TestSweepOnce_ClassifiesOutcomes(t *testing.T) {
	fake := clock.NewFake(t0)
	lister := &MockLister{}
	canceller := &MockCanceller{}
	lister.On("ListPendingBefore", mock.Anything, t0.Add(-5*time.Minute), domain.PendingCursor{}, 100).Return([]domain.Reservation{
		{PNR: "AAAAAAAAAA"}, {PNR: "BBBBBBBBBB"}, {PNR: "CCCCCCCCCC"}, {PNR: "DDDDDDDDDD"},
	}, nil).Once()
	canceller.On("Cancel", mock.Anything, "AAAAAAAAAA", reservation.ExpiryReason, reservation.BySystem()).
		Return(&domain.Cancellation{PNR: "AAAAAAAAAA"}, nil).Once()
	canceller.On("Cancel", mock.Anything, "BBBBBBBBBB", reservation.ExpiryReason, reservation.BySystem()).
		Return(nil, domain.ErrAlreadyCancelled).Once()
	canceller.On("Cancel", mock.Anything, "CCCCCCCCCC", reservation.ExpiryReason, reservation.BySystem()).
		Return(nil, fmt.Errorf("CCCCCCCCCC is CONFIRMED: %w", domain.ErrInvalidState)).Once()
	canceller.On("Cancel", mock.Anything, "DDDDDDDDDD", reservation.ExpiryReason, reservation.BySystem()).
		Return(nil, fmt.Errorf("release seats: %w", domain.ErrInventoryInconsistency)).Once()

	s := New(lister, canceller, DefaultConfig(), fake, zaptest.NewLogger(t))
	n, err := s.SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st := s.Stats()
	assert.Equal(t, int64(1), st.Expired)
	assert.Equal(t, int64(2), st.AlreadySettled)
	assert.Equal(t, int64(1), st.Failures)
	assert.Equal(t, t0, st.LastSweep)
	lister.AssertExpectations(t)
	canceller.AssertExpectations(t)
}

func TestSweepOnce_ListError(t *testing.T) {
	lister := &MockLister{}
	lister.On("ListPendingBefore", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()
	s := New(lister, &MockCanceller{}, DefaultConfig(), clock.NewFake(t0), nil)

	_, err := s.SweepOnce(context.Background())

	assert.ErrorIs(t, err, assert.AnError)
}

type slowCanceller struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *slowCanceller) Cancel(context.Context, string, string, reservation.Initiator) (*domain.Cancellation, error) {
	cur := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if cur <= peak || c.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return &domain.Cancellation{}, nil
}

func TestSweepOnce_BoundedConcurrency(t *testing.T) {
	pending := make([]domain.Reservation, 20)
	for i := range pending {
		pending[i] = domain.Reservation{PNR: fmt.Sprintf("P%09d", i)}
	}
	lister := &MockLister{}
	lister.On("ListPendingBefore", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(pending, nil)
	canceller := &slowCanceller{}
	s := New(lister, canceller, Config{Concurrency: 3}, clock.NewFake(t0), nil)

	n, err := s.SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.LessOrEqual(t, canceller.peak.Load(), int32(3))
}

func TestSweeper_StartStop(t *testing.T) {
	e := newEnv(t, 5)
	res := e.book(t, 2)
	s := e.sweeper(t, Config{HoldTimeout: 5 * time.Minute, Interval: time.Minute})

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	assert.True(t, s.Stats().Running)

	require.Eventually(t, func() bool {
		e.clock.Advance(time.Minute)
		return s.Stats().Expired == 1
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.Stats().Running)

	stored, err := e.reservations.GetByPNR(context.Background(), res.PNR)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusCancelled, stored.Status)
	assert.Equal(t, 5, e.available(t))
}

func TestSweeper_StopsWithContext(t *testing.T) {
	e := newEnv(t, 5)
	s := e.sweeper(t, Config{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_RaceWithConfirm(t *testing.T) {
	e := newEnv(t, 100)
	s := e.sweeper(t, Config{HoldTimeout: 5 * time.Minute, Concurrency: 8})

	var booked []*domain.Reservation
	for i := 0; i < 40; i++ {
		booked = append(booked, e.book(t, 1))
	}
	e.clock.Advance(6 * time.Minute)

	var wg sync.WaitGroup
	confirmErrs := make([]error, len(booked))
	for i, r := range booked {
		wg.Add(1)
		go func(i int, pnr string) {
			defer wg.Done()
			_, confirmErrs[i] = e.lifecycle.ConfirmPayment(context.Background(), pnr, domain.PaymentOutcome{Status: domain.PaymentStatusSuccess})
		}(i, r.PNR)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.SweepOnce(context.Background())
		assert.NoError(t, err)
	}()
	wg.Wait()

	confirmed := 0
	for i, r := range booked {
		stored, err := e.reservations.GetByPNR(context.Background(), r.PNR)
		require.NoError(t, err)
		_, cancelErr := e.cancellations.GetByPNR(context.Background(), r.PNR)
		switch stored.Status {
		case domain.ReservationStatusConfirmed:
			confirmed++
			assert.NoError(t, confirmErrs[i])
			assert.True(t, domain.IsNotFound(cancelErr))
		case domain.ReservationStatusCancelled:
			assert.ErrorIs(t, confirmErrs[i], domain.ErrAlreadyCancelled)
			assert.NoError(t, cancelErr)
		default:
			t.Fatalf("reservation %s left in %s", r.PNR, stored.Status)
		}
	}
	assert.Equal(t, 100-confirmed, e.available(t))
	st := s.Stats()
	assert.Equal(t, int64(len(booked)-confirmed), st.Expired)
	assert.LessOrEqual(t, st.AlreadySettled, int64(confirmed))
	assert.Zero(t, st.Failures)
}

func TestSweepOnce_TracesSweepWithCancelChildren(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
	e := newEnv(t, 10)
	e.book(t, 2)
	s := e.sweeper(t, Config{HoldTimeout: 5 * time.Minute})
	e.clock.Advance(6 * time.Minute)

	_, err := s.SweepOnce(context.Background())
	require.NoError(t, err)

	var sweep, cancel sdktrace.ReadOnlySpan
	for _, span := range rec.Ended() {
		switch span.Name() {
		case "sweeper.sweep_once":
			sweep = span
		case "reservation.cancel":
			cancel = span
		}
	}
	require.NotNil(t, sweep)
	require.NotNil(t, cancel)
	assert.Contains(t, sweep.Attributes(), attribute.Int("sweep.expired", 1))
	assert.Contains(t, sweep.Attributes(), attribute.Int("sweep.batches", 1))
	assert.Equal(t, sweep.SpanContext().SpanID(), cancel.Parent().SpanID())
	assert.Equal(t, sweep.SpanContext().TraceID(), cancel.SpanContext().TraceID())
}
