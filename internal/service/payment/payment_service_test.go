package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/railbooking/internal/clock"
	"github.com/Domenick1991/railbooking/internal/domain"
	gateway "github.com/Domenick1991/railbooking/internal/payment"
	"github.com/Domenick1991/railbooking/internal/repository/memory"
	"github.com/Domenick1991/railbooking/internal/service/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Attempt(ctx context.Context, req gateway.AttemptRequest) (gateway.AttemptResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.AttemptResult), args.Error(1)
}

type fixture struct {
	svc         *Service
	lifecycle   *reservation.Service
	payments    *memory.Payments
	runs        *memory.TrainRuns
	gateway     *MockGateway
	clock       *clock.Fake
	reservation *domain.Reservation
}

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	fake := clock.NewFake(now)
	runs := memory.NewTrainRuns(domain.TrainRun{
		ID: 7, Number: "12002", Name: "Shatabdi Express", Source: "NDLS", Destination: "BPL",
		Class: "CC", TotalSeats: 20, AvailableSeats: 20, Fare: domain.Rupees(1000),
	})
	reservations := memory.NewReservations()
	lifecycle := reservation.NewService(memory.NewTransactor(), runs, reservations, memory.NewCancellations(),
		reservation.WithClock(fake))
	res, err := lifecycle.Create(context.Background(), reservation.CreateInput{
		UserID:      "user-1",
		TrainRunID:  7,
		JourneyDate: now.AddDate(0, 0, 3),
		Passengers: []domain.Passenger{
			{Name: "Asha", Age: 34, Gender: "F"},
			{Name: "Ravi", Age: 36, Gender: "M"},
		},
	})
	require.NoError(t, err)

	f := &fixture{
		lifecycle:   lifecycle,
		payments:    memory.NewPayments(reservations),
		runs:        runs,
		gateway:     &MockGateway{},
		clock:       fake,
		reservation: res,
	}
	f.svc = NewService(lifecycle, f.payments, f.gateway, append([]Option{WithClock(fake)}, opts...)...)
	return f
}

func TestService_Pay_Success(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("Attempt", mock.Anything, gateway.AttemptRequest{
		PNR: f.reservation.PNR, Amount: domain.Rupees(2000), Method: domain.PaymentMethodCreditCard,
	}).Return(gateway.AttemptResult{Status: domain.PaymentStatusSuccess, TransactionID: "CC20260301123456"}, nil).Once()

	result, err := f.svc.Pay(context.Background(), PayRequest{
		PNR: f.reservation.PNR, UserID: "user-1", Method: domain.PaymentMethodCreditCard, CardNumber: "4111 1111 1111 1234",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, result.Reservation.Status)
	assert.Equal(t, domain.PaymentStatusSuccess, result.Payment.Status)
	assert.Equal(t, "1234", result.Payment.CardLast4)
	assert.Equal(t, 0, result.Payment.RetryCount)
	require.NotNil(t, result.Payment.CompletedAt)
	assert.Equal(t, now, *result.Payment.CompletedAt)

	history, err := f.svc.History(context.Background(), f.reservation.PNR, "user-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	f.gateway.AssertExpectations(t)
}

func TestService_Pay_FailedThenRetried(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("Attempt", mock.Anything, mock.Anything).
		Return(gateway.AttemptResult{Status: domain.PaymentStatusFailed, TransactionID: "UPI20260301111111", Message: "UPI PIN incorrect"}, nil).Once()
	f.gateway.On("Attempt", mock.Anything, mock.Anything).
		Return(gateway.AttemptResult{Status: domain.PaymentStatusSuccess, TransactionID: "UPI20260301222222"}, nil).Once()

	req := PayRequest{PNR: f.reservation.PNR, UserID: "user-1", Method: domain.PaymentMethodUPI, UPIID: "asha@okbank"}
	first, err := f.svc.Pay(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusPendingPayment, first.Reservation.Status)
	assert.Equal(t, "UPI PIN incorrect", first.Payment.FailureReason)
	assert.Nil(t, first.Payment.CompletedAt)

	second, err := f.svc.Pay(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, second.Reservation.Status)
	assert.Equal(t, 1, second.Payment.RetryCount)
	assert.Equal(t, "asha@okbank", second.Payment.UPIID)
}

func TestService_Pay_GatewayTimeoutRecordsPending(t *testing.T) {
	f := newFixture(t, WithTimeout(20*time.Millisecond))
	f.gateway.On("Attempt", mock.Anything, mock.Anything).
		Return(gateway.AttemptResult{}, context.DeadlineExceeded).Once()

	result, err := f.svc.Pay(context.Background(), PayRequest{
		PNR: f.reservation.PNR, UserID: "user-1", Method: domain.PaymentMethodNetBanking, BankCode: "hdfc",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, result.Payment.Status)
	assert.Equal(t, "HDFC Bank", result.Payment.BankName)
	assert.Equal(t, domain.ReservationStatusPendingPayment, result.Reservation.Status)
}

func TestService_Pay_RejectsNonPending(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.ConfirmPayment(context.Background(), f.reservation.PNR, domain.PaymentOutcome{Status: domain.PaymentStatusSuccess})
	require.NoError(t, err)

	_, err = f.svc.Pay(context.Background(), PayRequest{PNR: f.reservation.PNR, UserID: "user-1", Method: domain.PaymentMethodUPI})

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	f.gateway.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything)
}

func TestService_Pay_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Pay(context.Background(), PayRequest{PNR: f.reservation.PNR, UserID: "user-1", Method: "Cash"})
	assert.True(t, domain.IsValidation(err))

	_, err = f.svc.Pay(context.Background(), PayRequest{UserID: "user-1", Method: domain.PaymentMethodUPI})
	assert.True(t, domain.IsValidation(err))
}

func TestService_Pay_OtherUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Pay(context.Background(), PayRequest{PNR: f.reservation.PNR, UserID: "user-2", Method: domain.PaymentMethodUPI})

	assert.True(t, domain.IsNotFound(err))
}

type brokenPayments struct {
	*memory.Payments
}

func (brokenPayments) Insert(context.Context, *domain.Payment) error {
	return errors.New("connection reset")
}

func TestService_Pay_RecordFailureStillConfirms(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.lifecycle, brokenPayments{memory.NewPayments(nil)}, f.gateway)
	f.gateway.On("Attempt", mock.Anything, mock.Anything).
		Return(gateway.AttemptResult{Status: domain.PaymentStatusSuccess, TransactionID: "DC20260301333333"}, nil).Once()

	result, err := svc.Pay(context.Background(), PayRequest{PNR: f.reservation.PNR, UserID: "user-1", Method: domain.PaymentMethodDebitCard})

	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, result.Reservation.Status)
}

func TestService_HandleCallback_ConfirmsPendingAttempt(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.HandleCallback(context.Background(), Callback{
		PNR: f.reservation.PNR, TransactionID: "NB20260301444444", Method: domain.PaymentMethodNetBanking, Status: domain.PaymentStatusSuccess,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, result.Reservation.Status)

	again, err := f.svc.HandleCallback(context.Background(), Callback{
		PNR: f.reservation.PNR, TransactionID: "NB20260301444444", Method: domain.PaymentMethodNetBanking, Status: domain.PaymentStatusSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, again.Reservation.Status)
	assert.Equal(t, 1, again.Payment.RetryCount)
}

func TestService_HandleCallback_AfterExpiry(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.Cancel(context.Background(), f.reservation.PNR, reservation.ExpiryReason, reservation.BySystem())
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(context.Background(), Callback{
		PNR: f.reservation.PNR, TransactionID: "UPI20260301555555", Method: domain.PaymentMethodUPI, Status: domain.PaymentStatusSuccess,
	})

	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)
	run, err := f.runs.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 20, run.AvailableSeats)
	history, err := f.svc.History(context.Background(), f.reservation.PNR, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.PaymentStatusRefundPending, history[1].Status)
	assert.Equal(t, "UPI20260301555555", history[1].TransactionID)
}

func TestService_HandleCallback_FailedAfterExpiryOwesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.Cancel(context.Background(), f.reservation.PNR, reservation.ExpiryReason, reservation.BySystem())
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(context.Background(), Callback{
		PNR: f.reservation.PNR, TransactionID: "UPI20260301666666", Method: domain.PaymentMethodUPI, Status: domain.PaymentStatusFailed,
	})

	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)
	history, err := f.svc.History(context.Background(), f.reservation.PNR, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.PaymentStatusFailed, history[0].Status)
}

func TestService_HandleCallback_Validation(t *testing.T) {
	tests := map[string]Callback{
		"unknown status": {TransactionID: "X", Method: domain.PaymentMethodUPI, Status: "Refunded"},
		"missing method": {TransactionID: "X", Status: domain.PaymentStatusSuccess},
		"unknown method": {TransactionID: "X", Method: "Cash", Status: domain.PaymentStatusSuccess},
		"missing txn id": {Method: domain.PaymentMethodUPI, Status: domain.PaymentStatusSuccess},
	}
	for name, cb := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			cb.PNR = f.reservation.PNR

			_, err := f.svc.HandleCallback(context.Background(), cb)

			assert.True(t, domain.IsValidation(err), "got %v", err)
			history, err := f.svc.History(context.Background(), f.reservation.PNR, "user-1")
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func TestService_Pay_CancelledDuringGatewayCallRecordsRefund(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("Attempt", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			_, err := f.lifecycle.Cancel(context.Background(), f.reservation.PNR, reservation.ExpiryReason, reservation.BySystem())
			require.NoError(t, err)
		}).
		Return(gateway.AttemptResult{Status: domain.PaymentStatusSuccess, TransactionID: "CC20260301777777"}, nil).Once()

	result, err := f.svc.Pay(context.Background(), PayRequest{
		PNR: f.reservation.PNR, UserID: "user-1", Method: domain.PaymentMethodCreditCard, CardNumber: "4111111111111234",
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)
	assert.ErrorContains(t, err, "CC20260301777777")

	history, err := f.svc.History(context.Background(), f.reservation.PNR, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.PaymentStatusSuccess, history[0].Status)
	refund := history[1]
	assert.Equal(t, domain.PaymentStatusRefundPending, refund.Status)
	assert.Equal(t, "CC20260301777777", refund.TransactionID)
	assert.Equal(t, domain.Rupees(2000), refund.Amount)
	assert.NotEqual(t, history[0].ID, refund.ID)
	assert.Nil(t, refund.CompletedAt)

	run, err := f.runs.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 20, run.AvailableSeats)
	f.gateway.AssertExpectations(t)
}

func TestService_UserHistory(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("Attempt", mock.Anything, mock.Anything).
		Return(gateway.AttemptResult{Status: domain.PaymentStatusFailed, TransactionID: "UPI20260301888888", Message: "declined"}, nil).Once()
	f.gateway.On("Attempt", mock.Anything, mock.Anything).
		Return(gateway.AttemptResult{Status: domain.PaymentStatusSuccess, TransactionID: "UPI20260301999999"}, nil).Once()
	req := PayRequest{PNR: f.reservation.PNR, UserID: "user-1", Method: domain.PaymentMethodUPI, UPIID: "asha@okbank"}
	_, err := f.svc.Pay(context.Background(), req)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Pay(context.Background(), req)
	require.NoError(t, err)

	mine, err := f.svc.UserHistory(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "UPI20260301999999", mine[0].TransactionID)
	assert.Equal(t, "UPI20260301888888", mine[1].TransactionID)
	assert.Equal(t, f.reservation.JourneyDate, mine[0].JourneyDate)
	assert.Equal(t, f.reservation.PNR, mine[0].PNR)

	others, err := f.svc.UserHistory(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Empty(t, others)

	_, err = f.svc.UserHistory(context.Background(), "")
	assert.True(t, domain.IsValidation(err))
}

func TestBankName(t *testing.T) {
	tests := map[string]string{
		"SBI":   "State Bank of India",
		"icici": "ICICI Bank",
		"AXIS":  "Axis Bank",
		"KOTAK": "Other Bank",
	}
	for code, want := range tests {
		assert.Equal(t, want, bankName(PayRequest{Method: domain.PaymentMethodNetBanking, BankCode: code}))
	}
	assert.Empty(t, bankName(PayRequest{Method: domain.PaymentMethodUPI, BankCode: "SBI"}))
}
