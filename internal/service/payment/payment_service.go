package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/railbooking/internal/clock"
	"github.com/Domenick1991/railbooking/internal/domain"
	gateway "github.com/Domenick1991/railbooking/internal/payment"
	"github.com/Domenick1991/railbooking/internal/repository"
	"github.com/Domenick1991/railbooking/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const DefaultTimeout = 10 * time.Second

type UseCase interface {
	Pay(ctx context.Context, req PayRequest) (*Result, error)
	HandleCallback(ctx context.Context, cb Callback) (*Result, error)
	History(ctx context.Context, pnr, userID string) ([]domain.Payment, error)
	UserHistory(ctx context.Context, userID string) ([]domain.UserPayment, error)
}

// Lifecycle is the part of the reservation service payments drive.
type Lifecycle interface {
	GetByPNR(ctx context.Context, pnr string) (*domain.Reservation, error)
	ConfirmPayment(ctx context.Context, pnr string, outcome domain.PaymentOutcome) (*domain.Reservation, error)
}

type PayRequest struct {
	PNR        string               `json:"pnr"`
	UserID     string               `json:"-"`
	Method     domain.PaymentMethod `json:"method"`
	CardNumber string               `json:"card_number,omitempty"`
	UPIID      string               `json:"upi_id,omitempty"`
	BankCode   string               `json:"bank_code,omitempty"`
}

// Callback is a delayed gateway notification for an earlier Pending attempt.
type Callback struct {
	PNR           string               `json:"pnr"`
	TransactionID string               `json:"transaction_id"`
	Method        domain.PaymentMethod `json:"method"`
	Status        domain.PaymentStatus `json:"status"`
	Reason        string               `json:"reason,omitempty"`
}

type Result struct {
	Payment     domain.Payment     `json:"payment"`
	Reservation domain.Reservation `json:"reservation"`
}

type Service struct {
	lifecycle Lifecycle
	payments  repository.PaymentRepository
	gw        gateway.Gateway
	clock     clock.Clock
	log       *zap.Logger
	timeout   time.Duration
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(lifecycle Lifecycle, payments repository.PaymentRepository, gw gateway.Gateway, opts ...Option) *Service {
	s := &Service{
		lifecycle: lifecycle,
		payments:  payments,
		gw:        gw,
		clock:     clock.Real{},
		log:       zap.NewNop(),
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Pay(ctx context.Context, req PayRequest) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.pay",
		attribute.String("pnr", req.PNR), attribute.String("method", string(req.Method)))
	defer span.End()

	result, err := s.pay(ctx, req)
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("payment_status", string(result.Payment.Status)))
	return result, nil
}

func (s *Service) pay(ctx context.Context, req PayRequest) (*Result, error) {
	if strings.TrimSpace(req.PNR) == "" {
		return nil, domain.NewValidationError("pnr", "is required")
	}
	if !req.Method.Valid() {
		return nil, domain.NewValidationError("method", "must be one of CreditCard, DebitCard, UPI, NetBanking")
	}

	res, err := s.owned(ctx, req.PNR, req.UserID)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.ReservationStatusPendingPayment {
		return nil, fmt.Errorf("reservation %s is %s, not pending payment: %w", res.PNR, res.Status, domain.ErrInvalidState)
	}

	prior, err := s.payments.CountByPNR(ctx, res.PNR)
	if err != nil {
		return nil, fmt.Errorf("count payment attempts: %w", err)
	}

	result := s.attempt(ctx, gateway.AttemptRequest{PNR: res.PNR, Amount: res.TotalFare, Method: req.Method})

	now := s.clock.Now()
	p := domain.Payment{
		ID:            uuid.NewString(),
		PNR:           res.PNR,
		Amount:        res.TotalFare,
		Method:        req.Method,
		TransactionID: result.TransactionID,
		Status:        result.Status,
		RetryCount:    prior,
		CardLast4:     cardLast4(req),
		UPIID:         upiID(req),
		BankName:      bankName(req),
		CreatedAt:     now,
	}
	if result.Status == domain.PaymentStatusFailed {
		p.FailureReason = result.Message
	}
	if result.Status == domain.PaymentStatusSuccess {
		p.CompletedAt = &now
	}
	s.record(ctx, &p)

	return s.apply(ctx, p, *res)
}

func (s *Service) attempt(ctx context.Context, req gateway.AttemptRequest) gateway.AttemptResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.gw.Attempt(ctx, req)
	if err != nil {
		s.log.Warn("payment gateway did not answer, recording attempt as pending",
			zap.String("pnr", req.PNR), zap.String("method", string(req.Method)), zap.Error(err))
		return gateway.AttemptResult{Status: domain.PaymentStatusPending, Message: "Payment is being processed"}
	}
	return result
}

// HandleCallback records the final gateway word on an attempt and applies it.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) (*Result, error) {
	if strings.TrimSpace(cb.PNR) == "" {
		return nil, domain.NewValidationError("pnr", "is required")
	}
	if strings.TrimSpace(cb.TransactionID) == "" {
		return nil, domain.NewValidationError("transaction_id", "is required")
	}
	if !cb.Method.Valid() {
		return nil, domain.NewValidationError("method", "must be one of CreditCard, DebitCard, UPI, NetBanking")
	}
	switch cb.Status {
	case domain.PaymentStatusSuccess, domain.PaymentStatusFailed, domain.PaymentStatusPending:
	default:
		return nil, domain.NewValidationError("status", "must be Success, Failed or Pending")
	}

	res, err := s.lifecycle.GetByPNR(ctx, cb.PNR)
	if err != nil {
		return nil, err
	}
	prior, err := s.payments.CountByPNR(ctx, res.PNR)
	if err != nil {
		return nil, fmt.Errorf("count payment attempts: %w", err)
	}

	now := s.clock.Now()
	p := domain.Payment{
		ID:            uuid.NewString(),
		PNR:           res.PNR,
		Amount:        res.TotalFare,
		Method:        cb.Method,
		TransactionID: cb.TransactionID,
		Status:        cb.Status,
		RetryCount:    prior,
		CreatedAt:     now,
	}
	if cb.Status == domain.PaymentStatusFailed {
		p.FailureReason = cb.Reason
	}
	if cb.Status == domain.PaymentStatusSuccess {
		p.CompletedAt = &now
	}
	s.record(ctx, &p)

	return s.apply(ctx, p, *res)
}

func (s *Service) History(ctx context.Context, pnr, userID string) ([]domain.Payment, error) {
	if _, err := s.owned(ctx, pnr, userID); err != nil {
		return nil, err
	}
	return s.payments.ListByPNR(ctx, pnr)
}

// UserHistory lists every payment the user made, newest first.
func (s *Service) UserHistory(ctx context.Context, userID string) ([]domain.UserPayment, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	return s.payments.ListByUser(ctx, userID)
}

func (s *Service) apply(ctx context.Context, p domain.Payment, res domain.Reservation) (*Result, error) {
	outcome := domain.PaymentOutcome{Status: p.Status, TransactionID: p.TransactionID, Reason: p.FailureReason}
	updated, err := s.lifecycle.ConfirmPayment(ctx, res.PNR, outcome)
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyCancelled) {
			return nil, err
		}
		if p.Status != domain.PaymentStatusSuccess {
			s.log.Warn("payment arrived for a cancelled reservation",
				zap.String("pnr", res.PNR), zap.String("transaction_id", p.TransactionID))
			return nil, err
		}
		s.owe(ctx, p)
		return nil, fmt.Errorf("payment %s captured after %s was cancelled, refund pending: %w",
			p.TransactionID, res.PNR, err)
	}
	return &Result{Payment: p, Reservation: *updated}, nil
}

// owe records a full refund for money captured on a reservation that was
// cancelled while the gateway was answering.
func (s *Service) owe(ctx context.Context, captured domain.Payment) {
	s.log.Error("payment captured for a cancelled reservation, refund owed",
		zap.String("pnr", captured.PNR),
		zap.String("transaction_id", captured.TransactionID),
		zap.Stringer("amount", captured.Amount),
		zap.String("trace_id", telemetry.TraceID(ctx)))
	refund := captured
	refund.ID = uuid.NewString()
	refund.Status = domain.PaymentStatusRefundPending
	refund.FailureReason = "reservation cancelled before payment was applied"
	refund.CreatedAt = s.clock.Now()
	refund.CompletedAt = nil
	s.record(ctx, &refund)
}

// record stores the attempt. Insert failures are logged, not returned.
func (s *Service) record(ctx context.Context, p *domain.Payment) {
	if err := s.payments.Insert(ctx, p); err != nil {
		s.log.Error("failed to save payment record",
			zap.String("pnr", p.PNR), zap.String("transaction_id", p.TransactionID), zap.Error(err))
		return
	}
	s.log.Info("payment attempt recorded",
		zap.String("pnr", p.PNR),
		zap.String("method", string(p.Method)),
		zap.String("status", string(p.Status)),
		zap.Int("retry_count", p.RetryCount))
}

func (s *Service) owned(ctx context.Context, pnr, userID string) (*domain.Reservation, error) {
	res, err := s.lifecycle.GetByPNR(ctx, pnr)
	if err != nil {
		return nil, err
	}
	if userID != "" && res.UserID != userID {
		return nil, domain.ErrReservationNotFound
	}
	return res, nil
}

func cardLast4(req PayRequest) string {
	if req.Method != domain.PaymentMethodCreditCard && req.Method != domain.PaymentMethodDebitCard {
		return ""
	}
	digits := strings.ReplaceAll(req.CardNumber, " ", "")
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}

func upiID(req PayRequest) string {
	if req.Method != domain.PaymentMethodUPI {
		return ""
	}
	return strings.TrimSpace(req.UPIID)
}

func bankName(req PayRequest) string {
	if req.Method != domain.PaymentMethodNetBanking || req.BankCode == "" {
		return ""
	}
	switch strings.ToUpper(req.BankCode) {
	case "SBI":
		return "State Bank of India"
	case "HDFC":
		return "HDFC Bank"
	case "ICICI":
		return "ICICI Bank"
	case "AXIS":
		return "Axis Bank"
	}
	return "Other Bank"
}

var _ UseCase = (*Service)(nil)
