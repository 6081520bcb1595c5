package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Domenick1991/railbooking/internal/clock"
	"github.com/Domenick1991/railbooking/internal/domain"
)

type odds struct {
	success float64
	failed  float64
}

var methodOdds = map[domain.PaymentMethod]odds{
	domain.PaymentMethodCreditCard: {success: 0.85, failed: 0.95},
	domain.PaymentMethodDebitCard:  {success: 0.80, failed: 0.92},
	domain.PaymentMethodUPI:        {success: 0.90, failed: 0.97},
	domain.PaymentMethodNetBanking: {success: 0.75, failed: 0.90},
}

var failureReasons = map[domain.PaymentMethod][]string{
	domain.PaymentMethodCreditCard: {"Insufficient credit limit", "Card expired", "Invalid CVV", "Card blocked"},
	domain.PaymentMethodDebitCard:  {"Insufficient balance", "Daily limit exceeded", "Card expired", "PIN incorrect"},
	domain.PaymentMethodUPI:        {"UPI PIN incorrect", "Transaction declined by bank", "UPI service unavailable", "Daily limit exceeded"},
	domain.PaymentMethodNetBanking: {"Session timeout", "Invalid credentials", "Bank server unavailable", "Transaction limit exceeded"},
}

// MockGateway simulates a provider: random latency, then Success, Failed or
// Pending with per-method odds.
type MockGateway struct {
	mu         sync.Mutex
	rnd        *rand.Rand
	clock      clock.Clock
	minLatency time.Duration
	maxLatency time.Duration
}

type MockOption func(*MockGateway)

func WithSeed(seed uint64) MockOption {
	return func(g *MockGateway) { g.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func WithLatency(lo, hi time.Duration) MockOption {
	return func(g *MockGateway) { g.minLatency, g.maxLatency = lo, hi }
}

func WithGatewayClock(c clock.Clock) MockOption {
	return func(g *MockGateway) { g.clock = c }
}

func NewMockGateway(opts ...MockOption) *MockGateway {
	g := &MockGateway{
		rnd:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		clock:      clock.Real{},
		minLatency: 500 * time.Millisecond,
		maxLatency: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MockGateway) Attempt(ctx context.Context, req AttemptRequest) (AttemptResult, error) {
	if delay := g.latency(); delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return AttemptResult{}, ctx.Err()
		case <-t.C:
		}
	}

	g.mu.Lock()
	roll := g.rnd.Float64()
	txn := g.transactionID(req.Method)
	var reason string
	o, known := methodOdds[req.Method]
	status := domain.PaymentStatusSuccess
	if known {
		switch {
		case roll < o.success:
		case roll < o.failed:
			status = domain.PaymentStatusFailed
			reasons := failureReasons[req.Method]
			reason = reasons[g.rnd.IntN(len(reasons))]
		default:
			status = domain.PaymentStatusPending
		}
	}
	g.mu.Unlock()

	res := AttemptResult{Status: status, TransactionID: txn}
	switch status {
	case domain.PaymentStatusSuccess:
		res.Message = "Payment processed successfully"
	case domain.PaymentStatusFailed:
		res.Message = reason
	default:
		res.Message = "Payment is being processed"
	}
	return res, nil
}

func (g *MockGateway) latency() time.Duration {
	if g.maxLatency <= g.minLatency {
		return g.minLatency
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.minLatency + time.Duration(g.rnd.Int64N(int64(g.maxLatency-g.minLatency)))
}

// transactionID must be called with g.mu held.
func (g *MockGateway) transactionID(m domain.PaymentMethod) string {
	return fmt.Sprintf("%s%s%06d", TransactionPrefix(m), g.clock.Now().Format("20060102"), 100000+g.rnd.IntN(900000))
}

func TransactionPrefix(m domain.PaymentMethod) string {
	switch m {
	case domain.PaymentMethodCreditCard:
		return "CC"
	case domain.PaymentMethodDebitCard:
		return "DC"
	case domain.PaymentMethodUPI:
		return "UPI"
	case domain.PaymentMethodNetBanking:
		return "NB"
	}
	return "TXN"
}

var _ Gateway = (*MockGateway)(nil)
