// Package payment holds the outbound payment gateway abstraction and a
// simulated gateway used until a real provider is integrated.
package payment

import (
	"context"

	"github.com/Domenick1991/railbooking/internal/domain"
)

type AttemptRequest struct {
	PNR    string
	Amount domain.Money
	Method domain.PaymentMethod
}

type AttemptResult struct {
	Status        domain.PaymentStatus
	TransactionID string
	Message       string
}

// Gateway charges a reservation. A returned error means the outcome is unknown.
type Gateway interface {
	Attempt(ctx context.Context, req AttemptRequest) (AttemptResult, error)
}
