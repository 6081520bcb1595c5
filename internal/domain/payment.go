package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusSuccess PaymentStatus = "Success"
	PaymentStatusFailed  PaymentStatus = "Failed"
	// PaymentStatusRefundPending marks money captured for a reservation that
	// was cancelled before the payment could confirm it.
	PaymentStatusRefundPending PaymentStatus = "RefundPending"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "CreditCard"
	PaymentMethodDebitCard  PaymentMethod = "DebitCard"
	PaymentMethodUPI        PaymentMethod = "UPI"
	PaymentMethodNetBanking PaymentMethod = "NetBanking"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodUPI, PaymentMethodNetBanking:
		return true
	}
	return false
}

// Payment is one attempt to pay for a reservation. Attempts are never updated.
type Payment struct {
	ID            string
	PNR           string
	Amount        Money
	Method        PaymentMethod
	TransactionID string
	Status        PaymentStatus
	FailureReason string
	RetryCount    int
	CardLast4     string
	UPIID         string
	BankName      string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// UserPayment is a payment as listed in its owner's history.
type UserPayment struct {
	Payment
	JourneyDate time.Time
}

// PaymentOutcome is what the gateway (or its delayed callback) reported for a reservation.
type PaymentOutcome struct {
	Status        PaymentStatus
	TransactionID string
	Reason        string
}

func (o PaymentOutcome) Succeeded() bool {
	return o.Status == PaymentStatusSuccess
}
