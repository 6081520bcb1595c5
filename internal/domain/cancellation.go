package domain

import "time"

type Initiator string

const (
	InitiatorUser   Initiator = "USER"
	InitiatorSystem Initiator = "SYSTEM"
)

const RefundStatusPending = "Pending"

type Cancellation struct {
	ID           string
	PNR          string
	UserID       string
	Reason       string
	RefundAmount Money
	RefundStatus string
	CancelledBy  Initiator
	CreatedAt    time.Time
}
