package notify

import (
	"time"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/google/uuid"
)

const (
	EventBookingConfirmed = "reservation.confirmed"
	EventCancelled        = "reservation.cancelled"
)

// Event is the wire form of a reservation notification.
type Event struct {
	ID             string       `json:"id"`
	Type           string       `json:"type"`
	PNR            string       `json:"pnr"`
	UserID         string       `json:"user_id"`
	TrainRunID     int64        `json:"train_run_id"`
	JourneyDate    time.Time    `json:"journey_date"`
	PassengerCount int          `json:"passenger_count"`
	TotalFare      domain.Money `json:"total_fare"`
	RefundAmount   domain.Money `json:"refund_amount,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	CancelledBy    string       `json:"cancelled_by,omitempty"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

func BookingConfirmedEvent(r domain.Reservation) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           EventBookingConfirmed,
		PNR:            r.PNR,
		UserID:         r.UserID,
		TrainRunID:     r.TrainRunID,
		JourneyDate:    r.JourneyDate,
		PassengerCount: r.PassengerCount,
		TotalFare:      r.TotalFare,
		OccurredAt:     r.UpdatedAt,
	}
}

func CancelledEvent(r domain.Reservation, c domain.Cancellation) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           EventCancelled,
		PNR:            r.PNR,
		UserID:         r.UserID,
		TrainRunID:     r.TrainRunID,
		JourneyDate:    r.JourneyDate,
		PassengerCount: r.PassengerCount,
		TotalFare:      r.TotalFare,
		RefundAmount:   c.RefundAmount,
		Reason:         c.Reason,
		CancelledBy:    string(c.CancelledBy),
		OccurredAt:     c.CreatedAt,
	}
}
