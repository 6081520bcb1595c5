package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusPendingPayment ReservationStatus = "PENDING_PAYMENT"
	ReservationStatusConfirmed      ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled      ReservationStatus = "CANCELLED"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusPendingPayment, ReservationStatusConfirmed, ReservationStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no payment transition leaves s.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusConfirmed || s == ReservationStatusCancelled
}

func (s ReservationStatus) String() string {
	return string(s)
}

const (
	MinPassengers = 1
	MaxPassengers = 6
)

type Passenger struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

type Reservation struct {
	PNR            string
	UserID         string
	TrainRunID     int64
	JourneyDate    time.Time
	PassengerCount int
	TotalFare      Money
	Status         ReservationStatus
	Passengers     []Passenger
	BookedAt       time.Time
	UpdatedAt      time.Time
}

// Clone returns a copy that shares no mutable state with r.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	c.Passengers = append([]Passenger(nil), r.Passengers...)
	return &c
}

// PendingCursor is a position in the oldest-first listing of pending
// reservations. The zero value starts from the beginning.
type PendingCursor struct {
	BookedAt time.Time
	PNR      string
}

func (c PendingCursor) IsZero() bool {
	return c.PNR == "" && c.BookedAt.IsZero()
}

// Before reports whether c sorts ahead of r in the listing.
func (c PendingCursor) Before(r *Reservation) bool {
	if !r.BookedAt.Equal(c.BookedAt) {
		return c.BookedAt.Before(r.BookedAt)
	}
	return c.PNR < r.PNR
}

// CursorAt returns the cursor positioned on r.
func CursorAt(r *Reservation) PendingCursor {
	return PendingCursor{BookedAt: r.BookedAt, PNR: r.PNR}
}
