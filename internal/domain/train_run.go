package domain

import "time"

type TrainRun struct {
	ID             int64
	Number         string
	Name           string
	Source         string
	Destination    string
	DepartureTime  string
	ArrivalTime    string
	Class          string
	TotalSeats     int
	AvailableSeats int
	Fare           Money
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasSeats reports whether count seats can still be held on the run.
func (t *TrainRun) HasSeats(count int) bool {
	return count > 0 && t.AvailableSeats >= count
}
