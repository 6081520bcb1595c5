package reservation

import (
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/railbooking/internal/clock"
	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/pnr"
)

func validateCreate(in CreateInput, now time.Time) error {
	if strings.TrimSpace(in.UserID) == "" {
		return domain.NewValidationError("user_id", "is required")
	}
	if in.TrainRunID <= 0 {
		return domain.NewValidationError("train_run_id", "must be positive")
	}
	if in.JourneyDate.IsZero() {
		return domain.NewValidationError("journey_date", "is required")
	}
	if dateOf(in.JourneyDate).Before(dateOf(now)) {
		return domain.NewValidationError("journey_date", "cannot be in the past")
	}
	n := len(in.Passengers)
	if n < domain.MinPassengers || n > domain.MaxPassengers {
		return domain.NewValidationError("passengers", fmt.Sprintf("between %d and %d passengers allowed per booking", domain.MinPassengers, domain.MaxPassengers))
	}
	for i, p := range in.Passengers {
		field := fmt.Sprintf("passengers[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			return domain.NewValidationError(field+".name", "is required")
		}
		if p.Age < 1 || p.Age > 120 {
			return domain.NewValidationError(field+".age", "must be between 1 and 120")
		}
		if normalizeGender(p.Gender) == "" {
			return domain.NewValidationError(field+".gender", "must be M, F or O")
		}
	}
	return nil
}

// dateOf drops the time of day, keeping the calendar date as seen in t's location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func normalizeGender(g string) string {
	switch strings.ToUpper(strings.TrimSpace(g)) {
	case "M", "MALE":
		return "M"
	case "F", "FEMALE":
		return "F"
	case "O", "OTHER":
		return "O"
	}
	return ""
}

func normalizePassengers(in []domain.Passenger) []domain.Passenger {
	out := make([]domain.Passenger, len(in))
	for i, p := range in {
		out[i] = domain.Passenger{Name: strings.TrimSpace(p.Name), Age: p.Age, Gender: normalizeGender(p.Gender)}
	}
	return out
}

func newPNRGenerator(c clock.Clock) PNRGenerator {
	return pnr.NewGenerator(c)
}
