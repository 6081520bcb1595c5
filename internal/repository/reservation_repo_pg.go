package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reservationColumns = `pnr, user_id, train_run_id, journey_date, passenger_count, total_fare, status, passengers, booked_at, updated_at`

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) *PGReservationRepository {
	return &PGReservationRepository{db: db}
}

func (r *PGReservationRepository) Insert(ctx context.Context, res *domain.Reservation) error {
	passengers, err := json.Marshal(res.Passengers)
	if err != nil {
		return fmt.Errorf("encode passengers: %w", err)
	}
	// ON CONFLICT keeps the surrounding transaction usable so the caller can retry with another PNR.
	tag, err := conn(ctx, r.db).Exec(ctx, `INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (pnr) DO NOTHING`,
		res.PNR, res.UserID, res.TrainRunID, res.JourneyDate, res.PassengerCount, res.TotalFare, res.Status, passengers, res.BookedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicatePNR
	}
	return nil
}

func (r *PGReservationRepository) GetByPNR(ctx context.Context, pnr string) (*domain.Reservation, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE pnr=$1`, pnr)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrReservationNotFound
	}
	return res, err
}

func (r *PGReservationRepository) ListByUser(ctx context.Context, userID string) ([]domain.Reservation, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE user_id=$1 ORDER BY booked_at DESC, pnr`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return collectReservations(rows)
}

func (r *PGReservationRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, after domain.PendingCursor, limit int) ([]domain.Reservation, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if after.IsZero() {
		rows, err = conn(ctx, r.db).Query(ctx, `SELECT `+reservationColumns+` FROM reservations
			WHERE status=$1 AND booked_at < $2 ORDER BY booked_at, pnr LIMIT $3`,
			domain.ReservationStatusPendingPayment, cutoff, limit)
	} else {
		rows, err = conn(ctx, r.db).Query(ctx, `SELECT `+reservationColumns+` FROM reservations
			WHERE status=$1 AND booked_at < $2 AND (booked_at, pnr) > ($3, $4)
			ORDER BY booked_at, pnr LIMIT $5`,
			domain.ReservationStatusPendingPayment, cutoff, after.BookedAt, after.PNR, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list pending reservations: %w", err)
	}
	return collectReservations(rows)
}

func (r *PGReservationRepository) UpdateStatus(ctx context.Context, pnr string, from, to domain.ReservationStatus, at time.Time) (*domain.Reservation, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `UPDATE reservations SET status=$3, updated_at=$4
		WHERE pnr=$1 AND status=$2 RETURNING `+reservationColumns, pnr, from, to, at)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := r.GetByPNR(ctx, pnr)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == domain.ReservationStatusCancelled {
			return nil, domain.ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("%s is %s, not %s: %w", pnr, current.Status, from, domain.ErrInvalidState)
	}
	return res, err
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()
	out := make([]domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		res        domain.Reservation
		passengers []byte
	)
	if err := row.Scan(&res.PNR, &res.UserID, &res.TrainRunID, &res.JourneyDate, &res.PassengerCount, &res.TotalFare, &res.Status, &passengers, &res.BookedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(passengers, &res.Passengers); err != nil {
		return nil, fmt.Errorf("decode passengers of %s: %w", res.PNR, err)
	}
	return &res, nil
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
