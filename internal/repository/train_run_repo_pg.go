package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const trainRunColumns = `id, number, name, source, destination, departure_time, arrival_time, class, total_seats, available_seats, fare, created_at, updated_at`

type PGTrainRunRepository struct {
	db *pgxpool.Pool
}

func NewTrainRunRepository(db *pgxpool.Pool) *PGTrainRunRepository {
	return &PGTrainRunRepository{db: db}
}

func (r *PGTrainRunRepository) List(ctx context.Context) ([]domain.TrainRun, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+trainRunColumns+` FROM train_runs ORDER BY departure_time, id`)
	if err != nil {
		return nil, fmt.Errorf("list train runs: %w", err)
	}
	return collectTrainRuns(rows)
}

func (r *PGTrainRunRepository) Search(ctx context.Context, source, destination string) ([]domain.TrainRun, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+trainRunColumns+` FROM train_runs
		WHERE lower(source)=lower($1) AND lower(destination)=lower($2) ORDER BY departure_time, id`, source, destination)
	if err != nil {
		return nil, fmt.Errorf("search train runs: %w", err)
	}
	return collectTrainRuns(rows)
}

func (r *PGTrainRunRepository) SearchByNumber(ctx context.Context, number string) ([]domain.TrainRun, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+trainRunColumns+` FROM train_runs
		WHERE strpos(lower(number), lower($1)) > 0 ORDER BY number, id`, number)
	if err != nil {
		return nil, fmt.Errorf("search train runs by number: %w", err)
	}
	return collectTrainRuns(rows)
}

func collectTrainRuns(rows pgx.Rows) ([]domain.TrainRun, error) {
	defer rows.Close()

	runs := make([]domain.TrainRun, 0)
	for rows.Next() {
		t, err := scanTrainRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *t)
	}
	return runs, rows.Err()
}

func (r *PGTrainRunRepository) GetByID(ctx context.Context, id int64) (*domain.TrainRun, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+trainRunColumns+` FROM train_runs WHERE id=$1`, id)
	t, err := scanTrainRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTrainRunNotFound
	}
	return t, err
}

func (r *PGTrainRunRepository) Reserve(ctx context.Context, id int64, count int) error {
	if count <= 0 {
		return domain.NewValidationError("count", "must be positive")
	}
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE train_runs SET available_seats = available_seats - $2, updated_at = now() WHERE id=$1 AND available_seats >= $2`, id, count)
	if err != nil {
		return fmt.Errorf("reserve seats: %w", err)
	}
	if res.RowsAffected() == 0 {
		if err := r.ensureExists(ctx, id); err != nil {
			return err
		}
		return domain.ErrInsufficientSeats
	}
	return nil
}

func (r *PGTrainRunRepository) Release(ctx context.Context, id int64, count int) error {
	if count <= 0 {
		return domain.NewValidationError("count", "must be positive")
	}
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE train_runs SET available_seats = available_seats + $2, updated_at = now() WHERE id=$1 AND available_seats + $2 <= total_seats`, id, count)
	if err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	if res.RowsAffected() == 0 {
		if err := r.ensureExists(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("release %d seats on run %d: %w", count, id, domain.ErrInventoryInconsistency)
	}
	return nil
}

func (r *PGTrainRunRepository) ensureExists(ctx context.Context, id int64) error {
	var exists bool
	if err := conn(ctx, r.db).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM train_runs WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check train run: %w", err)
	}
	if !exists {
		return domain.ErrTrainRunNotFound
	}
	return nil
}

func scanTrainRun(row pgx.Row) (*domain.TrainRun, error) {
	var t domain.TrainRun
	if err := row.Scan(&t.ID, &t.Number, &t.Name, &t.Source, &t.Destination, &t.DepartureTime, &t.ArrivalTime, &t.Class, &t.TotalSeats, &t.AvailableSeats, &t.Fare, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

var _ TrainRunRepository = (*PGTrainRunRepository)(nil)
