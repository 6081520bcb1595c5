package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cancellationColumns = `id, pnr, user_id, reason, refund_amount, refund_status, cancelled_by, created_at`

type PGCancellationRepository struct {
	db *pgxpool.Pool
}

func NewCancellationRepository(db *pgxpool.Pool) *PGCancellationRepository {
	return &PGCancellationRepository{db: db}
}

func (r *PGCancellationRepository) Insert(ctx context.Context, c *domain.Cancellation) error {
	_, err := conn(ctx, r.db).Exec(ctx, `INSERT INTO cancellations (`+cancellationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.PNR, c.UserID, c.Reason, c.RefundAmount, c.RefundStatus, c.CancelledBy, c.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyCancelled
	}
	if err != nil {
		return fmt.Errorf("insert cancellation: %w", err)
	}
	return nil
}

func (r *PGCancellationRepository) GetByPNR(ctx context.Context, pnr string) (*domain.Cancellation, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+cancellationColumns+` FROM cancellations WHERE pnr=$1`, pnr)
	c, err := scanCancellation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cancellation for %s: %w", pnr, domain.ErrNotFound)
	}
	return c, err
}

func (r *PGCancellationRepository) ListByUser(ctx context.Context, userID string) ([]domain.Cancellation, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+cancellationColumns+` FROM cancellations WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cancellations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Cancellation, 0)
	for rows.Next() {
		c, err := scanCancellation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCancellation(row pgx.Row) (*domain.Cancellation, error) {
	var c domain.Cancellation
	if err := row.Scan(&c.ID, &c.PNR, &c.UserID, &c.Reason, &c.RefundAmount, &c.RefundStatus, &c.CancelledBy, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

var _ CancellationRepository = (*PGCancellationRepository)(nil)
