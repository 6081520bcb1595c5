package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, pnr, amount, method, transaction_id, status, failure_reason, retry_count, card_last4, upi_id, bank_name, created_at, completed_at`

type PGPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PGPaymentRepository {
	return &PGPaymentRepository{db: db}
}

func (r *PGPaymentRepository) Insert(ctx context.Context, p *domain.Payment) error {
	_, err := conn(ctx, r.db).Exec(ctx, `INSERT INTO payments (`+paymentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.PNR, p.Amount, p.Method, p.TransactionID, p.Status, p.FailureReason, p.RetryCount, p.CardLast4, p.UPIID, p.BankName, p.CreatedAt, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PGPaymentRepository) ListByPNR(ctx context.Context, pnr string) ([]domain.Payment, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE pnr=$1 ORDER BY created_at`, pnr)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Payment, 0)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.PNR, &p.Amount, &p.Method, &p.TransactionID, &p.Status, &p.FailureReason, &p.RetryCount, &p.CardLast4, &p.UPIID, &p.BankName, &p.CreatedAt, &p.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGPaymentRepository) ListByUser(ctx context.Context, userID string) ([]domain.UserPayment, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT p.id, p.pnr, p.amount, p.method, p.transaction_id, p.status,
			p.failure_reason, p.retry_count, p.card_last4, p.upi_id, p.bank_name, p.created_at, p.completed_at, r.journey_date
		FROM payments p JOIN reservations r ON r.pnr = p.pnr
		WHERE r.user_id=$1 ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user payments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.UserPayment, 0)
	for rows.Next() {
		var p domain.UserPayment
		if err := rows.Scan(&p.ID, &p.PNR, &p.Amount, &p.Method, &p.TransactionID, &p.Status, &p.FailureReason, &p.RetryCount,
			&p.CardLast4, &p.UPIID, &p.BankName, &p.CreatedAt, &p.CompletedAt, &p.JourneyDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGPaymentRepository) CountByPNR(ctx context.Context, pnr string) (int, error) {
	var n int
	if err := conn(ctx, r.db).QueryRow(ctx, `SELECT count(*) FROM payments WHERE pnr=$1`, pnr).Scan(&n); err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return n, nil
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)
