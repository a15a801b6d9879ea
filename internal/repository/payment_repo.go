package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumiere-studio/backend/internal/models"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// CreateTx records a payment inside the task-validation transaction.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Payment) error {
	return tx.QueryRow(ctx, `
		INSERT INTO payments (id, task_id, user_id, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, p.ID, p.TaskID, p.UserID, p.AmountCents, p.Status).Scan(&p.CreatedAt)
}

// SumCompletedByUser returns the user's total completed earnings in cents.
func (r *PaymentRepo) SumCompletedByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE user_id = $1 AND status = $2
	`, userID, models.PaymentStatusCompleted).Scan(&total)
	return total, err
}

func (r *PaymentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, user_id, amount_cents, status, created_at
		FROM payments WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.TaskID, &p.UserID, &p.AmountCents, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
