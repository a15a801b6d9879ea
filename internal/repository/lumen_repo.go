package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumiere-studio/backend/internal/models"
)

// LumenRepo persists the append-only lumen transaction ledger.
type LumenRepo struct {
	pool *pgxpool.Pool
}

func NewLumenRepo(pool *pgxpool.Pool) *LumenRepo {
	return &LumenRepo{pool: pool}
}

// CreateTx inserts a ledger entry inside the given transaction.
func (r *LumenRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.LumenTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO lumen_transactions (id, user_id, ref_id, entry_type, amount, balance_after, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, t.ID, t.UserID, t.RefID, t.EntryType, t.Amount, t.BalanceAfter, t.Description).Scan(&t.CreatedAt)
}

func (r *LumenRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LumenTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, ref_id, entry_type, amount, balance_after, description, created_at
		FROM lumen_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LumenTransaction
	for rows.Next() {
		var t models.LumenTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.RefID, &t.EntryType, &t.Amount, &t.BalanceAfter, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// ListAllByUser returns the user's complete ledger, oldest first, for
// reconciliation against the cached balance columns.
func (r *LumenRepo) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]*models.LumenTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, ref_id, entry_type, amount, balance_after, description, created_at
		FROM lumen_transactions WHERE user_id = $1 ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LumenTransaction
	for rows.Next() {
		var t models.LumenTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.RefID, &t.EntryType, &t.Amount, &t.BalanceAfter, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
