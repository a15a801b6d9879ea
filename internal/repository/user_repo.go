package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumiere-studio/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, name, password_hash, role, points, level, reputation_score, reputation_badge, tasks_completed, tasks_validated, lumen_balance, lumen_hold, max_per_order, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Points, &u.Level, &u.ReputationScore, &u.ReputationBadge, &u.TasksCompleted, &u.TasksValidated, &u.LumenBalance, &u.LumenHold, &u.MaxPerOrder, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, points, level, reputation_score, reputation_badge, tasks_completed, tasks_validated, lumen_balance, lumen_hold, max_per_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.Points, u.Level, u.ReputationScore, u.ReputationBadge, u.TasksCompleted, u.TasksValidated, u.LumenBalance, u.LumenHold, u.MaxPerOrder).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetByIDForUpdate locks the user row. Call within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// ListActiveCreators returns creator accounts other than excludeID, for
// collab partner suggestions.
func (r *UserRepo) ListActiveCreators(ctx context.Context, excludeID uuid.UUID) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE role = $1 AND id <> $2
		ORDER BY reputation_score DESC
	`, models.RoleCreator, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// MoveToHold atomically moves amount from balance to hold if the spendable
// balance covers it. Returns pgx.ErrNoRows when it does not.
func (r *UserRepo) MoveToHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET lumen_balance = lumen_balance - $1, lumen_hold = lumen_hold + $1, updated_at = now()
		WHERE id = $2 AND lumen_balance >= $1
		RETURNING lumen_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// ReleaseHold reduces the held amount without touching the spendable balance
// (the holder's side of a payout to the counterpart). Returns pgx.ErrNoRows
// when the hold does not cover the amount, so a hold can never go negative.
func (r *UserRepo) ReleaseHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) error {
	var hold int
	return tx.QueryRow(ctx, `
		UPDATE users SET lumen_hold = lumen_hold - $1, updated_at = now()
		WHERE id = $2 AND lumen_hold >= $1
		RETURNING lumen_hold
	`, amount, id).Scan(&hold)
}

// RefundHold returns held tokens to the same user's spendable balance.
// Returns pgx.ErrNoRows when the hold does not cover the amount.
func (r *UserRepo) RefundHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET lumen_hold = lumen_hold - $1, lumen_balance = lumen_balance + $1, updated_at = now()
		WHERE id = $2 AND lumen_hold >= $1
		RETURNING lumen_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// Credit adds amount to the spendable balance and returns the new balance.
func (r *UserRepo) Credit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET lumen_balance = lumen_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING lumen_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// UpdateProgress writes the cached points/level/counter projections after a
// task validation. Call within the same transaction as the source write.
func (r *UserRepo) UpdateProgress(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int, level string, tasksCompleted, tasksValidated int) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET points = $2, level = $3, tasks_completed = $4, tasks_validated = $5, updated_at = now()
		WHERE id = $1
	`, id, points, level, tasksCompleted, tasksValidated)
	return err
}

// UpdateReputation writes the cached reputation score and derived badge.
func (r *UserRepo) UpdateReputation(ctx context.Context, id uuid.UUID, score float64, badge string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET reputation_score = $2, reputation_badge = $3, updated_at = now() WHERE id = $1
	`, id, score, badge)
	return err
}

// UpdateSettings persists profile fields editable by the user.
func (r *UserRepo) UpdateSettings(ctx context.Context, u *models.User) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET email = $2, name = $3, max_per_order = $4, updated_at = now() WHERE id = $1
	`, u.ID, u.Email, u.Name, u.MaxPerOrder)
	return err
}
