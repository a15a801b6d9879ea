package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumiere-studio/backend/internal/models"
)

type CollabRepo struct {
	pool *pgxpool.Pool
}

func NewCollabRepo(pool *pgxpool.Pool) *CollabRepo {
	return &CollabRepo{pool: pool}
}

const collabColumns = `id, from_user_id, to_user_id, type, status, escrow_tokens, message, rating, rated_user_id, created_at, updated_at`

func scanCollab(row pgx.Row) (*models.CollabRequest, error) {
	var c models.CollabRequest
	err := row.Scan(&c.ID, &c.FromUserID, &c.ToUserID, &c.Type, &c.Status, &c.EscrowTokens, &c.Message, &c.Rating, &c.RatedUserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateTx inserts the request inside the caller's transaction, alongside the
// escrow hold.
func (r *CollabRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CollabRequest) error {
	return tx.QueryRow(ctx, `
		INSERT INTO collab_requests (id, from_user_id, to_user_id, type, status, escrow_tokens, message, rating, rated_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, c.ID, c.FromUserID, c.ToUserID, c.Type, c.Status, c.EscrowTokens, c.Message, c.Rating, c.RatedUserID).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *CollabRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CollabRequest, error) {
	return scanCollab(r.pool.QueryRow(ctx, `SELECT `+collabColumns+` FROM collab_requests WHERE id = $1`, id))
}

// GetByIDForUpdate locks the request row so concurrent transitions serialize.
func (r *CollabRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.CollabRequest, error) {
	return scanCollab(tx.QueryRow(ctx, `SELECT `+collabColumns+` FROM collab_requests WHERE id = $1 FOR UPDATE`, id))
}

func (r *CollabRepo) UpdateTx(ctx context.Context, tx pgx.Tx, c *models.CollabRequest) error {
	_, err := tx.Exec(ctx, `
		UPDATE collab_requests SET status = $2, rating = $3, rated_user_id = $4, updated_at = now()
		WHERE id = $1
	`, c.ID, c.Status, c.Rating, c.RatedUserID)
	return err
}

func (r *CollabRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.CollabRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+collabColumns+` FROM collab_requests
		WHERE from_user_id = $1 OR to_user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CollabRequest
	for rows.Next() {
		c, err := scanCollab(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// RatingsFor returns the ratings recorded for userID across completed collabs,
// for the score aggregator's avg-rating projection.
func (r *CollabRepo) RatingsFor(ctx context.Context, userID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rating FROM collab_requests
		WHERE rated_user_id = $1 AND status = $2 AND rating IS NOT NULL
	`, userID, models.CollabStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
