package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumiere-studio/backend/internal/models"
)

type ScreenplayRepo struct {
	pool *pgxpool.Pool
}

func NewScreenplayRepo(pool *pgxpool.Pool) *ScreenplayRepo {
	return &ScreenplayRepo{pool: pool}
}

const screenplayColumns = `id, author_id, title, logline, content, ai_score, ai_confidence_score, status, created_at, updated_at`

func scanScreenplay(row pgx.Row) (*models.Screenplay, error) {
	var s models.Screenplay
	err := row.Scan(&s.ID, &s.AuthorID, &s.Title, &s.Logline, &s.Content, &s.AIScore, &s.AIConfidenceScore, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScreenplayRepo) CreateTx(ctx context.Context, tx pgx.Tx, s *models.Screenplay) error {
	return tx.QueryRow(ctx, `
		INSERT INTO screenplays (id, author_id, title, logline, content, ai_score, ai_confidence_score, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, s.ID, s.AuthorID, s.Title, s.Logline, s.Content, s.AIScore, s.AIConfidenceScore, s.Status).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *ScreenplayRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Screenplay, error) {
	return scanScreenplay(r.pool.QueryRow(ctx, `SELECT `+screenplayColumns+` FROM screenplays WHERE id = $1`, id))
}

func (r *ScreenplayRepo) Update(ctx context.Context, s *models.Screenplay) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE screenplays SET status = $2, ai_score = $3, ai_confidence_score = $4, updated_at = now()
		WHERE id = $1
	`, s.ID, s.Status, s.AIScore, s.AIConfidenceScore)
	return err
}

func (r *ScreenplayRepo) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Screenplay, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+screenplayColumns+` FROM screenplays WHERE author_id = $1 ORDER BY created_at DESC`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Screenplay
	for rows.Next() {
		s, err := scanScreenplay(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
