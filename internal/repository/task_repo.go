package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumiere-studio/backend/internal/models"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `id, film_id, phase, title, status, price_cents, difficulty, claimed_by_id, submission_payload, ai_score, created_at, updated_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.FilmID, &t.Phase, &t.Title, &t.Status, &t.PriceCents, &t.Difficulty, &t.ClaimedByID, &t.SubmissionPayload, &t.AIScore, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, film_id, phase, title, status, price_cents, difficulty, claimed_by_id, submission_payload, ai_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, t.ID, t.FilmID, t.Phase, t.Title, t.Status, t.PriceCents, t.Difficulty, t.ClaimedByID, t.SubmissionPayload, t.AIScore).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// Claim assigns the task to userID only if it is still AVAILABLE and unclaimed.
// Returns false when the conditional update matched no row (claim race lost).
func (r *TaskRepo) Claim(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = $3, claimed_by_id = $2, updated_at = now()
		WHERE id = $1 AND status = $4 AND claimed_by_id IS NULL
	`, id, userID, models.TaskStatusClaimed, models.TaskStatusAvailable)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TaskRepo) Update(ctx context.Context, t *models.Task) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = $2, claimed_by_id = $3, submission_payload = $4, ai_score = $5, updated_at = now()
		WHERE id = $1
	`, t.ID, t.Status, t.ClaimedByID, t.SubmissionPayload, t.AIScore)
	return err
}

// UpdateTx is Update inside a caller-owned transaction (validation writes the
// task, the payment, and the user projections atomically).
func (r *TaskRepo) UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	_, err := tx.Exec(ctx, `
		UPDATE tasks SET status = $2, claimed_by_id = $3, submission_payload = $4, ai_score = $5, updated_at = now()
		WHERE id = $1
	`, t.ID, t.Status, t.ClaimedByID, t.SubmissionPayload, t.AIScore)
	return err
}

func (r *TaskRepo) ListByStatus(ctx context.Context, status string) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = $1 ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *TaskRepo) ListByClaimant(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE claimed_by_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// CountByClaimantAndStatus feeds the score aggregator's projections.
func (r *TaskRepo) CountByClaimantAndStatus(ctx context.Context, userID uuid.UUID, status string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM tasks WHERE claimed_by_id = $1 AND status = $2
	`, userID, status).Scan(&n)
	return n, err
}

func collectTasks(rows pgx.Rows) ([]*models.Task, error) {
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
