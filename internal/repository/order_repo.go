package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumiere-studio/backend/internal/models"
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, client_id, creator_id, title, brief, status, price_tokens, revision_count, max_revisions, rating, deadline, delivery_payload, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.ClientID, &o.CreatorID, &o.Title, &o.Brief, &o.Status, &o.PriceTokens, &o.RevisionCount, &o.MaxRevisions, &o.Rating, &o.Deadline, &o.DeliveryPayload, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) CreateTx(ctx context.Context, tx pgx.Tx, o *models.Order) error {
	return tx.QueryRow(ctx, `
		INSERT INTO orders (id, client_id, creator_id, title, brief, status, price_tokens, revision_count, max_revisions, rating, deadline, delivery_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, o.ID, o.ClientID, o.CreatorID, o.Title, o.Brief, o.Status, o.PriceTokens, o.RevisionCount, o.MaxRevisions, o.Rating, o.Deadline, o.DeliveryPayload).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error) {
	return scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

// Claim assigns the order to creatorID only if it is still OPEN and
// unassigned. Returns false when the conditional update matched no row.
func (r *OrderRepo) Claim(ctx context.Context, id, creatorID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $3, creator_id = $2, updated_at = now()
		WHERE id = $1 AND status = $4 AND creator_id IS NULL
	`, id, creatorID, models.OrderStatusClaimed, models.OrderStatusOpen)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementRevision moves DELIVERED -> REVISION only while the revision count
// is below the order's limit. Returns false when the limit is reached (or the
// order is no longer DELIVERED).
func (r *OrderRepo) IncrementRevision(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, revision_count = revision_count + 1, updated_at = now()
		WHERE id = $1 AND status = $3 AND revision_count < max_revisions
	`, id, models.OrderStatusRevision, models.OrderStatusDelivered)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepo) UpdateTx(ctx context.Context, tx pgx.Tx, o *models.Order) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, creator_id = $3, revision_count = $4, rating = $5, delivery_payload = $6, updated_at = now()
		WHERE id = $1
	`, o.ID, o.Status, o.CreatorID, o.RevisionCount, o.Rating, o.DeliveryPayload)
	return err
}

func (r *OrderRepo) ListOpen(ctx context.Context) ([]*models.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC`, models.OrderStatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *OrderRepo) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE client_id = $1 OR creator_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]*models.Order, error) {
	var list []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}
