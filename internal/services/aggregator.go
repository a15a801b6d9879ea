package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumiere-studio/backend/internal/models"
)

// AggregateTaskRepo counts task rows for a claimant.
type AggregateTaskRepo interface {
	CountByClaimantAndStatus(ctx context.Context, userID uuid.UUID, status string) (int, error)
}

// AggregatePaymentRepo sums completed payments for a user.
type AggregatePaymentRepo interface {
	SumCompletedByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// AggregateCollabRepo returns ratings recorded for a user on completed collabs.
type AggregateCollabRepo interface {
	RatingsFor(ctx context.Context, userID uuid.UUID) ([]int, error)
}

// AggregateLedgerRepo returns a user's full ledger for reconciliation.
type AggregateLedgerRepo interface {
	ListAllByUser(ctx context.Context, userID uuid.UUID) ([]*models.LumenTransaction, error)
}

// AggregateUserRepo reads the cached projections being checked.
type AggregateUserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Aggregates are a user's derived counters recomputed from source-of-truth
// tables. Recomputing from the same rows always yields the same result.
type Aggregates struct {
	TasksCompleted     int     `json:"tasks_completed"`
	TasksValidated     int     `json:"tasks_validated"`
	TotalEarningsCents int64   `json:"total_earnings_cents"`
	AvgRating          float64 `json:"avg_rating"`
	RatingCount        int     `json:"rating_count"`
}

// BalanceReconciliation compares the ledger running sums against the cached
// balance columns on the user row.
type BalanceReconciliation struct {
	LedgerBalance int  `json:"ledger_balance"`
	CachedBalance int  `json:"cached_balance"`
	LedgerHold    int  `json:"ledger_hold"`
	CachedHold    int  `json:"cached_hold"`
	InSync        bool `json:"in_sync"`
}

type Aggregator struct {
	Tasks    AggregateTaskRepo
	Payments AggregatePaymentRepo
	Collabs  AggregateCollabRepo
	Ledger   AggregateLedgerRepo
	Users    AggregateUserRepo
}

func NewAggregator(tasks AggregateTaskRepo, payments AggregatePaymentRepo, collabs AggregateCollabRepo, ledger AggregateLedgerRepo, users AggregateUserRepo) *Aggregator {
	return &Aggregator{Tasks: tasks, Payments: payments, Collabs: collabs, Ledger: ledger, Users: users}
}

// Recompute builds the user's aggregates as a read-time projection. Both task
// counters derive from VALIDATED rows: tasksCompleted counts work the user
// carried to validation, tasksValidated is the same count kept as a separate
// cached column upstream.
func (a *Aggregator) Recompute(ctx context.Context, userID uuid.UUID) (*Aggregates, error) {
	validated, err := a.Tasks.CountByClaimantAndStatus(ctx, userID, models.TaskStatusValidated)
	if err != nil {
		return nil, err
	}
	earnings, err := a.Payments.SumCompletedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ratings, err := a.Collabs.RatingsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	agg := &Aggregates{
		TasksCompleted:     validated,
		TasksValidated:     validated,
		TotalEarningsCents: earnings,
		RatingCount:        len(ratings),
	}
	if len(ratings) > 0 {
		sum := 0
		for _, r := range ratings {
			sum += r
		}
		agg.AvgRating = float64(sum) / float64(len(ratings))
	}
	return agg, nil
}

// Reconcile replays the user's ledger and compares the running sums with the
// cached lumen_balance/lumen_hold columns. Read-only drift detection; it never
// repairs the cache.
func (a *Aggregator) Reconcile(ctx context.Context, userID uuid.UUID) (*BalanceReconciliation, error) {
	user, err := a.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := a.Ledger.ListAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec := &BalanceReconciliation{
		CachedBalance: user.LumenBalance,
		CachedHold:    user.LumenHold,
	}
	for _, e := range entries {
		rec.LedgerBalance += e.BalanceEffect()
		rec.LedgerHold += e.HoldEffect()
	}
	rec.InSync = rec.LedgerBalance == rec.CachedBalance && rec.LedgerHold == rec.CachedHold
	return rec, nil
}
