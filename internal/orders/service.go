package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lumiere-studio/backend/internal/models"
)

var (
	// ErrAlreadyClaimed is returned to the loser of a claim race.
	ErrAlreadyClaimed = errors.New("order already claimed")
	// ErrInvalidTransition is returned when the requested state change is not
	// allowed from the order's current status.
	ErrInvalidTransition = errors.New("transition not allowed from current state")
	// ErrNotAuthorized is returned when the acting user may not perform the
	// transition.
	ErrNotAuthorized = errors.New("actor not authorized for this transition")
	// ErrRevisionLimitExceeded is returned when a revision request would push
	// revision_count past max_revisions.
	ErrRevisionLimitExceeded = errors.New("revision limit exceeded")
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repo is the order repository interface used by the service.
type Repo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error)
	Claim(ctx context.Context, id, creatorID uuid.UUID) (bool, error)
	IncrementRevision(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, o *models.Order) error
	ListOpen(ctx context.Context) ([]*models.Order, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Order, error)
}

// Escrow abstracts the token movements tied to lifecycle transitions.
type Escrow interface {
	Hold(ctx context.Context, tx pgx.Tx, userID, refID uuid.UUID, amount int, description string) error
	Release(ctx context.Context, tx pgx.Tx, holderID, recipientID, refID uuid.UUID, amount int, description string) error
	Refund(ctx context.Context, tx pgx.Tx, holderID, refID uuid.UUID, amount int, description string) error
}

// NotifyTxFunc enqueues a terminal-state notification within the transaction.
type NotifyTxFunc func(ctx context.Context, tx pgx.Tx, event string, o *models.Order) error

// Service owns the order state machine. The client's tokens move into hold at
// creation and are released to the creator exactly once, at COMPLETED.
type Service struct {
	pool   TxBeginner
	repo   Repo
	escrow Escrow
	notify NotifyTxFunc
	log    *slog.Logger
}

func NewService(pool TxBeginner, repo Repo, escrow Escrow, notify NotifyTxFunc, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{pool: pool, repo: repo, escrow: escrow, notify: notify, log: log}
}

// Create opens an OPEN order and holds priceTokens from the client.
// Only clients may commission orders.
func (s *Service) Create(ctx context.Context, actingUserID uuid.UUID, actingRole, title string, brief json.RawMessage, priceTokens, maxRevisions int, deadline *time.Time) (*models.Order, error) {
	if actingRole != models.RoleClient && actingRole != models.RoleAdmin {
		return nil, ErrNotAuthorized
	}
	if priceTokens <= 0 {
		return nil, fmt.Errorf("price_tokens must be > 0")
	}
	if maxRevisions < 0 {
		return nil, fmt.Errorf("max_revisions must be >= 0")
	}

	o := &models.Order{
		ID:           uuid.New(),
		ClientID:     actingUserID,
		Title:        title,
		Brief:        brief,
		Status:       models.OrderStatusOpen,
		PriceTokens:  priceTokens,
		MaxRevisions: maxRevisions,
		Deadline:     deadline,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.escrow.Hold(ctx, tx, o.ClientID, o.ID, o.PriceTokens, "order escrow"); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// Claim assigns an OPEN order to the acting creator. First claim wins: the
// conditional update resolves concurrent claims at the store, and zero rows
// affected surfaces as ErrAlreadyClaimed.
func (s *Service) Claim(ctx context.Context, actingUserID uuid.UUID, actingRole string, id uuid.UUID) (*models.Order, error) {
	if actingRole != models.RoleCreator {
		return nil, ErrNotAuthorized
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.ClientID == actingUserID {
		return nil, ErrNotAuthorized
	}
	ok, err := s.repo.Claim(ctx, id, actingUserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyClaimed
	}
	return s.repo.GetByID(ctx, id)
}

// Start moves CLAIMED -> IN_PROGRESS. Only the assigned creator.
func (s *Service) Start(ctx context.Context, actingUserID, id uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, id, func(o *models.Order) error {
		if o.Status != models.OrderStatusClaimed {
			return ErrInvalidTransition
		}
		if !isAssignedCreator(o, actingUserID) {
			return ErrNotAuthorized
		}
		o.Status = models.OrderStatusInProgress
		return nil
	}, nil)
}

// Deliver moves IN_PROGRESS or REVISION -> DELIVERED with the work payload.
// Only the assigned creator.
func (s *Service) Deliver(ctx context.Context, actingUserID, id uuid.UUID, payload json.RawMessage) (*models.Order, error) {
	return s.transition(ctx, id, func(o *models.Order) error {
		if o.Status != models.OrderStatusInProgress && o.Status != models.OrderStatusRevision {
			return ErrInvalidTransition
		}
		if !isAssignedCreator(o, actingUserID) {
			return ErrNotAuthorized
		}
		o.Status = models.OrderStatusDelivered
		o.DeliveryPayload = payload
		return nil
	}, nil)
}

// RequestRevision moves DELIVERED -> REVISION, incrementing revision_count.
// The conditional update enforces revision_count < max_revisions atomically;
// hitting the limit surfaces as ErrRevisionLimitExceeded.
func (s *Service) RequestRevision(ctx context.Context, actingUserID, id uuid.UUID) (*models.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if o.ClientID != actingUserID {
		return nil, ErrNotAuthorized
	}
	if o.Status != models.OrderStatusDelivered {
		return nil, ErrInvalidTransition
	}
	ok, err := s.repo.IncrementRevision(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRevisionLimitExceeded
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Complete moves DELIVERED or REVISION -> COMPLETED, releases the escrow to
// the creator, and records the client's optional rating. Only the client.
func (s *Service) Complete(ctx context.Context, actingUserID, id uuid.UUID, rating *int) (*models.Order, error) {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, fmt.Errorf("rating must be between 1 and 5")
	}
	return s.transition(ctx, id, func(o *models.Order) error {
		if o.Status != models.OrderStatusDelivered && o.Status != models.OrderStatusRevision {
			return ErrInvalidTransition
		}
		if o.ClientID != actingUserID {
			return ErrNotAuthorized
		}
		o.Status = models.OrderStatusCompleted
		o.Rating = rating
		return nil
	}, func(ctx context.Context, tx pgx.Tx, o *models.Order) error {
		if o.CreatorID == nil {
			return fmt.Errorf("completed order %s has no creator", o.ID)
		}
		if err := s.escrow.Release(ctx, tx, o.ClientID, *o.CreatorID, o.ID, o.PriceTokens, "order completed"); err != nil {
			return err
		}
		return s.emit(ctx, tx, "order.completed", o)
	})
}

// Dispute moves any non-terminal, non-disputed state -> DISPUTED. Escrow
// stays held; resolution is manual and out of scope.
func (s *Service) Dispute(ctx context.Context, actingUserID, id uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, id, func(o *models.Order) error {
		if o.Terminal() || o.Status == models.OrderStatusDisputed {
			return ErrInvalidTransition
		}
		if !isParticipant(o, actingUserID) {
			return ErrNotAuthorized
		}
		o.Status = models.OrderStatusDisputed
		return nil
	}, func(ctx context.Context, tx pgx.Tx, o *models.Order) error {
		return s.emit(ctx, tx, "order.disputed", o)
	})
}

// Cancel moves OPEN, CLAIMED or IN_PROGRESS -> CANCELLED and refunds the
// escrow to the client. Only the client, before delivery.
func (s *Service) Cancel(ctx context.Context, actingUserID, id uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, id, func(o *models.Order) error {
		switch o.Status {
		case models.OrderStatusOpen, models.OrderStatusClaimed, models.OrderStatusInProgress:
		default:
			return ErrInvalidTransition
		}
		if o.ClientID != actingUserID {
			return ErrNotAuthorized
		}
		o.Status = models.OrderStatusCancelled
		return nil
	}, func(ctx context.Context, tx pgx.Tx, o *models.Order) error {
		if err := s.escrow.Refund(ctx, tx, o.ClientID, o.ID, o.PriceTokens, "order cancelled"); err != nil {
			return err
		}
		return s.emit(ctx, tx, "order.cancelled", o)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListOpen(ctx context.Context) ([]*models.Order, error) {
	return s.repo.ListOpen(ctx)
}

func (s *Service) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	return s.repo.ListByParticipant(ctx, userID)
}

func (s *Service) transition(
	ctx context.Context,
	id uuid.UUID,
	apply func(o *models.Order) error,
	sideEffect func(ctx context.Context, tx pgx.Tx, o *models.Order) error,
) (*models.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(o); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTx(ctx, tx, o); err != nil {
		return nil, err
	}
	if sideEffect != nil {
		if err := sideEffect(ctx, tx, o); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, event string, o *models.Order) error {
	if s.notify == nil {
		return nil
	}
	return s.notify(ctx, tx, event, o)
}

func isAssignedCreator(o *models.Order, userID uuid.UUID) bool {
	return o.CreatorID != nil && *o.CreatorID == userID
}

func isParticipant(o *models.Order, userID uuid.UUID) bool {
	return o.ClientID == userID || isAssignedCreator(o, userID)
}
