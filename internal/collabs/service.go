package collabs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lumiere-studio/backend/internal/models"
)

var (
	// ErrInvalidTransition is returned when the requested state change is not
	// allowed from the request's current status.
	ErrInvalidTransition = errors.New("transition not allowed from current state")
	// ErrNotAuthorized is returned when the acting user may not perform the
	// transition.
	ErrNotAuthorized = errors.New("actor not authorized for this transition")
	// ErrInvalidRating is returned when completion is attempted without a
	// rating in 1-5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repo is the collab request repository interface used by the service.
type Repo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CollabRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CollabRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.CollabRequest, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, c *models.CollabRequest) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.CollabRequest, error)
}

// Escrow abstracts the token movements tied to lifecycle transitions.
type Escrow interface {
	Hold(ctx context.Context, tx pgx.Tx, userID, refID uuid.UUID, amount int, description string) error
	Release(ctx context.Context, tx pgx.Tx, holderID, recipientID, refID uuid.UUID, amount int, description string) error
	Refund(ctx context.Context, tx pgx.Tx, holderID, refID uuid.UUID, amount int, description string) error
}

// NotifyTxFunc enqueues a terminal-state notification within the transaction.
// Typically a closure over river.Client.InsertTx; nil disables notifications.
type NotifyTxFunc func(ctx context.Context, tx pgx.Tx, event string, c *models.CollabRequest) error

// Service owns the collab request state machine. Every transition runs in one
// transaction with its escrow movement, takes the acting user explicitly, and
// either fully applies or leaves all records unchanged.
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

var validCollabTypes = map[string]bool{
	models.CollabTypeShoutout:   true,
	models.CollabTypeCoCreate:   true,
	models.CollabTypeGuest:      true,
	models.CollabTypeAdExchange: true,
}

// Create opens a PENDING request and holds escrowTokens from the initiator.
// Fails without mutation when the balance does not cover the escrow.
func (s *Service) Create(ctx context.Context, actingUserID, toUserID uuid.UUID, collabType string, escrowTokens int, message string) (*models.CollabRequest, error) {
	if !validCollabTypes[collabType] {
		return nil, fmt.Errorf("unknown collab type %q", collabType)
	}
	if escrowTokens < 0 {
		return nil, fmt.Errorf("escrow_tokens must be >= 0")
	}
	if actingUserID == toUserID {
		return nil, fmt.Errorf("cannot send a collab request to yourself")
	}

	c := &models.CollabRequest{
		ID:           uuid.New(),
		FromUserID:   actingUserID,
		ToUserID:     toUserID,
		Type:         collabType,
		Status:       models.CollabStatusPending,
		EscrowTokens: escrowTokens,
		Message:      message,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if c.EscrowTokens > 0 {
		if err := s.escrow.Hold(ctx, tx, c.FromUserID, c.ID, c.EscrowTokens, "collab escrow"); err != nil {
			return nil, err
		}
	}
	if err := s.repo.CreateTx(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Accept moves PENDING -> ACCEPTED. Only the recipient may accept.
func (s *Service) Accept(ctx context.Context, actingUserID, id uuid.UUID) (*models.CollabRequest, error) {
	return s.transition(ctx, id, func(c *models.CollabRequest) error {
		if c.Status != models.CollabStatusPending {
			return ErrInvalidTransition
		}
		if actingUserID != c.ToUserID {
			return ErrNotAuthorized
		}
		c.Status = models.CollabStatusAccepted
		return nil
	}, nil)
}

// Reject moves PENDING -> REJECTED and refunds the held escrow to the
// initiator. Only the recipient may reject.
func (s *Service) Reject(ctx context.Context, actingUserID, id uuid.UUID) (*models.CollabRequest, error) {
	return s.transition(ctx, id, func(c *models.CollabRequest) error {
		if c.Status != models.CollabStatusPending {
			return ErrInvalidTransition
		}
		if actingUserID != c.ToUserID {
			return ErrNotAuthorized
		}
		c.Status = models.CollabStatusRejected
		return nil
	}, func(ctx context.Context, tx pgx.Tx, c *models.CollabRequest) error {
		if c.EscrowTokens > 0 {
			if err := s.escrow.Refund(ctx, tx, c.FromUserID, c.ID, c.EscrowTokens, "collab rejected"); err != nil {
				return err
			}
		}
		return s.emit(ctx, tx, "collab.rejected", c)
	})
}

// Start moves ACCEPTED -> IN_PROGRESS. Either party may mark work started.
func (s *Service) Start(ctx context.Context, actingUserID, id uuid.UUID) (*models.CollabRequest, error) {
	return s.transition(ctx, id, func(c *models.CollabRequest) error {
		if c.Status != models.CollabStatusAccepted {
			return ErrInvalidTransition
		}
		if !isParty(c, actingUserID) {
			return ErrNotAuthorized
		}
		c.Status = models.CollabStatusInProgress
		return nil
	}, nil)
}

// Complete moves IN_PROGRESS -> COMPLETED, records the actor's 1-5 rating for
// the counterpart, and releases the escrow to the recipient.
func (s *Service) Complete(ctx context.Context, actingUserID, id uuid.UUID, rating int) (*models.CollabRequest, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	return s.transition(ctx, id, func(c *models.CollabRequest) error {
		if c.Status != models.CollabStatusInProgress {
			return ErrInvalidTransition
		}
		if !isParty(c, actingUserID) {
			return ErrNotAuthorized
		}
		rated := counterpart(c, actingUserID)
		c.Status = models.CollabStatusCompleted
		c.Rating = &rating
		c.RatedUserID = &rated
		return nil
	}, func(ctx context.Context, tx pgx.Tx, c *models.CollabRequest) error {
		if c.EscrowTokens > 0 {
			if err := s.escrow.Release(ctx, tx, c.FromUserID, c.ToUserID, c.ID, c.EscrowTokens, "collab completed"); err != nil {
				return err
			}
		}
		return s.emit(ctx, tx, "collab.completed", c)
	})
}

// Cancel moves any non-terminal state -> CANCELLED and refunds the held
// escrow to the initiator. Either party may cancel before completion.
func (s *Service) Cancel(ctx context.Context, actingUserID, id uuid.UUID) (*models.CollabRequest, error) {
	return s.transition(ctx, id, func(c *models.CollabRequest) error {
		if c.Terminal() {
			return ErrInvalidTransition
		}
		if !isParty(c, actingUserID) {
			return ErrNotAuthorized
		}
		c.Status = models.CollabStatusCancelled
		return nil
	}, func(ctx context.Context, tx pgx.Tx, c *models.CollabRequest) error {
		if c.EscrowTokens > 0 {
			if err := s.escrow.Refund(ctx, tx, c.FromUserID, c.ID, c.EscrowTokens, "collab cancelled"); err != nil {
				return err
			}
		}
		return s.emit(ctx, tx, "collab.cancelled", c)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.CollabRequest, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.CollabRequest, error) {
	return s.repo.ListByUser(ctx, userID)
}

// transition locks the row, applies the status change, runs the optional
// side-effect (escrow + notification) in the same transaction, and commits.
func (s *Service) transition(
	ctx context.Context,
	id uuid.UUID,
	apply func(c *models.CollabRequest) error,
	sideEffect func(ctx context.Context, tx pgx.Tx, c *models.CollabRequest) error,
) (*models.CollabRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(c); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTx(ctx, tx, c); err != nil {
		return nil, err
	}
	if sideEffect != nil {
		if err := sideEffect(ctx, tx, c); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, event string, c *models.CollabRequest) error {
	if s.notify == nil {
		return nil
	}
	return s.notify(ctx, tx, event, c)
}

func isParty(c *models.CollabRequest, userID uuid.UUID) bool {
	return userID == c.FromUserID || userID == c.ToUserID
}

func counterpart(c *models.CollabRequest, userID uuid.UUID) uuid.UUID {
	if userID == c.FromUserID {
		return c.ToUserID
	}
	return c.FromUserID
}
