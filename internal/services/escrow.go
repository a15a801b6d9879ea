package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lumiere-studio/backend/internal/models"
)

// ErrInsufficientBalance is returned when a hold exceeds the user's spendable
// balance. The failed operation performs no mutation.
var ErrInsufficientBalance = errors.New("insufficient lumen balance")

// ErrInsufficientHold is returned when a release or refund exceeds the
// holder's held amount. Holds can only shrink by what was held.
var ErrInsufficientHold = errors.New("insufficient lumen hold")

// EscrowUserRepo is the minimal user repository interface for escrow.
type EscrowUserRepo interface {
	MoveToHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	ReleaseHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) error
	RefundHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	Credit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// EscrowLedgerRepo is the minimal ledger interface for escrow.
type EscrowLedgerRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.LumenTransaction) error
}

// EscrowService moves lumens between spendable balance and hold, writing a
// ledger entry for every movement. All methods run inside the caller's
// transaction so a status change and its token movement commit together.
type EscrowService struct {
	Users  EscrowUserRepo
	Ledger EscrowLedgerRepo
}

func NewEscrowService(users EscrowUserRepo, ledger EscrowLedgerRepo) *EscrowService {
	return &EscrowService{Users: users, Ledger: ledger}
}

// Hold debits amount from userID's spendable balance into hold and records an
// ESCROW_HOLD entry. Fails with ErrInsufficientBalance when the balance does
// not cover the amount; the conditional update guarantees no partial debit.
func (s *EscrowService) Hold(ctx context.Context, tx pgx.Tx, userID, refID uuid.UUID, amount int, description string) error {
	newBalance, err := s.Users.MoveToHold(ctx, tx, userID, amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientBalance
		}
		return err
	}
	return s.Ledger.CreateTx(ctx, tx, &models.LumenTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		RefID:        &refID,
		EntryType:    models.LumenEntryEscrowHold,
		Amount:       amount,
		BalanceAfter: intPtr(newBalance),
		Description:  description,
	})
}

// Release pays the full held amount to the counterpart: the holder's hold
// shrinks (ESCROW_RELEASE) and the recipient's balance grows (EARNING).
// No platform fee is withheld.
func (s *EscrowService) Release(ctx context.Context, tx pgx.Tx, holderID, recipientID, refID uuid.UUID, amount int, description string) error {
	if err := s.Users.ReleaseHold(ctx, tx, holderID, amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientHold
		}
		return err
	}
	if err := s.Ledger.CreateTx(ctx, tx, &models.LumenTransaction{
		ID:          uuid.New(),
		UserID:      holderID,
		RefID:       &refID,
		EntryType:   models.LumenEntryEscrowRelease,
		Amount:      amount,
		Description: description,
	}); err != nil {
		return err
	}
	newBalance, err := s.Users.Credit(ctx, tx, recipientID, amount)
	if err != nil {
		return err
	}
	return s.Ledger.CreateTx(ctx, tx, &models.LumenTransaction{
		ID:           uuid.New(),
		UserID:       recipientID,
		RefID:        &refID,
		EntryType:    models.LumenEntryEarning,
		Amount:       amount,
		BalanceAfter: intPtr(newBalance),
		Description:  description,
	})
}

// Refund returns the full held amount to the holder's spendable balance and
// records an ESCROW_REFUND entry.
func (s *EscrowService) Refund(ctx context.Context, tx pgx.Tx, holderID, refID uuid.UUID, amount int, description string) error {
	newBalance, err := s.Users.RefundHold(ctx, tx, holderID, amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientHold
		}
		return err
	}
	return s.Ledger.CreateTx(ctx, tx, &models.LumenTransaction{
		ID:           uuid.New(),
		UserID:       holderID,
		RefID:        &refID,
		EntryType:    models.LumenEntryEscrowRefund,
		Amount:       amount,
		BalanceAfter: intPtr(newBalance),
		Description:  description,
	})
}

// TopUp credits purchased lumens. This is the explicit inflow channel; the
// conservation invariant holds everywhere else.
func (s *EscrowService) TopUp(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, description string) (int, error) {
	newBalance, err := s.Users.Credit(ctx, tx, userID, amount)
	if err != nil {
		return 0, err
	}
	err = s.Ledger.CreateTx(ctx, tx, &models.LumenTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		EntryType:    models.LumenEntryTopUp,
		Amount:       amount,
		BalanceAfter: intPtr(newBalance),
		Description:  description,
	})
	return newBalance, err
}

func intPtr(n int) *int { return &n }
