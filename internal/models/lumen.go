package models

import (
	"time"

	"github.com/google/uuid"
)

// Lumen ledger entry types. Every balance or hold change writes exactly one
// entry, so both cached columns are derivable as running sums.
const (
	LumenEntryEscrowHold    = "ESCROW_HOLD"    // balance -amount, hold +amount
	LumenEntryEscrowRelease = "ESCROW_RELEASE" // hold -amount (holder side of a payout)
	LumenEntryEscrowRefund  = "ESCROW_REFUND"  // hold -amount, balance +amount
	LumenEntryEarning       = "EARNING"        // balance +amount (payout recipient)
	LumenEntryTopUp         = "TOP_UP"         // balance +amount
	LumenEntrySpend         = "SPEND"          // balance -amount
)

// LumenTransaction is an append-only ledger row. RefID points at the collab
// request, order, or task that caused the movement, when there is one.
type LumenTransaction struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	RefID        *uuid.UUID `json:"ref_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"`
	BalanceAfter *int       `json:"balance_after,omitempty"`
	Description  string     `json:"description,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// BalanceEffect returns the entry's signed effect on the spendable balance.
func (t *LumenTransaction) BalanceEffect() int {
	switch t.EntryType {
	case LumenEntryEscrowHold, LumenEntrySpend:
		return -t.Amount
	case LumenEntryEscrowRefund, LumenEntryEarning, LumenEntryTopUp:
		return t.Amount
	}
	return 0
}

// HoldEffect returns the entry's signed effect on the held amount.
func (t *LumenTransaction) HoldEffect() int {
	switch t.EntryType {
	case LumenEntryEscrowHold:
		return t.Amount
	case LumenEntryEscrowRelease, LumenEntryEscrowRefund:
		return -t.Amount
	}
	return 0
}
