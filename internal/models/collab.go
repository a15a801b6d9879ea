package models

import (
	"time"

	"github.com/google/uuid"
)

// Collaboration request types.
const (
	CollabTypeShoutout   = "SHOUTOUT"
	CollabTypeCoCreate   = "CO_CREATE"
	CollabTypeGuest      = "GUEST"
	CollabTypeAdExchange = "AD_EXCHANGE"
)

// Collaboration request statuses. REJECTED, COMPLETED and CANCELLED are
// terminal; escrow held at creation is settled exactly once when a terminal
// state is reached.
const (
	CollabStatusPending    = "PENDING"
	CollabStatusAccepted   = "ACCEPTED"
	CollabStatusRejected   = "REJECTED"
	CollabStatusInProgress = "IN_PROGRESS"
	CollabStatusCompleted  = "COMPLETED"
	CollabStatusCancelled  = "CANCELLED"
)

// CollabRequest is a directed collaboration offer from FromUserID to ToUserID.
// EscrowTokens are debited from the initiator's spendable balance at creation.
type CollabRequest struct {
	ID           uuid.UUID  `json:"id"`
	FromUserID   uuid.UUID  `json:"from_user_id"`
	ToUserID     uuid.UUID  `json:"to_user_id"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	EscrowTokens int        `json:"escrow_tokens"`
	Message      string     `json:"message,omitempty"`
	Rating       *int       `json:"rating,omitempty"`
	RatedUserID  *uuid.UUID `json:"rated_user_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Terminal reports whether no further transitions are allowed.
func (c *CollabRequest) Terminal() bool {
	switch c.Status {
	case CollabStatusRejected, CollabStatusCompleted, CollabStatusCancelled:
		return true
	}
	return false
}
