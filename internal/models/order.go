package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Paid video commission statuses. COMPLETED and CANCELLED are terminal.
// DISPUTED freezes the order and its escrow pending manual admin resolution.
const (
	OrderStatusOpen       = "OPEN"
	OrderStatusClaimed    = "CLAIMED"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusRevision   = "REVISION"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusDisputed   = "DISPUTED"
	OrderStatusCancelled  = "CANCELLED"
)

// Order is a client-to-creator video commission. PriceTokens move from the
// client's balance into hold at creation and are released to the creator only
// at COMPLETED.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	ClientID        uuid.UUID       `json:"client_id"`
	CreatorID       *uuid.UUID      `json:"creator_id,omitempty"`
	Title           string          `json:"title"`
	Brief           json.RawMessage `json:"brief"`
	Status          string          `json:"status"`
	PriceTokens     int             `json:"price_tokens"`
	RevisionCount   int             `json:"revision_count"`
	MaxRevisions    int             `json:"max_revisions"`
	Rating          *int            `json:"rating,omitempty"`
	Deadline        *time.Time      `json:"deadline,omitempty"` // descriptive, not enforced
	DeliveryPayload json.RawMessage `json:"delivery_payload,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Terminal reports whether no further transitions are allowed.
func (o *Order) Terminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}
