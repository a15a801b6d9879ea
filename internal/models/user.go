package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform roles. Every state transition takes the acting user's ID and role
// explicitly; nothing reads them from ambient state.
const (
	RoleCreator = "creator"
	RoleClient  = "client"
	RoleAdmin   = "admin"
)

// Level tiers, lowest to highest.
const (
	LevelRookie = "ROOKIE"
	LevelPro    = "PRO"
	LevelExpert = "EXPERT"
	LevelVIP    = "VIP"
)

// Reputation badges.
const (
	BadgeBronze   = "bronze"
	BadgeSilver   = "silver"
	BadgeGold     = "gold"
	BadgePlatinum = "platinum"
)

type User struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	PasswordHash    string    `json:"-"`
	Role            string    `json:"role"`
	Points          int       `json:"points"`
	Level           string    `json:"level"`
	ReputationScore float64   `json:"reputation_score"`
	ReputationBadge string    `json:"reputation_badge"`
	TasksCompleted  int       `json:"tasks_completed"`
	TasksValidated  int       `json:"tasks_validated"`
	// LumenBalance is spendable; LumenHold is escrowed and not spendable.
	// Invariant: balance + hold equals the signed running sum of the user's
	// lumen_transactions rows.
	LumenBalance int       `json:"lumen_balance"`
	LumenHold    int       `json:"lumen_hold"`
	MaxPerOrder  *int      `json:"max_per_order,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
