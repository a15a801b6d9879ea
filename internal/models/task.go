package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Film task statuses. A task has at most one claimant; the claim update is
// conditional on the row still being AVAILABLE.
const (
	TaskStatusLocked      = "LOCKED"
	TaskStatusAvailable   = "AVAILABLE"
	TaskStatusClaimed     = "CLAIMED"
	TaskStatusSubmitted   = "SUBMITTED"
	TaskStatusAIReview    = "AI_REVIEW"
	TaskStatusHumanReview = "HUMAN_REVIEW"
	TaskStatusValidated   = "VALIDATED"
	TaskStatusRejected    = "REJECTED"
)

// Task difficulty tiers.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

type Task struct {
	ID                uuid.UUID       `json:"id"`
	FilmID            uuid.UUID       `json:"film_id"`
	Phase             string          `json:"phase"`
	Title             string          `json:"title"`
	Status            string          `json:"status"`
	PriceCents        int             `json:"price_cents"`
	Difficulty        string          `json:"difficulty"`
	ClaimedByID       *uuid.UUID      `json:"claimed_by_id,omitempty"`
	SubmissionPayload json.RawMessage `json:"submission_payload,omitempty"`
	AIScore           *float64        `json:"ai_score,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
