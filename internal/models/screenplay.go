package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Screenplay submission statuses. Scores come from the external AI evaluation
// service and are recorded as opaque inputs.
const (
	ScreenplayStatusSubmitted  = "SUBMITTED"
	ScreenplayStatusEvaluating = "EVALUATING"
	ScreenplayStatusAccepted   = "ACCEPTED"
	ScreenplayStatusRejected   = "REJECTED"
)

type Screenplay struct {
	ID                uuid.UUID       `json:"id"`
	AuthorID          uuid.UUID       `json:"author_id"`
	Title             string          `json:"title"`
	Logline           string          `json:"logline"`
	Content           json.RawMessage `json:"content"`
	AIScore           *float64        `json:"ai_score,omitempty"`
	AIConfidenceScore *float64        `json:"ai_confidence_score,omitempty"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
