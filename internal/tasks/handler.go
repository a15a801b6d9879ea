package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lumiere-studio/backend/internal/middleware"
	"github.com/lumiere-studio/backend/internal/models"
)

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// ListAvailable handles GET /api/v1/tasks/available.
func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListAvailable(r.Context())
	if err != nil {
		h.log.Error("list available tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListMine handles GET /api/v1/tasks/mine: the acting user's claimed tasks.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByClaimant(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list claimed tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Claim handles POST /api/v1/tasks/{id}/claim.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Claim(r.Context(), user.ID, user.Role, id)
	if err != nil {
		h.writeError(w, err, "claim task")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type submitTaskRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// Submit handles POST /api/v1/tasks/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	var req submitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	t, err := h.svc.Submit(r.Context(), user.ID, id, req.Payload)
	if err != nil {
		h.writeError(w, err, "submit task")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type aiScoreRequest struct {
	Score float64 `json:"score"`
}

// RecordAIScore handles POST /api/v1/tasks/{id}/ai-score (admin).
func (h *Handler) RecordAIScore(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	var req aiScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	t, err := h.svc.RecordAIScore(r.Context(), user.Role, id, req.Score)
	if err != nil {
		h.writeError(w, err, "record ai score")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Validate handles POST /api/v1/tasks/{id}/validate (admin).
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	h.doReview(w, r, h.svc.Validate)
}

// Reject handles POST /api/v1/tasks/{id}/reject (admin).
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.doReview(w, r, h.svc.Reject)
}

func (h *Handler) doReview(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actingRole string, id uuid.UUID) (*models.Task, error)) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	t, err := fn(r.Context(), user.Role, id)
	if err != nil {
		h.writeError(w, err, "review task")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) userAndID(w http.ResponseWriter, r *http.Request) (*models.User, uuid.UUID, bool) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return nil, uuid.Nil, false
	}
	return user, id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrAlreadyClaimed):
		http.Error(w, `{"error":"task already claimed"}`, http.StatusConflict)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, `{"error":"transition not allowed from current state"}`, http.StatusConflict)
	case errors.Is(err, ErrNotAuthorized):
		http.Error(w, `{"error":"not authorized for this transition"}`, http.StatusForbidden)
	default:
		h.log.Error(op, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
