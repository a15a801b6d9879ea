package collabs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lumiere-studio/backend/internal/middleware"
	"github.com/lumiere-studio/backend/internal/models"
	"github.com/lumiere-studio/backend/internal/services"
)

type Handler struct {
	svc     *Service
	matcher *services.Matcher
	log     *slog.Logger
}

func NewHandler(svc *Service, matcher *services.Matcher, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, matcher: matcher, log: log}
}

type createCollabRequest struct {
	ToUserID     string `json:"to_user_id"`
	Type         string `json:"type"`
	EscrowTokens int    `json:"escrow_tokens"`
	Message      string `json:"message"`
}

// Create handles POST /api/v1/collabs.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createCollabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		http.Error(w, `{"error":"invalid to_user_id"}`, http.StatusBadRequest)
		return
	}
	c, err := h.svc.Create(r.Context(), user.ID, toUserID, req.Type, req.EscrowTokens, req.Message)
	if err != nil {
		h.writeError(w, err, "create collab request")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Accept handles POST /api/v1/collabs/{id}/accept.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.svc.Accept)
}

// Reject handles POST /api/v1/collabs/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.svc.Reject)
}

// Start handles POST /api/v1/collabs/{id}/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.svc.Start)
}

// Cancel handles POST /api/v1/collabs/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.svc.Cancel)
}

type completeCollabRequest struct {
	Rating int `json:"rating"`
}

// Complete handles POST /api/v1/collabs/{id}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid collab id"}`, http.StatusBadRequest)
		return
	}
	var req completeCollabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	c, err := h.svc.Complete(r.Context(), user.ID, id, req.Rating)
	if err != nil {
		h.writeError(w, err, "complete collab request")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// List handles GET /api/v1/collabs: the acting user's requests, both sides.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list collabs", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Suggestions handles GET /api/v1/collabs/suggestions.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	partners, err := h.matcher.SuggestPartners(r.Context(), user.ID, 10)
	if err != nil {
		h.log.Error("suggest partners", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, partners)
}

// doTransition is the shared shape of the rating-less transition endpoints.
func (h *Handler) doTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actingUserID, id uuid.UUID) (*models.CollabRequest, error)) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid collab id"}`, http.StatusBadRequest)
		return
	}
	c, err := fn(r.Context(), user.ID, id)
	if err != nil {
		h.writeError(w, err, "collab transition")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, services.ErrInsufficientBalance):
		http.Error(w, `{"error":"insufficient lumen balance"}`, http.StatusPaymentRequired)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, `{"error":"transition not allowed from current state"}`, http.StatusConflict)
	case errors.Is(err, ErrNotAuthorized):
		http.Error(w, `{"error":"not authorized for this transition"}`, http.StatusForbidden)
	case errors.Is(err, ErrInvalidRating):
		http.Error(w, `{"error":"rating must be between 1 and 5"}`, http.StatusBadRequest)
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
