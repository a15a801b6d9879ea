package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lumiere-studio/backend/internal/middleware"
	"github.com/lumiere-studio/backend/internal/models"
	"github.com/lumiere-studio/backend/internal/services"
)

type Handler struct {
	svc       *Service
	validator *services.Validator
	log       *slog.Logger
}

func NewHandler(svc *Service, validator *services.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, validator: validator, log: log}
}

type createOrderRequest struct {
	Title        string          `json:"title"`
	Brief        json.RawMessage `json:"brief"`
	PriceTokens  int             `json:"price_tokens"`
	MaxRevisions int             `json:"max_revisions"`
	Deadline     *time.Time      `json:"deadline,omitempty"`
}

// Create handles POST /api/v1/orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	}
	if h.validator != nil {
		if err := h.validator.Validate(services.PayloadOrderBrief, req.Brief); err != nil {
			if errors.Is(err, services.ErrValidation) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
				return
			}
			h.log.Error("validate order brief", "error", err)
			http.Error(w, `{"error":"brief validation failed"}`, http.StatusBadRequest)
			return
		}
	}
	o, err := h.svc.Create(r.Context(), user.ID, user.Role, req.Title, req.Brief, req.PriceTokens, req.MaxRevisions, req.Deadline)
	if err != nil {
		h.writeError(w, err, "create order")
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// Claim handles POST /api/v1/orders/{id}/claim.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid order id"}`, http.StatusBadRequest)
		return
	}
	o, err := h.svc.Claim(r.Context(), user.ID, user.Role, id)
	if err != nil {
		h.writeError(w, err, "claim order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Start handles POST /api/v1/orders/{id}/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.svc.Start)
}

type deliverRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// Deliver handles POST /api/v1/orders/{id}/deliver.
func (h *Handler) Deliver(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid order id"}`, http.StatusBadRequest)
		return
	}
	var req deliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	o, err := h.svc.Deliver(r.Context(), user.ID, id, req.Payload)
	if err != nil {
		h.writeError(w, err, "deliver order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// RequestRevision handles POST /api/v1/orders/{id}/revision.
func (h *Handler) RequestRevision(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.svc.RequestRevision)
}

type completeOrderRequest struct {
	Rating *int `json:"rating,omitempty"`
}

// Complete handles POST /api/v1/orders/{id}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid order id"}`, http.StatusBadRequest)
		return
	}
	var req completeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	o, err := h.svc.Complete(r.Context(), user.ID, id, req.Rating)
	if err != nil {
		h.writeError(w, err, "complete order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Dispute handles POST /api/v1/orders/{id}/dispute.
func (h *Handler) Dispute(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.svc.Dispute)
}

// Cancel handles POST /api/v1/orders/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.svc.Cancel)
}

// ListOpen handles GET /api/v1/orders: the claimable marketplace feed.
func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListOpen(r.Context())
	if err != nil {
		h.log.Error("list open orders", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListMine handles GET /api/v1/orders/mine: orders the acting user participates in.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByParticipant(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list orders", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) doTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actingUserID, id uuid.UUID) (*models.Order, error)) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid order id"}`, http.StatusBadRequest)
		return
	}
	o, err := fn(r.Context(), user.ID, id)
	if err != nil {
		h.writeError(w, err, "order transition")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, services.ErrInsufficientBalance):
		http.Error(w, `{"error":"insufficient lumen balance"}`, http.StatusPaymentRequired)
	case errors.Is(err, ErrAlreadyClaimed):
		http.Error(w, `{"error":"order already claimed"}`, http.StatusConflict)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, `{"error":"transition not allowed from current state"}`, http.StatusConflict)
	case errors.Is(err, ErrNotAuthorized):
		http.Error(w, `{"error":"not authorized for this transition"}`, http.StatusForbidden)
	case errors.Is(err, ErrRevisionLimitExceeded):
		http.Error(w, `{"error":"revision limit exceeded"}`, http.StatusUnprocessableEntity)
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
