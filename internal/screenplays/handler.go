package screenplays

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lumiere-studio/backend/internal/middleware"
	"github.com/lumiere-studio/backend/internal/services"
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

type submitRequest struct {
	Title   string          `json:"title"`
	Logline string          `json:"logline"`
	Content json.RawMessage `json:"content"`
}

// Submit handles POST /api/v1/screenplays.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	sp, err := h.svc.Submit(r.Context(), user.ID, req.Title, req.Logline, req.Content)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			http.Error(w, `{"error":"screenplay payload failed validation"}`, http.StatusUnprocessableEntity)
			return
		}
		if err.Error() == "title is required" {
			http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("submit screenplay", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// Get handles GET /api/v1/screenplays/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid screenplay id"}`, http.StatusBadRequest)
		return
	}
	sp, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"screenplay not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get screenplay", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// ListMine handles GET /api/v1/screenplays: the acting user's submissions.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByAuthor(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list screenplays", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
