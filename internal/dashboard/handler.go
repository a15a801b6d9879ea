package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lumiere-studio/backend/internal/middleware"
	"github.com/lumiere-studio/backend/internal/models"
	"github.com/lumiere-studio/backend/internal/repository"
	"github.com/lumiere-studio/backend/internal/services"
)

// TxBeginner starts transactions; satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Handler serves the authenticated user's profile, ledger, and balance
// operations.
type Handler struct {
	pool       TxBeginner
	userR      *repository.UserRepo
	lumenR     *repository.LumenRepo
	escrow     *services.EscrowService
	aggregator *services.Aggregator
	thresholds services.LevelThresholds
	log        *slog.Logger
}

func NewHandler(
	pool TxBeginner,
	userR *repository.UserRepo,
	lumenR *repository.LumenRepo,
	escrow *services.EscrowService,
	aggregator *services.Aggregator,
	thresholds services.LevelThresholds,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		pool:       pool,
		userR:      userR,
		lumenR:     lumenR,
		escrow:     escrow,
		aggregator: aggregator,
		thresholds: thresholds,
		log:        log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetMe handles GET /api/v1/me. The level, progress percentage, and badge are
// derived on read so the response never lags the stored points and score.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	agg, err := h.aggregator.Recompute(r.Context(), user.ID)
	if err != nil {
		h.log.Error("recompute aggregates", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":               user.ID,
		"email":            user.Email,
		"name":             user.Name,
		"role":             user.Role,
		"points":           user.Points,
		"level":            services.LevelFor(user.Points, h.thresholds),
		"level_progress":   services.ProgressPct(user.Points, h.thresholds),
		"reputation_score": user.ReputationScore,
		"reputation_badge": services.BadgeFor(user.ReputationScore),
		"lumen_balance":    user.LumenBalance,
		"lumen_hold":       user.LumenHold,
		"max_per_order":    user.MaxPerOrder,
		"aggregates":       agg,
		"created_at":       user.CreatedAt,
	})
}

// UpdateSettings handles PATCH /api/v1/me/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var body struct {
		Name        *string `json:"name"`
		Email       *string `json:"email"`
		MaxPerOrder *int    `json:"max_per_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if body.Name != nil {
		user.Name = *body.Name
	}
	if body.Email != nil {
		user.Email = *body.Email
	}
	if body.MaxPerOrder != nil {
		user.MaxPerOrder = body.MaxPerOrder
	}
	if err := h.userR.UpdateSettings(r.Context(), user); err != nil {
		h.log.Error("update settings", "error", err)
		http.Error(w, `{"error":"update failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListLedger handles GET /api/v1/me/ledger.
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entries, err := h.lumenR.ListByUser(r.Context(), user.ID, 100)
	if err != nil {
		h.log.Error("list ledger", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.LumenTransaction{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Reconcile handles GET /api/v1/me/reconcile: replays the ledger against the
// cached balance columns and reports drift.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	rec, err := h.aggregator.Reconcile(r.Context(), user.ID)
	if err != nil {
		h.log.Error("reconcile balance", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !rec.InSync {
		h.log.Warn("balance drift detected",
			"user_id", user.ID,
			"ledger_balance", rec.LedgerBalance,
			"cached_balance", rec.CachedBalance)
	}
	writeJSON(w, http.StatusOK, rec)
}

type topUpRequest struct {
	Amount int `json:"amount"`
}

// TopUp handles POST /api/v1/lumens/topup.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, `{"error":"amount must be > 0"}`, http.StatusBadRequest)
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		h.log.Error("begin topup tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	newBalance, err := h.escrow.TopUp(r.Context(), tx, user.ID, req.Amount, "lumen top-up")
	if err != nil {
		h.log.Error("topup", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.log.Error("commit topup tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lumen_balance": newBalance})
}

type setReputationRequest struct {
	Score float64 `json:"score"`
}

// SetReputation handles PATCH /api/v1/users/{id}/reputation. Admin only;
// scores come from the external evaluation pipeline and are stored with the
// badge derived from them.
func (h *Handler) SetReputation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}
	var req setReputationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if _, err := h.userR.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get user for reputation update", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	badge := services.BadgeFor(req.Score)
	if err := h.userR.UpdateReputation(r.Context(), id, req.Score, badge); err != nil {
		h.log.Error("update reputation", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reputation_score": req.Score, "reputation_badge": badge})
}
