package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lumiere-studio/backend/internal/models"
	"github.com/lumiere-studio/backend/internal/services"
)

var (
	// ErrAlreadyClaimed is returned to the loser of a claim race.
	ErrAlreadyClaimed = errors.New("task already claimed")
	// ErrInvalidTransition is returned when the requested state change is not
	// allowed from the task's current status.
	ErrInvalidTransition = errors.New("transition not allowed from current state")
	// ErrNotAuthorized is returned when the acting user may not perform the
	// transition.
	ErrNotAuthorized = errors.New("actor not authorized for this transition")
)

// aiAutoValidateScore is the recorded aiScore at or above which a submission
// validates without human review.
const aiAutoValidateScore = 80.0

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repo is the task repository interface used by the service.
type Repo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Claim(ctx context.Context, id, userID uuid.UUID) (bool, error)
	Update(ctx context.Context, t *models.Task) error
	UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	ListByStatus(ctx context.Context, status string) ([]*models.Task, error)
	ListByClaimant(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
	CountByClaimantAndStatus(ctx context.Context, userID uuid.UUID, status string) (int, error)
}

// UserRepo is the user repository interface for projection updates.
type UserRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	UpdateProgress(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int, level string, tasksCompleted, tasksValidated int) error
}

// PaymentRepo records earnings for validated tasks.
type PaymentRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Payment) error
}

// Service owns the film-task claim and review flow. Validation writes the
// task status, the payment, and the claimant's cached progress projections in
// one transaction.
type Service struct {
	pool     TxBeginner
	repo     Repo
	users    UserRepo
	payments PaymentRepo
	log      *slog.Logger
}

func NewService(pool TxBeginner, repo Repo, users UserRepo, payments PaymentRepo, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{pool: pool, repo: repo, users: users, payments: payments, log: log}
}

// Claim takes exclusive ownership of an AVAILABLE task. The conditional
// update resolves concurrent claims; zero rows affected means the race was
// lost and surfaces as ErrAlreadyClaimed.
func (s *Service) Claim(ctx context.Context, actingUserID uuid.UUID, actingRole string, id uuid.UUID) (*models.Task, error) {
	if actingRole != models.RoleCreator {
		return nil, ErrNotAuthorized
	}
	ok, err := s.repo.Claim(ctx, id, actingUserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyClaimed
	}
	return s.repo.GetByID(ctx, id)
}

// Submit moves CLAIMED -> SUBMITTED with the work payload. Only the claimant.
func (s *Service) Submit(ctx context.Context, actingUserID, id uuid.UUID, payload json.RawMessage) (*models.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TaskStatusClaimed {
		return nil, ErrInvalidTransition
	}
	if t.ClaimedByID == nil || *t.ClaimedByID != actingUserID {
		return nil, ErrNotAuthorized
	}
	t.Status = models.TaskStatusSubmitted
	t.SubmissionPayload = payload
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// RecordAIScore moves SUBMITTED -> AI_REVIEW with the externally computed
// score, then either auto-validates (score >= cutoff) or parks the task in
// HUMAN_REVIEW for an admin decision. Scores are opaque inputs; only admins
// (acting for the scoring service) may record them.
func (s *Service) RecordAIScore(ctx context.Context, actingRole string, id uuid.UUID, score float64) (*models.Task, error) {
	if actingRole != models.RoleAdmin {
		return nil, ErrNotAuthorized
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TaskStatusSubmitted {
		return nil, ErrInvalidTransition
	}
	t.Status = models.TaskStatusAIReview
	t.AIScore = &score
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	if score >= aiAutoValidateScore {
		return s.validate(ctx, t)
	}
	t.Status = models.TaskStatusHumanReview
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate moves HUMAN_REVIEW -> VALIDATED by an admin reviewer.
func (s *Service) Validate(ctx context.Context, actingRole string, id uuid.UUID) (*models.Task, error) {
	if actingRole != models.RoleAdmin {
		return nil, ErrNotAuthorized
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TaskStatusHumanReview {
		return nil, ErrInvalidTransition
	}
	return s.validate(ctx, t)
}

// Reject moves HUMAN_REVIEW -> REJECTED by an admin reviewer. The claim is
// kept so the rejection stays attributed.
func (s *Service) Reject(ctx context.Context, actingRole string, id uuid.UUID) (*models.Task, error) {
	if actingRole != models.RoleAdmin {
		return nil, ErrNotAuthorized
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TaskStatusHumanReview && t.Status != models.TaskStatusAIReview {
		return nil, ErrInvalidTransition
	}
	t.Status = models.TaskStatusRejected
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// validate finalizes a task: VALIDATED status, a completed payment for the
// claimant, a point award, and the recomputed level projection, atomically.
func (s *Service) validate(ctx context.Context, t *models.Task) (*models.Task, error) {
	if t.ClaimedByID == nil {
		return nil, fmt.Errorf("task %s has no claimant", t.ID)
	}
	claimantID := *t.ClaimedByID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	user, err := s.users.GetByIDForUpdate(ctx, tx, claimantID)
	if err != nil {
		return nil, err
	}

	t.Status = models.TaskStatusValidated
	if err := s.repo.UpdateTx(ctx, tx, t); err != nil {
		return nil, err
	}

	if err := s.payments.CreateTx(ctx, tx, &models.Payment{
		ID:          uuid.New(),
		TaskID:      t.ID,
		UserID:      claimantID,
		AmountCents: t.PriceCents,
		Status:      models.PaymentStatusCompleted,
	}); err != nil {
		return nil, err
	}

	points := user.Points + services.PointsForDifficulty[t.Difficulty]
	level := services.LevelFor(points, services.DefaultThresholds)
	if err := s.users.UpdateProgress(ctx, tx, claimantID, points, level, user.TasksCompleted+1, user.TasksValidated+1); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListAvailable(ctx context.Context) ([]*models.Task, error) {
	return s.repo.ListByStatus(ctx, models.TaskStatusAvailable)
}

func (s *Service) ListByClaimant(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	return s.repo.ListByClaimant(ctx, userID)
}
