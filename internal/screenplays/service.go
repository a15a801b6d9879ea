package screenplays

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lumiere-studio/backend/internal/models"
	"github.com/lumiere-studio/backend/internal/services"
)

// acceptScore is the minimum AI score for automatic acceptance.
const acceptScore = 70.0

var ErrNotFound = errors.New("screenplay not found")

// TxBeginner starts transactions; satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repo is the screenplay persistence contract.
type Repo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, s *models.Screenplay) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Screenplay, error)
	Update(ctx context.Context, s *models.Screenplay) error
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Screenplay, error)
}

// InsertEvaluateTxFunc enqueues an evaluation job within the given
// transaction. Provided by main using river.Client.InsertTx.
type InsertEvaluateTxFunc func(ctx context.Context, tx pgx.Tx, args EvaluateScreenplayJobArgs) error

type Service struct {
	pool           TxBeginner
	repo           Repo
	validator      *services.Validator
	insertEvaluate InsertEvaluateTxFunc
	log            *slog.Logger
}

func NewService(pool TxBeginner, repo Repo, validator *services.Validator, insertEvaluate InsertEvaluateTxFunc, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{pool: pool, repo: repo, validator: validator, insertEvaluate: insertEvaluate, log: log}
}

// Submit validates the screenplay payload, stores it as SUBMITTED, and
// enqueues the evaluation job in the same transaction.
func (s *Service) Submit(ctx context.Context, authorID uuid.UUID, title, logline string, content json.RawMessage) (*models.Screenplay, error) {
	if title == "" {
		return nil, errors.New("title is required")
	}
	if s.validator != nil {
		if err := s.validator.Validate(services.PayloadScreenplay, content); err != nil {
			return nil, err
		}
	}

	sp := &models.Screenplay{
		ID:       uuid.New(),
		AuthorID: authorID,
		Title:    title,
		Logline:  logline,
		Content:  content,
		Status:   models.ScreenplayStatusSubmitted,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.repo.CreateTx(ctx, tx, sp); err != nil {
		return nil, err
	}
	if s.insertEvaluate != nil {
		if err := s.insertEvaluate(ctx, tx, EvaluateScreenplayJobArgs{
			ScreenplayID: sp.ID,
			Title:        sp.Title,
			Logline:      sp.Logline,
			Content:      sp.Content,
		}); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return sp, nil
}

// MarkEvaluating implements the worker's pre-scoring hook.
func (s *Service) MarkEvaluating(ctx context.Context, id uuid.UUID) error {
	sp, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if sp.Status != models.ScreenplayStatusSubmitted {
		return nil
	}
	sp.Status = models.ScreenplayStatusEvaluating
	return s.repo.Update(ctx, sp)
}

// RecordEvaluation stores the AI verdict and settles the screenplay into
// ACCEPTED or REJECTED.
func (s *Service) RecordEvaluation(ctx context.Context, id uuid.UUID, score, confidence float64) error {
	sp, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	sp.AIScore = &score
	sp.AIConfidenceScore = &confidence
	if score >= acceptScore {
		sp.Status = models.ScreenplayStatusAccepted
	} else {
		sp.Status = models.ScreenplayStatusRejected
	}
	s.log.Info("screenplay evaluated", "screenplay_id", id, "score", score, "status", sp.Status)
	return s.repo.Update(ctx, sp)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Screenplay, error) {
	return s.get(ctx, id)
}

func (s *Service) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Screenplay, error) {
	return s.repo.ListByAuthor(ctx, authorID)
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*models.Screenplay, error) {
	sp, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sp, err
}
