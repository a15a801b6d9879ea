package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lumiere-studio/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// --- TxBeginner mock ---

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

// --- Task repo mock; Claim is conditional like the SQL ---

type mockTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
}

func newMockTaskRepo(ts ...*models.Task) *mockTaskRepo {
	m := &mockTaskRepo{tasks: make(map[uuid.UUID]*models.Task)}
	for _, t := range ts {
		cp := *t
		m.tasks[t.ID] = &cp
	}
	return m
}

func (m *mockTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *mockTaskRepo) Claim(_ context.Context, id, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if t.Status != models.TaskStatusAvailable || t.ClaimedByID != nil {
		return false, nil
	}
	id2 := userID
	t.ClaimedByID = &id2
	t.Status = models.TaskStatusClaimed
	return true, nil
}

func (m *mockTaskRepo) Update(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *mockTaskRepo) UpdateTx(ctx context.Context, _ pgx.Tx, t *models.Task) error {
	return m.Update(ctx, t)
}

func (m *mockTaskRepo) ListByStatus(_ context.Context, status string) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Task
	for _, t := range m.tasks {
		if t.Status == status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockTaskRepo) ListByClaimant(_ context.Context, userID uuid.UUID) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Task
	for _, t := range m.tasks {
		if t.ClaimedByID != nil && *t.ClaimedByID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockTaskRepo) CountByClaimantAndStatus(_ context.Context, userID uuid.UUID, status string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.Status == status && t.ClaimedByID != nil && *t.ClaimedByID == userID {
			n++
		}
	}
	return n, nil
}

// --- User repo mock recording progress writes ---

type mockUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMockUserRepo(us ...*models.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[uuid.UUID]*models.User)}
	for _, u := range us {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *mockUserRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) UpdateProgress(_ context.Context, _ pgx.Tx, id uuid.UUID, points int, level string, tasksCompleted, tasksValidated int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Points = points
	u.Level = level
	u.TasksCompleted = tasksCompleted
	u.TasksValidated = tasksValidated
	return nil
}

func (m *mockUserRepo) get(id uuid.UUID) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.users[id]
	return &cp
}

// --- Payment repo mock ---

type mockPaymentRepo struct {
	mu       sync.Mutex
	payments []*models.Payment
}

func (m *mockPaymentRepo) CreateTx(_ context.Context, _ pgx.Tx, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments = append(m.payments, &cp)
	return nil
}

func (m *mockPaymentRepo) all() []*models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Payment, len(m.payments))
	copy(out, m.payments)
	return out
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func availableTask(difficulty string, priceCents int) *models.Task {
	return &models.Task{
		ID:         uuid.New(),
		FilmID:     uuid.New(),
		Phase:      "post",
		Title:      "color grade",
		Status:     models.TaskStatusAvailable,
		PriceCents: priceCents,
		Difficulty: difficulty,
	}
}

// ---------------------------------------------------------------------------
// Claiming
// ---------------------------------------------------------------------------

func TestTaskClaim(t *testing.T) {
	creator := uuid.New()
	task := availableTask(models.DifficultyEasy, 500)

	repo := newMockTaskRepo(task)
	svc := NewService(mockPool{}, repo, newMockUserRepo(), &mockPaymentRepo{}, nil)
	ctx := context.Background()

	got, err := svc.Claim(ctx, creator, models.RoleCreator, task.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if got.Status != models.TaskStatusClaimed {
		t.Errorf("status after claim: got %s", got.Status)
	}
	if got.ClaimedByID == nil || *got.ClaimedByID != creator {
		t.Error("claim should record the claimant")
	}

	// Second claim loses.
	if _, err := svc.Claim(ctx, uuid.New(), models.RoleCreator, task.ID); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("second Claim: got %v, want ErrAlreadyClaimed", err)
	}

	// Clients cannot claim production tasks.
	if _, err := svc.Claim(ctx, uuid.New(), models.RoleClient, task.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Claim as client: got %v, want ErrNotAuthorized", err)
	}
}

func TestTaskClaim_Race(t *testing.T) {
	task := availableTask(models.DifficultyMedium, 1000)
	repo := newMockTaskRepo(task)
	svc := NewService(mockPool{}, repo, newMockUserRepo(), &mockPaymentRepo{}, nil)
	ctx := context.Background()

	const contenders = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Claim(ctx, uuid.New(), models.RoleCreator, task.ID); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("claim winners: got %d, want exactly 1", winners)
	}
}

// ---------------------------------------------------------------------------
// Review flow
// ---------------------------------------------------------------------------

func TestTaskAutoValidation(t *testing.T) {
	creator := uuid.New()
	task := availableTask(models.DifficultyHard, 2500)

	repo := newMockTaskRepo(task)
	users := newMockUserRepo(&models.User{ID: creator, Points: 980, Level: models.LevelRookie})
	payments := &mockPaymentRepo{}
	svc := NewService(mockPool{}, repo, users, payments, nil)
	ctx := context.Background()

	if _, err := svc.Claim(ctx, creator, models.RoleCreator, task.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := svc.Submit(ctx, creator, task.ID, json.RawMessage(`{"asset":"grade_v2"}`)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Score at the cutoff validates without human review.
	got, err := svc.RecordAIScore(ctx, models.RoleAdmin, task.ID, 80)
	if err != nil {
		t.Fatalf("RecordAIScore: %v", err)
	}
	if got.Status != models.TaskStatusValidated {
		t.Errorf("status after auto-validation: got %s, want VALIDATED", got.Status)
	}

	// Payment recorded for the claimant at the task price.
	ps := payments.all()
	if len(ps) != 1 {
		t.Fatalf("payments: got %d, want 1", len(ps))
	}
	if ps[0].UserID != creator || ps[0].AmountCents != 2500 || ps[0].Status != models.PaymentStatusCompleted {
		t.Errorf("payment: %+v", ps[0])
	}

	// Hard task awards 50 points, pushing 980 -> 1030 and ROOKIE -> PRO.
	u := users.get(creator)
	if u.Points != 1030 {
		t.Errorf("points after validation: got %d, want 1030", u.Points)
	}
	if u.Level != models.LevelPro {
		t.Errorf("level after validation: got %s, want PRO", u.Level)
	}
	if u.TasksCompleted != 1 || u.TasksValidated != 1 {
		t.Errorf("task counters: got %d/%d, want 1/1", u.TasksCompleted, u.TasksValidated)
	}
}

func TestTaskHumanReview(t *testing.T) {
	creator := uuid.New()
	task := availableTask(models.DifficultyEasy, 300)

	repo := newMockTaskRepo(task)
	users := newMockUserRepo(&models.User{ID: creator})
	payments := &mockPaymentRepo{}
	svc := NewService(mockPool{}, repo, users, payments, nil)
	ctx := context.Background()

	if _, err := svc.Claim(ctx, creator, models.RoleCreator, task.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := svc.Submit(ctx, creator, task.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Below the cutoff the task parks in HUMAN_REVIEW and nothing pays out.
	got, err := svc.RecordAIScore(ctx, models.RoleAdmin, task.ID, 79.9)
	if err != nil {
		t.Fatalf("RecordAIScore: %v", err)
	}
	if got.Status != models.TaskStatusHumanReview {
		t.Errorf("status below cutoff: got %s, want HUMAN_REVIEW", got.Status)
	}
	if len(payments.all()) != 0 {
		t.Error("no payment should exist before human review resolves")
	}

	// Human validation finalizes.
	got, err = svc.Validate(ctx, models.RoleAdmin, task.ID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.Status != models.TaskStatusValidated {
		t.Errorf("status after human validation: got %s", got.Status)
	}
	if len(payments.all()) != 1 {
		t.Errorf("payments after validation: got %d, want 1", len(payments.all()))
	}
}

func TestTaskRejection(t *testing.T) {
	creator := uuid.New()
	task := availableTask(models.DifficultyMedium, 800)

	repo := newMockTaskRepo(task)
	users := newMockUserRepo(&models.User{ID: creator})
	payments := &mockPaymentRepo{}
	svc := NewService(mockPool{}, repo, users, payments, nil)
	ctx := context.Background()

	if _, err := svc.Claim(ctx, creator, models.RoleCreator, task.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := svc.Submit(ctx, creator, task.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.RecordAIScore(ctx, models.RoleAdmin, task.ID, 12); err != nil {
		t.Fatalf("RecordAIScore: %v", err)
	}

	got, err := svc.Reject(ctx, models.RoleAdmin, task.ID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.Status != models.TaskStatusRejected {
		t.Errorf("status after reject: got %s", got.Status)
	}
	if got.ClaimedByID == nil || *got.ClaimedByID != creator {
		t.Error("rejection should keep the claim attributed")
	}

	// No payment, no points.
	if len(payments.all()) != 0 {
		t.Error("rejected tasks must not pay out")
	}
	if u := users.get(creator); u.Points != 0 || u.TasksValidated != 0 {
		t.Errorf("rejected tasks must not award progress: %+v", u)
	}
}

// ---------------------------------------------------------------------------
// Guards
// ---------------------------------------------------------------------------

func TestTaskGuards(t *testing.T) {
	creator := uuid.New()
	task := availableTask(models.DifficultyEasy, 100)

	repo := newMockTaskRepo(task)
	svc := NewService(mockPool{}, repo, newMockUserRepo(&models.User{ID: creator}), &mockPaymentRepo{}, nil)
	ctx := context.Background()

	// Submit requires a claim.
	if _, err := svc.Submit(ctx, creator, task.ID, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit before claim: got %v, want ErrInvalidTransition", err)
	}

	if _, err := svc.Claim(ctx, creator, models.RoleCreator, task.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	// Only the claimant submits.
	if _, err := svc.Submit(ctx, uuid.New(), task.ID, nil); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Submit by non-claimant: got %v, want ErrNotAuthorized", err)
	}

	// Review endpoints are admin-only.
	if _, err := svc.RecordAIScore(ctx, models.RoleCreator, task.ID, 90); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("RecordAIScore as creator: got %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.Validate(ctx, models.RoleClient, task.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Validate as client: got %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.Reject(ctx, models.RoleCreator, task.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Reject as creator: got %v, want ErrNotAuthorized", err)
	}

	// Scoring requires a submission.
	if _, err := svc.RecordAIScore(ctx, models.RoleAdmin, task.ID, 90); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("RecordAIScore before submit: got %v, want ErrInvalidTransition", err)
	}
}
