package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lumiere-studio/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks for EscrowUserRepo and EscrowLedgerRepo.
// These let us test the real EscrowService logic without a database.
// ---------------------------------------------------------------------------

type mockUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMockUsers(us ...*models.User) *mockUsers {
	m := &mockUsers{users: make(map[uuid.UUID]*models.User)}
	for _, u := range us {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *mockUsers) MoveToHold(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, fmt.Errorf("user %s not found", id)
	}
	if u.LumenBalance < amount {
		return 0, pgx.ErrNoRows
	}
	u.LumenBalance -= amount
	u.LumenHold += amount
	return u.LumenBalance, nil
}

func (m *mockUsers) ReleaseHold(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	if u.LumenHold < amount {
		return pgx.ErrNoRows
	}
	u.LumenHold -= amount
	return nil
}

func (m *mockUsers) RefundHold(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, fmt.Errorf("user %s not found", id)
	}
	if u.LumenHold < amount {
		return 0, pgx.ErrNoRows
	}
	u.LumenHold -= amount
	u.LumenBalance += amount
	return u.LumenBalance, nil
}

func (m *mockUsers) Credit(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, fmt.Errorf("user %s not found", id)
	}
	u.LumenBalance += amount
	return u.LumenBalance, nil
}

func (m *mockUsers) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].LumenBalance
}

func (m *mockUsers) hold(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].LumenHold
}

// ---

type mockLedger struct {
	mu      sync.Mutex
	entries []*models.LumenTransaction
}

func (m *mockLedger) CreateTx(_ context.Context, _ pgx.Tx, t *models.LumenTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockLedger) byType(entryType string) []*models.LumenTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LumenTransaction
	for _, e := range m.entries {
		if e.EntryType == entryType {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockLedger) all() []*models.LumenTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.LumenTransaction, len(m.entries))
	copy(out, m.entries)
	return out
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func usr(id uuid.UUID, balance int) *models.User {
	return &models.User{ID: id, LumenBalance: balance}
}

// ---------------------------------------------------------------------------
// 1. TestHold
// ---------------------------------------------------------------------------

func TestHold(t *testing.T) {
	holder := uuid.New()
	ref := uuid.New()

	users := newMockUsers(usr(holder, 100))
	ledger := &mockLedger{}
	svc := NewEscrowService(users, ledger)

	ctx := context.Background()
	if err := svc.Hold(ctx, nil, holder, ref, 30, "collab escrow"); err != nil {
		t.Fatalf("Hold: %v", err)
	}

	// Balance moves into hold, total unchanged.
	if got := users.balance(holder); got != 70 {
		t.Errorf("balance after hold: got %d, want 70", got)
	}
	if got := users.hold(holder); got != 30 {
		t.Errorf("hold after hold: got %d, want 30", got)
	}

	holds := ledger.byType(models.LumenEntryEscrowHold)
	if len(holds) != 1 {
		t.Fatalf("ESCROW_HOLD entries: got %d, want 1", len(holds))
	}
	if holds[0].Amount != 30 {
		t.Errorf("hold amount: got %d, want 30", holds[0].Amount)
	}
	if holds[0].UserID != holder {
		t.Error("hold entry should belong to the holder")
	}
	if holds[0].RefID == nil || *holds[0].RefID != ref {
		t.Error("hold entry should reference the source record")
	}
	if holds[0].BalanceAfter == nil || *holds[0].BalanceAfter != 70 {
		t.Error("hold entry should record the post-hold balance")
	}
}

// ---------------------------------------------------------------------------
// 2. TestHold_Insufficient
// ---------------------------------------------------------------------------

func TestHold_Insufficient(t *testing.T) {
	holder := uuid.New()

	users := newMockUsers(usr(holder, 20))
	ledger := &mockLedger{}
	svc := NewEscrowService(users, ledger)

	err := svc.Hold(context.Background(), nil, holder, uuid.New(), 30, "too much")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got: %v", err)
	}

	// Nothing moved, nothing written.
	if got := users.balance(holder); got != 20 {
		t.Errorf("balance after failed hold: got %d, want 20", got)
	}
	if got := users.hold(holder); got != 0 {
		t.Errorf("hold after failed hold: got %d, want 0", got)
	}
	if n := len(ledger.all()); n != 0 {
		t.Errorf("expected 0 ledger entries after failed hold, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// 3. TestRelease
// ---------------------------------------------------------------------------

func TestRelease(t *testing.T) {
	holder := uuid.New()
	recipient := uuid.New()
	ref := uuid.New()

	users := newMockUsers(usr(holder, 100), usr(recipient, 10))
	ledger := &mockLedger{}
	svc := NewEscrowService(users, ledger)

	ctx := context.Background()
	if err := svc.Hold(ctx, nil, holder, ref, 40, "order escrow"); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if err := svc.Release(ctx, nil, holder, recipient, ref, 40, "order payout"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// Full amount reaches the recipient; holder's hold is empty.
	if got := users.hold(holder); got != 0 {
		t.Errorf("holder hold after release: got %d, want 0", got)
	}
	if got := users.balance(holder); got != 60 {
		t.Errorf("holder balance after release: got %d, want 60", got)
	}
	if got := users.balance(recipient); got != 50 {
		t.Errorf("recipient balance after release: got %d, want 50", got)
	}

	releases := ledger.byType(models.LumenEntryEscrowRelease)
	if len(releases) != 1 || releases[0].UserID != holder || releases[0].Amount != 40 {
		t.Error("expected one ESCROW_RELEASE entry of 40 on the holder")
	}
	earnings := ledger.byType(models.LumenEntryEarning)
	if len(earnings) != 1 || earnings[0].UserID != recipient || earnings[0].Amount != 40 {
		t.Error("expected one EARNING entry of 40 on the recipient")
	}
}

// ---------------------------------------------------------------------------
// 4. TestRefund
// ---------------------------------------------------------------------------

func TestRefund(t *testing.T) {
	holder := uuid.New()
	ref := uuid.New()

	users := newMockUsers(usr(holder, 100))
	ledger := &mockLedger{}
	svc := NewEscrowService(users, ledger)

	ctx := context.Background()
	if err := svc.Hold(ctx, nil, holder, ref, 25, "collab escrow"); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if err := svc.Refund(ctx, nil, holder, ref, 25, "collab rejected"); err != nil {
		t.Fatalf("Refund: %v", err)
	}

	// Balance is restored exactly.
	if got := users.balance(holder); got != 100 {
		t.Errorf("balance after refund: got %d, want 100", got)
	}
	if got := users.hold(holder); got != 0 {
		t.Errorf("hold after refund: got %d, want 0", got)
	}
	refunds := ledger.byType(models.LumenEntryEscrowRefund)
	if len(refunds) != 1 || refunds[0].Amount != 25 {
		t.Error("expected one ESCROW_REFUND entry of 25")
	}
}

// ---------------------------------------------------------------------------
// 5. TestRelease_InsufficientHold / TestRefund_InsufficientHold
//    A release or refund can only pay out what was held; the guarded update
//    keeps lumen_hold from going negative.
// ---------------------------------------------------------------------------

func TestRelease_InsufficientHold(t *testing.T) {
	holder := uuid.New()
	recipient := uuid.New()
	ref := uuid.New()

	users := newMockUsers(usr(holder, 100), usr(recipient, 0))
	ledger := &mockLedger{}
	svc := NewEscrowService(users, ledger)

	ctx := context.Background()
	if err := svc.Hold(ctx, nil, holder, ref, 20, "order escrow"); err != nil {
		t.Fatalf("Hold: %v", err)
	}

	err := svc.Release(ctx, nil, holder, recipient, ref, 50, "over-release")
	if !errors.Is(err, ErrInsufficientHold) {
		t.Fatalf("expected ErrInsufficientHold, got: %v", err)
	}

	// Hold untouched, recipient unpaid, no release entries written.
	if got := users.hold(holder); got != 20 {
		t.Errorf("hold after failed release: got %d, want 20", got)
	}
	if got := users.balance(recipient); got != 0 {
		t.Errorf("recipient balance after failed release: got %d, want 0", got)
	}
	if n := len(ledger.byType(models.LumenEntryEscrowRelease)); n != 0 {
		t.Errorf("expected 0 ESCROW_RELEASE entries, got %d", n)
	}
	if n := len(ledger.byType(models.LumenEntryEarning)); n != 0 {
		t.Errorf("expected 0 EARNING entries, got %d", n)
	}
}

func TestRefund_InsufficientHold(t *testing.T) {
	holder := uuid.New()
	ref := uuid.New()

	users := newMockUsers(usr(holder, 100))
	ledger := &mockLedger{}
	svc := NewEscrowService(users, ledger)

	ctx := context.Background()
	if err := svc.Hold(ctx, nil, holder, ref, 20, "collab escrow"); err != nil {
		t.Fatalf("Hold: %v", err)
	}

	err := svc.Refund(ctx, nil, holder, ref, 50, "over-refund")
	if !errors.Is(err, ErrInsufficientHold) {
		t.Fatalf("expected ErrInsufficientHold, got: %v", err)
	}
	if got := users.hold(holder); got != 20 {
		t.Errorf("hold after failed refund: got %d, want 20", got)
	}
	if got := users.balance(holder); got != 80 {
		t.Errorf("balance after failed refund: got %d, want 80", got)
	}
	if n := len(ledger.byType(models.LumenEntryEscrowRefund)); n != 0 {
		t.Errorf("expected 0 ESCROW_REFUND entries, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// 6. TestTopUp
// ---------------------------------------------------------------------------

func TestTopUp(t *testing.T) {
	user := uuid.New()

	users := newMockUsers(usr(user, 5))
	ledger := &mockLedger{}
	svc := NewEscrowService(users, ledger)

	newBalance, err := svc.TopUp(context.Background(), nil, user, 95, "lumen top-up")
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if newBalance != 100 {
		t.Errorf("TopUp returned balance: got %d, want 100", newBalance)
	}
	tops := ledger.byType(models.LumenEntryTopUp)
	if len(tops) != 1 || tops[0].Amount != 95 {
		t.Error("expected one TOP_UP entry of 95")
	}
}

// ---------------------------------------------------------------------------
// 7. TestLedgerConservation
//    Full cycle across two users: hold → release, hold → refund. Replaying
//    every entry's signed effects must reproduce both cached columns, and the
//    total tokens in the system never change.
// ---------------------------------------------------------------------------

func TestLedgerConservation(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	collab := uuid.New()
	order := uuid.New()

	const initialAlice = 100
	const initialBob = 40

	users := newMockUsers(usr(alice, initialAlice), usr(bob, initialBob))
	ledger := &mockLedger{}
	svc := NewEscrowService(users, ledger)

	ctx := context.Background()

	// Collab: alice escrows 30 to bob and it pays out.
	if err := svc.Hold(ctx, nil, alice, collab, 30, "collab escrow"); err != nil {
		t.Fatalf("Hold(collab): %v", err)
	}
	if err := svc.Release(ctx, nil, alice, bob, collab, 30, "collab payout"); err != nil {
		t.Fatalf("Release(collab): %v", err)
	}

	// Order: bob escrows 50 and cancels.
	if err := svc.Hold(ctx, nil, bob, order, 50, "order escrow"); err != nil {
		t.Fatalf("Hold(order): %v", err)
	}
	if err := svc.Refund(ctx, nil, bob, order, 50, "order cancelled"); err != nil {
		t.Fatalf("Refund(order): %v", err)
	}

	// Replay the ledger per user.
	balances := map[uuid.UUID]int{alice: 0, bob: 0}
	holds := map[uuid.UUID]int{alice: 0, bob: 0}
	for _, e := range ledger.all() {
		balances[e.UserID] += e.BalanceEffect()
		holds[e.UserID] += e.HoldEffect()
	}

	initials := map[uuid.UUID]int{alice: initialAlice, bob: initialBob}
	for id, initial := range initials {
		if got, want := users.balance(id), initial+balances[id]; got != want {
			t.Errorf("user %s: ledger replays balance %d, cached balance %d", id, want, got)
		}
		if got, want := users.hold(id), holds[id]; got != want {
			t.Errorf("user %s: ledger replays hold %d, cached hold %d", id, want, got)
		}
	}

	// Global conservation: balance+hold totals equal the initial totals.
	totalInitial := initialAlice + initialBob
	totalNow := users.balance(alice) + users.hold(alice) + users.balance(bob) + users.hold(bob)
	if totalNow != totalInitial {
		t.Errorf("lumen conservation violated: initial total %d, current total %d", totalInitial, totalNow)
	}
}
