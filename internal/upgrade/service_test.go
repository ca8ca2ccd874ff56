package upgrade

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bases-server/internal/base"
	"bases-server/internal/geo"
	"bases-server/internal/shared/errors"
	"bases-server/internal/template"
)

// fakeStore enforces the one-in-progress-per-base invariant the way the
// Postgres store does with its partial unique index: the conditional check and
// the insert happen under one lock.
type fakeStore struct {
	mu       sync.Mutex
	upgrades map[string]*Upgrade
	bases    *fakeBases
}

func newFakeStore(bases *fakeBases) *fakeStore {
	return &fakeStore{
		upgrades: make(map[string]*Upgrade),
		bases:    bases,
	}
}

func (s *fakeStore) ClaimSlot(ctx context.Context, u *Upgrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.upgrades {
		if existing.BaseID == u.BaseID && existing.Status == StatusInProgress {
			return errors.Conflict(errors.CodeUpgradeInProgress, "an upgrade is already in progress for this base")
		}
	}

	copied := *u
	s.upgrades[u.ID] = &copied
	return nil
}

func (s *fakeStore) CompleteInstant(ctx context.Context, u *Upgrade, stats base.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.upgrades {
		if existing.BaseID == u.BaseID && existing.Status == StatusInProgress {
			return errors.Conflict(errors.CodeUpgradeInProgress, "an upgrade is already in progress for this base")
		}
	}

	now := time.Now()
	copied := *u
	copied.Status = StatusCompleted
	copied.CompletionTime = &now
	s.upgrades[u.ID] = &copied

	return s.bases.applyLevel(u.BaseID, u.FromLevel, u.ToLevel, stats)
}

func (s *fakeStore) SettleElapsed(ctx context.Context, baseID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var settled int64
	for _, u := range s.upgrades {
		if u.BaseID == baseID && u.Status == StatusInProgress && u.CompletionTime != nil && !now.Before(*u.CompletionTime) {
			u.Status = StatusCompleted
			if err := s.bases.applyLevel(u.BaseID, u.FromLevel, u.ToLevel, base.Stats{}); err == nil {
				settled++
			}
		}
	}
	return settled, nil
}

func (s *fakeStore) SettleElapsedForPlayer(ctx context.Context, playerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var settled int64
	for _, u := range s.upgrades {
		if u.PlayerID == playerID && u.Status == StatusInProgress && u.CompletionTime != nil && !now.Before(*u.CompletionTime) {
			u.Status = StatusCompleted
			if err := s.bases.applyLevel(u.BaseID, u.FromLevel, u.ToLevel, base.Stats{}); err == nil {
				settled++
			}
		}
	}
	return settled, nil
}

func (s *fakeStore) GetUpgrade(ctx context.Context, playerID, upgradeID string) (*Upgrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.upgrades[upgradeID]
	if !ok || u.PlayerID != playerID {
		return nil, errors.NotFoundf(errors.CodeUpgradeNotFound, "upgrade %s not found", upgradeID)
	}
	copied := *u
	return &copied, nil
}

type fakeBases struct {
	mu sync.Mutex
	b  *base.Base
}

func (f *fakeBases) applyLevel(baseID string, from, to int, stats base.Stats) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.b == nil || f.b.ID != baseID || f.b.Level != from {
		return errors.Conflict(errors.CodeUpgradeInProgress, "level changed under the upgrade")
	}
	f.b.Level = to
	return nil
}

func (f *fakeBases) CreateBase(ctx context.Context, b *base.Base, maxBases int) error {
	return nil
}

func (f *fakeBases) GetBase(ctx context.Context, playerID, baseID string) (*base.Base, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.b == nil || f.b.ID != baseID || f.b.PlayerID != playerID {
		return nil, errors.NotFoundf(errors.CodeBaseNotFound, "base %s not found", baseID)
	}
	copied := *f.b
	return &copied, nil
}

func (f *fakeBases) ListByPlayer(ctx context.Context, playerID string) ([]base.Base, error) {
	return nil, nil
}

func (f *fakeBases) SettleStatus(ctx context.Context, b *base.Base) error {
	return nil
}

func (f *fakeBases) ApplyMove(ctx context.Context, b *base.Base, plan base.MovePlan) error {
	return nil
}

func (f *fakeBases) MarkDestroyed(ctx context.Context, playerID, baseID string) (*base.Base, error) {
	return nil, errors.NotFoundf(errors.CodeBaseNotFound, "base %s not found", baseID)
}

type fakeCatalog struct {
	buildTime int
	maxLevel  int
}

func (c *fakeCatalog) GetTemplate(ctx context.Context, baseType string, level int) (*template.Template, error) {
	if level > c.maxLevel {
		return nil, errors.NotFoundf(errors.CodeTemplateNotFound, "no template for %s level %d", baseType, level)
	}
	return &template.Template{
		BaseType:  baseType,
		Level:     level,
		BuildTime: c.buildTime,
		Defense:   level * 100,
	}, nil
}

type recordingLedger struct {
	mu      sync.Mutex
	charges []int
}

func (l *recordingLedger) Deduct(ctx context.Context, playerID string, amount int, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.charges = append(l.charges, amount)
	return nil
}

func activeBase(level int) *fakeBases {
	return &fakeBases{b: &base.Base{
		ID:          "b1",
		PlayerID:    "p1",
		BaseType:    "outpost",
		Level:       level,
		Coordinates: geo.Coordinates{X: 1, Y: 1},
		Status:      base.StatusActive,
	}}
}

func TestStartClaimsSlot(t *testing.T) {
	bases := activeBase(1)
	store := newFakeStore(bases)
	svc := NewService(store, bases, &fakeCatalog{buildTime: 600, maxLevel: 10}, &recordingLedger{}, slog.Default())

	u, err := svc.Start(context.Background(), "p1", "b1", "", false)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if u.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %v", u.Status)
	}
	if u.FromLevel != 1 || u.ToLevel != 2 {
		t.Fatalf("expected 1→2, got %d→%d", u.FromLevel, u.ToLevel)
	}
	if u.UpgradeType != "base_level" {
		t.Fatalf("expected default upgrade type, got %q", u.UpgradeType)
	}
	if u.CompletionTime == nil {
		t.Fatal("expected a completion time")
	}
}

func TestConcurrentStartsOneWins(t *testing.T) {
	bases := activeBase(1)
	store := newFakeStore(bases)
	svc := NewService(store, bases, &fakeCatalog{buildTime: 600, maxLevel: 10}, &recordingLedger{}, slog.Default())
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Start(ctx, "p1", "b1", "", false)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won, conflicted int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.HasCode(err, errors.CodeUpgradeInProgress):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
	if conflicted != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicted)
	}
}

func TestSkipCompletesInstantly(t *testing.T) {
	bases := activeBase(3)
	store := newFakeStore(bases)
	gold := &recordingLedger{}
	svc := NewService(store, bases, &fakeCatalog{buildTime: 1800, maxLevel: 10}, gold, slog.Default())

	u, err := svc.Start(context.Background(), "p1", "b1", "", true)
	if err != nil {
		t.Fatalf("Start with skip failed: %v", err)
	}

	if u.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v", u.Status)
	}
	if u.GoldCost != 30 {
		t.Fatalf("expected 30 gold for a 30 minute build, got %d", u.GoldCost)
	}
	if len(gold.charges) != 1 || gold.charges[0] != 30 {
		t.Fatalf("expected one charge of 30, got %v", gold.charges)
	}
	if bases.b.Level != 4 {
		t.Fatalf("expected base at level 4, got %d", bases.b.Level)
	}

	// The slot is free for the next upgrade.
	if _, err := svc.Start(context.Background(), "p1", "b1", "", false); err != nil {
		t.Fatalf("expected next upgrade to start after skip: %v", err)
	}
}

func TestSkipRejectedWhileUpgradeInProgress(t *testing.T) {
	bases := activeBase(1)
	store := newFakeStore(bases)
	svc := NewService(store, bases, &fakeCatalog{buildTime: 600, maxLevel: 10}, &recordingLedger{}, slog.Default())
	ctx := context.Background()

	if _, err := svc.Start(ctx, "p1", "b1", "", false); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The slot is taken by the timed upgrade; paying to skip must not slip a
	// second completion past it.
	u, err := svc.Start(ctx, "p1", "b1", "", true)
	if !errors.HasCode(err, errors.CodeUpgradeInProgress) {
		t.Fatalf("expected UPGRADE_IN_PROGRESS for a skip while busy, got upgrade %+v err %v", u, err)
	}
	if bases.b.Level != 1 {
		t.Fatalf("expected level unchanged while the upgrade runs, got %d", bases.b.Level)
	}
}

func TestSettleOwnedAppliesElapsedCompletions(t *testing.T) {
	bases := activeBase(1)
	store := newFakeStore(bases)
	svc := NewService(store, bases, &fakeCatalog{buildTime: 600, maxLevel: 10}, &recordingLedger{}, slog.Default())

	past := time.Now().Add(-time.Minute)
	store.upgrades["u1"] = &Upgrade{
		ID:             "u1",
		PlayerID:       "p1",
		BaseID:         "b1",
		FromLevel:      1,
		ToLevel:        2,
		Status:         StatusInProgress,
		CompletionTime: &past,
	}

	if err := svc.SettleOwned(context.Background(), "p1"); err != nil {
		t.Fatalf("SettleOwned failed: %v", err)
	}
	if bases.b.Level != 2 {
		t.Fatalf("expected the elapsed upgrade applied, got level %d", bases.b.Level)
	}
	if store.upgrades["u1"].Status != StatusCompleted {
		t.Fatalf("expected the upgrade row completed, got %v", store.upgrades["u1"].Status)
	}
}

func TestStartRejectsMaxLevel(t *testing.T) {
	bases := activeBase(5)
	store := newFakeStore(bases)
	svc := NewService(store, bases, &fakeCatalog{buildTime: 600, maxLevel: 5}, &recordingLedger{}, slog.Default())

	_, err := svc.Start(context.Background(), "p1", "b1", "", false)
	if !errors.HasCode(err, errors.CodeUpgradeTemplateNotFound) {
		t.Fatalf("expected UPGRADE_TEMPLATE_NOT_FOUND at max level, got %v", err)
	}
}

func TestStartRejectsNonActiveBase(t *testing.T) {
	future := time.Now().Add(time.Hour)
	bases := &fakeBases{b: &base.Base{
		ID:          "b1",
		PlayerID:    "p1",
		BaseType:    "outpost",
		Level:       1,
		Status:      base.StatusMoving,
		ArrivalTime: &future,
	}}
	store := newFakeStore(bases)
	svc := NewService(store, bases, &fakeCatalog{buildTime: 600, maxLevel: 10}, &recordingLedger{}, slog.Default())

	_, err := svc.Start(context.Background(), "p1", "b1", "", false)
	if !errors.HasCode(err, errors.CodeInvalidBaseStatus) {
		t.Fatalf("expected INVALID_BASE_STATUS for a moving base, got %v", err)
	}
}

func TestStartRejectsDestroyedBase(t *testing.T) {
	bases := activeBase(1)
	bases.b.Status = base.StatusDestroyed
	store := newFakeStore(bases)
	svc := NewService(store, bases, &fakeCatalog{buildTime: 600, maxLevel: 10}, &recordingLedger{}, slog.Default())

	_, err := svc.Start(context.Background(), "p1", "b1", "", false)
	if !errors.HasCode(err, errors.CodeInvalidBaseStatus) {
		t.Fatalf("expected INVALID_BASE_STATUS for a destroyed base, got %v", err)
	}
}

func TestStartSettlesElapsedSlot(t *testing.T) {
	bases := activeBase(1)
	store := newFakeStore(bases)
	svc := NewService(store, bases, &fakeCatalog{buildTime: 600, maxLevel: 10}, &recordingLedger{}, slog.Default())

	// A finished upgrade that was never settled still occupies its slot.
	past := time.Now().Add(-time.Minute)
	store.upgrades["stale"] = &Upgrade{
		ID:             "stale",
		PlayerID:       "p1",
		BaseID:         "b1",
		FromLevel:      1,
		ToLevel:        2,
		Status:         StatusInProgress,
		CompletionTime: &past,
	}

	u, err := svc.Start(context.Background(), "p1", "b1", "", false)
	if err != nil {
		t.Fatalf("Start failed with a stale slot: %v", err)
	}
	if u.FromLevel != 2 || u.ToLevel != 3 {
		t.Fatalf("expected the settled level to be visible: got %d→%d", u.FromLevel, u.ToLevel)
	}
}

func TestGetPresentsElapsedAsCompleted(t *testing.T) {
	bases := activeBase(1)
	store := newFakeStore(bases)
	svc := NewService(store, bases, &fakeCatalog{buildTime: 600, maxLevel: 10}, &recordingLedger{}, slog.Default())

	past := time.Now().Add(-time.Second)
	store.upgrades["u1"] = &Upgrade{
		ID:             "u1",
		PlayerID:       "p1",
		BaseID:         "b1",
		FromLevel:      1,
		ToLevel:        2,
		Status:         StatusInProgress,
		CompletionTime: &past,
	}

	u, err := svc.Get(context.Background(), "p1", "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.Status != StatusCompleted {
		t.Fatalf("expected elapsed upgrade presented as completed, got %v", u.Status)
	}
}

func TestGetUnknownUpgrade(t *testing.T) {
	bases := activeBase(1)
	store := newFakeStore(bases)
	svc := NewService(store, bases, &fakeCatalog{buildTime: 600, maxLevel: 10}, &recordingLedger{}, slog.Default())

	_, err := svc.Get(context.Background(), "p1", "nope")
	if !errors.HasCode(err, errors.CodeUpgradeNotFound) {
		t.Fatalf("expected UPGRADE_NOT_FOUND, got %v", err)
	}
}
