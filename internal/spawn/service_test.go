package spawn

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bases-server/internal/geo"
	"bases-server/internal/shared/config"
	"bases-server/internal/shared/errors"
)

type fakeWorld struct {
	sectionCounts map[string]int
	friendBases   []geo.Coordinates
	resources     []geo.Coordinates
	friendErr     error
}

func (w *fakeWorld) SectionBaseCounts(ctx context.Context, sectionIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(sectionIDs))
	for _, id := range sectionIDs {
		if c, ok := w.sectionCounts[id]; ok {
			counts[id] = c
		}
	}
	return counts, nil
}

func (w *fakeWorld) FriendBaseCoordinates(ctx context.Context, playerIDs []string, limit int) ([]geo.Coordinates, error) {
	if w.friendErr != nil {
		return nil, w.friendErr
	}
	if len(w.friendBases) > limit {
		return w.friendBases[:limit], nil
	}
	return w.friendBases, nil
}

func (w *fakeWorld) ResourceNodes(ctx context.Context) ([]geo.Coordinates, error) {
	return w.resources, nil
}

// fakeHolds mimics the Redis hold store with a map behind a mutex: one hold
// per coordinate hash, reservations consumable once.
type fakeHolds struct {
	mu           sync.Mutex
	byCoord      map[string]string
	reservations map[string]*Reservation
	rejectAll    bool
}

func newFakeHolds() *fakeHolds {
	return &fakeHolds{
		byCoord:      make(map[string]string),
		reservations: make(map[string]*Reservation),
	}
}

func (h *fakeHolds) Reserve(ctx context.Context, res *Reservation, ttl time.Duration) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rejectAll {
		return false, nil
	}
	if _, taken := h.byCoord[res.CoordinateHash]; taken {
		return false, nil
	}

	copied := *res
	h.byCoord[res.CoordinateHash] = res.ID
	h.reservations[res.ID] = &copied
	return true, nil
}

func (h *fakeHolds) Consume(ctx context.Context, playerID, reservationID string) (*Reservation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	res, ok := h.reservations[reservationID]
	if !ok || res.PlayerID != playerID {
		return nil, errors.NotFoundf(errors.CodeSpawnNotFound, "spawn reservation %s not found or expired", reservationID)
	}
	delete(h.reservations, reservationID)
	delete(h.byCoord, res.CoordinateHash)
	return res, nil
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		SpawnCandidates:     20,
		SpawnFriendRadius:   200,
		SpawnReservationTTL: 5 * time.Minute,
		MapRadius:           5000,
		SectionSize:         100,
		MaxFriendsGrouped:   5,
	}
}

func newTestService(world MapReader, holds HoldStore) *Service {
	return NewService(world, holds, testGameConfig(), slog.Default())
}

func TestSelectReservesInRegion(t *testing.T) {
	holds := newFakeHolds()
	svc := newTestService(&fakeWorld{}, holds)

	res, err := svc.Select(context.Background(), "p1", SelectRequest{Region: RegionNorth})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	b := regionBounds(RegionNorth, 5000)
	if !b.contains(res.Coordinates) {
		t.Fatalf("reservation %v is outside the north region", res.Coordinates)
	}
	if res.PlayerID != "p1" {
		t.Fatalf("reservation owned by %q, want p1", res.PlayerID)
	}
	if res.CoordinateHash != geo.Hash(res.Coordinates) {
		t.Fatal("reservation hash does not match its coordinates")
	}
	if ttl := time.Until(res.ExpiresAt); ttl < 4*time.Minute || ttl > 5*time.Minute {
		t.Fatalf("reservation TTL off: %v", ttl)
	}
}

func TestSelectDefaultsToRandomRegion(t *testing.T) {
	svc := newTestService(&fakeWorld{}, newFakeHolds())

	if _, err := svc.Select(context.Background(), "p1", SelectRequest{}); err != nil {
		t.Fatalf("Select with empty region failed: %v", err)
	}
}

func TestSelectRejectsUnknownRegion(t *testing.T) {
	svc := newTestService(&fakeWorld{}, newFakeHolds())

	_, err := svc.Select(context.Background(), "p1", SelectRequest{Region: "atlantis"})
	if errors.GetType(err) != errors.ErrorTypeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSelectUnavailableWhenAllHeld(t *testing.T) {
	holds := newFakeHolds()
	holds.rejectAll = true
	svc := newTestService(&fakeWorld{}, holds)

	_, err := svc.Select(context.Background(), "p1", SelectRequest{Region: RegionCenter})
	if !errors.HasCode(err, errors.CodeSpawnUnavailable) {
		t.Fatalf("expected SPAWN_UNAVAILABLE, got %v", err)
	}
}

func TestSelectSurvivesFriendLookupFailure(t *testing.T) {
	world := &fakeWorld{friendErr: errors.External("friends service down")}
	svc := newTestService(world, newFakeHolds())

	res, err := svc.Select(context.Background(), "p1", SelectRequest{
		Region:           RegionCenter,
		GroupWithFriends: true,
		FriendIDs:        []string{"f1", "f2"},
	})
	if err != nil {
		t.Fatalf("expected Select to fall back when friends are unavailable: %v", err)
	}
	if res == nil {
		t.Fatal("expected a reservation")
	}
}

func TestConcurrentSelectsNeverShareCoordinates(t *testing.T) {
	holds := newFakeHolds()
	svc := newTestService(&fakeWorld{}, holds)
	ctx := context.Background()

	const players = 10
	var wg sync.WaitGroup
	results := make(chan *Reservation, players)

	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Select(ctx, "p", SelectRequest{Region: RegionCenter})
			if err != nil {
				t.Errorf("Select failed: %v", err)
				return
			}
			results <- res
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for res := range results {
		if seen[res.CoordinateHash] {
			t.Fatalf("coordinate %v reserved twice", res.Coordinates)
		}
		seen[res.CoordinateHash] = true
	}
}

func TestConsumeRoundTrip(t *testing.T) {
	holds := newFakeHolds()
	svc := newTestService(&fakeWorld{}, holds)
	ctx := context.Background()

	res, err := svc.Select(ctx, "p1", SelectRequest{Region: RegionEast})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	coords, err := svc.Consume(ctx, "p1", res.ID)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if coords != res.Coordinates {
		t.Fatalf("consumed %v, reserved %v", coords, res.Coordinates)
	}

	// Single use.
	if _, err := svc.Consume(ctx, "p1", res.ID); !errors.HasCode(err, errors.CodeSpawnNotFound) {
		t.Fatalf("expected SPAWN_NOT_FOUND on second consume, got %v", err)
	}
}

func TestRestoreReinstatesConsumedReservation(t *testing.T) {
	holds := newFakeHolds()
	svc := newTestService(&fakeWorld{}, holds)
	ctx := context.Background()

	res, err := svc.Select(ctx, "p1", SelectRequest{Region: RegionSouth})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	coords, err := svc.Consume(ctx, "p1", res.ID)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	if err := svc.Restore(ctx, "p1", res.ID, coords); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	// The reservation is usable again after the restore.
	again, err := svc.Consume(ctx, "p1", res.ID)
	if err != nil {
		t.Fatalf("Consume after restore failed: %v", err)
	}
	if again != coords {
		t.Fatalf("restored reservation at %v, originally %v", again, coords)
	}
}

func TestConsumeRejectsForeignReservation(t *testing.T) {
	holds := newFakeHolds()
	svc := newTestService(&fakeWorld{}, holds)
	ctx := context.Background()

	res, err := svc.Select(ctx, "p1", SelectRequest{Region: RegionWest})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if _, err := svc.Consume(ctx, "p2", res.ID); !errors.HasCode(err, errors.CodeSpawnNotFound) {
		t.Fatalf("expected SPAWN_NOT_FOUND for another player's reservation, got %v", err)
	}

	// Still consumable by the owner.
	if _, err := svc.Consume(ctx, "p1", res.ID); err != nil {
		t.Fatalf("owner consume failed after foreign attempt: %v", err)
	}
}
