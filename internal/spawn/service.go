package spawn

import (
	"context"
	"log/slog"
	"time"

	"bases-server/internal/geo"
	"bases-server/internal/shared/config"
	"bases-server/internal/shared/errors"

	"github.com/google/uuid"
)

type Service struct {
	world  MapReader
	holds  HoldStore
	cfg    config.GameConfig
	logger *slog.Logger
}

func NewService(world MapReader, holds HoldStore, cfg config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing spawn service")

	return &Service{
		world:  world,
		holds:  holds,
		cfg:    cfg,
		logger: logger,
	}
}

// Select scores a pool of candidate coordinates for a new player and reserves
// the best one. The reservation holds the spot until it expires or a base
// create consumes it. Concurrent selectors racing for the same coordinate are
// split by the hold store; the loser falls through to its next-best candidate.
func (s *Service) Select(ctx context.Context, playerID string, req SelectRequest) (*Reservation, error) {
	logger := s.logger.With(
		"component", "spawn_service",
		"operation", "select",
		"player_id", playerID,
		"region", req.Region,
	)
	logger.Debug("Selecting spawn location")

	if req.Region == "" {
		req.Region = RegionRandom
	}
	if !IsValidRegion(req.Region) {
		return nil, errors.Validationf("invalid region %q", req.Region)
	}

	b := regionBounds(req.Region, s.cfg.MapRadius)

	var centroid *geo.Coordinates
	if req.GroupWithFriends && len(req.FriendIDs) > 0 {
		friendIDs := req.FriendIDs
		if len(friendIDs) > s.cfg.MaxFriendsGrouped {
			friendIDs = friendIDs[:s.cfg.MaxFriendsGrouped]
		}

		coords, err := s.world.FriendBaseCoordinates(ctx, friendIDs, s.cfg.MaxFriendsGrouped)
		if err != nil {
			// Friend grouping is a preference, not a guarantee. Fall back to
			// unbiased selection rather than failing the spawn.
			logger.Warn("Failed to load friend bases, ignoring grouping", "error", err)
		} else {
			centroid = centroidOf(coords)
		}
	}

	pool := generateCandidates(b, s.cfg.SpawnCandidates, centroid, s.cfg.SpawnFriendRadius)

	candidates, err := s.scorePool(ctx, pool, centroid)
	if err != nil {
		return nil, err
	}
	rankCandidates(candidates)

	now := time.Now()
	for _, c := range candidates {
		res := &Reservation{
			ID:             uuid.New().String(),
			PlayerID:       playerID,
			Coordinates:    c.coords,
			CoordinateHash: geo.Hash(c.coords),
			Score:          c.score,
			ReservedAt:     now,
			ExpiresAt:      now.Add(s.cfg.SpawnReservationTTL),
		}

		ok, err := s.holds.Reserve(ctx, res, s.cfg.SpawnReservationTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			logger.Info("Spawn location reserved",
				"reservation_id", res.ID,
				"coordinates", res.Coordinates,
				"score", res.Score,
			)
			return res, nil
		}
	}

	logger.Warn("All spawn candidates were already held", "candidates", len(candidates))
	return nil, errors.Conflict(errors.CodeSpawnUnavailable, "no spawn location available, try again")
}

// Consume redeems a reservation during base creation and hands back its
// coordinates. Implements the spawn consumer used by the base service.
func (s *Service) Consume(ctx context.Context, playerID, reservationID string) (geo.Coordinates, error) {
	res, err := s.holds.Consume(ctx, playerID, reservationID)
	if err != nil {
		return geo.Coordinates{}, err
	}
	return res.Coordinates, nil
}

// Restore re-reserves a consumed reservation after the base create it fed
// failed. Best effort: if another reservation took the coordinate in the
// meantime, the spot stays lost and the player selects again.
func (s *Service) Restore(ctx context.Context, playerID, reservationID string, coords geo.Coordinates) error {
	now := time.Now()
	res := &Reservation{
		ID:             reservationID,
		PlayerID:       playerID,
		Coordinates:    coords,
		CoordinateHash: geo.Hash(coords),
		ReservedAt:     now,
		ExpiresAt:      now.Add(s.cfg.SpawnReservationTTL),
	}

	ok, err := s.holds.Reserve(ctx, res, s.cfg.SpawnReservationTTL)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("Coordinate was re-held before reservation restore",
			"component", "spawn_service",
			"reservation_id", reservationID,
			"coordinate_hash", res.CoordinateHash,
		)
	}
	return nil
}

// scorePool evaluates every candidate against world state: one batched section
// count query plus the static resource node set.
func (s *Service) scorePool(ctx context.Context, pool []geo.Coordinates, centroid *geo.Coordinates) ([]candidate, error) {
	sectionIDs := make([]string, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	for _, c := range pool {
		id := geo.SectionID(c, s.cfg.SectionSize)
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			sectionIDs = append(sectionIDs, id)
		}
	}

	counts, err := s.world.SectionBaseCounts(ctx, sectionIDs)
	if err != nil {
		return nil, err
	}

	nodes, err := s.world.ResourceNodes(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(pool))
	for _, c := range pool {
		nearest := -1.0
		for _, n := range nodes {
			d := geo.Distance(c, n)
			if nearest < 0 || d < nearest {
				nearest = d
			}
		}

		count := counts[geo.SectionID(c, s.cfg.SectionSize)]
		score := scoreCandidate(c, count, nearest, centroid, s.cfg.MapRadius, s.cfg.SpawnFriendRadius)
		candidates = append(candidates, candidate{coords: c, score: score})
	}

	return candidates, nil
}
