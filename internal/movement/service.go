package movement

import (
	"context"
	"log/slog"
	"math"
	"time"

	"bases-server/internal/base"
	"bases-server/internal/geo"
	"bases-server/internal/ledger"
	"bases-server/internal/shared/config"
	"bases-server/internal/shared/errors"
)

// claimGrace keeps an in-transit destination claim alive past the scheduled
// arrival, so a base that lands but is never settled still owns its spot while
// an interrupted move eventually frees it.
const claimGrace = 10 * time.Minute

type Service struct {
	bases  base.Store
	ledger ledger.Ledger
	cfg    config.GameConfig
	logger *slog.Logger
}

func NewService(bases base.Store, goldLedger ledger.Ledger, cfg config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing movement service")

	return &Service{
		bases:  bases,
		ledger: goldLedger,
		cfg:    cfg,
		logger: logger,
	}
}

// Move relocates a base. Normal moves respect the cooldown and the distance
// cap and put the base in transit; teleports charge gold and land instantly.
// The destination is taken with an atomic coordinate claim, so of two
// concurrent movers to the same spot exactly one wins.
func (s *Service) Move(ctx context.Context, playerID, baseID string, dest geo.Coordinates, useTeleport bool) (*base.Base, error) {
	logger := s.logger.With(
		"component", "movement_service",
		"operation", "move",
		"player_id", playerID,
		"base_id", baseID,
		"destination", dest,
		"teleport", useTeleport,
	)
	logger.Debug("Moving base")

	if !geo.InBounds(dest, s.cfg.MapRadius) {
		return nil, errors.Validationf("destination %s is outside the map", dest)
	}

	b, err := s.bases.GetBase(ctx, playerID, baseID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if status := b.EffectiveStatus(now); status != base.StatusActive {
		return nil, errors.InvalidStatef(errors.CodeInvalidBaseStatus, "base is %s; only active bases can move", status).WithDetails(map[string]any{
			"base_id": baseID,
			"status":  string(status),
		})
	}

	if b.Coordinates == dest {
		return nil, errors.Invalidf(errors.CodeSameCoordinates, "base is already at %s", dest)
	}

	distance := geo.Distance(b.Coordinates, dest)

	if !useTeleport {
		if b.LastMovedAt != nil {
			elapsed := now.Sub(*b.LastMovedAt)
			if elapsed < s.cfg.MoveCooldown {
				remaining := s.cfg.MoveCooldown - elapsed
				return nil, errors.Conflictf(errors.CodeMovementCooldown, "base moved recently; %s of cooldown remaining", remaining.Round(time.Second)).WithDetails(map[string]any{
					"base_id":           baseID,
					"remaining_seconds": int(remaining.Seconds()),
				})
			}
		}

		if distance > s.cfg.MaxMoveDistance {
			return nil, errors.Invalidf(errors.CodeDistanceTooFar, "destination is %.0f units away, beyond the %.0f unit limit", distance, s.cfg.MaxMoveDistance).WithDetails(map[string]any{
				"distance":     distance,
				"max_distance": s.cfg.MaxMoveDistance,
			})
		}
	}

	plan := base.MovePlan{
		Destination:  dest,
		Hash:         geo.Hash(dest),
		MapSectionID: geo.SectionID(dest, s.cfg.SectionSize),
		Teleport:     useTeleport,
		MovedAt:      now,
	}

	if useTeleport {
		// One unit of distance costs a tenth of a gold, floor 50.
		plan.GoldCost = int(math.Ceil(distance / 10))
		if plan.GoldCost < 50 {
			plan.GoldCost = 50
		}
		if err := s.ledger.Deduct(ctx, playerID, plan.GoldCost, "teleport"); err != nil {
			return nil, errors.WrapExternal("gold deduction failed", err)
		}
	} else {
		// One map unit per second of travel, floor at the configured minimum.
		plan.TravelTime = time.Duration(math.Round(distance)) * time.Second
		if plan.TravelTime < s.cfg.TravelFloor {
			plan.TravelTime = s.cfg.TravelFloor
		}
		arrival := now.Add(plan.TravelTime)
		plan.ArrivalTime = &arrival
		expiry := arrival.Add(claimGrace)
		plan.ClaimExpiry = &expiry
	}

	if err := s.bases.ApplyMove(ctx, b, plan); err != nil {
		return nil, err
	}

	b.Coordinates = plan.Destination
	b.MapSectionID = plan.MapSectionID
	b.CoordinateHash = plan.Hash
	b.LastMovedAt = &plan.MovedAt
	b.LastActiveAt = now
	if useTeleport {
		b.Status = base.StatusActive
		b.ArrivalTime = nil
	} else {
		b.Status = base.StatusMoving
		b.ArrivalTime = plan.ArrivalTime
	}

	logger.Info("Base moved",
		"status", b.Status,
		"distance", distance,
		"travel_seconds", int(plan.TravelTime.Seconds()),
		"gold_cost", plan.GoldCost,
	)
	return b, nil
}
