package spawn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"bases-server/internal/shared/errors"
	sharedredis "bases-server/internal/shared/redis"

	"github.com/redis/go-redis/v9"
)

// HoldStore holds spawn reservations under a TTL. Reserving and consuming are
// atomic with respect to other spawn requests.
type HoldStore interface {
	Reserve(ctx context.Context, res *Reservation, ttl time.Duration) (bool, error)
	Consume(ctx context.Context, playerID, reservationID string) (*Reservation, error)
}

// RedisHolds keeps reservations in Redis. Two keys per reservation: the
// coordinate guard (SET NX on the coordinate hash, which is the actual
// exclusivity check) and the reservation payload keyed by id. Both expire with
// the TTL, so abandoned reservations free themselves.
type RedisHolds struct {
	client *sharedredis.Client
	logger *slog.Logger
}

func NewRedisHolds(client *sharedredis.Client, logger *slog.Logger) *RedisHolds {
	logger.Debug("Initializing spawn hold store")

	return &RedisHolds{
		client: client,
		logger: logger,
	}
}

func reservationKey(id string) string  { return "spawn:reservation:" + id }
func coordinateKey(hash string) string { return "spawn:coord:" + hash }

// Reserve takes the coordinate hold for a candidate. Returns false without
// error when another reservation already holds the coordinate.
func (h *RedisHolds) Reserve(ctx context.Context, res *Reservation, ttl time.Duration) (bool, error) {
	if h.client == nil {
		return false, errors.External("spawn reservations require redis")
	}

	logger := h.logger.With(
		"component", "spawn_holds",
		"operation", "reserve",
		"reservation_id", res.ID,
		"coordinate_hash", res.CoordinateHash,
	)

	ok, err := h.client.SetNX(ctx, coordinateKey(res.CoordinateHash), res.ID, ttl).Result()
	if err != nil {
		logger.Error("Failed to set coordinate hold", "error", err)
		return false, fmt.Errorf("failed to set coordinate hold: %w", err)
	}
	if !ok {
		logger.Debug("Coordinate already held")
		return false, nil
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return false, fmt.Errorf("failed to marshal reservation: %w", err)
	}

	if err := h.client.Set(ctx, reservationKey(res.ID), payload, ttl).Err(); err != nil {
		// Free the coordinate hold; leaving it would block the spot for the
		// full TTL with no reservation behind it.
		if delErr := h.client.Del(ctx, coordinateKey(res.CoordinateHash)).Err(); delErr != nil {
			logger.Warn("Failed to roll back coordinate hold", "error", delErr)
		}
		logger.Error("Failed to store reservation", "error", err)
		return false, fmt.Errorf("failed to store reservation: %w", err)
	}

	logger.Debug("Reservation stored", "expires_at", res.ExpiresAt)
	return true, nil
}

// Consume atomically takes a reservation off the store and returns it. A
// missing, expired or foreign reservation reads as not found.
func (h *RedisHolds) Consume(ctx context.Context, playerID, reservationID string) (*Reservation, error) {
	if h.client == nil {
		return nil, errors.External("spawn reservations require redis")
	}

	logger := h.logger.With(
		"component", "spawn_holds",
		"operation", "consume",
		"player_id", playerID,
		"reservation_id", reservationID,
	)

	payload, err := h.client.GetDel(ctx, reservationKey(reservationID)).Result()
	if err != nil {
		if err == redis.Nil {
			logger.Debug("Reservation not found or expired")
			return nil, errors.NotFoundf(errors.CodeSpawnNotFound, "spawn reservation %s not found or expired", reservationID)
		}
		logger.Error("Failed to consume reservation", "error", err)
		return nil, fmt.Errorf("failed to consume reservation: %w", err)
	}

	var res Reservation
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		logger.Error("Failed to decode reservation", "error", err)
		return nil, fmt.Errorf("failed to decode reservation: %w", err)
	}

	if res.PlayerID != playerID {
		// Someone else's reservation; it has already been taken off the store,
		// so put it back before rejecting.
		if restoreErr := h.client.Set(ctx, reservationKey(reservationID), payload, time.Until(res.ExpiresAt)).Err(); restoreErr != nil {
			logger.Warn("Failed to restore foreign reservation", "error", restoreErr)
		}
		logger.Warn("Reservation belongs to a different player", "reserved_by", res.PlayerID)
		return nil, errors.NotFoundf(errors.CodeSpawnNotFound, "spawn reservation %s not found or expired", reservationID)
	}

	// Best effort: the coordinate hold expires on its own if this fails.
	if err := h.client.Del(ctx, coordinateKey(res.CoordinateHash)).Err(); err != nil {
		logger.Warn("Failed to drop coordinate hold", "error", err)
	}

	logger.Info("Reservation consumed", "coordinates", res.Coordinates)
	return &res, nil
}
