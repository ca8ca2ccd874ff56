// Package claim owns coordinate exclusivity. The claim table, not a scan over
// bases, is the authoritative source for collision checks: one live claim per
// coordinate hash, enforced by the primary key.
package claim

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"bases-server/internal/shared/database"
	"bases-server/internal/shared/errors"
)

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing claim repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) getExecutor(tx *database.Tx) database.Executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// Acquire takes the claim on a coordinate for baseID in a single conditional
// statement. It succeeds when the coordinate is unclaimed, already held by the
// same base, or held by an expired in-transit claim; any other live holder
// yields a COORDINATES_OCCUPIED conflict. expiresAt is set for in-transit
// claims and nil for settled ownership.
func (r *Repository) Acquire(ctx context.Context, hash, sectionID, baseID string, expiresAt *time.Time, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "claim_repository",
		"operation", "acquire",
		"coordinate_hash", hash,
		"base_id", baseID,
	)

	query := `
		INSERT INTO coordinate_claims (coordinate_hash, base_id, map_section_id, claimed_at, expires_at)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (coordinate_hash) DO UPDATE
		SET base_id = EXCLUDED.base_id,
		    map_section_id = EXCLUDED.map_section_id,
		    claimed_at = NOW(),
		    expires_at = EXCLUDED.expires_at
		WHERE coordinate_claims.base_id = EXCLUDED.base_id
		   OR (coordinate_claims.expires_at IS NOT NULL AND coordinate_claims.expires_at <= NOW())
		RETURNING coordinate_hash
	`

	var claimed string
	err := exec.QueryRowContext(ctx, query, hash, baseID, sectionID, expiresAt).Scan(&claimed)
	if err != nil {
		if err == sql.ErrNoRows {
			// The conditional update matched nothing: a different base holds a
			// live claim on this coordinate.
			logger.Debug("Coordinate already claimed")
			return errors.Conflict(errors.CodeCoordinatesOccupied, "coordinates are already occupied").WithDetails(map[string]any{
				"coordinate_hash": hash,
			})
		}
		logger.Error("Failed to acquire coordinate claim", "error", err)
		return fmt.Errorf("failed to acquire coordinate claim: %w", err)
	}

	logger.Debug("Coordinate claim acquired")
	return nil
}

// Release drops the claim if it is held by baseID. Releasing a claim that has
// already been taken over by someone else is a no-op.
func (r *Repository) Release(ctx context.Context, hash, baseID string, tx *database.Tx) error {
	exec := r.getExecutor(tx)

	logger := r.logger.With(
		"component", "claim_repository",
		"operation", "release",
		"coordinate_hash", hash,
		"base_id", baseID,
	)

	result, err := exec.ExecContext(ctx,
		`DELETE FROM coordinate_claims WHERE coordinate_hash = $1 AND base_id = $2`,
		hash, baseID,
	)
	if err != nil {
		logger.Error("Failed to release coordinate claim", "error", err)
		return fmt.Errorf("failed to release coordinate claim: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		logger.Debug("No claim to release")
	}
	return nil
}

// PurgeExpired removes in-transit claims whose expiry has passed. Called
// opportunistically; expired claims are also stealable in place by Acquire.
func (r *Repository) PurgeExpired(ctx context.Context) (int64, error) {
	logger := r.logger.With("component", "claim_repository", "operation", "purge_expired")

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM coordinate_claims WHERE expires_at IS NOT NULL AND expires_at <= NOW()`,
	)
	if err != nil {
		logger.Error("Failed to purge expired claims", "error", err)
		return 0, fmt.Errorf("failed to purge expired claims: %w", err)
	}

	purged, _ := result.RowsAffected()
	if purged > 0 {
		logger.Info("Purged expired coordinate claims", "count", purged)
	}
	return purged, nil
}
