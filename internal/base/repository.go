package base

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"bases-server/internal/claim"
	"bases-server/internal/shared/database"
	"bases-server/internal/shared/errors"
)

// Store is the persistence surface the lifecycle, upgrade and movement
// services coordinate through. All mutations are conditional writes; a method
// either applies its transition or reports why the precondition failed.
type Store interface {
	CreateBase(ctx context.Context, b *Base, maxBases int) error
	GetBase(ctx context.Context, playerID, baseID string) (*Base, error)
	ListByPlayer(ctx context.Context, playerID string) ([]Base, error)
	SettleStatus(ctx context.Context, b *Base) error
	ApplyMove(ctx context.Context, b *Base, plan MovePlan) error
	MarkDestroyed(ctx context.Context, playerID, baseID string) (*Base, error)
}

type Repository struct {
	db     *database.DB
	claims *claim.Repository
	logger *slog.Logger
}

func NewRepository(db *database.DB, claims *claim.Repository, logger *slog.Logger) *Repository {
	logger.Debug("Initializing base repository")

	return &Repository{
		db:     db,
		claims: claims,
		logger: logger,
	}
}

const baseColumns = `id, player_id, base_type, base_name, level, x_coord, y_coord, map_section_id, coordinate_hash,
		alliance_id, status, defense, storage, production, build_completion_time, last_moved_at, arrival_time,
		created_at, last_active_at`

func scanBase(row interface{ Scan(...interface{}) error }) (*Base, error) {
	var b Base
	err := row.Scan(
		&b.ID,
		&b.PlayerID,
		&b.BaseType,
		&b.BaseName,
		&b.Level,
		&b.Coordinates.X,
		&b.Coordinates.Y,
		&b.MapSectionID,
		&b.CoordinateHash,
		&b.AllianceID,
		&b.Status,
		&b.Stats.Defense,
		&b.Stats.Storage,
		&b.Stats.Production,
		&b.BuildCompletionTime,
		&b.LastMovedAt,
		&b.ArrivalTime,
		&b.CreatedAt,
		&b.LastActiveAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBase inserts a new base inside one transaction: conditional increment
// of the player's base counter, coordinate claim, then the base row. The
// guarded counter update is what enforces the per-player limit under
// concurrent creates; the claim goes in before the base row so an interrupted
// writer never leaves a base without a claim.
func (r *Repository) CreateBase(ctx context.Context, b *Base, maxBases int) error {
	logger := r.logger.With(
		"component", "base_repository",
		"operation", "create_base",
		"player_id", b.PlayerID,
		"base_id", b.ID,
		"base_type", b.BaseType,
	)
	logger.Debug("Creating base")

	err := r.db.WithinTx(ctx, func(tx *database.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO player_base_counts (player_id, base_count) VALUES ($1, 0)
			 ON CONFLICT (player_id) DO NOTHING`,
			b.PlayerID,
		)
		if err != nil {
			return fmt.Errorf("failed to ensure base counter: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE player_base_counts
			 SET base_count = base_count + 1, updated_at = NOW()
			 WHERE player_id = $1 AND base_count < $2`,
			b.PlayerID, maxBases,
		)
		if err != nil {
			return fmt.Errorf("failed to increment base counter: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read counter result: %w", err)
		}
		if affected == 0 {
			return errors.Conflictf(errors.CodeBaseLimitReached, "player already owns the maximum of %d bases", maxBases).WithDetails(map[string]any{
				"player_id": b.PlayerID,
				"max_bases": maxBases,
			})
		}

		if err := r.claims.Acquire(ctx, b.CoordinateHash, b.MapSectionID, b.ID, nil, tx); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO bases (id, player_id, base_type, base_name, level, x_coord, y_coord, map_section_id, coordinate_hash,
			                    alliance_id, status, defense, storage, production, build_completion_time, created_at, last_active_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())`,
			b.ID, b.PlayerID, b.BaseType, b.BaseName, b.Level,
			b.Coordinates.X, b.Coordinates.Y, b.MapSectionID, b.CoordinateHash,
			b.AllianceID, b.Status, b.Stats.Defense, b.Stats.Storage, b.Stats.Production,
			b.BuildCompletionTime,
		)
		if err != nil {
			return fmt.Errorf("failed to insert base: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.GetCode(err) != "" {
			logger.Debug("Base creation rejected", "error", err)
		} else {
			logger.Error("Failed to create base", "error", err)
		}
		return err
	}

	logger.Info("Base created", "status", b.Status, "coordinates", b.Coordinates)
	return nil
}

func (r *Repository) GetBase(ctx context.Context, playerID, baseID string) (*Base, error) {
	logger := r.logger.With(
		"component", "base_repository",
		"operation", "get_base",
		"player_id", playerID,
		"base_id", baseID,
	)

	query := `SELECT ` + baseColumns + ` FROM bases WHERE id = $1 AND player_id = $2`

	b, err := scanBase(r.db.QueryRowContext(ctx, query, baseID, playerID))
	if err != nil {
		if err == sql.ErrNoRows {
			logger.Debug("Base not found")
			return nil, errors.NotFoundf(errors.CodeBaseNotFound, "base %s not found", baseID)
		}
		logger.Error("Database error getting base", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return b, nil
}

func (r *Repository) ListByPlayer(ctx context.Context, playerID string) ([]Base, error) {
	logger := r.logger.With(
		"component", "base_repository",
		"operation", "list_by_player",
		"player_id", playerID,
	)
	logger.Debug("Listing bases")

	query := `SELECT ` + baseColumns + ` FROM bases WHERE player_id = $1 AND status <> 'destroyed' ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, playerID)
	if err != nil {
		logger.Error("Failed to query bases", "error", err)
		return nil, fmt.Errorf("failed to query bases: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var bases []Base
	for rows.Next() {
		b, err := scanBase(rows)
		if err != nil {
			logger.Error("Failed to scan base row", "error", err)
			return nil, fmt.Errorf("failed to scan base: %w", err)
		}
		bases = append(bases, *b)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating bases: %w", err)
	}

	logger.Debug("Bases retrieved", "count", len(bases))
	return bases, nil
}

// SettleStatus persists the effective status of a base whose stored status has
// fallen behind its timestamps. The update is guarded on the stored state, so
// a concurrent settle of the same base is a harmless no-op. For a completed
// move the in-transit claim becomes permanent.
func (r *Repository) SettleStatus(ctx context.Context, b *Base) error {
	logger := r.logger.With(
		"component", "base_repository",
		"operation", "settle_status",
		"base_id", b.ID,
		"stored_status", b.Status,
	)

	switch b.Status {
	case StatusBuilding:
		_, err := r.db.ExecContext(ctx,
			`UPDATE bases SET status = 'active', last_active_at = NOW()
			 WHERE id = $1 AND status = 'building' AND build_completion_time <= NOW()`,
			b.ID,
		)
		if err != nil {
			logger.Error("Failed to settle build completion", "error", err)
			return fmt.Errorf("failed to settle build completion: %w", err)
		}
	case StatusMoving:
		err := r.db.WithinTx(ctx, func(tx *database.Tx) error {
			result, err := tx.ExecContext(ctx,
				`UPDATE bases SET status = 'active', last_active_at = NOW()
				 WHERE id = $1 AND status = 'moving' AND arrival_time <= NOW()`,
				b.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to settle arrival: %w", err)
			}
			if affected, err := result.RowsAffected(); err != nil || affected == 0 {
				return nil
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE coordinate_claims SET expires_at = NULL
				 WHERE coordinate_hash = $1 AND base_id = $2`,
				b.CoordinateHash, b.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to settle claim: %w", err)
			}
			return nil
		})
		if err != nil {
			logger.Error("Failed to settle arrival", "error", err)
			return err
		}
	default:
		return nil
	}

	logger.Debug("Status settled")
	return nil
}

// ApplyMove moves a base in one transaction: acquire the destination claim,
// update the base row, release the origin claim. The base update is guarded on
// the current coordinate hash and an active stored status, so a concurrent
// move of the same base leaves exactly one winner.
func (r *Repository) ApplyMove(ctx context.Context, b *Base, plan MovePlan) error {
	logger := r.logger.With(
		"component", "base_repository",
		"operation", "apply_move",
		"base_id", b.ID,
		"destination", plan.Destination,
		"teleport", plan.Teleport,
	)
	logger.Debug("Applying move")

	status := StatusMoving
	if plan.Teleport {
		status = StatusActive
	}

	err := r.db.WithinTx(ctx, func(tx *database.Tx) error {
		if err := r.claims.Acquire(ctx, plan.Hash, plan.MapSectionID, b.ID, plan.ClaimExpiry, tx); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE bases
			 SET x_coord = $2, y_coord = $3, map_section_id = $4, coordinate_hash = $5,
			     status = $6, last_moved_at = $7, arrival_time = $8, last_active_at = NOW()
			 WHERE id = $1 AND coordinate_hash = $9 AND status = 'active'`,
			b.ID, plan.Destination.X, plan.Destination.Y, plan.MapSectionID, plan.Hash,
			status, plan.MovedAt, plan.ArrivalTime, b.CoordinateHash,
		)
		if err != nil {
			return fmt.Errorf("failed to update base position: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read move result: %w", err)
		}
		if affected == 0 {
			// The base changed under us between validation and apply.
			return errors.InvalidState(errors.CodeInvalidBaseStatus, "base is no longer in a movable state")
		}

		return r.claims.Release(ctx, b.CoordinateHash, b.ID, tx)
	})

	if err != nil {
		if errors.GetCode(err) != "" {
			logger.Debug("Move rejected", "error", err)
		} else {
			logger.Error("Failed to apply move", "error", err)
		}
		return err
	}

	logger.Info("Move applied", "status", status)
	return nil
}

// ApplyUpgradeTx bumps a base's level and stats inside a caller-owned
// transaction. Guarded on the expected from-level so two completions of the
// same upgrade cannot double-apply.
func (r *Repository) ApplyUpgradeTx(ctx context.Context, baseID string, fromLevel, toLevel int, stats Stats, tx *database.Tx) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE bases
		 SET level = $2, defense = $3, storage = $4, production = $5, last_active_at = NOW()
		 WHERE id = $1 AND level = $6 AND status <> 'destroyed'`,
		baseID, toLevel, stats.Defense, stats.Storage, stats.Production, fromLevel,
	)
	if err != nil {
		return fmt.Errorf("failed to apply upgrade: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read upgrade result: %w", err)
	}
	if affected == 0 {
		return errors.InvalidState(errors.CodeInvalidBaseStatus, "base level changed while completing upgrade")
	}
	return nil
}

// MarkDestroyed retires a base: status flips to destroyed, the coordinate
// claim is released, and the player's base counter is decremented, all in one
// transaction. Destroyed is terminal, so a second destroy is rejected.
func (r *Repository) MarkDestroyed(ctx context.Context, playerID, baseID string) (*Base, error) {
	logger := r.logger.With(
		"component", "base_repository",
		"operation", "mark_destroyed",
		"player_id", playerID,
		"base_id", baseID,
	)
	logger.Debug("Destroying base")

	var destroyed *Base
	err := r.db.WithinTx(ctx, func(tx *database.Tx) error {
		query := `
			UPDATE bases SET status = 'destroyed', last_active_at = NOW()
			WHERE id = $1 AND player_id = $2 AND status <> 'destroyed'
			RETURNING ` + baseColumns

		b, err := scanBase(tx.QueryRowContext(ctx, query, baseID, playerID))
		if err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFoundf(errors.CodeBaseNotFound, "no destroyable base %s", baseID)
			}
			return fmt.Errorf("failed to destroy base: %w", err)
		}
		destroyed = b

		if err := r.claims.Release(ctx, b.CoordinateHash, b.ID, tx); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE player_base_counts
			 SET base_count = GREATEST(base_count - 1, 0), updated_at = NOW()
			 WHERE player_id = $1`,
			playerID,
		)
		if err != nil {
			return fmt.Errorf("failed to decrement base counter: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.GetType(err) == errors.ErrorTypeNotFound {
			logger.Debug("Nothing to destroy", "error", err)
		} else {
			logger.Error("Failed to destroy base", "error", err)
		}
		return nil, err
	}

	logger.Info("Base destroyed")
	destroyed.Status = StatusDestroyed
	return destroyed, nil
}
