package upgrade

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"bases-server/internal/base"
	"bases-server/internal/shared/database"
	"bases-server/internal/shared/errors"

	"github.com/lib/pq"
)

// Store is the persistence surface of the upgrade controller.
type Store interface {
	ClaimSlot(ctx context.Context, u *Upgrade) error
	CompleteInstant(ctx context.Context, u *Upgrade, stats base.Stats) error
	SettleElapsed(ctx context.Context, baseID string) (int64, error)
	SettleElapsedForPlayer(ctx context.Context, playerID string) (int64, error)
	GetUpgrade(ctx context.Context, playerID, upgradeID string) (*Upgrade, error)
}

type Repository struct {
	db     *database.DB
	bases  *base.Repository
	logger *slog.Logger
}

func NewRepository(db *database.DB, bases *base.Repository, logger *slog.Logger) *Repository {
	logger.Debug("Initializing upgrade repository")

	return &Repository{
		db:     db,
		bases:  bases,
		logger: logger,
	}
}

const upgradeColumns = `id, player_id, base_id, upgrade_type, from_level, to_level, gold_cost, build_time_seconds, status, started_at, completion_time`

// ClaimSlot inserts the in_progress row for a base. The partial unique index
// on (base_id) WHERE status = 'in_progress' is the upgrade slot: under
// concurrent starts exactly one insert lands, the rest come back as a unique
// violation and map to UPGRADE_IN_PROGRESS.
func (r *Repository) ClaimSlot(ctx context.Context, u *Upgrade) error {
	logger := r.logger.With(
		"component", "upgrade_repository",
		"operation", "claim_slot",
		"base_id", u.BaseID,
		"upgrade_id", u.ID,
	)
	logger.Debug("Claiming upgrade slot")

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO upgrades (id, player_id, base_id, upgrade_type, from_level, to_level, gold_cost, build_time_seconds, status, started_at, completion_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'in_progress', $9, $10)`,
		u.ID, u.PlayerID, u.BaseID, u.UpgradeType, u.FromLevel, u.ToLevel,
		u.GoldCost, u.BuildTime, u.StartedAt, u.CompletionTime,
	)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			logger.Debug("Upgrade slot already taken")
			return errors.Conflict(errors.CodeUpgradeInProgress, "an upgrade is already in progress for this base").WithDetails(map[string]any{
				"base_id": u.BaseID,
			})
		}
		logger.Error("Failed to claim upgrade slot", "error", err)
		return fmt.Errorf("failed to claim upgrade slot: %w", err)
	}

	logger.Info("Upgrade started", "to_level", u.ToLevel, "completion_time", u.CompletionTime)
	return nil
}

// CompleteInstant claims the upgrade slot and completes it in one transaction
// (the gold-paid skip path). The row lands as in_progress so the partial
// unique index arbitrates the slot exactly as it does for timed starts, then
// flips to completed before commit. A base with a live in_progress upgrade
// rejects the skip with UPGRADE_IN_PROGRESS.
func (r *Repository) CompleteInstant(ctx context.Context, u *Upgrade, stats base.Stats) error {
	logger := r.logger.With(
		"component", "upgrade_repository",
		"operation", "complete_instant",
		"base_id", u.BaseID,
		"upgrade_id", u.ID,
	)
	logger.Debug("Completing upgrade instantly")

	err := r.db.WithinTx(ctx, func(tx *database.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO upgrades (id, player_id, base_id, upgrade_type, from_level, to_level, gold_cost, build_time_seconds, status, started_at, completion_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'in_progress', $9, NOW())`,
			u.ID, u.PlayerID, u.BaseID, u.UpgradeType, u.FromLevel, u.ToLevel,
			u.GoldCost, u.BuildTime, u.StartedAt,
		)
		if err != nil {
			var pqErr *pq.Error
			if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
				logger.Debug("Upgrade slot already taken")
				return errors.Conflict(errors.CodeUpgradeInProgress, "an upgrade is already in progress for this base").WithDetails(map[string]any{
					"base_id": u.BaseID,
				})
			}
			return fmt.Errorf("failed to claim upgrade slot: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE upgrades SET status = 'completed' WHERE id = $1`, u.ID); err != nil {
			return fmt.Errorf("failed to complete claimed upgrade: %w", err)
		}

		return r.bases.ApplyUpgradeTx(ctx, u.BaseID, u.FromLevel, u.ToLevel, stats, tx)
	})

	if err != nil {
		if errors.GetCode(err) != "" {
			logger.Debug("Instant completion rejected", "error", err)
		} else {
			logger.Error("Failed to complete upgrade instantly", "error", err)
		}
		return err
	}

	logger.Info("Upgrade completed instantly", "to_level", u.ToLevel, "gold_cost", u.GoldCost)
	return nil
}

// SettleElapsed persists the completion of any in_progress upgrade for a base
// whose completion time has passed: the row flips to completed and the base
// picks up the new level and template stats, all in one statement.
func (r *Repository) SettleElapsed(ctx context.Context, baseID string) (int64, error) {
	logger := r.logger.With(
		"component", "upgrade_repository",
		"operation", "settle_elapsed",
		"base_id", baseID,
	)

	query := `
		WITH done AS (
			UPDATE upgrades SET status = 'completed'
			WHERE base_id = $1 AND status = 'in_progress' AND completion_time <= NOW()
			RETURNING base_id, to_level
		)
		UPDATE bases b
		SET level = d.to_level, defense = t.defense, storage = t.storage, production = t.production, last_active_at = NOW()
		FROM done d
		JOIN base_templates t ON t.base_type = b.base_type AND t.level = d.to_level
		WHERE b.id = d.base_id AND b.status <> 'destroyed' AND b.level < d.to_level
	`

	result, err := r.db.ExecContext(ctx, query, baseID)
	if err != nil {
		logger.Error("Failed to settle elapsed upgrades", "error", err)
		return 0, fmt.Errorf("failed to settle elapsed upgrades: %w", err)
	}

	settled, _ := result.RowsAffected()
	if settled > 0 {
		logger.Info("Settled elapsed upgrades", "count", settled)
	}
	return settled, nil
}

// SettleElapsedForPlayer is SettleElapsed across every base the player owns,
// in one statement. List reads go through it so a whole roster shows current
// levels without touching each base.
func (r *Repository) SettleElapsedForPlayer(ctx context.Context, playerID string) (int64, error) {
	logger := r.logger.With(
		"component", "upgrade_repository",
		"operation", "settle_elapsed_for_player",
		"player_id", playerID,
	)

	query := `
		WITH done AS (
			UPDATE upgrades SET status = 'completed'
			WHERE player_id = $1 AND status = 'in_progress' AND completion_time <= NOW()
			RETURNING base_id, to_level
		)
		UPDATE bases b
		SET level = d.to_level, defense = t.defense, storage = t.storage, production = t.production, last_active_at = NOW()
		FROM done d
		JOIN base_templates t ON t.base_type = b.base_type AND t.level = d.to_level
		WHERE b.id = d.base_id AND b.status <> 'destroyed' AND b.level < d.to_level
	`

	result, err := r.db.ExecContext(ctx, query, playerID)
	if err != nil {
		logger.Error("Failed to settle elapsed upgrades", "error", err)
		return 0, fmt.Errorf("failed to settle elapsed upgrades: %w", err)
	}

	settled, _ := result.RowsAffected()
	if settled > 0 {
		logger.Info("Settled elapsed upgrades", "count", settled)
	}
	return settled, nil
}

func (r *Repository) GetUpgrade(ctx context.Context, playerID, upgradeID string) (*Upgrade, error) {
	logger := r.logger.With(
		"component", "upgrade_repository",
		"operation", "get_upgrade",
		"player_id", playerID,
		"upgrade_id", upgradeID,
	)

	query := `SELECT ` + upgradeColumns + ` FROM upgrades WHERE id = $1 AND player_id = $2`

	var u Upgrade
	err := r.db.QueryRowContext(ctx, query, upgradeID, playerID).Scan(
		&u.ID,
		&u.PlayerID,
		&u.BaseID,
		&u.UpgradeType,
		&u.FromLevel,
		&u.ToLevel,
		&u.GoldCost,
		&u.BuildTime,
		&u.Status,
		&u.StartedAt,
		&u.CompletionTime,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.Debug("Upgrade not found")
			return nil, errors.NotFoundf(errors.CodeUpgradeNotFound, "upgrade %s not found", upgradeID)
		}
		logger.Error("Database error getting upgrade", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &u, nil
}
