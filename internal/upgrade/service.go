package upgrade

import (
	"context"
	"log/slog"
	"time"

	"bases-server/internal/base"
	"bases-server/internal/ledger"
	"bases-server/internal/shared/errors"
	"bases-server/internal/template"

	"github.com/google/uuid"
)

const defaultUpgradeType = "base_level"

type Service struct {
	store   Store
	bases   base.Store
	catalog template.Catalog
	ledger  ledger.Ledger
	logger  *slog.Logger
}

func NewService(store Store, bases base.Store, catalog template.Catalog, goldLedger ledger.Ledger, logger *slog.Logger) *Service {
	logger.Debug("Initializing upgrade service")

	return &Service{
		store:   store,
		bases:   bases,
		catalog: catalog,
		ledger:  goldLedger,
		logger:  logger,
	}
}

// Start begins (or, with skipTime, instantly completes) the next level upgrade
// for a base. Only an effectively active base may upgrade: building, moving
// and destroyed all reject. Slot exclusivity comes from the store's
// conditional insert, never from a query-then-insert.
func (s *Service) Start(ctx context.Context, playerID, baseID, upgradeType string, skipTime bool) (*Upgrade, error) {
	logger := s.logger.With(
		"component", "upgrade_service",
		"operation", "start",
		"player_id", playerID,
		"base_id", baseID,
		"skip_time", skipTime,
	)
	logger.Debug("Starting upgrade")

	if upgradeType == "" {
		upgradeType = defaultUpgradeType
	}

	// Free the slot of any upgrade that has finished by elapsed time, so a
	// stale in_progress row cannot block this start.
	if _, err := s.store.SettleElapsed(ctx, baseID); err != nil {
		logger.Warn("Failed to settle elapsed upgrades", "error", err)
	}

	b, err := s.bases.GetBase(ctx, playerID, baseID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if status := b.EffectiveStatus(now); status != base.StatusActive {
		return nil, errors.InvalidStatef(errors.CodeInvalidBaseStatus, "base is %s; only active bases can upgrade", status).WithDetails(map[string]any{
			"base_id": baseID,
			"status":  string(status),
		})
	}

	tmpl, err := s.catalog.GetTemplate(ctx, b.BaseType, b.Level+1)
	if err != nil {
		if errors.HasCode(err, errors.CodeTemplateNotFound) {
			return nil, errors.NotFoundf(errors.CodeUpgradeTemplateNotFound, "base is already at max level %d", b.Level).WithDetails(map[string]any{
				"base_id": baseID,
				"level":   b.Level,
			})
		}
		return nil, err
	}

	u := &Upgrade{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		BaseID:      baseID,
		UpgradeType: upgradeType,
		FromLevel:   b.Level,
		ToLevel:     tmpl.Level,
		BuildTime:   tmpl.BuildTime,
		Status:      StatusInProgress,
		StartedAt:   now,
	}

	if skipTime {
		u.GoldCost = SkipGoldCost(tmpl.BuildTime)
		if err := s.ledger.Deduct(ctx, playerID, u.GoldCost, "upgrade_skip"); err != nil {
			return nil, errors.WrapExternal("gold deduction failed", err)
		}

		stats := base.Stats{
			Defense:    tmpl.Defense,
			Storage:    tmpl.Storage,
			Production: tmpl.Production,
		}
		if err := s.store.CompleteInstant(ctx, u, stats); err != nil {
			return nil, err
		}

		completed := time.Now()
		u.Status = StatusCompleted
		u.CompletionTime = &completed
		logger.Info("Upgrade completed instantly", "to_level", u.ToLevel, "gold_cost", u.GoldCost)
		return u, nil
	}

	completion := now.Add(time.Duration(tmpl.BuildTime) * time.Second)
	u.CompletionTime = &completion
	if err := s.store.ClaimSlot(ctx, u); err != nil {
		return nil, err
	}

	logger.Info("Upgrade in progress", "to_level", u.ToLevel, "completion_time", completion)
	return u, nil
}

// Get returns an upgrade with lazy completion applied: an in_progress row
// whose completion time has passed is presented as completed even if the
// settle has not been persisted yet.
func (s *Service) Get(ctx context.Context, playerID, upgradeID string) (*Upgrade, error) {
	u, err := s.store.GetUpgrade(ctx, playerID, upgradeID)
	if err != nil {
		return nil, err
	}

	if effective := u.EffectiveStatus(time.Now()); effective != u.Status {
		if _, err := s.store.SettleElapsed(ctx, u.BaseID); err != nil {
			s.logger.Warn("Failed to settle elapsed upgrades",
				"component", "upgrade_service",
				"base_id", u.BaseID,
				"error", err,
			)
		}
		u.Status = effective
	}
	return u, nil
}

// Settle persists any elapsed completion for the base. Called whenever the
// base is touched so stale in_progress rows do not accumulate.
func (s *Service) Settle(ctx context.Context, baseID string) error {
	_, err := s.store.SettleElapsed(ctx, baseID)
	return err
}

// SettleOwned persists elapsed completions across all of a player's bases.
// List reads call it so every listed base carries its current level.
func (s *Service) SettleOwned(ctx context.Context, playerID string) error {
	_, err := s.store.SettleElapsedForPlayer(ctx, playerID)
	return err
}
