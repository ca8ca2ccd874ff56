// Package ledger is the boundary to the player-resource ledger service.
// Gold bookkeeping lives outside this server; components that charge gold
// (teleports, time skips) go through this interface.
package ledger

import (
	"context"
	"log/slog"
)

type Ledger interface {
	// Deduct charges gold to a player. Implementations return an error when
	// the player cannot cover the amount.
	Deduct(ctx context.Context, playerID string, amount int, reason string) error
}

// NoopLedger approves every deduction. Used until the real ledger service is
// wired in deployment.
type NoopLedger struct {
	logger *slog.Logger
}

func NewNoopLedger(logger *slog.Logger) *NoopLedger {
	return &NoopLedger{logger: logger}
}

func (l *NoopLedger) Deduct(ctx context.Context, playerID string, amount int, reason string) error {
	l.logger.Info("Gold deduction approved",
		"component", "ledger",
		"player_id", playerID,
		"amount", amount,
		"reason", reason,
	)
	return nil
}
