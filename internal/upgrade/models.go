package upgrade

import (
	"time"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Upgrade is one leveling job for a base. At most one row per base may be
// in_progress at any instant; the store's conditional insert enforces that.
type Upgrade struct {
	ID             string     `json:"id"`
	PlayerID       string     `json:"player_id"`
	BaseID         string     `json:"base_id"`
	UpgradeType    string     `json:"upgrade_type"`
	FromLevel      int        `json:"from_level"`
	ToLevel        int        `json:"to_level"`
	GoldCost       int        `json:"gold_cost"`
	BuildTime      int        `json:"build_time_seconds"`
	Status         Status     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
}

// EffectiveStatus treats an elapsed in_progress row as completed for
// presentation. Persisting the completion is a separate settle step.
func (u *Upgrade) EffectiveStatus(now time.Time) Status {
	if u.Status == StatusInProgress && u.CompletionTime != nil && !now.Before(*u.CompletionTime) {
		return StatusCompleted
	}
	return u.Status
}

// SkipGoldCost prices an instant completion: one gold per started minute of
// remaining build time, with a floor of 10.
func SkipGoldCost(buildTimeSeconds int) int {
	cost := (buildTimeSeconds + 59) / 60
	if cost < 10 {
		return 10
	}
	return cost
}
