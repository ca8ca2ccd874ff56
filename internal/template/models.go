package template

import (
	"time"
)

// Template describes what a base of a given type looks like at a given level:
// what it costs to reach, how long it takes to build, and the stats it grants.
// Rows are seeded by migration and never mutated by request traffic.
type Template struct {
	BaseType            string    `json:"base_type"`
	Level               int       `json:"level"`
	BuildTime           int       `json:"build_time_seconds"`
	RequiredGold        int       `json:"required_gold"`
	RequiredPlayerLevel int       `json:"required_player_level"`
	Defense             int       `json:"defense"`
	Storage             int       `json:"storage"`
	Production          int       `json:"production"`
	CreatedAt           time.Time `json:"created_at"`
}
