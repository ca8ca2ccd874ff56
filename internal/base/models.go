package base

import (
	"time"

	"bases-server/internal/geo"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusBuilding  Status = "building"
	StatusMoving    Status = "moving"
	StatusDestroyed Status = "destroyed"
)

var validBaseTypes = map[string]bool{
	"outpost":        true,
	"fortress":       true,
	"mining_station": true,
}

func IsValidBaseType(baseType string) bool {
	return validBaseTypes[baseType]
}

type Stats struct {
	Defense    int `json:"defense"`
	Storage    int `json:"storage"`
	Production int `json:"production"`
}

// Base is a player-owned structure on the map. The stored status field is an
// optimization, not the source of truth: a base stored as building whose
// completion time has passed is active. Always go through EffectiveStatus.
type Base struct {
	ID                  string          `json:"id"`
	PlayerID            string          `json:"player_id"`
	BaseType            string          `json:"base_type"`
	BaseName            string          `json:"base_name"`
	Level               int             `json:"level"`
	Coordinates         geo.Coordinates `json:"coordinates"`
	MapSectionID        string          `json:"map_section_id"`
	CoordinateHash      string          `json:"coordinate_hash"`
	AllianceID          *string         `json:"alliance_id,omitempty"`
	Status              Status          `json:"status"`
	Stats               Stats           `json:"stats"`
	BuildCompletionTime *time.Time      `json:"build_completion_time,omitempty"`
	LastMovedAt         *time.Time      `json:"last_moved_at,omitempty"`
	ArrivalTime         *time.Time      `json:"arrival_time,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	LastActiveAt        time.Time       `json:"last_active_at"`
}

// EffectiveStatus derives the real status from the stored status and the
// timing fields. Destroyed is terminal; building and moving decay to active
// once their deadline passes, whether or not the stored field was updated.
func (b *Base) EffectiveStatus(now time.Time) Status {
	switch b.Status {
	case StatusBuilding:
		if b.BuildCompletionTime != nil && !now.Before(*b.BuildCompletionTime) {
			return StatusActive
		}
	case StatusMoving:
		if b.ArrivalTime != nil && !now.Before(*b.ArrivalTime) {
			return StatusActive
		}
	}
	return b.Status
}

// MovePlan is the transition payload for a validated move: the destination,
// the charge, and the timing. Built by the movement resolver, applied through
// the lifecycle store so the base row and both coordinate claims change as one
// operation.
type MovePlan struct {
	Destination  geo.Coordinates
	Hash         string
	MapSectionID string
	Teleport     bool
	TravelTime   time.Duration
	ArrivalTime  *time.Time
	ClaimExpiry  *time.Time
	GoldCost     int
	MovedAt      time.Time
}
