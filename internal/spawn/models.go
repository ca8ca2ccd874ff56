package spawn

import (
	"time"

	"bases-server/internal/geo"
)

type Region string

const (
	RegionCenter Region = "center"
	RegionNorth  Region = "north"
	RegionSouth  Region = "south"
	RegionEast   Region = "east"
	RegionWest   Region = "west"
	RegionRandom Region = "random"
)

func IsValidRegion(r Region) bool {
	switch r {
	case RegionCenter, RegionNorth, RegionSouth, RegionEast, RegionWest, RegionRandom:
		return true
	}
	return false
}

// Reservation is a short-lived hold on a coordinate for a new player's first
// base. It lives in Redis under its TTL and is deleted when consumed by a
// create request.
type Reservation struct {
	ID             string          `json:"id"`
	PlayerID       string          `json:"reserved_by"`
	Coordinates    geo.Coordinates `json:"coordinates"`
	CoordinateHash string          `json:"coordinate_hash"`
	Score          float64         `json:"score"`
	ReservedAt     time.Time       `json:"reserved_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// SelectRequest asks for a spawn location for a new player.
type SelectRequest struct {
	Region           Region   `json:"region"`
	GroupWithFriends bool     `json:"group_with_friends"`
	FriendIDs        []string `json:"friend_ids,omitempty"`
}

type candidate struct {
	coords geo.Coordinates
	score  float64
}
