package geo

import (
	"encoding/hex"
	"fmt"
	"math"

	"lukechampine.com/blake3"
)

// Coordinates is a position on the world map. The map is a square grid
// centered on the origin; bounds are enforced by the callers that know the
// configured map radius.
type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Distance returns the Euclidean distance between two coordinates in map units.
func Distance(a, b Coordinates) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// SectionID buckets a coordinate into its map section. Sections are the unit
// of spatial indexing: density queries and claim lookups group by section.
func SectionID(c Coordinates, sectionSize int) string {
	if sectionSize <= 0 {
		sectionSize = 100
	}
	sx := int(math.Floor(float64(c.X) / float64(sectionSize)))
	sy := int(math.Floor(float64(c.Y) / float64(sectionSize)))
	return fmt.Sprintf("sec_%d_%d", sx, sy)
}

// Hash returns the canonical claim key for a coordinate. Two coordinates hash
// equal iff they are the same point, so the claim table's primary key on the
// hash is what enforces coordinate exclusivity.
func Hash(c Coordinates) string {
	sum := blake3.Sum256([]byte(fmt.Sprintf("%d:%d", c.X, c.Y)))
	return hex.EncodeToString(sum[:16])
}

// InBounds reports whether c lies inside the square map of the given radius.
func InBounds(c Coordinates, radius int) bool {
	return c.X >= -radius && c.X <= radius && c.Y >= -radius && c.Y <= radius
}
