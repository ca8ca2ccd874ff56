package spawn

import (
	"math"
	"math/rand"
	"sort"

	"bases-server/internal/geo"
)

// Scoring weights for spawn candidates. Density and safety dominate; resource
// access and friend proximity refine among comparable spots.
const (
	weightDensity  = 0.3
	weightSafety   = 0.3
	weightResource = 0.2
	weightFriend   = 0.2
)

// bounds is an axis-aligned rectangle of valid spawn coordinates.
type bounds struct {
	minX, minY, maxX, maxY int
}

func (b bounds) contains(c geo.Coordinates) bool {
	return c.X >= b.minX && c.X <= b.maxX && c.Y >= b.minY && c.Y <= b.maxY
}

func (b bounds) randomPoint() geo.Coordinates {
	return geo.Coordinates{
		X: b.minX + rand.Intn(b.maxX-b.minX+1),
		Y: b.minY + rand.Intn(b.maxY-b.minY+1),
	}
}

// regionBounds maps a named region onto a rectangle of the map. The compass
// regions are half-radius bands; center is the inner quarter around origin.
func regionBounds(region Region, radius int) bounds {
	half := radius / 2
	quarter := radius / 4

	switch region {
	case RegionCenter:
		return bounds{-quarter, -quarter, quarter, quarter}
	case RegionNorth:
		return bounds{-half, half, half, radius}
	case RegionSouth:
		return bounds{-half, -radius, half, -half}
	case RegionEast:
		return bounds{half, -half, radius, half}
	case RegionWest:
		return bounds{-radius, -half, -half, half}
	default:
		compass := []Region{RegionNorth, RegionSouth, RegionEast, RegionWest}
		return regionBounds(compass[rand.Intn(len(compass))], radius)
	}
}

// generateCandidates builds the candidate pool: when a friend centroid exists,
// half the pool is biased around it within friendRadius; the rest is uniform
// in the region. Biased points that fall outside the region are discarded, so
// the pool may come up short of poolSize.
func generateCandidates(b bounds, poolSize int, centroid *geo.Coordinates, friendRadius float64) []geo.Coordinates {
	candidates := make([]geo.Coordinates, 0, poolSize)

	if centroid != nil {
		r := int(friendRadius)
		for i := 0; i < poolSize/2; i++ {
			c := geo.Coordinates{
				X: centroid.X + rand.Intn(2*r+1) - r,
				Y: centroid.Y + rand.Intn(2*r+1) - r,
			}
			if b.contains(c) {
				candidates = append(candidates, c)
			}
		}
	}

	for len(candidates) < poolSize {
		candidates = append(candidates, b.randomPoint())
	}

	return candidates
}

// centroidOf averages a set of coordinates. Returns nil for an empty set.
func centroidOf(coords []geo.Coordinates) *geo.Coordinates {
	if len(coords) == 0 {
		return nil
	}

	var sumX, sumY int
	for _, c := range coords {
		sumX += c.X
		sumY += c.Y
	}
	return &geo.Coordinates{
		X: int(math.Round(float64(sumX) / float64(len(coords)))),
		Y: int(math.Round(float64(sumY) / float64(len(coords)))),
	}
}

// proximity maps a distance onto [0,1]: 1 at distance zero, falling linearly
// to 0 at reach and beyond.
func proximity(distance, reach float64) float64 {
	if reach <= 0 {
		return 0
	}
	p := 1 - distance/reach
	if p < 0 {
		return 0
	}
	return p
}

// scoreCandidate combines the four weighted signals for one candidate.
// sectionCount is how many live bases share the candidate's map section;
// nearestResource is the distance to the closest resource node (negative when
// there are no nodes).
func scoreCandidate(c geo.Coordinates, sectionCount int, nearestResource float64, centroid *geo.Coordinates, mapRadius int, friendRadius float64) float64 {
	density := 1 / float64(1+sectionCount)
	safety := proximity(geo.Distance(c, geo.Coordinates{}), float64(mapRadius))

	resource := 0.0
	if nearestResource >= 0 {
		resource = proximity(nearestResource, float64(mapRadius)/5)
	}

	friend := 0.0
	if centroid != nil {
		friend = proximity(geo.Distance(c, *centroid), 2*friendRadius)
	}

	return weightDensity*density + weightSafety*safety + weightResource*resource + weightFriend*friend
}

// rankCandidates orders candidates best first. The tie-break is deterministic:
// equal scores are ordered by lower X, then lower Y, so concurrent selectors
// working from the same pool agree on the winner.
func rankCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidateLess(candidates[i], candidates[j])
	})
}

func candidateLess(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.coords.X != b.coords.X {
		return a.coords.X < b.coords.X
	}
	return a.coords.Y < b.coords.Y
}
