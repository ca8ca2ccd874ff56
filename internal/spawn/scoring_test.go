package spawn

import (
	"math"
	"testing"

	"bases-server/internal/geo"
)

func TestRegionBoundsInsideMap(t *testing.T) {
	const radius = 5000

	for _, region := range []Region{RegionCenter, RegionNorth, RegionSouth, RegionEast, RegionWest} {
		b := regionBounds(region, radius)
		for _, corner := range []geo.Coordinates{
			{X: b.minX, Y: b.minY},
			{X: b.minX, Y: b.maxY},
			{X: b.maxX, Y: b.minY},
			{X: b.maxX, Y: b.maxY},
		} {
			if !geo.InBounds(corner, radius) {
				t.Fatalf("region %s corner %v is outside the map", region, corner)
			}
		}
		if b.minX > b.maxX || b.minY > b.maxY {
			t.Fatalf("region %s has inverted bounds %+v", region, b)
		}
	}
}

func TestRegionBoundsDirections(t *testing.T) {
	const radius = 5000

	north := regionBounds(RegionNorth, radius)
	if north.minY <= 0 {
		t.Fatalf("north region dips below the equator: %+v", north)
	}
	south := regionBounds(RegionSouth, radius)
	if south.maxY >= 0 {
		t.Fatalf("south region rises above the equator: %+v", south)
	}
	east := regionBounds(RegionEast, radius)
	if east.minX <= 0 {
		t.Fatalf("east region crosses the meridian: %+v", east)
	}
	west := regionBounds(RegionWest, radius)
	if west.maxX >= 0 {
		t.Fatalf("west region crosses the meridian: %+v", west)
	}

	center := regionBounds(RegionCenter, radius)
	if !center.contains(geo.Coordinates{X: 0, Y: 0}) {
		t.Fatal("center region does not contain the origin")
	}
}

func TestRandomRegionResolvesToCompass(t *testing.T) {
	const radius = 5000

	for i := 0; i < 50; i++ {
		b := regionBounds(RegionRandom, radius)
		origin := b.contains(geo.Coordinates{X: 0, Y: 0})
		if origin {
			t.Fatalf("random region resolved to a band containing the origin: %+v", b)
		}
	}
}

func TestGenerateCandidatesStayInBounds(t *testing.T) {
	b := bounds{minX: -100, minY: -100, maxX: 100, maxY: 100}
	centroid := &geo.Coordinates{X: 90, Y: 90}

	candidates := generateCandidates(b, 40, centroid, 50)
	if len(candidates) != 40 {
		t.Fatalf("expected a full pool of 40, got %d", len(candidates))
	}
	for _, c := range candidates {
		if !b.contains(c) {
			t.Fatalf("candidate %v escaped the region", c)
		}
	}
}

func TestCentroidOf(t *testing.T) {
	if centroidOf(nil) != nil {
		t.Fatal("expected nil centroid for no coordinates")
	}

	got := centroidOf([]geo.Coordinates{{X: 0, Y: 0}, {X: 10, Y: 20}})
	if got == nil || got.X != 5 || got.Y != 10 {
		t.Fatalf("centroid = %v, want (5,10)", got)
	}
}

func TestProximity(t *testing.T) {
	tests := []struct {
		name            string
		distance, reach float64
		want            float64
	}{
		{"zero distance", 0, 100, 1},
		{"half reach", 50, 100, 0.5},
		{"at reach", 100, 100, 0},
		{"beyond reach", 150, 100, 0},
		{"zero reach", 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := proximity(tt.distance, tt.reach); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("proximity(%v, %v) = %v, want %v", tt.distance, tt.reach, got, tt.want)
			}
		})
	}
}

func TestScorePrefersEmptierSections(t *testing.T) {
	c := geo.Coordinates{X: 100, Y: 100}
	sparse := scoreCandidate(c, 0, -1, nil, 5000, 200)
	crowded := scoreCandidate(c, 10, -1, nil, 5000, 200)

	if sparse <= crowded {
		t.Fatalf("expected empty section to score higher: %v vs %v", sparse, crowded)
	}
}

func TestScorePrefersResourceAccess(t *testing.T) {
	c := geo.Coordinates{X: 100, Y: 100}
	near := scoreCandidate(c, 0, 50, nil, 5000, 200)
	far := scoreCandidate(c, 0, 900, nil, 5000, 200)
	none := scoreCandidate(c, 0, -1, nil, 5000, 200)

	if near <= far {
		t.Fatalf("expected nearby resources to score higher: %v vs %v", near, far)
	}
	if none > far {
		t.Fatalf("expected no-resource world to score no better than distant resources: %v vs %v", none, far)
	}
}

func TestScorePrefersFriendProximity(t *testing.T) {
	centroid := &geo.Coordinates{X: 0, Y: 0}
	nearby := scoreCandidate(geo.Coordinates{X: 10, Y: 0}, 0, -1, centroid, 5000, 200)
	distant := scoreCandidate(geo.Coordinates{X: 390, Y: 0}, 0, -1, centroid, 5000, 200)

	if nearby <= distant {
		t.Fatalf("expected candidate near friends to score higher: %v vs %v", nearby, distant)
	}
}

func TestRankCandidatesTieBreak(t *testing.T) {
	candidates := []candidate{
		{coords: geo.Coordinates{X: 5, Y: 9}, score: 0.5},
		{coords: geo.Coordinates{X: 5, Y: 2}, score: 0.5},
		{coords: geo.Coordinates{X: 1, Y: 7}, score: 0.5},
		{coords: geo.Coordinates{X: 3, Y: 3}, score: 0.9},
	}

	rankCandidates(candidates)

	want := []geo.Coordinates{{X: 3, Y: 3}, {X: 1, Y: 7}, {X: 5, Y: 2}, {X: 5, Y: 9}}
	for i, w := range want {
		if candidates[i].coords != w {
			t.Fatalf("rank %d = %v, want %v", i, candidates[i].coords, w)
		}
	}
}

func TestRankCandidatesDeterministic(t *testing.T) {
	a := []candidate{
		{coords: geo.Coordinates{X: 2, Y: 2}, score: 0.7},
		{coords: geo.Coordinates{X: 1, Y: 1}, score: 0.7},
	}
	b := []candidate{a[1], a[0]}

	rankCandidates(a)
	rankCandidates(b)

	for i := range a {
		if a[i].coords != b[i].coords {
			t.Fatalf("orderings diverge at %d: %v vs %v", i, a[i].coords, b[i].coords)
		}
	}
}
