package hilbert

import (
	"math/rand"
	"testing"

	"github.com/lifatov/roadindex/pkg/coord"
)

func TestIndexDeterministic(t *testing.T) {
	c := coord.FixedPointCoordinate{Lat: 1_352_100, Lon: 103_819_800}
	if Index(c) != Index(c) {
		t.Fatal("identical inputs must give identical indices")
	}
}

// The first curve level orders the four quadrants of the plane 0,1,2,3:
// south-west, north-west, north-east, south-east.
func TestIndexQuadrantOrder(t *testing.T) {
	quadrants := []coord.FixedPointCoordinate{
		{Lat: -1_000_000, Lon: -1_000_000}, // south-west
		{Lat: 1_000_000, Lon: -1_000_000},  // north-west
		{Lat: 1_000_000, Lon: 1_000_000},   // north-east
		{Lat: -1_000_000, Lon: 1_000_000},  // south-east
	}
	prev := Index(quadrants[0])
	for _, c := range quadrants[1:] {
		h := Index(c)
		if h <= prev {
			t.Fatalf("quadrant %+v out of curve order: %d after %d", c, h, prev)
		}
		prev = h
	}
}

func TestIndexDistinct(t *testing.T) {
	// The curve bijects cells to indices; nearby distinct points must not
	// collide.
	seen := map[uint64]coord.FixedPointCoordinate{}
	for lat := int32(-5); lat <= 5; lat++ {
		for lon := int32(-5); lon <= 5; lon++ {
			c := coord.FixedPointCoordinate{Lat: lat, Lon: lon}
			h := Index(c)
			if prev, dup := seen[h]; dup {
				t.Fatalf("index collision between %+v and %+v", prev, c)
			}
			seen[h] = c
		}
	}
}

func TestIndexLocality(t *testing.T) {
	// Sorting by Hilbert index should keep near neighbours closer in curve
	// order than far-away points, on average. Sample random anchor points and
	// compare curve distance of a 1-unit neighbour against a far point.
	rng := rand.New(rand.NewSource(42))
	closerWins := 0
	const samples = 2000
	for i := 0; i < samples; i++ {
		anchor := coord.FixedPointCoordinate{
			Lat: rng.Int31n(20_000_000) - 10_000_000,
			Lon: rng.Int31n(20_000_000) - 10_000_000,
		}
		near := coord.FixedPointCoordinate{Lat: anchor.Lat + 1, Lon: anchor.Lon}
		far := coord.FixedPointCoordinate{Lat: anchor.Lat + 5_000_000, Lon: anchor.Lon + 5_000_000}

		ha := Index(anchor)
		if curveDist(ha, Index(near)) < curveDist(ha, Index(far)) {
			closerWins++
		}
	}
	// Locality is statistical, not absolute; anything near-total is healthy.
	if closerWins < samples*9/10 {
		t.Errorf("near neighbour closer in curve order only %d/%d times", closerWins, samples)
	}
}

func curveDist(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
