package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/tidwall/rtree"

	"github.com/lifatov/roadindex/pkg/coord"
)

// Cross-check the closest-endpoint query against an independent R-tree
// implementation: no endpoint inside the disc around the query point may be
// closer than the returned one.
func TestLocateClosestEndpointAgainstOracle(t *testing.T) {
	const nSegments = 400
	rng := rand.New(rand.NewSource(21))

	var segments []EdgeData
	var coords []coord.FixedPointCoordinate
	for i := 0; i < nSegments; i++ {
		u := coord.FixedPointCoordinate{
			Lat: rng.Int31n(2_000_000) - 1_000_000,
			Lon: rng.Int31n(2_000_000) - 1_000_000,
		}
		v := coord.FixedPointCoordinate{
			Lat: u.Lat + rng.Int31n(30_000) - 15_000,
			Lon: u.Lon + rng.Int31n(30_000) - 15_000,
		}
		idx := uint32(len(coords))
		coords = append(coords, u, v)
		segments = append(segments, EdgeData{
			U: idx, V: idx + 1,
			ForwardNodeID: uint32(i), ReverseNodeID: SpecialNodeID,
			ForwardWeight: 1, ReverseWeight: 1,
			PackedGeometryID:  uint32(i),
			ForwardTravelMode: TravelModeDefault,
		})
	}
	tree := buildTestIndex(t, segments, coords)

	var oracle rtree.RTree
	for i, c := range coords {
		pt := [2]float64{c.LonDeg(), c.LatDeg()}
		oracle.Insert(pt, pt, i)
	}

	const degPerMeter = 1.0 / (math.Pi / 180 * 6_371_000)
	for q := 0; q < 500; q++ {
		p := coord.FixedPointCoordinate{
			Lat: rng.Int31n(2_400_000) - 1_200_000,
			Lon: rng.Int31n(2_400_000) - 1_200_000,
		}
		loc, err := tree.LocateClosestEndpoint(p, 18)
		if err != nil {
			t.Fatalf("query %d: %v", q, err)
		}
		got := coord.ApproxEuclideanDist(p, loc)

		// Every endpoint inside the covering window must be at least as far.
		pad := got*degPerMeter*1.01 + 1e-9
		found := false
		oracle.Search(
			[2]float64{p.LonDeg() - pad, p.LatDeg() - pad},
			[2]float64{p.LonDeg() + pad, p.LatDeg() + pad},
			func(_, _ [2]float64, data interface{}) bool {
				c := coords[data.(int)]
				d := coord.ApproxEuclideanDist(p, c)
				if d < got && !coord.EpsilonEqual(d, got) {
					t.Fatalf("query %d: oracle endpoint %+v at %f beats result at %f", q, c, d, got)
				}
				if c == loc {
					found = true
				}
				return true
			})
		if !found {
			t.Fatalf("query %d: returned endpoint %+v missing from oracle window", q, loc)
		}
	}
}
