package spatial

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/lifatov/roadindex/pkg/coord"
)

// singleSegment builds a one-segment fixture: u=(0,0), v=(0, 10M), both
// directions open with weight 1000.
func singleSegment() ([]EdgeData, []coord.FixedPointCoordinate) {
	coords := []coord.FixedPointCoordinate{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 10_000_000},
	}
	segments := []EdgeData{{
		U: 0, V: 1,
		ForwardNodeID: 10, ReverseNodeID: 11,
		ForwardWeight: 1000, ReverseWeight: 1000,
		PackedGeometryID:   77,
		ForwardTravelMode:  TravelModeDefault,
		BackwardTravelMode: TravelModeDefault,
	}}
	return segments, coords
}

func TestFindPhantomNodeMidSegment(t *testing.T) {
	segments, coords := singleSegment()
	tree := buildTestIndex(t, segments, coords)

	p := coord.FixedPointCoordinate{Lat: 1_000_000, Lon: 5_000_000}
	pn, err := tree.FindPhantomNode(p, 18)
	if err != nil {
		t.Fatalf("FindPhantomNode: %v", err)
	}

	want := coord.FixedPointCoordinate{Lat: 0, Lon: 5_000_000}
	if pn.Location != want {
		t.Errorf("foot point = %+v, want %+v", pn.Location, want)
	}
	// Foot at the midpoint splits both weights in half.
	if pn.ForwardWeight != 500 {
		t.Errorf("forward weight = %d, want 500", pn.ForwardWeight)
	}
	if pn.ReverseWeight != 500 {
		t.Errorf("reverse weight = %d, want 500", pn.ReverseWeight)
	}
	if pn.PackedGeometryID != 77 {
		t.Errorf("packed geometry id = %d, want 77", pn.PackedGeometryID)
	}
}

func TestFindPhantomNodeAtEndpoint(t *testing.T) {
	segments, coords := singleSegment()
	tree := buildTestIndex(t, segments, coords)

	pn, err := tree.FindPhantomNode(coord.FixedPointCoordinate{Lat: 0, Lon: 0}, 18)
	if err != nil {
		t.Fatalf("FindPhantomNode: %v", err)
	}
	if pn.Location != (coord.FixedPointCoordinate{Lat: 0, Lon: 0}) {
		t.Errorf("foot point = %+v, want origin", pn.Location)
	}
	// Ratio 0: the forward direction has no distance travelled, the reverse
	// direction keeps its full weight.
	if pn.ForwardWeight != 0 {
		t.Errorf("forward weight = %d, want 0", pn.ForwardWeight)
	}
	if pn.ReverseWeight != 1000 {
		t.Errorf("reverse weight = %d, want 1000", pn.ReverseWeight)
	}
}

// parallelSegments builds count horizontal segments at increasing latitudes,
// all spanning lon [0, 10M].
func parallelSegments(count int, latStep int32) ([]EdgeData, []coord.FixedPointCoordinate) {
	var segments []EdgeData
	var coords []coord.FixedPointCoordinate
	for i := 0; i < count; i++ {
		lat := int32(i) * latStep
		u := uint32(len(coords))
		coords = append(coords,
			coord.FixedPointCoordinate{Lat: lat, Lon: 0},
			coord.FixedPointCoordinate{Lat: lat, Lon: 10_000_000})
		segments = append(segments, EdgeData{
			U: u, V: u + 1,
			ForwardNodeID: uint32(2 * i), ReverseNodeID: uint32(2*i + 1),
			ForwardWeight: 1000, ReverseWeight: 1000,
			PackedGeometryID:   uint32(i),
			ForwardTravelMode:  TravelModeDefault,
			BackwardTravelMode: TravelModeDefault,
		})
	}
	return segments, coords
}

func TestIncrementalKNearest(t *testing.T) {
	segments, coords := parallelSegments(4, 1_000_000)
	tree := buildTestIndex(t, segments, coords)

	// South of all four rows: distances increase with latitude.
	p := coord.FixedPointCoordinate{Lat: -500_000, Lon: 5_000_000}
	ranked, err := tree.FindPhantomNodesWithDistance(p, 18, 3, 0)
	if err != nil {
		t.Fatalf("FindPhantomNodesWithDistance: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("got %d results, want 3", len(ranked))
	}
	for i, want := range []uint32{0, 1, 2} {
		if ranked[i].Node.PackedGeometryID != want {
			t.Errorf("result %d is segment %d, want %d", i, ranked[i].Node.PackedGeometryID, want)
		}
	}
	for i := 1; i < len(ranked); i++ {
		if !(ranked[i].Distance > ranked[i-1].Distance) {
			t.Errorf("distances not strictly increasing: %f then %f",
				ranked[i-1].Distance, ranked[i].Distance)
		}
	}
}

func TestIncrementalNonDecreasingOrder(t *testing.T) {
	segments, coords := gridSegments(3000)
	tree := buildTestIndex(t, segments, coords)

	rng := rand.New(rand.NewSource(11))
	for q := 0; q < 50; q++ {
		p := coord.FixedPointCoordinate{
			Lat: rng.Int31n(300_000) - 100_000,
			Lon: rng.Int31n(5_200_000) - 100_000,
		}
		ranked, err := tree.FindPhantomNodesWithDistance(p, 18, 8, 0)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		for i := 1; i < len(ranked); i++ {
			if ranked[i].Distance < ranked[i-1].Distance {
				t.Fatalf("query %d: results out of order: %f before %f",
					q, ranked[i-1].Distance, ranked[i].Distance)
			}
		}
	}
}

func tinyAndBigFixture() ([]EdgeData, []coord.FixedPointCoordinate) {
	coords := []coord.FixedPointCoordinate{
		{Lat: 1_000, Lon: 0}, {Lat: 1_000, Lon: 100_000}, // tiny, ~111 m north
		{Lat: 5_000, Lon: 0}, {Lat: 5_000, Lon: 100_000}, // big, ~555 m north
	}
	segments := []EdgeData{
		{
			U: 0, V: 1, ForwardNodeID: 0, ReverseNodeID: 1,
			ForwardWeight: 100, ReverseWeight: 100, PackedGeometryID: 1,
			IsInTinyCC:        true,
			ForwardTravelMode: TravelModeDefault, BackwardTravelMode: TravelModeDefault,
		},
		{
			U: 2, V: 3, ForwardNodeID: 2, ReverseNodeID: 3,
			ForwardWeight: 100, ReverseWeight: 100, PackedGeometryID: 2,
			ForwardTravelMode: TravelModeDefault, BackwardTravelMode: TravelModeDefault,
		},
	}
	return segments, coords
}

func TestTinyComponentFilter(t *testing.T) {
	segments, coords := tinyAndBigFixture()
	tree := buildTestIndex(t, segments, coords)
	p := coord.FixedPointCoordinate{Lat: 0, Lon: 50_000}

	// Low zoom hides the tiny component even though it is closer.
	pn, err := tree.FindPhantomNode(p, 10)
	if err != nil {
		t.Fatalf("zoom 10: %v", err)
	}
	if pn.PackedGeometryID != 2 {
		t.Errorf("zoom 10 returned segment %d, want big segment 2", pn.PackedGeometryID)
	}

	// High zoom sees it.
	pn, err = tree.FindPhantomNode(p, 18)
	if err != nil {
		t.Fatalf("zoom 18: %v", err)
	}
	if pn.PackedGeometryID != 1 {
		t.Errorf("zoom 18 returned segment %d, want tiny segment 1", pn.PackedGeometryID)
	}
}

func TestLocateClosestEndpointFilter(t *testing.T) {
	segments, coords := tinyAndBigFixture()
	tree := buildTestIndex(t, segments, coords)
	p := coord.FixedPointCoordinate{Lat: 0, Lon: 0}

	loc, err := tree.LocateClosestEndpoint(p, 10)
	if err != nil {
		t.Fatalf("zoom 10: %v", err)
	}
	if loc != coords[2] {
		t.Errorf("zoom 10 endpoint = %+v, want %+v", loc, coords[2])
	}

	loc, err = tree.LocateClosestEndpoint(p, 18)
	if err != nil {
		t.Fatalf("zoom 18: %v", err)
	}
	if loc != coords[0] {
		t.Errorf("zoom 18 endpoint = %+v, want %+v", loc, coords[0])
	}
}

func TestAllFilteredReturnsNoMatch(t *testing.T) {
	segments, coords := tinyAndBigFixture()
	segments[1].IsInTinyCC = true // now everything is tiny
	tree := buildTestIndex(t, segments, coords)

	_, err := tree.FindPhantomNode(coord.FixedPointCoordinate{Lat: 0, Lon: 0}, 10)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
	_, err = tree.LocateClosestEndpoint(coord.FixedPointCoordinate{Lat: 0, Lon: 0}, 10)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

// The incremental query mixes big and tiny results but caps each class at k.
func TestIncrementalComponentClasses(t *testing.T) {
	segments, coords := tinyAndBigFixture()
	tree := buildTestIndex(t, segments, coords)

	ranked, err := tree.FindPhantomNodesWithDistance(
		coord.FixedPointCoordinate{Lat: 0, Lon: 50_000}, 18, 1, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	// The tiny segment arrives first (closer); the big one still lands to
	// satisfy k big-component results.
	if len(ranked) != 2 {
		t.Fatalf("got %d results, want 2", len(ranked))
	}
	if ranked[0].Node.PackedGeometryID != 1 || ranked[1].Node.PackedGeometryID != 2 {
		t.Errorf("result order = %d, %d; want tiny 1 then big 2",
			ranked[0].Node.PackedGeometryID, ranked[1].Node.PackedGeometryID)
	}
}

func TestIncrementalSegmentFuse(t *testing.T) {
	segments, coords := gridSegments(3000)
	tree := buildTestIndex(t, segments, coords)

	p := coord.FixedPointCoordinate{Lat: 10_000, Lon: 10_000}
	ranked, err := tree.FindPhantomNodesWithDistance(p, 18, 100, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ranked) > 1 {
		t.Fatalf("fuse of 1 inspected segment yielded %d results", len(ranked))
	}
}

// Exhaustive equivalence: the branch-and-bound result matches a linear scan
// over all segments, for random query points.
func TestFindPhantomNodeMatchesBruteForce(t *testing.T) {
	const nSegments = 300
	const nQueries = 10_000

	rng := rand.New(rand.NewSource(99))
	var segments []EdgeData
	var coords []coord.FixedPointCoordinate
	for i := 0; i < nSegments; i++ {
		u := coord.FixedPointCoordinate{
			Lat: rng.Int31n(2_000_000) - 1_000_000,
			Lon: rng.Int31n(2_000_000) - 1_000_000,
		}
		v := coord.FixedPointCoordinate{
			Lat: u.Lat + rng.Int31n(40_000) - 20_000,
			Lon: u.Lon + rng.Int31n(40_000) - 20_000,
		}
		idx := uint32(len(coords))
		coords = append(coords, u, v)
		segments = append(segments, EdgeData{
			U: idx, V: idx + 1,
			ForwardNodeID: uint32(2 * i), ReverseNodeID: uint32(2*i + 1),
			ForwardWeight: 100, ReverseWeight: 100,
			PackedGeometryID:  uint32(i),
			IsInTinyCC:        i%5 == 0,
			ForwardTravelMode: TravelModeDefault, BackwardTravelMode: TravelModeDefault,
		})
	}
	tree := buildTestIndex(t, segments, coords)

	for q := 0; q < nQueries; q++ {
		p := coord.FixedPointCoordinate{
			Lat: rng.Int31n(2_400_000) - 1_200_000,
			Lon: rng.Int31n(2_400_000) - 1_200_000,
		}
		for _, zoom := range []uint{10, 18} {
			ignoreTiny := zoom <= TinyComponentZoomThreshold

			best := math.Inf(1)
			for i := range segments {
				if ignoreTiny && segments[i].IsInTinyCC {
					continue
				}
				d, _, _ := coord.PerpendicularDist(coords[segments[i].U], coords[segments[i].V], p)
				best = min(best, d)
			}

			pn, err := tree.FindPhantomNode(p, zoom)
			if err != nil {
				t.Fatalf("query %d zoom %d: %v", q, zoom, err)
			}
			got, _, _ := coord.PerpendicularDist(
				coords[segments[pn.PackedGeometryID].U],
				coords[segments[pn.PackedGeometryID].V], p)
			// Epsilon-equal candidates may tie; the winning distance must
			// match the brute-force optimum within the comparator tolerance.
			if !coord.EpsilonEqual(got, best) {
				t.Fatalf("query %d zoom %d: tree found %f, brute force %f", q, zoom, got, best)
			}
		}
	}
}

func TestLocateClosestEndpointMatchesBruteForce(t *testing.T) {
	segments, coords := gridSegments(2500)
	tree := buildTestIndex(t, segments, coords)

	rng := rand.New(rand.NewSource(5))
	for q := 0; q < 2000; q++ {
		p := coord.FixedPointCoordinate{
			Lat: rng.Int31n(400_000) - 100_000,
			Lon: rng.Int31n(5_400_000) - 100_000,
		}

		best := math.Inf(1)
		for _, c := range coords {
			best = min(best, coord.ApproxEuclideanDist(p, c))
		}

		loc, err := tree.LocateClosestEndpoint(p, 18)
		if err != nil {
			t.Fatalf("query %d: %v", q, err)
		}
		if got := coord.ApproxEuclideanDist(p, loc); !coord.EpsilonEqual(got, best) {
			t.Fatalf("query %d: endpoint at %f, brute force %f", q, got, best)
		}
	}
}

// Round-trip persistence: a reopened index answers exactly like the built one.
func TestPersistenceRoundTrip(t *testing.T) {
	segments, coords := parallelSegments(4, 1_000_000)
	dir := t.TempDir()
	treePath := filepath.Join(dir, "rt.ramIndex")
	leafPath := filepath.Join(dir, "rt.fileIndex")

	built, err := Build(segments, coords, treePath, leafPath)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer built.Close()

	reopened, err := Open(treePath, leafPath, coords)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	p := coord.FixedPointCoordinate{Lat: -500_000, Lon: 5_000_000}
	a, err := built.FindPhantomNodesIncremental(p, 18, 3, 0)
	if err != nil {
		t.Fatalf("built query: %v", err)
	}
	b, err := reopened.FindPhantomNodesIncremental(p, 18, 3, 0)
	if err != nil {
		t.Fatalf("reopened query: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("result counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("result %d differs:\nbuilt:    %+v\nreopened: %+v", i, a[i], b[i])
		}
	}
}

func TestOpenMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "absent.ramIndex"), filepath.Join(dir, "absent.fileIndex"), nil)
	if !errors.Is(err, ErrMissingFile) {
		t.Fatalf("err = %v, want ErrMissingFile", err)
	}
}

func TestRoundingFixUpIdempotent(t *testing.T) {
	input := coord.FixedPointCoordinate{Lat: 1_000_000, Lon: 2_000_000}
	pn := PhantomNode{Location: coord.FixedPointCoordinate{Lat: 999_999, Lon: 2_000_001}}

	fixUpRoundingIssue(input, &pn)
	if pn.Location != input {
		t.Fatalf("one-unit offsets must snap to the input: %+v", pn.Location)
	}
	once := pn.Location
	fixUpRoundingIssue(input, &pn)
	if pn.Location != once {
		t.Fatalf("fix-up not idempotent: %+v then %+v", once, pn.Location)
	}

	// Larger offsets stay untouched.
	pn.Location = coord.FixedPointCoordinate{Lat: 999_997, Lon: 2_000_005}
	fixUpRoundingIssue(input, &pn)
	if pn.Location != (coord.FixedPointCoordinate{Lat: 999_997, Lon: 2_000_005}) {
		t.Fatalf("fix-up moved a non-adjacent foot point: %+v", pn.Location)
	}
}

func TestQueryStatsAccumulate(t *testing.T) {
	segments, coords := gridSegments(2000)
	tree := buildTestIndex(t, segments, coords)

	before := tree.Stats()
	_, err := tree.FindPhantomNodesIncremental(coord.FixedPointCoordinate{Lat: 0, Lon: 0}, 18, 2, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	after := tree.Stats()
	if after.Dequeues <= before.Dequeues {
		t.Error("dequeue counter did not advance")
	}
	if after.LoadedLeaves <= before.LoadedLeaves {
		t.Error("loaded-leaves counter did not advance")
	}
}
