package spatial

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/lifatov/roadindex/pkg/coord"
)

// Many goroutines may query one index instance concurrently: the node array
// and coordinate table are immutable and leaf reads carry no shared file
// position. Run with -race.
func TestConcurrentQueries(t *testing.T) {
	segments, coords := gridSegments(3000)
	tree := buildTestIndex(t, segments, coords)

	const workers = 8
	const queriesPerWorker = 200

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < queriesPerWorker; i++ {
				p := coord.FixedPointCoordinate{
					Lat: rng.Int31n(300_000) - 50_000,
					Lon: rng.Int31n(5_200_000) - 50_000,
				}
				if _, err := tree.FindPhantomNode(p, 18); err != nil {
					errCh <- err
					return
				}
				if _, err := tree.FindPhantomNodesIncremental(p, 18, 3, 0); err != nil {
					errCh <- err
					return
				}
			}
		}(int64(w))
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent query failed: %v", err)
	}
}
