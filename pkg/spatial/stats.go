package spatial

import "sync/atomic"

// queryCounters aggregates the traversal counts of the incremental queries
// across the index lifetime. Each query accumulates into locals and publishes
// once on return, so the hot loop never touches shared memory.
type queryCounters struct {
	dequeues          atomic.Uint64
	inspectedMBRs     atomic.Uint64
	loadedLeaves      atomic.Uint64
	inspectedSegments atomic.Uint64
	prunedElements    atomic.Uint64
}

// QueryStats is a snapshot of the traversal counters.
type QueryStats struct {
	Dequeues          uint64
	InspectedMBRs     uint64
	LoadedLeaves      uint64
	InspectedSegments uint64
	PrunedElements    uint64
}

func (c *queryCounters) add(s QueryStats) {
	c.dequeues.Add(s.Dequeues)
	c.inspectedMBRs.Add(s.InspectedMBRs)
	c.loadedLeaves.Add(s.LoadedLeaves)
	c.inspectedSegments.Add(s.InspectedSegments)
	c.prunedElements.Add(s.PrunedElements)
}

// Stats returns cumulative traversal counters for this index instance. Only
// FindPhantomNodesIncremental and FindPhantomNodesWithDistance record them;
// LocateClosestEndpoint and FindPhantomNode leave the counters unchanged.
func (t *StaticRTree) Stats() QueryStats {
	return QueryStats{
		Dequeues:          t.stats.dequeues.Load(),
		InspectedMBRs:     t.stats.inspectedMBRs.Load(),
		LoadedLeaves:      t.stats.loadedLeaves.Load(),
		InspectedSegments: t.stats.inspectedSegments.Load(),
		PrunedElements:    t.stats.prunedElements.Load(),
	}
}
