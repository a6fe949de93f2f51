package spatial

// nodeCandidate is a tree node queued with the lower bound of its MBR to the
// query point.
type nodeCandidate struct {
	dist   float64
	nodeID uint32
}

// nodeHeap is a concrete-typed min-heap of node candidates, keyed by the
// lower-bound score. No interface boxing on the query hot path.
type nodeHeap struct {
	items []nodeCandidate
}

func (h *nodeHeap) Empty() bool { return len(h.items) == 0 }

func (h *nodeHeap) Push(dist float64, nodeID uint32) {
	h.items = append(h.items, nodeCandidate{dist, nodeID})
	h.siftUp(len(h.items) - 1)
}

func (h *nodeHeap) Pop() nodeCandidate {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *nodeHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].dist >= h.items[parent].dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *nodeHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].dist < h.items[smallest].dist {
			smallest = left
		}
		if right < n && h.items[right].dist < h.items[smallest].dist {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// incCandidate is one entry of the heterogeneous incremental-query queue: a
// tagged variant holding either a tree-node reference or a segment value.
// Nodes enter with their MBR lower bound and segments with their exact
// perpendicular distance, the Hjaltason-Samet invariant that makes pops
// arrive in true nearest-first order.
type incCandidate struct {
	dist      float64
	nodeID    uint32
	edge      EdgeData
	isSegment bool
}

// incHeap is a min-heap of heterogeneous candidates.
type incHeap struct {
	items []incCandidate
}

func (h *incHeap) Empty() bool { return len(h.items) == 0 }

func (h *incHeap) PushNode(dist float64, nodeID uint32) {
	h.push(incCandidate{dist: dist, nodeID: nodeID})
}

func (h *incHeap) PushSegment(dist float64, edge EdgeData) {
	h.push(incCandidate{dist: dist, edge: edge, isSegment: true})
}

func (h *incHeap) push(c incCandidate) {
	h.items = append(h.items, c)
	i := len(h.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].dist >= h.items[parent].dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *incHeap) Pop() incCandidate {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	i := 0
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < len(h.items) && h.items[left].dist < h.items[smallest].dist {
			smallest = left
		}
		if right < len(h.items) && h.items[right].dist < h.items[smallest].dist {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
	return item
}
