package spatial

import (
	"math"

	"github.com/lifatov/roadindex/pkg/coord"
)

// TinyComponentZoomThreshold is the zoom level at or below which segments in
// tiny connected components are invisible to the point queries.
const TinyComponentZoomThreshold = 14

// DefaultMaxCheckedSegments bounds how many segments the incremental query
// inspects before giving up; callers needing tighter latency pass a smaller
// fuse.
const DefaultMaxCheckedSegments = 4 * LeafNodeSize

// LocateClosestEndpoint returns the endpoint of the closest segment to p by
// endpoint-to-point distance. At zoom levels at or below the threshold,
// segments in tiny components are ignored. ErrNoMatch is returned when the
// filter leaves nothing.
func (t *StaticRTree) LocateClosestEndpoint(p coord.FixedPointCoordinate, zoomLevel uint) (coord.FixedPointCoordinate, error) {
	ignoreTiny := zoomLevel <= TinyComponentZoomThreshold

	minDist := math.Inf(1)
	minMaxDist := math.Inf(1)
	result := coord.Invalid()

	var queue nodeHeap
	queue.Push(0, 0)

	var page LeafPage
	buf := make([]byte, leafPageSize)

	for !queue.Empty() {
		candidate := queue.Pop()

		// The closest-endpoint query prunes on >=: a tie can never improve
		// an endpoint result.
		if candidate.dist >= minMaxDist || candidate.dist >= minDist {
			continue
		}

		node := t.nodes.Node(candidate.nodeID)
		if node.ChildIsOnDisk() {
			if err := t.leaves.ReadPage(node.Children[0], buf, &page); err != nil {
				return coord.Invalid(), err
			}
			for i := uint32(0); i < page.ObjectCount; i++ {
				edge := &page.Objects[i]
				if ignoreTiny && edge.IsInTinyCC {
					continue
				}
				if d := coord.ApproxEuclideanDist(p, t.coords[edge.U]); d < minDist {
					minDist = d
					result = t.coords[edge.U]
				}
				if d := coord.ApproxEuclideanDist(p, t.coords[edge.V]); d < minDist {
					minDist = d
					result = t.coords[edge.V]
				}
			}
		} else {
			minMaxDist = t.exploreNode(node, p, minDist, minMaxDist, &queue)
		}
	}

	if !result.IsValid() {
		return coord.Invalid(), ErrNoMatch
	}
	return result, nil
}

// FindPhantomNode returns a phantom node on the segment with the smallest
// perpendicular distance to p, branch-and-bound style. Candidates replace
// the incumbent only on a strict, epsilon-aware improvement.
func (t *StaticRTree) FindPhantomNode(p coord.FixedPointCoordinate, zoomLevel uint) (PhantomNode, error) {
	ignoreTiny := zoomLevel <= TinyComponentZoomThreshold

	minDist := math.Inf(1)
	minMaxDist := math.Inf(1)
	var result PhantomNode
	var nearestEdge EdgeData
	found := false

	var queue nodeHeap
	queue.Push(0, 0)

	var page LeafPage
	buf := make([]byte, leafPageSize)

	for !queue.Empty() {
		candidate := queue.Pop()

		// Strictly-greater pruning here: an equal bound may still hold the
		// epsilon-equal twin of the incumbent.
		if candidate.dist > minMaxDist || candidate.dist > minDist {
			continue
		}

		node := t.nodes.Node(candidate.nodeID)
		if node.ChildIsOnDisk() {
			if err := t.leaves.ReadPage(node.Children[0], buf, &page); err != nil {
				return PhantomNode{}, err
			}
			for i := uint32(0); i < page.ObjectCount; i++ {
				edge := &page.Objects[i]
				if ignoreTiny && edge.IsInTinyCC {
					continue
				}
				d, foot, _ := coord.PerpendicularDist(t.coords[edge.U], t.coords[edge.V], p)
				if d < minDist && !coord.EpsilonEqual(d, minDist) {
					minDist = d
					result = makePhantomNode(edge, foot)
					nearestEdge = *edge
					found = true
				}
			}
		} else {
			minMaxDist = t.exploreNode(node, p, minDist, minMaxDist, &queue)
		}
	}

	if !found {
		return PhantomNode{}, ErrNoMatch
	}
	fixUpRoundingIssue(p, &result)
	t.setSplitWeights(&nearestEdge, &result)
	return result, nil
}

// exploreNode scores every child of parent, ratchets the global MINMAXDIST
// downward, and queues children whose lower bound can still matter. Returns
// the updated MINMAXDIST.
func (t *StaticRTree) exploreNode(parent *TreeNode, p coord.FixedPointCoordinate,
	minDist, minMaxDist float64, queue *nodeHeap) float64 {
	newMinMaxDist := minMaxDist
	for i := uint32(0); i < parent.ChildCount(); i++ {
		childID := parent.Children[i]
		child := t.nodes.Node(childID)
		lowerBound := child.Rect.MinDist(p)
		upperBound := child.Rect.MinMaxDist(p)
		newMinMaxDist = min(newMinMaxDist, upperBound)
		if lowerBound > newMinMaxDist {
			continue
		}
		if lowerBound > minDist {
			continue
		}
		queue.Push(lowerBound, childID)
	}
	return newMinMaxDist
}

// FindPhantomNodesIncremental returns up to k phantom nodes in nearest-first
// order using Hjaltason-Samet distance browsing: the queue mixes tree nodes
// (keyed by MBR lower bound) and segments (keyed by exact perpendicular
// distance), so popping in score order yields segments nearest-first.
// maxCheckedSegments <= 0 selects DefaultMaxCheckedSegments.
func (t *StaticRTree) FindPhantomNodesIncremental(p coord.FixedPointCoordinate,
	zoomLevel uint, k int, maxCheckedSegments int) ([]PhantomNode, error) {
	ranked, err := t.incrementalQuery(p, k, maxCheckedSegments)
	if err != nil {
		return nil, err
	}
	results := make([]PhantomNode, len(ranked))
	for i, r := range ranked {
		results[i] = r.Node
	}
	return results, nil
}

// FindPhantomNodesWithDistance is FindPhantomNodesIncremental carrying the
// measured perpendicular distance of each result.
func (t *StaticRTree) FindPhantomNodesWithDistance(p coord.FixedPointCoordinate,
	zoomLevel uint, k int, maxCheckedSegments int) ([]PhantomNodeWithDistance, error) {
	return t.incrementalQuery(p, k, maxCheckedSegments)
}

func (t *StaticRTree) incrementalQuery(p coord.FixedPointCoordinate, k, maxCheckedSegments int) ([]PhantomNodeWithDistance, error) {
	if k <= 0 {
		return nil, nil
	}
	if maxCheckedSegments <= 0 {
		maxCheckedSegments = DefaultMaxCheckedSegments
	}

	// Pruning thresholds: slot k-1 is the live bound, ratcheted down as
	// big-component results land in earlier slots.
	minFoundDistances := make([]float64, k)
	for i := range minFoundDistances {
		minFoundDistances[i] = math.Inf(1)
	}

	var local QueryStats
	defer func() { t.stats.add(local) }()

	foundInBigCC := 0
	foundInTinyCC := 0
	inspectedSegments := 0

	var results []PhantomNodeWithDistance

	var queue incHeap
	queue.PushNode(0, 0)

	var page LeafPage
	buf := make([]byte, leafPageSize)

	for !queue.Empty() {
		candidate := queue.Pop()
		local.Dequeues++

		currentMin := minFoundDistances[k-1]
		if candidate.dist > currentMin {
			local.PrunedElements++
			continue
		}

		if !candidate.isSegment {
			node := t.nodes.Node(candidate.nodeID)
			if node.ChildIsOnDisk() {
				local.LoadedLeaves++
				if err := t.leaves.ReadPage(node.Children[0], buf, &page); err != nil {
					return nil, err
				}
				// Segments enter the queue with their exact perpendicular
				// distance; anything already past the threshold stays out.
				for i := uint32(0); i < page.ObjectCount; i++ {
					edge := &page.Objects[i]
					d, _, _ := coord.PerpendicularDist(t.coords[edge.U], t.coords[edge.V], p)
					if d < currentMin {
						queue.PushSegment(d, *edge)
					}
				}
			} else {
				local.InspectedMBRs++
				for i := uint32(0); i < node.ChildCount(); i++ {
					childID := node.Children[i]
					child := t.nodes.Node(childID)
					if lowerBound := child.Rect.MinDist(p); lowerBound < currentMin {
						queue.PushNode(lowerBound, childID)
					}
				}
			}
		} else {
			inspectedSegments++
			local.InspectedSegments++
			seg := candidate.edge

			// Each component class contributes at most k results.
			if foundInBigCC == k && !seg.IsInTinyCC {
				continue
			}
			if foundInTinyCC == k && seg.IsInTinyCC {
				continue
			}

			d, foot, _ := coord.PerpendicularDist(t.coords[seg.U], t.coords[seg.V], p)
			if d < currentMin && !coord.EpsilonEqual(d, currentMin) {
				pn := makePhantomNode(&seg, foot)
				fixUpRoundingIssue(p, &pn)
				t.setSplitWeights(&seg, &pn)
				results = append(results, PhantomNodeWithDistance{Node: pn, Distance: d})

				if seg.IsInTinyCC {
					foundInTinyCC++
				} else {
					// Only big-component acceptances tighten the bound.
					minFoundDistances[foundInBigCC] = d
					foundInBigCC++
				}
			}
		}

		if foundInBigCC == k || inspectedSegments >= maxCheckedSegments {
			break
		}
	}

	return results, nil
}
