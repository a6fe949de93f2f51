package spatial

import "github.com/lifatov/roadindex/pkg/coord"

// PhantomNode is a virtual graph node placed at the foot point of a query on
// a road segment. The routing metadata is copied from the winning segment;
// the forward/reverse weights are split at the foot point so a route can
// enter the segment mid-way.
type PhantomNode struct {
	ForwardNodeID      uint32
	ReverseNodeID      uint32
	NameID             uint32
	ForwardWeight      int32
	ReverseWeight      int32
	ForwardOffset      int32
	ReverseOffset      int32
	PackedGeometryID   uint32
	Location           coord.FixedPointCoordinate
	FwdSegmentPosition uint16
	ForwardTravelMode  uint8
	BackwardTravelMode uint8
}

// PhantomNodeWithDistance carries the perpendicular distance the query
// measured alongside the node.
type PhantomNodeWithDistance struct {
	Node     PhantomNode
	Distance float64
}

func makePhantomNode(seg *EdgeData, foot coord.FixedPointCoordinate) PhantomNode {
	return PhantomNode{
		ForwardNodeID:      seg.ForwardNodeID,
		ReverseNodeID:      seg.ReverseNodeID,
		NameID:             seg.NameID,
		ForwardWeight:      seg.ForwardWeight,
		ReverseWeight:      seg.ReverseWeight,
		ForwardOffset:      seg.ForwardOffset,
		ReverseOffset:      seg.ReverseOffset,
		PackedGeometryID:   seg.PackedGeometryID,
		Location:           foot,
		FwdSegmentPosition: seg.FwdSegmentPosition,
		ForwardTravelMode:  seg.ForwardTravelMode,
		BackwardTravelMode: seg.BackwardTravelMode,
	}
}

// fixUpRoundingIssue snaps the foot point onto the input coordinate when the
// two differ by exactly one fixed-point unit. Successive queries around the
// same location would otherwise return physically indistinguishable but
// unequal coordinates.
func fixUpRoundingIssue(input coord.FixedPointCoordinate, pn *PhantomNode) {
	if d := input.Lon - pn.Location.Lon; d == 1 || d == -1 {
		pn.Location.Lon = input.Lon
	}
	if d := input.Lat - pn.Location.Lat; d == 1 || d == -1 {
		pn.Location.Lat = input.Lat
	}
}

// setSplitWeights splits the segment weights at the foot point: the forward
// weight scales with the ratio travelled from u, the reverse weight with the
// remainder. Directions blocked by SpecialNodeID keep their weight.
func (t *StaticRTree) setSplitWeights(seg *EdgeData, pn *PhantomNode) {
	distToFoot := coord.ApproxEuclideanDist(t.coords[seg.U], pn.Location)
	segLength := coord.ApproxEuclideanDist(t.coords[seg.U], t.coords[seg.V])
	ratio := 0.0
	if segLength > 0 {
		ratio = min(1.0, distToFoot/segLength)
	}

	if pn.ForwardNodeID != SpecialNodeID {
		pn.ForwardWeight = int32(float64(pn.ForwardWeight) * ratio)
	}
	if pn.ReverseNodeID != SpecialNodeID {
		pn.ReverseWeight = int32(float64(pn.ReverseWeight) * (1 - ratio))
	}
}
