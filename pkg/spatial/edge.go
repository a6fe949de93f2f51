package spatial

import (
	"encoding/binary"

	"github.com/lifatov/roadindex/pkg/coord"
)

// SpecialNodeID marks an absent edge-based node: a one-way segment carries it
// in the direction that cannot be entered.
const SpecialNodeID = ^uint32(0)

// Travel modes carried through query results verbatim.
const (
	TravelModeInaccessible uint8 = 0
	TravelModeDefault      uint8 = 1
)

// EdgeData is one directed road segment as stored in leaf pages. The index
// consults U, V and IsInTinyCC; everything else is routing metadata returned
// untouched in phantom nodes.
type EdgeData struct {
	U uint32 // index of the start endpoint in the coordinate table
	V uint32 // index of the end endpoint in the coordinate table

	ForwardNodeID      uint32
	ReverseNodeID      uint32
	NameID             uint32
	ForwardWeight      int32
	ReverseWeight      int32
	ForwardOffset      int32
	ReverseOffset      int32
	PackedGeometryID   uint32
	FwdSegmentPosition uint16
	IsInTinyCC         bool
	ForwardTravelMode  uint8
	BackwardTravelMode uint8
}

// Centroid returns the integer midpoint of the two endpoint coordinates.
func Centroid(a, b coord.FixedPointCoordinate) coord.FixedPointCoordinate {
	return coord.FixedPointCoordinate{
		Lat: int32((int64(a.Lat) + int64(b.Lat)) / 2),
		Lon: int32((int64(a.Lon) + int64(b.Lon)) / 2),
	}
}

// edgeDataSize is the fixed on-disk stride of one segment record.
const edgeDataSize = 48

const edgeFlagTinyCC = 1 << 0

func encodeEdge(buf []byte, e *EdgeData) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], e.U)
	le.PutUint32(buf[4:], e.V)
	le.PutUint32(buf[8:], e.ForwardNodeID)
	le.PutUint32(buf[12:], e.ReverseNodeID)
	le.PutUint32(buf[16:], e.NameID)
	le.PutUint32(buf[20:], uint32(e.ForwardWeight))
	le.PutUint32(buf[24:], uint32(e.ReverseWeight))
	le.PutUint32(buf[28:], uint32(e.ForwardOffset))
	le.PutUint32(buf[32:], uint32(e.ReverseOffset))
	le.PutUint32(buf[36:], e.PackedGeometryID)
	le.PutUint16(buf[40:], e.FwdSegmentPosition)
	var flags byte
	if e.IsInTinyCC {
		flags |= edgeFlagTinyCC
	}
	buf[42] = flags
	buf[43] = e.ForwardTravelMode
	buf[44] = e.BackwardTravelMode
	buf[45], buf[46], buf[47] = 0, 0, 0
}

func decodeEdge(buf []byte, e *EdgeData) {
	le := binary.LittleEndian
	e.U = le.Uint32(buf[0:])
	e.V = le.Uint32(buf[4:])
	e.ForwardNodeID = le.Uint32(buf[8:])
	e.ReverseNodeID = le.Uint32(buf[12:])
	e.NameID = le.Uint32(buf[16:])
	e.ForwardWeight = int32(le.Uint32(buf[20:]))
	e.ReverseWeight = int32(le.Uint32(buf[24:]))
	e.ForwardOffset = int32(le.Uint32(buf[28:]))
	e.ReverseOffset = int32(le.Uint32(buf[32:]))
	e.PackedGeometryID = le.Uint32(buf[36:])
	e.FwdSegmentPosition = le.Uint16(buf[40:])
	e.IsInTinyCC = buf[42]&edgeFlagTinyCC != 0
	e.ForwardTravelMode = buf[43]
	e.BackwardTravelMode = buf[44]
}
