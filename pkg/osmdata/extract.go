// Package osmdata turns an OSM PBF extract into the inputs of the spatial
// index: directed road segments, the coordinate table they reference, and a
// deduplicated street-name table.
package osmdata

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/lifatov/roadindex/pkg/coord"
	"github.com/lifatov/roadindex/pkg/spatial"
)

// Extract is the parsed road network ready for index construction.
type Extract struct {
	Segments    []spatial.EdgeData
	Coordinates []coord.FixedPointCoordinate
	Names       []string // indexed by EdgeData.NameID
}

// carHighways lists highway tag values accessible by car.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if !carHighways[hw] {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}
	return true
}

// directionFlags returns (forward, backward) based on highway type and oneway tags.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward = true
	backward = true

	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	oneway := tags.Find("oneway")
	switch oneway {
	case "yes", "true", "1":
		forward = true
		backward = false
	case "-1", "reverse":
		forward = false
		backward = true
	case "no":
		forward = true
		backward = true
	case "reversible":
		// Time-dependent access — skip entirely.
		forward = false
		backward = false
	}

	return forward, backward
}

// wayInfo holds parsed way data collected during pass 1.
type wayInfo struct {
	ID       osm.WayID
	NodeIDs  []osm.NodeID
	Name     string
	Forward  bool
	Backward bool
}

// BBox defines a geographic bounding box for filtering. If non-zero, only
// segments with both endpoints inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Options configures the extraction.
type Options struct {
	// BBox filters segments to a bounding box when non-zero.
	BBox BBox
	// TinyComponentThreshold marks segments of connected components with
	// fewer nodes than this as tiny. Zero selects the default.
	TinyComponentThreshold int
}

// DefaultTinyComponentThreshold is the component size below which segments
// are hidden at low zoom levels.
const DefaultTinyComponentThreshold = 1000

// Parse reads an OSM PBF file and returns road segments for indexing. The
// reader is consumed twice (seeks back to start for the second pass), so it
// must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...Options) (*Extract, error) {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.TinyComponentThreshold == 0 {
		opt.TinyComponentThreshold = DefaultTinyComponentThreshold
	}
	useBBox := !opt.BBox.IsZero()

	// Pass 1: scan ways to collect referenced node IDs and way info.
	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if !isCarAccessible(w.Tags) {
			continue
		}
		if len(w.Nodes) < 2 {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}

		ways = append(ways, wayInfo{
			ID:       w.ID,
			NodeIDs:  nodeIDs,
			Name:     w.Tags.Find("name"),
			Forward:  fwd,
			Backward: bwd,
		})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	log.Printf("Pass 1 complete: %d ways, %d referenced nodes", len(ways), len(referencedNodes))

	// Pass 2: scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	nodeCoord := make(map[osm.NodeID]coord.FixedPointCoordinate, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		nodeCoord[n.ID] = coord.FromDegrees(n.Lat, n.Lon)
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	log.Printf("Pass 2 complete: %d node coordinates collected", len(nodeCoord))

	ex := buildSegments(ways, nodeCoord, opt, useBBox)

	MarkTinyComponents(ex.Segments, uint32(len(ex.Coordinates)), opt.TinyComponentThreshold)

	log.Printf("Built %d directed segments over %d coordinates, %d street names",
		len(ex.Segments), len(ex.Coordinates), len(ex.Names))
	return ex, nil
}

// buildSegments flattens ways into segments, assigning dense coordinate
// indices, edge-based node ids and name-table entries along the way.
func buildSegments(ways []wayInfo, nodeCoord map[osm.NodeID]coord.FixedPointCoordinate,
	opt Options, useBBox bool) *Extract {
	ex := &Extract{}
	nodeIndex := make(map[osm.NodeID]uint32, len(nodeCoord))
	nameIndex := make(map[string]uint32)
	var skipped, bboxFiltered int
	var nextEdgeBasedNode uint32

	internNode := func(id osm.NodeID) uint32 {
		if idx, ok := nodeIndex[id]; ok {
			return idx
		}
		idx := uint32(len(ex.Coordinates))
		nodeIndex[id] = idx
		ex.Coordinates = append(ex.Coordinates, nodeCoord[id])
		return idx
	}
	internName := func(name string) uint32 {
		if idx, ok := nameIndex[name]; ok {
			return idx
		}
		idx := uint32(len(ex.Names))
		nameIndex[name] = idx
		ex.Names = append(ex.Names, name)
		return idx
	}

	for _, w := range ways {
		nameID := internName(w.Name)
		for i := 0; i < len(w.NodeIDs)-1; i++ {
			fromCoord, fromOk := nodeCoord[w.NodeIDs[i]]
			toCoord, toOk := nodeCoord[w.NodeIDs[i+1]]
			if !fromOk || !toOk {
				skipped++
				continue
			}
			if useBBox && (!opt.BBox.Contains(fromCoord.LatDeg(), fromCoord.LonDeg()) ||
				!opt.BBox.Contains(toCoord.LatDeg(), toCoord.LonDeg())) {
				bboxFiltered++
				continue
			}

			weightMM := int32(math.Round(coord.ApproxEuclideanDist(fromCoord, toCoord) * 1000))
			if weightMM == 0 {
				weightMM = 1 // avoid zero-weight segments
			}

			seg := spatial.EdgeData{
				U:                  internNode(w.NodeIDs[i]),
				V:                  internNode(w.NodeIDs[i+1]),
				ForwardNodeID:      spatial.SpecialNodeID,
				ReverseNodeID:      spatial.SpecialNodeID,
				NameID:             nameID,
				ForwardWeight:      weightMM,
				ReverseWeight:      weightMM,
				PackedGeometryID:   uint32(w.ID),
				FwdSegmentPosition: uint16(i),
				ForwardTravelMode:  spatial.TravelModeInaccessible,
				BackwardTravelMode: spatial.TravelModeInaccessible,
			}
			if w.Forward {
				seg.ForwardNodeID = nextEdgeBasedNode
				seg.ForwardTravelMode = spatial.TravelModeDefault
				nextEdgeBasedNode++
			}
			if w.Backward {
				seg.ReverseNodeID = nextEdgeBasedNode
				seg.BackwardTravelMode = spatial.TravelModeDefault
				nextEdgeBasedNode++
			}
			ex.Segments = append(ex.Segments, seg)
		}
	}

	if skipped > 0 {
		log.Printf("Warning: skipped %d segments due to missing node coordinates", skipped)
	}
	if bboxFiltered > 0 {
		log.Printf("Filtered %d segments outside bounding box", bboxFiltered)
	}
	return ex
}
