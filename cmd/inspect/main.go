// inspect prints structure statistics for a built index and can dump node
// bounding rectangles as GeoJSON for map debugging.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lifatov/roadindex/pkg/coord"
	"github.com/lifatov/roadindex/pkg/osmdata"
	"github.com/lifatov/roadindex/pkg/spatial"
)

func main() {
	treePath := flag.String("tree", "index.ramIndex", "Path to tree-node file")
	leafPath := flag.String("leaf", "index.fileIndex", "Path to leaf file")
	metaPath := flag.String("meta", "index.meta", "Path to metadata sidecar")
	geojsonOut := flag.String("geojson", "", "Write node MBRs as GeoJSON to this file")
	depth := flag.Int("depth", -1, "Restrict GeoJSON dump to this tree depth (-1 = all)")
	flag.Parse()

	meta, err := osmdata.ReadMetadata(*metaPath)
	if err != nil {
		log.Fatalf("Failed to load metadata: %v", err)
	}

	index, err := spatial.Open(*treePath, *leafPath, meta.Coordinates)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer index.Close()

	nodesPerDepth := map[int]int{}
	leafRefs := 0
	maxDepth := 0
	index.Walk(func(v spatial.NodeVisit) bool {
		nodesPerDepth[v.Depth]++
		if v.IsLeafRef {
			leafRefs++
		}
		if v.Depth > maxDepth {
			maxDepth = v.Depth
		}
		return true
	})

	fmt.Printf("segments:    %d\n", index.ElementCount())
	fmt.Printf("tree nodes:  %d\n", index.NodeCount())
	fmt.Printf("leaf pages:  %d\n", leafRefs)
	fmt.Printf("tree depth:  %d\n", maxDepth)
	for d := 0; d <= maxDepth; d++ {
		fmt.Printf("  depth %d: %d nodes\n", d, nodesPerDepth[d])
	}

	if *geojsonOut != "" {
		if err := writeGeoJSON(index, *geojsonOut, *depth); err != nil {
			log.Fatalf("Failed to write GeoJSON: %v", err)
		}
		log.Printf("Wrote node rectangles to %s", *geojsonOut)
	}
}

type geoJSONFeature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	} `json:"geometry"`
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

func writeGeoJSON(index *spatial.StaticRTree, path string, depthFilter int) error {
	collection := geoJSONCollection{Type: "FeatureCollection"}
	index.Walk(func(v spatial.NodeVisit) bool {
		if depthFilter >= 0 && v.Depth != depthFilter {
			return true
		}
		var f geoJSONFeature
		f.Type = "Feature"
		f.Properties = map[string]any{
			"index":    v.Index,
			"depth":    v.Depth,
			"leaf_ref": v.IsLeafRef,
		}
		f.Geometry.Type = "Polygon"
		f.Geometry.Coordinates = [][][2]float64{rectRing(v.Rect)}
		collection.Features = append(collection.Features, f)
		return true
	})

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(collection)
}

// rectRing returns the closed [lng, lat] ring of a rectangle.
func rectRing(r spatial.RectInt2D) [][2]float64 {
	minLng := float64(r.MinLon) / coord.Precision
	maxLng := float64(r.MaxLon) / coord.Precision
	minLat := float64(r.MinLat) / coord.Precision
	maxLat := float64(r.MaxLat) / coord.Precision
	return [][2]float64{
		{minLng, minLat},
		{maxLng, minLat},
		{maxLng, maxLat},
		{minLng, maxLat},
		{minLng, minLat},
	}
}
