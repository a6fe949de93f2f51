package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lifatov/roadindex/pkg/osmdata"
	"github.com/lifatov/roadindex/pkg/spatial"
)

func main() {
	input := flag.String("input", "", "Path to .osm.pbf file")
	treeOut := flag.String("tree", "index.ramIndex", "Output tree-node file path")
	leafOut := flag.String("leaf", "index.fileIndex", "Output leaf file path")
	metaOut := flag.String("meta", "index.meta", "Output metadata sidecar path")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 1.15,103.6,1.48,104.1)")
	tinyThreshold := flag.Int("tiny-threshold", osmdata.DefaultTinyComponentThreshold,
		"Components with fewer nodes than this are tagged tiny")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess --input <file.osm.pbf> [--tree index.ramIndex] [--leaf index.fileIndex] [--meta index.meta] [--bbox minLat,minLng,maxLat,maxLng]")
		os.Exit(1)
	}

	opts := osmdata.Options{TinyComponentThreshold: *tinyThreshold}
	if *bbox != "" {
		var minLat, minLng, maxLat, maxLng float64
		_, err := fmt.Sscanf(*bbox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng)
		if err != nil {
			log.Fatalf("Invalid bbox format (expected minLat,minLng,maxLat,maxLng): %v", err)
		}
		opts.BBox = osmdata.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
		log.Printf("Using bounding box filter: lat [%.4f, %.4f], lng [%.4f, %.4f]", minLat, maxLat, minLng, maxLng)
	}

	start := time.Now()

	log.Println("Opening OSM file...")
	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("Failed to open input file: %v", err)
	}
	defer f.Close()

	log.Println("Parsing OSM data...")
	extract, err := osmdata.Parse(context.Background(), f, opts)
	if err != nil {
		log.Fatalf("Failed to parse OSM data: %v", err)
	}

	log.Println("Building R-tree...")
	index, err := spatial.Build(extract.Segments, extract.Coordinates, *treeOut, *leafOut)
	if err != nil {
		log.Fatalf("Failed to build index: %v", err)
	}
	defer index.Close()

	log.Println("Writing metadata sidecar...")
	err = osmdata.WriteMetadata(*metaOut, &osmdata.Metadata{
		Coordinates: extract.Coordinates,
		Names:       extract.Names,
	})
	if err != nil {
		log.Fatalf("Failed to write metadata: %v", err)
	}

	log.Printf("Done in %s: %d segments, %d tree nodes",
		time.Since(start).Round(time.Millisecond), index.ElementCount(), index.NodeCount())
}
