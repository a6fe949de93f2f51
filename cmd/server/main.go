package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/lifatov/roadindex/pkg/api"
	"github.com/lifatov/roadindex/pkg/osmdata"
	"github.com/lifatov/roadindex/pkg/spatial"
)

func main() {
	treePath := flag.String("tree", "index.ramIndex", "Path to tree-node file")
	leafPath := flag.String("leaf", "index.fileIndex", "Path to leaf file")
	metaPath := flag.String("meta", "index.meta", "Path to metadata sidecar")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	useMmap := flag.Bool("mmap", false, "Memory-map the tree file instead of loading it")
	flag.Parse()

	start := time.Now()

	log.Printf("Loading metadata from %s...", *metaPath)
	meta, err := osmdata.ReadMetadata(*metaPath)
	if err != nil {
		log.Fatalf("Failed to load metadata: %v", err)
	}
	log.Printf("Loaded %d coordinates, %d street names", len(meta.Coordinates), len(meta.Names))

	log.Printf("Opening index (%s, %s)...", *treePath, *leafPath)
	var index *spatial.StaticRTree
	if *useMmap {
		index, err = spatial.OpenMapped(*treePath, *leafPath, meta.Coordinates)
	} else {
		index, err = spatial.Open(*treePath, *leafPath, meta.Coordinates)
	}
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer index.Close()
	log.Printf("Index ready in %s: %d segments, %d tree nodes",
		time.Since(start).Round(time.Millisecond), index.ElementCount(), index.NodeCount())

	cfg := api.DefaultConfig(fmt.Sprintf(":%d", *port))
	cfg.CORSOrigin = *corsOrigin
	srv := api.NewServer(cfg, api.NewHandlers(index, meta.Names))
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
