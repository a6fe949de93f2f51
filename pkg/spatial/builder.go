package spatial

import (
	"fmt"
	"log"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/lifatov/roadindex/pkg/coord"
	"github.com/lifatov/roadindex/pkg/hilbert"
)

// wrappedInputElement pairs a segment's Hilbert value with its original
// position so sorting never moves the segment records themselves.
type wrappedInputElement struct {
	hilbertValue uint64
	arrayIndex   uint32
}

// Build constructs a packed Hilbert R-tree over the segments with the
// Kamel-Faloutsos bottom-up algorithm: sort segment centroids along the
// Hilbert curve, pack runs of LeafNodeSize segments into leaf pages, then
// group nodes upward in runs of BranchingFactor until a single root remains.
// The leaf and tree files are written as side effects and the returned index
// is ready to serve queries. Segments and coordinates are borrowed, never
// mutated.
func Build(segments []EdgeData, coords []coord.FixedPointCoordinate, treePath, leafPath string) (*StaticRTree, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyTree
	}
	elementCount := uint64(len(segments))
	log.Printf("constructing r-tree of %d segments on top of %d coordinates",
		elementCount, len(coords))
	start := time.Now()

	// Phase 1: Hilbert value of each segment's Mercator-projected centroid.
	// Embarrassingly parallel across segments.
	wrapped := make([]wrappedInputElement, len(segments))
	parallelFor(len(segments), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			seg := &segments[i]
			centroid := Centroid(coords[seg.U], coords[seg.V])
			centroid.Lat = int32(coord.Precision * coord.LatToMercatorY(centroid.LatDeg()))
			wrapped[i] = wrappedInputElement{
				hilbertValue: hilbert.Index(centroid),
				arrayIndex:   uint32(i),
			}
		}
	})

	// Phase 2: sort along the curve. Ties break arbitrarily.
	sort.Slice(wrapped, func(i, j int) bool {
		return wrapped[i].hilbertValue < wrapped[j].hilbertValue
	})

	// Phase 3: pack runs of LeafNodeSize segments into leaf pages and emit
	// one placeholder node per page.
	lw, err := NewLeafWriter(leafPath, elementCount)
	if err != nil {
		return nil, err
	}
	var level []TreeNode
	var page LeafPage
	for processed := 0; processed < len(segments); {
		page.ObjectCount = 0
		rect := NewInvertedRect()
		for page.ObjectCount < LeafNodeSize && processed < len(segments) {
			seg := segments[wrapped[processed].arrayIndex]
			page.Objects[page.ObjectCount] = seg
			rect.Include(coords[seg.U])
			rect.Include(coords[seg.V])
			page.ObjectCount++
			processed++
		}

		var node TreeNode
		node.Rect = rect
		node.setLeafPage(uint32(len(level)))
		level = append(level, node)

		if err := lw.WritePage(&page); err != nil {
			return nil, err
		}
	}
	if err := lw.Close(); err != nil {
		return nil, err
	}

	// Phase 4: pack levels bottom-up. Children move into the flat tree array
	// as they are parented; the parent records their positions there.
	var tree []TreeNode
	for len(level) > 1 {
		var nextLevel []TreeNode
		for processed := 0; processed < len(level); {
			var parent TreeNode
			parent.Rect = NewInvertedRect()
			for parent.ChildCount() < BranchingFactor && processed < len(level) {
				child := level[processed]
				parent.addChild(uint32(len(tree)))
				tree = append(tree, child)
				parent.Rect.Union(child.Rect)
				processed++
			}
			nextLevel = append(nextLevel, parent)
		}
		level = nextLevel
	}
	tree = append(tree, level[0])

	// Phase 5: reverse so the root sits at index 0, then renumber child
	// references. Leaf-page indices are left alone.
	for i, j := 0, len(tree)-1; i < j; i, j = i+1, j-1 {
		tree[i], tree[j] = tree[j], tree[i]
	}
	treeSize := uint32(len(tree))
	parallelFor(len(tree), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			node := &tree[i]
			if node.ChildIsOnDisk() {
				continue
			}
			for j := uint32(0); j < node.ChildCount(); j++ {
				node.Children[j] = treeSize - node.Children[j] - 1
			}
		}
	})

	// Phase 6: persist the node array.
	if err := writeTreeFile(treePath, tree); err != nil {
		return nil, err
	}

	leaves, err := OpenLeafReader(leafPath)
	if err != nil {
		return nil, fmt.Errorf("reopen leaf file after build: %w", err)
	}

	log.Printf("finished r-tree construction in %s (%d tree nodes, %d leaf pages)",
		time.Since(start).Round(time.Millisecond), len(tree), leaves.PageCount())

	return &StaticRTree{
		nodes:  ownedNodes(tree),
		coords: coords,
		leaves: leaves,
	}, nil
}

// parallelFor splits [0, n) into one contiguous chunk per CPU.
func parallelFor(n int, fn func(lo, hi int)) {
	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
