// Package spatial implements a static, packed Hilbert R-tree over directed
// road segments. The tree is bulk-loaded once and then served read-only:
// internal nodes live in a compact in-memory array (optionally shared via a
// memory mapping) while leaf pages stay on disk and are read by offset.
// Queries are best-first traversals in the style of Hjaltason and Samet.
package spatial

import "github.com/lifatov/roadindex/pkg/coord"

// StaticRTree is a read-only spatial index of road segments. An instance is
// safe for concurrent queries: the node array and coordinate table are
// immutable and leaf reads carry no shared position state.
type StaticRTree struct {
	nodes  NodeArray
	coords []coord.FixedPointCoordinate
	leaves *LeafReader
	unmap  func() error
	stats  queryCounters
}

// Open loads the tree file into memory and opens the leaf file for random
// reads. The coordinate table is shared by reference and must outlive the
// index unmodified.
func Open(treePath, leafPath string, coords []coord.FixedPointCoordinate) (*StaticRTree, error) {
	nodes, err := readTreeFile(treePath)
	if err != nil {
		return nil, err
	}
	leaves, err := OpenLeafReader(leafPath)
	if err != nil {
		return nil, err
	}
	return &StaticRTree{nodes: nodes, coords: coords, leaves: leaves}, nil
}

// AttachMapped borrows a memory-mapped view of the tree file (header
// included) instead of owning a copy, for indexes shared across processes.
// The mapping must outlive the index; Close leaves it alone.
func AttachMapped(data []byte, leafPath string, coords []coord.FixedPointCoordinate) (*StaticRTree, error) {
	nodes, err := attachNodes(data)
	if err != nil {
		return nil, err
	}
	leaves, err := OpenLeafReader(leafPath)
	if err != nil {
		return nil, err
	}
	return &StaticRTree{nodes: nodes, coords: coords, leaves: leaves}, nil
}

// ElementCount returns the number of indexed segments.
func (t *StaticRTree) ElementCount() uint64 { return t.leaves.ElementCount() }

// NodeCount returns the number of tree nodes, leaf-referencing ones included.
func (t *StaticRTree) NodeCount() uint32 { return t.nodes.Len() }

// Close releases the leaf file handle and, for OpenMapped indexes, the tree
// mapping. The coordinate table is never touched.
func (t *StaticRTree) Close() error {
	err := t.leaves.Close()
	if t.unmap != nil {
		if uerr := t.unmap(); err == nil {
			err = uerr
		}
	}
	return err
}
