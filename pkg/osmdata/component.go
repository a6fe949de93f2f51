package osmdata

import "github.com/lifatov/roadindex/pkg/spatial"

// UnionFind implements a disjoint-set data structure with path halving and
// union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // byte is sufficient — max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// SetSize returns the size of the set containing x.
func (uf *UnionFind) SetSize(x uint32) uint32 {
	return uf.size[uf.Find(x)]
}

// MarkTinyComponents tags every segment whose endpoints lie in a weakly
// connected component with fewer than threshold nodes. Low-zoom queries use
// the tag to skip parking lots, ferry stubs and other disconnected scraps.
func MarkTinyComponents(segments []spatial.EdgeData, numCoords uint32, threshold int) {
	if numCoords == 0 {
		return
	}
	uf := NewUnionFind(numCoords)
	for i := range segments {
		uf.Union(segments[i].U, segments[i].V)
	}
	for i := range segments {
		segments[i].IsInTinyCC = uf.SetSize(segments[i].U) < uint32(threshold)
	}
}
