package spatial

// NodeVisit describes one tree node during a walk.
type NodeVisit struct {
	Index     uint32
	Depth     int
	Rect      RectInt2D
	Children  uint32
	LeafPage  uint32 // valid only when IsLeafRef
	IsLeafRef bool
}

// Walk visits every tree node breadth-first from the root, for inspection
// tooling. The callback returning false stops the walk.
func (t *StaticRTree) Walk(fn func(v NodeVisit) bool) {
	if t.nodes.Len() == 0 {
		return
	}
	type item struct {
		id    uint32
		depth int
	}
	queue := []item{{0, 0}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		node := t.nodes.Node(it.id)

		v := NodeVisit{
			Index:     it.id,
			Depth:     it.depth,
			Rect:      node.Rect,
			Children:  node.ChildCount(),
			IsLeafRef: node.ChildIsOnDisk(),
		}
		if v.IsLeafRef {
			v.LeafPage = node.Children[0]
		}
		if !fn(v) {
			return
		}
		if !v.IsLeafRef {
			for i := uint32(0); i < node.ChildCount(); i++ {
				queue = append(queue, item{node.Children[i], it.depth + 1})
			}
		}
	}
}
