package spatial

// Tunables. One leaf page is sized to match a convenient I/O block; the
// branching factor keeps internal nodes a few cache lines wide.
const (
	BranchingFactor = 64
	LeafNodeSize    = 1024
)

// treeNodeSize is the on-disk stride of one TreeNode: the MBR, the packed
// child word, and the fixed child array. The in-memory struct matches this
// layout exactly (all fields 4-byte aligned, no padding) so node arrays can
// be read and mapped without per-record decoding.
const treeNodeSize = 16 + 4 + 4*BranchingFactor

// childOnDiskFlag occupies the most-significant bit of the packed child
// word; the low 31 bits hold the child count.
const childOnDiskFlag = 1 << 31

// TreeNode is one packed R-tree node. When childWord has the on-disk flag
// set, Children[0] is a leaf-page index into the leaf file; otherwise
// Children[0..ChildCount()) index the tree-node array.
type TreeNode struct {
	Rect      RectInt2D
	childWord uint32
	Children  [BranchingFactor]uint32
}

// ChildCount returns the number of occupied child slots.
func (n *TreeNode) ChildCount() uint32 { return n.childWord &^ childOnDiskFlag }

// ChildIsOnDisk reports whether Children[0] refers to a leaf page.
func (n *TreeNode) ChildIsOnDisk() bool { return n.childWord&childOnDiskFlag != 0 }

func (n *TreeNode) setLeafPage(pageIndex uint32) {
	n.childWord = 1 | childOnDiskFlag
	n.Children[0] = pageIndex
}

func (n *TreeNode) addChild(index uint32) {
	n.Children[n.childWord&^childOnDiskFlag] = index
	n.childWord++
}

// LeafPage is one fixed-size run of segments on disk. Slots beyond
// ObjectCount hold indeterminate bytes and are never decoded.
type LeafPage struct {
	ObjectCount uint32
	Objects     [LeafNodeSize]EdgeData
}

// leafPageSize is the on-disk stride of one leaf page.
const leafPageSize = 4 + LeafNodeSize*edgeDataSize
