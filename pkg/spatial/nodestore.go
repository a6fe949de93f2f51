package spatial

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"
)

// NodeArray is the random-access capability queries need from the packed
// tree-node array: O(1) indexed access, root at index 0, immutable after
// construction. One implementation owns a slice read from the tree file, the
// other borrows a memory-mapped region shared across processes.
type NodeArray interface {
	Node(i uint32) *TreeNode
	Len() uint32
}

type ownedNodes []TreeNode

func (n ownedNodes) Node(i uint32) *TreeNode { return &n[i] }
func (n ownedNodes) Len() uint32             { return uint32(len(n)) }

// mappedNodes borrows a caller-provided view; data pins the mapping for the
// lifetime of the node slice.
type mappedNodes struct {
	nodes []TreeNode
	data  []byte
}

func (m *mappedNodes) Node(i uint32) *TreeNode { return &m.nodes[i] }
func (m *mappedNodes) Len() uint32             { return uint32(len(m.nodes)) }

// nodesAsBytes reinterprets a node slice as its raw little-endian file
// representation. TreeNode is laid out field-for-field as the file records
// it, so this is the same zero-copy slice I/O the rest of the toolchain uses
// for bulk arrays.
func nodesAsBytes(nodes []TreeNode) []byte {
	if len(nodes) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&nodes[0])), len(nodes)*treeNodeSize)
}

// writeTreeFile persists the node array: a u32 node count followed by the
// packed records, written to a temporary file and renamed into place.
func writeTreeFile(path string, nodes []TreeNode) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create tree file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	if err := binary.Write(f, binary.LittleEndian, uint32(len(nodes))); err != nil {
		return fmt.Errorf("write tree header: %w", err)
	}
	if _, err := f.Write(nodesAsBytes(nodes)); err != nil {
		return fmt.Errorf("write tree nodes: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close tree file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename tree file: %w", err)
	}
	return nil
}

// readTreeFile loads the whole node array into memory, validating the
// declared count against the file length.
func readTreeFile(path string) (ownedNodes, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat tree file: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tree file: %w", err)
	}
	defer f.Close()

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read tree header: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: tree file %s declares zero nodes", ErrCorruption, path)
	}
	if want := int64(4) + int64(count)*treeNodeSize; info.Size() != want {
		return nil, fmt.Errorf("%w: tree file %s is %d bytes, header declares %d nodes",
			ErrCorruption, path, info.Size(), count)
	}

	nodes := make(ownedNodes, count)
	if count > 0 {
		if _, err := io.ReadFull(f, nodesAsBytes(nodes)); err != nil {
			return nil, fmt.Errorf("read tree nodes: %w", err)
		}
	}
	if err := validateNodes(nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// attachNodes wraps a memory-mapped tree file (header included) without
// copying. The returned array stays valid only while the mapping does.
func attachNodes(data []byte) (*mappedNodes, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: mapped tree region of %d bytes", ErrCorruption, len(data))
	}
	count := binary.LittleEndian.Uint32(data)
	if count == 0 {
		return nil, fmt.Errorf("%w: mapped tree region declares zero nodes", ErrCorruption)
	}
	if want := 4 + int(count)*treeNodeSize; len(data) != want {
		return nil, fmt.Errorf("%w: mapped tree region is %d bytes, header declares %d nodes",
			ErrCorruption, len(data), count)
	}
	var nodes []TreeNode
	if count > 0 {
		nodes = unsafe.Slice((*TreeNode)(unsafe.Pointer(&data[4])), count)
	}
	if err := validateNodes(nodes); err != nil {
		return nil, err
	}
	return &mappedNodes{nodes: nodes, data: data}, nil
}

// validateNodes rejects child references outside the array or page space
// markers that make no sense, so queries never chase wild indices.
func validateNodes(nodes []TreeNode) error {
	n := uint32(len(nodes))
	for i := range nodes {
		node := &nodes[i]
		count := node.ChildCount()
		if count > BranchingFactor {
			return fmt.Errorf("%w: node %d declares %d children", ErrCorruption, i, count)
		}
		if node.ChildIsOnDisk() {
			if count != 1 {
				return fmt.Errorf("%w: leaf node %d has %d children", ErrCorruption, i, count)
			}
			continue
		}
		for j := uint32(0); j < count; j++ {
			if node.Children[j] >= n {
				return fmt.Errorf("%w: node %d child %d references node %d of %d",
					ErrCorruption, i, j, node.Children[j], n)
			}
		}
	}
	return nil
}
