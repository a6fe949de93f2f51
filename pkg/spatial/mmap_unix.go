//go:build unix

package spatial

import (
	"fmt"
	"os"
	"syscall"

	"github.com/lifatov/roadindex/pkg/coord"
)

// OpenMapped maps the tree file itself and attaches to the mapping. Close
// releases the mapping along with the leaf handle.
func OpenMapped(treePath, leafPath string, coords []coord.FixedPointCoordinate) (*StaticRTree, error) {
	data, unmap, err := MapTreeFile(treePath)
	if err != nil {
		return nil, err
	}
	tree, err := AttachMapped(data, leafPath, coords)
	if err != nil {
		unmap()
		return nil, err
	}
	tree.unmap = unmap
	return tree, nil
}

// MapTreeFile maps the tree file read-only and returns the region together
// with an unmap function. The mapping can be handed to AttachMapped so
// several processes share one physical copy of the node array.
func MapTreeFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open tree file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat tree file: %w", err)
	}
	if info.Size() == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(info.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap tree file: %w", err)
	}
	return data, func() error { return syscall.Munmap(data) }, nil
}
