package spatial

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// LeafWriter appends fixed-size leaf pages to the leaf file during
// construction. Pages are written whole, including unused tail slots, so the
// page stride is constant.
type LeafWriter struct {
	f       *os.File
	w       *bufio.Writer
	path    string
	tmpPath string
	buf     [leafPageSize]byte
	pages   uint32
}

// NewLeafWriter opens the leaf file and writes the element-count header.
// The file is written under a temporary name and renamed on Close.
func NewLeafWriter(path string, elementCount uint64) (*LeafWriter, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create leaf file: %w", err)
	}
	w := bufio.NewWriterSize(f, 1<<20)
	if err := binary.Write(w, binary.LittleEndian, elementCount); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write leaf header: %w", err)
	}
	return &LeafWriter{f: f, w: w, path: path, tmpPath: tmpPath}, nil
}

// WritePage appends one complete page.
func (lw *LeafWriter) WritePage(page *LeafPage) error {
	binary.LittleEndian.PutUint32(lw.buf[0:], page.ObjectCount)
	for i := uint32(0); i < page.ObjectCount; i++ {
		encodeEdge(lw.buf[4+i*edgeDataSize:], &page.Objects[i])
	}
	// Zero the unused tail so the write is deterministic.
	for i := 4 + int(page.ObjectCount)*edgeDataSize; i < leafPageSize; i++ {
		lw.buf[i] = 0
	}
	if _, err := lw.w.Write(lw.buf[:]); err != nil {
		return fmt.Errorf("write leaf page %d: %w", lw.pages, err)
	}
	lw.pages++
	return nil
}

// Close flushes and atomically moves the file into place.
func (lw *LeafWriter) Close() error {
	if err := lw.w.Flush(); err != nil {
		lw.f.Close()
		os.Remove(lw.tmpPath)
		return fmt.Errorf("flush leaf file: %w", err)
	}
	if err := lw.f.Close(); err != nil {
		os.Remove(lw.tmpPath)
		return fmt.Errorf("close leaf file: %w", err)
	}
	if err := os.Rename(lw.tmpPath, lw.path); err != nil {
		return fmt.Errorf("rename leaf file: %w", err)
	}
	return nil
}

// LeafReader serves random page reads from the leaf file. Reads go through
// ReadAt, which carries no shared file position, so one reader instance
// serves any number of concurrent queries; this replaces the original
// one-stream-per-thread policy. A failed read is retried once against a
// freshly opened handle before escalating.
type LeafReader struct {
	path         string
	elementCount uint64
	pageCount    uint32

	mu sync.Mutex
	f  *os.File
}

// OpenLeafReader validates and opens the leaf file.
func OpenLeafReader(path string) (*LeafReader, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat leaf file: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open leaf file: %w", err)
	}

	var header [8]byte
	if _, err := f.ReadAt(header[:], 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("read leaf header: %w", err)
	}
	elementCount := binary.LittleEndian.Uint64(header[:])
	pageCount := uint32((elementCount + LeafNodeSize - 1) / LeafNodeSize)

	if want := int64(8) + int64(pageCount)*leafPageSize; info.Size() != want {
		f.Close()
		return nil, fmt.Errorf("%w: leaf file %s is %d bytes, header implies %d",
			ErrCorruption, path, info.Size(), want)
	}

	return &LeafReader{path: path, elementCount: elementCount, pageCount: pageCount, f: f}, nil
}

// ElementCount returns the total number of segments declared by the header.
func (lr *LeafReader) ElementCount() uint64 { return lr.elementCount }

// PageCount returns the number of leaf pages in the file.
func (lr *LeafReader) PageCount() uint32 { return lr.pageCount }

// ReadPage loads one page into the caller-provided scratch buffer and page
// struct. buf must be leafPageSize bytes.
func (lr *LeafReader) ReadPage(pageIndex uint32, buf []byte, page *LeafPage) error {
	if pageIndex >= lr.pageCount {
		return fmt.Errorf("%w: leaf page index %d of %d", ErrCorruption, pageIndex, lr.pageCount)
	}

	offset := int64(8) + int64(pageIndex)*leafPageSize
	if err := lr.readAt(buf, offset); err != nil {
		// Transient stream errors get one fresh handle before escalating.
		if rerr := lr.reopen(); rerr != nil {
			return fmt.Errorf("%w: page %d: %v", ErrReadFailure, pageIndex, rerr)
		}
		if err = lr.readAt(buf, offset); err != nil {
			return fmt.Errorf("%w: page %d: %v", ErrReadFailure, pageIndex, err)
		}
	}

	page.ObjectCount = binary.LittleEndian.Uint32(buf[0:])
	if page.ObjectCount > LeafNodeSize {
		return fmt.Errorf("%w: leaf page %d declares %d objects", ErrCorruption, pageIndex, page.ObjectCount)
	}
	for i := uint32(0); i < page.ObjectCount; i++ {
		decodeEdge(buf[4+i*edgeDataSize:], &page.Objects[i])
	}
	return nil
}

func (lr *LeafReader) readAt(buf []byte, offset int64) error {
	lr.mu.Lock()
	f := lr.f
	lr.mu.Unlock()
	_, err := f.ReadAt(buf[:leafPageSize], offset)
	return err
}

func (lr *LeafReader) reopen() error {
	f, err := os.Open(lr.path)
	if err != nil {
		return err
	}
	lr.mu.Lock()
	old := lr.f
	lr.f = f
	lr.mu.Unlock()
	old.Close()
	return nil
}

// Close releases the file handle.
func (lr *LeafReader) Close() error {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.f.Close()
}
