package spatial

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLeafWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leaves.fileIndex")

	const n = LeafNodeSize + 10 // two pages, second under-full
	lw, err := NewLeafWriter(path, n)
	if err != nil {
		t.Fatalf("NewLeafWriter: %v", err)
	}

	var page LeafPage
	written := 0
	for written < n {
		page.ObjectCount = 0
		for page.ObjectCount < LeafNodeSize && written < n {
			page.Objects[page.ObjectCount] = EdgeData{
				U: uint32(written), V: uint32(written + 1),
				ForwardNodeID: uint32(written), ReverseNodeID: SpecialNodeID,
				NameID:        uint32(written % 3),
				ForwardWeight: int32(written), ReverseWeight: -int32(written),
				ForwardOffset: 7, ReverseOffset: -7,
				PackedGeometryID:   uint32(written * 2),
				FwdSegmentPosition: uint16(written % 8),
				IsInTinyCC:         written%2 == 0,
				ForwardTravelMode:  TravelModeDefault,
				BackwardTravelMode: TravelModeInaccessible,
			}
			page.ObjectCount++
			written++
		}
		if err := lw.WritePage(&page); err != nil {
			t.Fatalf("WritePage: %v", err)
		}
	}
	if err := lw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lr, err := OpenLeafReader(path)
	if err != nil {
		t.Fatalf("OpenLeafReader: %v", err)
	}
	defer lr.Close()

	if lr.ElementCount() != n {
		t.Fatalf("ElementCount = %d, want %d", lr.ElementCount(), n)
	}
	if lr.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", lr.PageCount())
	}

	buf := make([]byte, leafPageSize)
	var got LeafPage
	id := 0
	for p := uint32(0); p < lr.PageCount(); p++ {
		if err := lr.ReadPage(p, buf, &got); err != nil {
			t.Fatalf("ReadPage(%d): %v", p, err)
		}
		for i := uint32(0); i < got.ObjectCount; i++ {
			e := got.Objects[i]
			if e.U != uint32(id) || e.ReverseNodeID != SpecialNodeID ||
				e.ForwardWeight != int32(id) || e.ReverseWeight != -int32(id) ||
				e.IsInTinyCC != (id%2 == 0) || e.BackwardTravelMode != TravelModeInaccessible {
				t.Fatalf("page %d object %d decoded wrong: %+v", p, i, e)
			}
			id++
		}
	}
	if id != n {
		t.Fatalf("decoded %d objects, want %d", id, n)
	}
}

func TestLeafReaderMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenLeafReader(filepath.Join(dir, "absent"))
	if !errors.Is(err, ErrMissingFile) {
		t.Fatalf("missing file err = %v, want ErrMissingFile", err)
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = OpenLeafReader(empty)
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("empty file err = %v, want ErrEmptyFile", err)
	}
}

func TestLeafReaderTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trunc")

	// Header claims a full page but the body is short.
	var header [8]byte
	binary.LittleEndian.PutUint64(header[:], 1)
	if err := os.WriteFile(path, append(header[:], make([]byte, 100)...), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := OpenLeafReader(path)
	if !errors.Is(err, ErrCorruption) {
		t.Fatalf("truncated file err = %v, want ErrCorruption", err)
	}
}

func TestLeafReaderOversizedObjectCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "badcount")

	body := make([]byte, 8+leafPageSize)
	binary.LittleEndian.PutUint64(body[0:], 1)
	binary.LittleEndian.PutUint32(body[8:], LeafNodeSize+1)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	lr, err := OpenLeafReader(path)
	if err != nil {
		t.Fatalf("OpenLeafReader: %v", err)
	}
	defer lr.Close()

	var page LeafPage
	err = lr.ReadPage(0, make([]byte, leafPageSize), &page)
	if !errors.Is(err, ErrCorruption) {
		t.Fatalf("oversized count err = %v, want ErrCorruption", err)
	}
}

func TestLeafReaderPageOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "onepage")

	body := make([]byte, 8+leafPageSize)
	binary.LittleEndian.PutUint64(body[0:], 1)
	binary.LittleEndian.PutUint32(body[8:], 1)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	lr, err := OpenLeafReader(path)
	if err != nil {
		t.Fatalf("OpenLeafReader: %v", err)
	}
	defer lr.Close()

	var page LeafPage
	err = lr.ReadPage(5, make([]byte, leafPageSize), &page)
	if !errors.Is(err, ErrCorruption) {
		t.Fatalf("out-of-range page err = %v, want ErrCorruption", err)
	}
}

// A reader must survive its handle being closed underneath it by reopening
// once.
func TestLeafReaderRetriesStaleHandle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "retry")

	body := make([]byte, 8+leafPageSize)
	binary.LittleEndian.PutUint64(body[0:], 1)
	binary.LittleEndian.PutUint32(body[8:], 1)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	lr, err := OpenLeafReader(path)
	if err != nil {
		t.Fatalf("OpenLeafReader: %v", err)
	}
	defer lr.Close()

	lr.f.Close() // simulate a stale stream

	var page LeafPage
	if err := lr.ReadPage(0, make([]byte, leafPageSize), &page); err != nil {
		t.Fatalf("ReadPage after stale handle: %v", err)
	}
	if page.ObjectCount != 1 {
		t.Fatalf("ObjectCount = %d, want 1", page.ObjectCount)
	}
}
