package osmdata

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"github.com/lifatov/roadindex/pkg/coord"
)

// The metadata sidecar carries the coordinate table and street-name table
// from preprocess to serve. It is not one of the index files; the index
// borrows the coordinate table from here at load time.

const (
	metaMagic   = "RDIDXMET"
	metaVersion = uint32(1)
	maxCoords   = 100_000_000
)

// metaHeader is the binary header of the sidecar file.
type metaHeader struct {
	Magic     [8]byte
	Version   uint32
	NumCoords uint32
	NumNames  uint32
	NameBytes uint32
}

// Metadata is the content of the sidecar file.
type Metadata struct {
	Coordinates []coord.FixedPointCoordinate
	Names       []string
}

// WriteMetadata serializes the sidecar to a binary file: header, coordinate
// component arrays, name offsets and name bytes, CRC32 trailer. Written to a
// temporary file and renamed into place.
func WriteMetadata(path string, meta *Metadata) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	crcWriter := crc32Writer{w: f, hash: crc32.NewIEEE()}
	w := &crcWriter

	lats := make([]int32, len(meta.Coordinates))
	lons := make([]int32, len(meta.Coordinates))
	for i, c := range meta.Coordinates {
		lats[i] = c.Lat
		lons[i] = c.Lon
	}

	nameOffsets := make([]uint32, len(meta.Names)+1)
	var nameBytes []byte
	for i, name := range meta.Names {
		nameOffsets[i] = uint32(len(nameBytes))
		nameBytes = append(nameBytes, name...)
	}
	nameOffsets[len(meta.Names)] = uint32(len(nameBytes))

	hdr := metaHeader{
		Version:   metaVersion,
		NumCoords: uint32(len(meta.Coordinates)),
		NumNames:  uint32(len(meta.Names)),
		NameBytes: uint32(len(nameBytes)),
	}
	copy(hdr.Magic[:], metaMagic)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeInt32Slice(w, lats); err != nil {
		return fmt.Errorf("write latitudes: %w", err)
	}
	if err := writeInt32Slice(w, lons); err != nil {
		return fmt.Errorf("write longitudes: %w", err)
	}
	if err := writeUint32Slice(w, nameOffsets); err != nil {
		return fmt.Errorf("write name offsets: %w", err)
	}
	if _, err := w.Write(nameBytes); err != nil {
		return fmt.Errorf("write name bytes: %w", err)
	}

	checksum := crcWriter.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close metadata file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadMetadata deserializes the sidecar and validates its checksum.
func ReadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()

	crcReader := crc32Reader{r: f, hash: crc32.NewIEEE()}
	r := &crcReader

	var hdr metaHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != metaMagic {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != metaVersion {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumCoords > maxCoords {
		return nil, fmt.Errorf("NumCoords %d exceeds limit %d", hdr.NumCoords, maxCoords)
	}

	lats, err := readInt32Slice(r, int(hdr.NumCoords))
	if err != nil {
		return nil, fmt.Errorf("read latitudes: %w", err)
	}
	lons, err := readInt32Slice(r, int(hdr.NumCoords))
	if err != nil {
		return nil, fmt.Errorf("read longitudes: %w", err)
	}
	nameOffsets, err := readUint32Slice(r, int(hdr.NumNames)+1)
	if err != nil {
		return nil, fmt.Errorf("read name offsets: %w", err)
	}
	nameBytes := make([]byte, hdr.NameBytes)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return nil, fmt.Errorf("read name bytes: %w", err)
	}

	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC mismatch: stored %08x, computed %08x", storedCRC, expectedCRC)
	}

	meta := &Metadata{
		Coordinates: make([]coord.FixedPointCoordinate, hdr.NumCoords),
		Names:       make([]string, hdr.NumNames),
	}
	for i := range meta.Coordinates {
		meta.Coordinates[i] = coord.FixedPointCoordinate{Lat: lats[i], Lon: lons[i]}
	}
	for i := range meta.Names {
		lo, hi := nameOffsets[i], nameOffsets[i+1]
		if hi < lo || hi > uint32(len(nameBytes)) {
			return nil, fmt.Errorf("name offset table corrupt at %d", i)
		}
		meta.Names[i] = string(nameBytes[lo:hi])
	}
	return meta, nil
}

// Zero-copy I/O helpers using unsafe.Slice.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeInt32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readInt32Slice(r io.Reader, n int) ([]int32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]int32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
