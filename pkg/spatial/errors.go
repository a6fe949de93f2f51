package spatial

import "errors"

// Error kinds surfaced by index construction and queries. Callers match them
// with errors.Is; wrapped variants carry file and offset context.
var (
	// ErrMissingFile is returned when an index file does not exist.
	ErrMissingFile = errors.New("index file does not exist")

	// ErrEmptyFile is returned when an index file exists but is zero-length.
	ErrEmptyFile = errors.New("index file is empty")

	// ErrReadFailure is returned when a leaf page read fails even after the
	// single reopen-and-retry the reader performs.
	ErrReadFailure = errors.New("leaf read failed")

	// ErrCorruption is returned when file contents disagree with their own
	// header: node count vs. file length, an oversized leaf object count, or
	// a child index out of range.
	ErrCorruption = errors.New("index file is corrupt")

	// ErrEmptyTree is returned when a build is attempted with no segments.
	ErrEmptyTree = errors.New("cannot build r-tree from zero segments")

	// ErrNoMatch is returned by point queries when no segment survives the
	// component filter.
	ErrNoMatch = errors.New("no matching segment found")
)
