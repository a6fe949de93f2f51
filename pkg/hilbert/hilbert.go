// Package hilbert maps projected fixed-point coordinates onto a space-filling
// Hilbert curve. Sorting segment centroids by the returned index clusters
// spatially proximate segments, which is what keeps the packed R-tree's
// bounding rectangles tight.
package hilbert

import "github.com/lifatov/roadindex/pkg/coord"

// Index returns the 64-bit Hilbert index of the coordinate over the full
// 32-bit x 32-bit plane. The latitude component is expected to be
// Mercator-projected already; the encoder itself is projection-agnostic.
func Index(c coord.FixedPointCoordinate) uint64 {
	// Bias the signed components into unsigned space so curve order follows
	// geographic order.
	x := uint32(int64(c.Lon) + (1 << 31))
	y := uint32(int64(c.Lat) + (1 << 31))
	return xy2d(x, y)
}

// xy2d is the classic iterative Hilbert transform: walk the plane from the
// top bit down, accumulating the quadrant index and rotating the frame.
func xy2d(x, y uint32) uint64 {
	var d uint64
	for s := uint32(1 << 31); s > 0; s >>= 1 {
		var rx, ry uint32
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
			ry = 1
		}
		d += uint64(s) * uint64(s) * uint64((3*rx)^ry)

		// Rotate the quadrant so the curve stays continuous.
		if ry == 0 {
			if rx == 1 {
				x = ^x
				y = ^y
			}
			x, y = y, x
		}
	}
	return d
}
