package spatial

import (
	"math"

	"github.com/lifatov/roadindex/pkg/coord"
)

// RectInt2D is an axis-aligned minimum bounding rectangle in fixed-point
// units, inclusive on all four sides. A freshly inverted rectangle carries
// min = +inf / max = -inf sentinels that the first inclusion replaces.
type RectInt2D struct {
	MinLon int32
	MaxLon int32
	MinLat int32
	MaxLat int32
}

// NewInvertedRect returns the empty sentinel rectangle.
func NewInvertedRect() RectInt2D {
	return RectInt2D{
		MinLon: math.MaxInt32,
		MaxLon: math.MinInt32,
		MinLat: math.MaxInt32,
		MaxLat: math.MinInt32,
	}
}

// Include grows the rectangle to cover the coordinate.
func (r *RectInt2D) Include(c coord.FixedPointCoordinate) {
	r.MinLon = min(r.MinLon, c.Lon)
	r.MaxLon = max(r.MaxLon, c.Lon)
	r.MinLat = min(r.MinLat, c.Lat)
	r.MaxLat = max(r.MaxLat, c.Lat)
}

// Union grows the rectangle to cover other.
func (r *RectInt2D) Union(other RectInt2D) {
	r.MinLon = min(r.MinLon, other.MinLon)
	r.MaxLon = max(r.MaxLon, other.MaxLon)
	r.MinLat = min(r.MinLat, other.MinLat)
	r.MaxLat = max(r.MaxLat, other.MaxLat)
}

// Contains reports whether the coordinate lies inside the closed rectangle.
func (r RectInt2D) Contains(c coord.FixedPointCoordinate) bool {
	return c.Lat >= r.MinLat && c.Lat <= r.MaxLat &&
		c.Lon >= r.MinLon && c.Lon <= r.MaxLon
}

// Intersects reports whether two closed rectangles overlap.
func (r RectInt2D) Intersects(other RectInt2D) bool {
	return r.MinLon <= other.MaxLon && other.MinLon <= r.MaxLon &&
		r.MinLat <= other.MaxLat && other.MinLat <= r.MaxLat
}

// Centroid returns the integer midpoint of the rectangle.
func (r RectInt2D) Centroid() coord.FixedPointCoordinate {
	return coord.FixedPointCoordinate{
		Lat: int32((int64(r.MinLat) + int64(r.MaxLat)) / 2),
		Lon: int32((int64(r.MinLon) + int64(r.MaxLon)) / 2),
	}
}

// MinDist returns the planar distance from the coordinate to the nearest
// point of the rectangle: zero when contained, otherwise the distance to the
// facing side or corner. It is a lower bound on the distance from c to any
// object inside a true MBR.
func (r RectInt2D) MinDist(c coord.FixedPointCoordinate) float64 {
	if r.Contains(c) {
		return 0
	}

	// Classify c against the eight outer Moore regions and measure to the
	// matching side projection or corner.
	var nearest coord.FixedPointCoordinate
	switch {
	case c.Lat > r.MaxLat && c.Lon > r.MaxLon: // north-east
		nearest = coord.FixedPointCoordinate{Lat: r.MaxLat, Lon: r.MaxLon}
	case c.Lat > r.MaxLat && c.Lon < r.MinLon: // north-west
		nearest = coord.FixedPointCoordinate{Lat: r.MaxLat, Lon: r.MinLon}
	case c.Lat < r.MinLat && c.Lon > r.MaxLon: // south-east
		nearest = coord.FixedPointCoordinate{Lat: r.MinLat, Lon: r.MaxLon}
	case c.Lat < r.MinLat && c.Lon < r.MinLon: // south-west
		nearest = coord.FixedPointCoordinate{Lat: r.MinLat, Lon: r.MinLon}
	case c.Lat > r.MaxLat: // north
		nearest = coord.FixedPointCoordinate{Lat: r.MaxLat, Lon: c.Lon}
	case c.Lat < r.MinLat: // south
		nearest = coord.FixedPointCoordinate{Lat: r.MinLat, Lon: c.Lon}
	case c.Lon > r.MaxLon: // east
		nearest = coord.FixedPointCoordinate{Lat: c.Lat, Lon: r.MaxLon}
	default: // west
		nearest = coord.FixedPointCoordinate{Lat: c.Lat, Lon: r.MinLon}
	}
	return coord.ApproxEuclideanDist(c, nearest)
}

// MinMaxDist returns the MINMAXDIST bound of Roussopoulos: the minimum over
// the four sides of the larger endpoint distance. For a true MBR this is an
// upper bound on the distance from c to the nearest object that must exist
// inside the rectangle.
func (r RectInt2D) MinMaxDist(c coord.FixedPointCoordinate) float64 {
	upperLeft := coord.FixedPointCoordinate{Lat: r.MaxLat, Lon: r.MinLon}
	upperRight := coord.FixedPointCoordinate{Lat: r.MaxLat, Lon: r.MaxLon}
	lowerRight := coord.FixedPointCoordinate{Lat: r.MinLat, Lon: r.MaxLon}
	lowerLeft := coord.FixedPointCoordinate{Lat: r.MinLat, Lon: r.MinLon}

	dUL := coord.ApproxEuclideanDist(c, upperLeft)
	dUR := coord.ApproxEuclideanDist(c, upperRight)
	dLR := coord.ApproxEuclideanDist(c, lowerRight)
	dLL := coord.ApproxEuclideanDist(c, lowerLeft)

	result := max(dUL, dUR)
	result = min(result, max(dUR, dLR))
	result = min(result, max(dLR, dLL))
	result = min(result, max(dLL, dUL))
	return result
}
