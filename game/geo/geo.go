// Package geo converts between geographic coordinates and grid cells.
//
// All functions are pure. The grid is laid over a BoundingBox with row 0 at
// the north edge and column 0 at the west edge; cells are addressed
// row-major (index = row*gridWidth + col).
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the equirectangular
// approximation.
const EarthRadiusMeters = 6_371_000

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox is a geographic rectangle in degrees.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Valid reports whether the box has finite edges with North > South and East > West.
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.North, b.South, b.East, b.West} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.North > b.South && b.East > b.West
}

// Contains reports whether p lies inside the box, edges included.
func (b BoundingBox) Contains(p LatLng) bool {
	return p.Lat <= b.North && p.Lat >= b.South && p.Lng <= b.East && p.Lng >= b.West
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() LatLng {
	return LatLng{
		Lat: (b.North + b.South) / 2,
		Lng: (b.East + b.West) / 2,
	}
}

// BoundingBoxFor returns a square region of sizeMeters on each side centered
// on center. The longitude half-width is corrected by cos(latitude).
func BoundingBoxFor(center LatLng, sizeMeters float64) BoundingBox {
	half := sizeMeters / 2
	latOffset := (half / EarthRadiusMeters) * (180 / math.Pi)
	lngOffset := (half / (EarthRadiusMeters * math.Cos(math.Pi*center.Lat/180))) * (180 / math.Pi)

	return BoundingBox{
		North: center.Lat + latOffset,
		South: center.Lat - latOffset,
		East:  center.Lng + lngOffset,
		West:  center.Lng - lngOffset,
	}
}

// GridIndexFor maps a point to its row-major cell index. The second return
// value is false when the grid has no cells, the box is degenerate, or the
// point lies strictly outside the box. Points on an edge are inside; the
// floor result is clamped so the south and east edges land in the last
// row and column.
func GridIndexFor(p LatLng, bbox BoundingBox, gridWidth, gridHeight int) (int, bool) {
	if gridWidth <= 0 || gridHeight <= 0 {
		return 0, false
	}
	if !bbox.Contains(p) {
		return 0, false
	}

	latRange := bbox.North - bbox.South
	lngRange := bbox.East - bbox.West
	if latRange <= 0 || lngRange <= 0 {
		return 0, false
	}

	rowFraction := (bbox.North - p.Lat) / latRange
	colFraction := (p.Lng - bbox.West) / lngRange

	row := clamp(int(math.Floor(rowFraction*float64(gridHeight))), 0, gridHeight-1)
	col := clamp(int(math.Floor(colFraction*float64(gridWidth))), 0, gridWidth-1)

	return row*gridWidth + col, true
}

// CellBoundsFor returns the rectangle covered by the cell at (row, col).
func CellBoundsFor(row, col int, bbox BoundingBox, gridWidth, gridHeight int) BoundingBox {
	latStep := (bbox.North - bbox.South) / float64(gridHeight)
	lngStep := (bbox.East - bbox.West) / float64(gridWidth)

	north := bbox.North - float64(row)*latStep
	west := bbox.West + float64(col)*lngStep

	return BoundingBox{
		North: north,
		South: north - latStep,
		East:  west + lngStep,
		West:  west,
	}
}

// RowCol splits a row-major index into its row and column.
func RowCol(index, gridWidth int) (row, col int) {
	return index / gridWidth, index % gridWidth
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
