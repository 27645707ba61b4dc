package engine

import "github.com/wricardo/citycurrent/game/tiles"

// Grid is a row-major sequence of cells. Its length never changes after
// creation.
type Grid []Cell

// NewGrid allocates width*height empty cells.
func NewGrid(width, height int) Grid {
	if width <= 0 || height <= 0 {
		return Grid{}
	}
	return make(Grid, width*height)
}

// CellIndex returns the row-major index of (row, col).
func CellIndex(row, col, gridWidth int) int {
	return row*gridWidth + col
}

// InBounds reports whether index addresses a cell.
func (g Grid) InBounds(index int) bool {
	return index >= 0 && index < len(g)
}

// Clone returns a copy that shares no memory with g.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	copy(out, g)
	return out
}

// Occupied returns the number of cells holding a tile.
func (g Grid) Occupied() int {
	n := 0
	for _, c := range g {
		if !c.Empty() {
			n++
		}
	}
	return n
}

// CountByKind tallies placed tiles per kind, unknown kinds included.
func (g Grid) CountByKind() map[tiles.Kind]int {
	counts := make(map[tiles.Kind]int)
	for _, c := range g {
		if !c.Empty() {
			counts[c.Tile]++
		}
	}
	return counts
}
