// grid/grid.go
package grid

import (
	"errors"
)

// Empty marks a cell with no chip.
const Empty = -1

var (
	ErrColumnFull    = errors.New("column is full")
	ErrColumnInvalid = errors.New("column out of range")
)

// Grid is a fixed width x height board. Row 0 is the top row; chips fall
// towards row Height-1.
type Grid struct {
	width  int
	height int
	cells  []int
}

// New returns an all-empty grid.
func New(width, height int) *Grid {
	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]int, width*height),
	}
	for i := range g.cells {
		g.cells[i] = Empty
	}
	return g
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// InBounds reports whether (row, column) lies on the board.
func (g *Grid) InBounds(row, column int) bool {
	return row >= 0 && row < g.height && column >= 0 && column < g.width
}

// At returns the value of a cell. Out-of-bounds cells read as Empty.
func (g *Grid) At(row, column int) int {
	if !g.InBounds(row, column) {
		return Empty
	}
	return g.cells[row*g.width+column]
}

// Set writes a cell. Only derived copies should ever be cleared back to
// Empty; the live grid is append-only.
func (g *Grid) Set(row, column, value int) {
	g.cells[row*g.width+column] = value
}

// ColumnIsFull reports whether the top cell of the column is taken.
func (g *Grid) ColumnIsFull(column int) bool {
	return g.At(0, column) != Empty
}

// Drop places player's chip in the lowest empty row of column and returns
// that row.
func (g *Grid) Drop(column, player int) (int, error) {
	if column < 0 || column >= g.width {
		return -1, ErrColumnInvalid
	}
	for row := g.height - 1; row >= 0; row-- {
		if g.At(row, column) == Empty {
			g.Set(row, column, player)
			return row, nil
		}
	}
	return -1, ErrColumnFull
}

// directions are the four undirected lines through a cell, as (dy, dx).
var directions = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// CheckWin reports whether player has length chips in a row on a line
// through (row, column). Every direction is scanned over the signed offset
// window [-(length-1), length-1] around the anchor, so runs that end on the
// anchor and runs that start on it are both found.
func (g *Grid) CheckWin(row, column, player, length int) bool {
	var runs [4]int
	for offset := -length + 1; offset < length; offset++ {
		for i, d := range directions {
			r, c := row+d[0]*offset, column+d[1]*offset
			if g.InBounds(r, c) && g.At(r, c) == player {
				runs[i]++
				if runs[i] == length {
					return true
				}
				continue
			}
			runs[i] = 0
		}
	}
	return false
}

// Clone returns an independent copy.
func (g *Grid) Clone() *Grid {
	cells := make([]int, len(g.cells))
	copy(cells, g.cells)
	return &Grid{width: g.width, height: g.height, cells: cells}
}

// Rows returns the board as a fresh row-major matrix.
func (g *Grid) Rows() [][]int {
	rows := make([][]int, g.height)
	for r := range rows {
		rows[r] = make([]int, g.width)
		copy(rows[r], g.cells[r*g.width:(r+1)*g.width])
	}
	return rows
}

// Equal reports whether two grids have the same shape and contents.
func (g *Grid) Equal(other *Grid) bool {
	if g.width != other.width || g.height != other.height {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}
