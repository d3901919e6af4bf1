// Package grid - Arranges detected tables into the fixed rows x cols seating grid.
package grid

import (
	"fmt"

	"github.com/nvr-ai/go-attendance/common"
)

// Coord addresses one seat. Both fields are 0-indexed.
type Coord struct {
	Row int
	Col int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Cell is either empty or holds the table detected at that seat.
//
// Cells are only built through EmptyCell and OccupiedCell and only read
// through Table, so a partial grid can never be mistaken for a full one.
type Cell struct {
	table    common.Detection
	occupied bool
}

// EmptyCell returns a cell with no table.
func EmptyCell() Cell {
	return Cell{}
}

// OccupiedCell returns a cell holding the given table.
func OccupiedCell(table common.Detection) Cell {
	return Cell{table: table, occupied: true}
}

// Table returns the table in the cell and whether there is one.
func (c Cell) Table() (common.Detection, bool) {
	return c.table, c.occupied
}

// IsEmpty reports whether the cell holds no table.
func (c Cell) IsEmpty() bool {
	return !c.occupied
}

// Grid is a fixed rows x cols container of cells for a single image.
//
// A nil *Grid is the "absent grid": no tables were detected. Every read method
// is safe to call on nil and behaves as a grid with no filled cells.
type Grid struct {
	rows  int
	cols  int
	cells []Cell
}

// newGrid allocates a grid with every cell empty.
func newGrid(rows, cols int) *Grid {
	return &Grid{
		rows:  rows,
		cols:  cols,
		cells: make([]Cell, rows*cols),
	}
}

// Rows returns the configured number of rows, 0 for an absent grid.
func (g *Grid) Rows() int {
	if g == nil {
		return 0
	}
	return g.rows
}

// Cols returns the configured number of columns, 0 for an absent grid.
func (g *Grid) Cols() int {
	if g == nil {
		return 0
	}
	return g.cols
}

// Capacity returns rows*cols.
func (g *Grid) Capacity() int {
	return g.Rows() * g.Cols()
}

// Absent reports whether the grid is the no-tables sentinel.
func (g *Grid) Absent() bool {
	return g == nil
}

// At returns the cell at (row, col). Out-of-range coordinates read as empty.
func (g *Grid) At(row, col int) Cell {
	if g == nil || row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return EmptyCell()
	}
	return g.cells[row*g.cols+col]
}

// Filled returns the number of cells holding a table.
func (g *Grid) Filled() int {
	n := 0
	g.Each(func(Coord, common.Detection) {
		n++
	})
	return n
}

// Each calls fn for every filled cell in row-major order.
func (g *Grid) Each(fn func(coord Coord, table common.Detection)) {
	if g == nil {
		return
	}
	for i, cell := range g.cells {
		if table, ok := cell.Table(); ok {
			fn(Coord{Row: i / g.cols, Col: i % g.cols}, table)
		}
	}
}

// CellView is the read-only per-cell information handed to visualization.
type CellView struct {
	Coord  Coord
	Center common.Point
	Filled bool
}

// Cells lists every cell in row-major order with its table center.
//
// Empty cells carry a zero center and Filled == false.
func (g *Grid) Cells() []CellView {
	if g == nil {
		return nil
	}
	views := make([]CellView, 0, len(g.cells))
	for i, cell := range g.cells {
		view := CellView{Coord: Coord{Row: i / g.cols, Col: i % g.cols}}
		if table, ok := cell.Table(); ok {
			view.Center = table.Center
			view.Filled = true
		}
		views = append(views, view)
	}
	return views
}

// set stores a table at a row-major index.
func (g *Grid) set(idx int, table common.Detection) {
	g.cells[idx] = OccupiedCell(table)
}
