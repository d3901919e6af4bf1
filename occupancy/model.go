// Package occupancy - Turns seat assignments into an attendance matrix and report.
package occupancy

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-attendance/assign"
	"github.com/nvr-ai/go-attendance/common"
	"github.com/nvr-ai/go-attendance/grid"
	"github.com/pkg/errors"
)

// Status is the attendance state of one seat.
type Status string

const (
	// StatusPresent means a person was assigned to the seat.
	StatusPresent Status = "Present"
	// StatusAbsent means nobody was assigned to the seat.
	StatusAbsent Status = "Absent"
)

// Matrix is rows x cols of 0 (absent) or 1 (present).
type Matrix [][]int

// Report summarizes one attendance matrix. Every count derives from Matrix.
type Report struct {
	Matrix     Matrix  `json:"matrix"`
	TotalSeats int     `json:"total_seats"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
}

// Model holds the attendance of the last processed image.
//
// A Model belongs to a single pipeline run. Use one per image when processing
// images concurrently.
type Model struct {
	rows        int
	cols        int
	matrix      Matrix
	assignments assign.Assignments
	set         bool
}

// NewModel creates an all-absent model for a rows x cols classroom.
//
// Arguments:
//   - rows: Number of seat rows.
//   - cols: Number of seats per row.
//
// Returns:
//   - *Model: The model in the unset state.
//   - error: An error if the classroom has no seats.
func NewModel(rows, cols int) (*Model, error) {
	if rows < 1 || cols < 1 {
		return nil, errors.Errorf("classroom must have at least one seat, got %dx%d", rows, cols)
	}
	return &Model{
		rows:   rows,
		cols:   cols,
		matrix: newMatrix(rows, cols),
	}, nil
}

func newMatrix(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for r := range m {
		m[r] = make([]int, cols)
	}
	return m
}

// Update recomputes the matrix from scratch.
//
// Every seat starts absent; each in-range key of assignments becomes present.
// Out-of-range keys are ignored.
//
// Arguments:
//   - assignments: Seat to person, typically from assign.Engine.
//
// Returns:
//   - Matrix: A copy of the new matrix.
//   - Report: The summary of the new matrix.
func (m *Model) Update(assignments assign.Assignments) (Matrix, Report) {
	m.matrix = newMatrix(m.rows, m.cols)
	kept := make(assign.Assignments, len(assignments))
	for coord, person := range assignments {
		if !m.inRange(coord) {
			continue
		}
		m.matrix[coord.Row][coord.Col] = 1
		kept[coord] = person
	}
	m.assignments = kept
	m.set = true

	report := m.Report()
	return report.Matrix, report
}

// IsSet reports whether Update has been called.
func (m *Model) IsSet() bool {
	return m.set
}

// Assignments returns the in-range assignments of the last update.
func (m *Model) Assignments() assign.Assignments {
	out := make(assign.Assignments, len(m.assignments))
	for k, v := range m.assignments {
		out[k] = v
	}
	return out
}

// Matrix returns a copy of the current matrix.
func (m *Model) Matrix() Matrix {
	out := make(Matrix, len(m.matrix))
	for r, row := range m.matrix {
		out[r] = append([]int(nil), row...)
	}
	return out
}

// Status returns the status of a seat. Out-of-range seats are absent.
func (m *Model) Status(coord grid.Coord) Status {
	if m.inRange(coord) && m.matrix[coord.Row][coord.Col] == 1 {
		return StatusPresent
	}
	return StatusAbsent
}

// Report derives the summary from the current matrix.
func (m *Model) Report() Report {
	total := m.rows * m.cols
	present := 0
	for _, row := range m.matrix {
		for _, v := range row {
			present += v
		}
	}
	return Report{
		Matrix:     m.Matrix(),
		TotalSeats: total,
		Present:    present,
		Absent:     total - present,
		Percentage: float64(present) / float64(total) * 100,
	}
}

func (m *Model) inRange(coord grid.Coord) bool {
	return coord.Row >= 0 && coord.Row < m.rows && coord.Col >= 0 && coord.Col < m.cols
}

// Rows returns the flat row-per-seat form: a Row, Column, Status header then
// one line per seat in row-major order.
func (m *Model) Rows() [][]string {
	out := make([][]string, 0, m.rows*m.cols+1)
	out = append(out, []string{"Row", "Column", "Status"})
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			out = append(out, []string{
				strconv.Itoa(r),
				strconv.Itoa(c),
				string(m.Status(grid.Coord{Row: r, Col: c})),
			})
		}
	}
	return out
}

// Seat is a filled grid cell with its attendance, for drawing overlays.
type Seat struct {
	Coord  grid.Coord
	Center common.Point
	Status Status
}

// Seats lists the filled cells of g with their status. An absent grid has none.
func (m *Model) Seats(g *grid.Grid) []Seat {
	var seats []Seat
	for _, cell := range g.Cells() {
		if !cell.Filled {
			continue
		}
		seats = append(seats, Seat{
			Coord:  cell.Coord,
			Center: cell.Center,
			Status: m.Status(cell.Coord),
		})
	}
	return seats
}

// Render writes the bordered P/A matrix followed by the summary.
func (m *Model) Render(w io.Writer) error {
	border := "+" + strings.Repeat("---+", m.cols)
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString("ATTENDANCE REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString("\nAttendance Matrix:\n")
	b.WriteString(border + "\n")
	for r := 0; r < m.rows; r++ {
		b.WriteString("|")
		for c := 0; c < m.cols; c++ {
			mark := "A"
			if m.matrix[r][c] == 1 {
				mark = "P"
			}
			b.WriteString(" " + mark + " |")
		}
		b.WriteString("\n" + border + "\n")
	}

	report := m.Report()
	fmt.Fprintf(&b, "\nSummary:\n")
	fmt.Fprintf(&b, "Present: %d\n", report.Present)
	fmt.Fprintf(&b, "Absent: %d\n", report.Absent)
	fmt.Fprintf(&b, "Total Seats: %d\n", report.TotalSeats)
	fmt.Fprintf(&b, "Attendance: %.1f%%\n", report.Percentage)
	b.WriteString(strings.Repeat("=", 50) + "\n")

	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "failed to write attendance report")
}
