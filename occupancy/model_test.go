package occupancy

import (
	"bytes"
	"testing"

	"github.com/nvr-ai/go-attendance/assign"
	"github.com/nvr-ai/go-attendance/common"
	"github.com/nvr-ai/go-attendance/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func person(x, y float32) common.Detection {
	return common.NewDetection(common.LabelPerson, 0.8, common.NewBoundingBox(x-5, y-5, x+5, y+5))
}

func newTestModel(t *testing.T, rows, cols int) *Model {
	t.Helper()
	m, err := NewModel(rows, cols)
	require.NoError(t, err)
	return m
}

func TestNewModel_Invalid(t *testing.T) {
	_, err := NewModel(0, 3)
	assert.Error(t, err)
	_, err = NewModel(3, -1)
	assert.Error(t, err)
}

func TestModel_UnsetReportsAllAbsent(t *testing.T) {
	m := newTestModel(t, 11, 3)

	assert.False(t, m.IsSet())
	report := m.Report()

	assert.Equal(t, 33, report.TotalSeats)
	assert.Equal(t, 0, report.Present)
	assert.Equal(t, 33, report.Absent)
	assert.Equal(t, 0.0, report.Percentage)
	require.Len(t, report.Matrix, 11)
	for _, row := range report.Matrix {
		assert.Equal(t, []int{0, 0, 0}, row)
	}
}

func TestModel_Update(t *testing.T) {
	m := newTestModel(t, 2, 3)

	matrix, report := m.Update(assign.Assignments{
		{Row: 0, Col: 0}: person(0, 0),
		{Row: 1, Col: 2}: person(10, 10),
	})

	assert.True(t, m.IsSet())
	assert.Equal(t, Matrix{{1, 0, 0}, {0, 0, 1}}, matrix)
	assert.Equal(t, matrix, report.Matrix)
	assert.Equal(t, 6, report.TotalSeats)
	assert.Equal(t, 2, report.Present)
	assert.Equal(t, 4, report.Absent)
	assert.InDelta(t, 33.333, report.Percentage, 0.001)
}

func TestModel_UpdateIgnoresOutOfRange(t *testing.T) {
	m := newTestModel(t, 2, 2)

	matrix, report := m.Update(assign.Assignments{
		{Row: -1, Col: 0}: person(0, 0),
		{Row: 0, Col: 2}:  person(0, 0),
		{Row: 2, Col: 0}:  person(0, 0),
		{Row: 1, Col: 1}:  person(0, 0),
	})

	assert.Equal(t, Matrix{{0, 0}, {0, 1}}, matrix)
	assert.Equal(t, 1, report.Present)
	assert.Len(t, m.Assignments(), 1)
}

func TestModel_UpdateReplacesPreviousState(t *testing.T) {
	m := newTestModel(t, 2, 2)

	m.Update(assign.Assignments{{Row: 0, Col: 0}: person(0, 0), {Row: 0, Col: 1}: person(1, 1)})
	matrix, report := m.Update(assign.Assignments{{Row: 1, Col: 0}: person(0, 0)})

	assert.Equal(t, Matrix{{0, 0}, {1, 0}}, matrix)
	assert.Equal(t, 1, report.Present)

	matrix, report = m.Update(assign.Assignments{})
	assert.Equal(t, Matrix{{0, 0}, {0, 0}}, matrix)
	assert.Equal(t, 0, report.Present)
	assert.Equal(t, 0.0, report.Percentage)
}

func TestModel_UpdateIsIdempotent(t *testing.T) {
	m := newTestModel(t, 3, 3)
	assignments := assign.Assignments{
		{Row: 0, Col: 1}: person(0, 0),
		{Row: 2, Col: 2}: person(5, 5),
	}

	m1, r1 := m.Update(assignments)
	m2, r2 := m.Update(assignments)

	assert.Equal(t, m1, m2)
	assert.Equal(t, r1, r2)
}

func TestModel_ReportInvariants(t *testing.T) {
	tests := []struct {
		name        string
		rows, cols  int
		assignments assign.Assignments
	}{
		{"empty", 11, 3, assign.Assignments{}},
		{"one seat full", 1, 1, assign.Assignments{{Row: 0, Col: 0}: person(0, 0)}},
		{"partial", 4, 5, assign.Assignments{{Row: 0, Col: 0}: person(0, 0), {Row: 3, Col: 4}: person(0, 0), {Row: 2, Col: 1}: person(0, 0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, tt.rows, tt.cols)
			_, report := m.Update(tt.assignments)

			assert.Equal(t, report.TotalSeats, report.Present+report.Absent)
			assert.InDelta(t, 100*float64(report.Present)/float64(report.TotalSeats), report.Percentage, 1e-9)
		})
	}
}

func TestModel_MatrixIsACopy(t *testing.T) {
	m := newTestModel(t, 1, 2)
	matrix, _ := m.Update(assign.Assignments{{Row: 0, Col: 0}: person(0, 0)})

	matrix[0][1] = 1

	assert.Equal(t, 1, m.Report().Present)
}

func TestModel_Rows(t *testing.T) {
	m := newTestModel(t, 2, 2)
	m.Update(assign.Assignments{{Row: 0, Col: 1}: person(0, 0)})

	assert.Equal(t, [][]string{
		{"Row", "Column", "Status"},
		{"0", "0", "Absent"},
		{"0", "1", "Present"},
		{"1", "0", "Absent"},
		{"1", "1", "Absent"},
	}, m.Rows())
}

func TestModel_Seats(t *testing.T) {
	b, err := grid.NewBuilder(grid.Config{Rows: 2, Cols: 2})
	require.NoError(t, err)
	table := func(x, y float32) common.Detection {
		return common.NewDetection(common.LabelTable, 0.9, common.NewBoundingBox(x-10, y-10, x+10, y+10))
	}
	g := b.Build([]common.Detection{table(0, 0), table(100, 0), table(0, 100)})

	m := newTestModel(t, 2, 2)
	m.Update(assign.Assignments{{Row: 0, Col: 1}: person(100, 0)})

	assert.Equal(t, []Seat{
		{Coord: grid.Coord{Row: 0, Col: 0}, Center: common.Point{X: 0, Y: 0}, Status: StatusAbsent},
		{Coord: grid.Coord{Row: 0, Col: 1}, Center: common.Point{X: 100, Y: 0}, Status: StatusPresent},
		{Coord: grid.Coord{Row: 1, Col: 0}, Center: common.Point{X: 0, Y: 100}, Status: StatusAbsent},
	}, m.Seats(g))

	assert.Empty(t, m.Seats(nil))
}

func TestModel_Render(t *testing.T) {
	m := newTestModel(t, 2, 2)
	m.Update(assign.Assignments{{Row: 0, Col: 0}: person(0, 0)})

	var buf bytes.Buffer
	require.NoError(t, m.Render(&buf))

	out := buf.String()
	assert.Contains(t, out, "ATTENDANCE REPORT")
	assert.Contains(t, out, "+---+---+\n| P | A |\n+---+---+\n| A | A |\n+---+---+")
	assert.Contains(t, out, "Present: 1\n")
	assert.Contains(t, out, "Absent: 3\n")
	assert.Contains(t, out, "Total Seats: 4\n")
	assert.Contains(t, out, "Attendance: 25.0%\n")
}
