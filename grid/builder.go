package grid

import (
	"sort"

	"github.com/nvr-ai/go-attendance/common"
	"github.com/pkg/errors"
)

// Config fixes the classroom layout before any image is processed.
type Config struct {
	// Rows is the number of seat rows, front of the room first.
	Rows int `json:"rows"`
	// Cols is the number of seats per row, left first.
	Cols int `json:"cols"`
	// RowBanding groups tables into rows by vertical gaps instead of a pure
	// sort. Off by default.
	RowBanding bool `json:"row_banding"`
	// BandTolerance is the vertical gap, as a fraction of the median table
	// height, above which two consecutive tables start a new row band.
	BandTolerance float32 `json:"band_tolerance"`
}

// DefaultConfig returns the 11x3 lecture room layout with pure-sort placement.
func DefaultConfig() Config {
	return Config{
		Rows:          11,
		Cols:          3,
		BandTolerance: 0.5,
	}
}

// Builder arranges an unordered set of table detections into a Grid.
type Builder struct {
	config Config
}

// NewBuilder creates a grid builder for a fixed layout.
//
// Arguments:
//   - config: The classroom layout.
//
// Returns:
//   - *Builder: The builder.
//   - error: An error if the layout has no seats.
func NewBuilder(config Config) (*Builder, error) {
	if config.Rows < 1 || config.Cols < 1 {
		return nil, errors.Errorf("grid must have at least one seat, got %dx%d", config.Rows, config.Cols)
	}
	if config.BandTolerance < 0 {
		return nil, errors.Errorf("band tolerance must not be negative, got %f", config.BandTolerance)
	}
	return &Builder{config: config}, nil
}

// Config returns the layout the builder was created with.
func (b *Builder) Config() Config {
	return b.config
}

// Build arranges tables into a fresh grid.
//
// Tables are sorted by center Y, then center X, and laid out row-major. When the
// count matches rows*cols every cell is filled; otherwise the grid starts empty
// and receives the first rows*cols tables, dropping any excess. The sort does
// not cluster: tables whose centers straddle a row boundary can land in the
// wrong row. Enable RowBanding to group rows by vertical gaps instead.
//
// Arguments:
//   - tables: The detected tables, in any order.
//
// Returns:
//   - *Grid: The grid, or nil when no tables were detected.
func (b *Builder) Build(tables []common.Detection) *Grid {
	if len(tables) == 0 {
		return nil
	}

	sorted := sortByPosition(tables)

	if b.config.RowBanding {
		return b.layoutBands(sorted)
	}

	g := newGrid(b.config.Rows, b.config.Cols)
	capacity := g.Capacity()

	if len(sorted) == capacity {
		for i, table := range sorted {
			g.set(i, table)
		}
		return g
	}

	// Partial layout: fewer tables leave trailing cells empty, more tables
	// are truncated to the grid size.
	for i, table := range sorted {
		if i >= capacity {
			break
		}
		g.set(i, table)
	}
	return g
}

// sortByPosition returns a copy of tables ordered top-to-bottom, then left-to-right.
func sortByPosition(tables []common.Detection) []common.Detection {
	sorted := make([]common.Detection, len(tables))
	copy(sorted, tables)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Center.Y != sorted[j].Center.Y {
			return sorted[i].Center.Y < sorted[j].Center.Y
		}
		return sorted[i].Center.X < sorted[j].Center.X
	})
	return sorted
}

// layoutBands splits Y-sorted tables into horizontal bands and gives each band
// its own row. Bands beyond Rows and tables beyond Cols within a band are dropped.
func (b *Builder) layoutBands(sorted []common.Detection) *Grid {
	g := newGrid(b.config.Rows, b.config.Cols)
	tolerance := b.config.BandTolerance * medianHeight(sorted)

	var bands [][]common.Detection
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].Center.Y-sorted[i-1].Center.Y > tolerance {
			bands = append(bands, sorted[start:i])
			start = i
		}
	}

	for row, band := range bands {
		if row >= b.config.Rows {
			break
		}
		ordered := make([]common.Detection, len(band))
		copy(ordered, band)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Center.X < ordered[j].Center.X
		})
		for col, table := range ordered {
			if col >= b.config.Cols {
				break
			}
			g.set(row*b.config.Cols+col, table)
		}
	}

	return g
}

// medianHeight returns the median bounding box height of the tables.
func medianHeight(tables []common.Detection) float32 {
	heights := make([]float32, len(tables))
	for i, t := range tables {
		heights[i] = t.Box.Height()
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	n := len(heights)
	if n%2 == 0 {
		return (heights[n/2-1] + heights[n/2]) / 2
	}
	return heights[n/2]
}
