package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBoundingBox_Canonical(t *testing.T) {
	box := NewBoundingBox(200, 300, 100, 100)

	assert.Equal(t, BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 300}, box)
	assert.Equal(t, float32(100), box.Width())
	assert.Equal(t, float32(200), box.Height())
	assert.Equal(t, float32(20000), box.Area())
}

func TestNewDetection_Center(t *testing.T) {
	d := NewDetection(LabelTable, 0.9, NewBoundingBox(10, 20, 30, 60))

	assert.Equal(t, Point{X: 20, Y: 40}, d.Center)
	assert.Equal(t, LabelTable, d.Label)
	assert.Equal(t, float32(0.9), d.Confidence)
}

func TestPoint_Distance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Point
		expected float32
	}{
		{"same point", Point{5, 5}, Point{5, 5}, 0},
		{"3-4-5 triangle", Point{0, 0}, Point{3, 4}, 5},
		{"negative coordinates", Point{-3, -4}, Point{0, 0}, 5},
		{"diagonal of grid", Point{0, 0}, Point{100, 100}, 141.42136},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.a.Distance(tt.b), 0.001)
			assert.InDelta(t, tt.expected, tt.b.Distance(tt.a), 0.001)
		})
	}
}

func TestBoundingBox_IoU(t *testing.T) {
	tests := []struct {
		name     string
		r1, r2   BoundingBox
		expected float32
	}{
		{"identical", BoundingBox{0, 0, 100, 100}, BoundingBox{0, 0, 100, 100}, 1.0},
		{"no overlap", BoundingBox{0, 0, 100, 100}, BoundingBox{200, 200, 300, 300}, 0.0},
		{"touching edges", BoundingBox{0, 0, 100, 100}, BoundingBox{100, 0, 200, 100}, 0.0},
		{"half overlap", BoundingBox{0, 0, 100, 100}, BoundingBox{50, 50, 150, 150}, 0.142857},
		{"one inside other", BoundingBox{0, 0, 100, 100}, BoundingBox{25, 25, 75, 75}, 0.25},
		{"zero area", BoundingBox{0, 0, 0, 0}, BoundingBox{0, 0, 0, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.r1.IoU(tt.r2), 0.001)
			assert.InDelta(t, tt.expected, tt.r2.IoU(tt.r1), 0.001, "IoU should be symmetric")
		})
	}
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		label Label
		ok    bool
	}{
		{"person", "person", LabelPerson, true},
		{"table", "table", LabelTable, true},
		{"coco dining table", "dining table", LabelTable, true},
		{"mixed case", " Person ", LabelPerson, true},
		{"irrelevant class", "chair", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, ok := ParseLabel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.label, label)
		})
	}
}

func TestSplit(t *testing.T) {
	p1 := NewDetection(LabelPerson, 0.9, NewBoundingBox(0, 0, 10, 10))
	t1 := NewDetection(LabelTable, 0.8, NewBoundingBox(0, 0, 20, 20))
	p2 := NewDetection(LabelPerson, 0.7, NewBoundingBox(5, 5, 15, 15))
	other := NewDetection(Label("chair"), 0.9, NewBoundingBox(0, 0, 1, 1))

	persons, tables := Split([]Detection{p1, t1, other, p2})

	assert.Equal(t, []Detection{p1, p2}, persons)
	assert.Equal(t, []Detection{t1}, tables)
}
