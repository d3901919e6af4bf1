package common

import (
	"fmt"
	"strings"
)

// Label is the class of a detection relevant to attendance.
type Label string

const (
	// LabelPerson marks a detected student.
	LabelPerson Label = "person"
	// LabelTable marks a detected desk or table, one per seat.
	LabelTable Label = "table"
)

// labelAliases maps detector class names onto the attendance vocabulary.
// Stock COCO models call tables "dining table".
var labelAliases = map[string]Label{
	"person":       LabelPerson,
	"table":        LabelTable,
	"dining table": LabelTable,
	"desk":         LabelTable,
}

// ParseLabel maps a detector class name onto a Label.
//
// Returns false for classes that play no part in attendance.
func ParseLabel(name string) (Label, bool) {
	label, ok := labelAliases[strings.ToLower(strings.TrimSpace(name))]
	return label, ok
}

// Detection is a single recognized object: box, confidence, label and center.
//
// Detections are values. The center is derived once by NewDetection and is
// never recomputed, so a Detection should not be built by hand.
type Detection struct {
	Box        BoundingBox
	Confidence float32
	Label      Label
	Center     Point
}

// NewDetection creates a detection and derives its center from the box.
func NewDetection(label Label, confidence float32, box BoundingBox) Detection {
	return Detection{
		Box:        box,
		Confidence: confidence,
		Label:      label,
		Center:     box.Center(),
	}
}

func (d Detection) String() string {
	return fmt.Sprintf("Object %s (confidence %f): (%f, %f), (%f, %f)",
		d.Label, d.Confidence, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
}

// Split partitions detections into persons and tables, dropping other labels.
//
// The order of each returned slice follows the input order.
func Split(detections []Detection) (persons, tables []Detection) {
	for _, d := range detections {
		switch d.Label {
		case LabelPerson:
			persons = append(persons, d)
		case LabelTable:
			tables = append(tables, d)
		}
	}
	return persons, tables
}
