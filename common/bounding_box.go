// Package common - Detection records shared by the grid, assignment and occupancy stages.
package common

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Point is a position in image pixel coordinates.
type Point struct {
	X, Y float32
}

// Distance returns the Euclidean distance between two points in pixels.
//
// Arguments:
// - other: The point to measure the distance to.
//
// Returns:
// - The straight-line distance, no unit conversion applied.
//
// @example
// a := Point{X: 0, Y: 0}
// b := Point{X: 3, Y: 4}
// d := a.Distance(b) // Returns 5.0
func (p Point) Distance(other Point) float32 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math32.Sqrt(dx*dx + dy*dy)
}

// ImagePoint truncates the point to integral pixel coordinates for drawing.
func (p Point) ImagePoint() image.Point {
	return image.Pt(int(p.X), int(p.Y))
}

func (p Point) String() string {
	return fmt.Sprintf("(%.1f, %.1f)", p.X, p.Y)
}

// BoundingBox is an axis-aligned box with X1 <= X2 and Y1 <= Y2.
type BoundingBox struct {
	X1, Y1, X2, Y2 float32
}

// NewBoundingBox builds a box from two corners, swapping coordinates so the
// top-left corner always comes first.
//
// Arguments:
// - x1, y1: The first corner.
// - x2, y2: The opposite corner.
//
// Returns:
// - A canonical BoundingBox.
//
// @example
// box := NewBoundingBox(200, 300, 100, 100)
// fmt.Println(box.X1, box.Y1) // 100 100
func NewBoundingBox(x1, y1, x2, y2 float32) BoundingBox {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Area returns the area of the box in square pixels.
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// This loses fractional pixels around the edges, which is fine for drawing.
func (b BoundingBox) ToRect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2)).Canon()
}

// Intersection calculates the overlapping area between two boxes.
//
// Arguments:
// - other: The other bounding box.
//
// Returns:
// - The area of intersection, zero when the boxes do not overlap.
//
// @example
// box1 := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100}
// box2 := BoundingBox{X1: 50, Y1: 50, X2: 150, Y2: 150}
// area := box1.Intersection(box2) // Returns 2500.0
func (b BoundingBox) Intersection(other BoundingBox) float32 {
	w := math32.Min(b.X2, other.X2) - math32.Max(b.X1, other.X1)
	h := math32.Min(b.Y2, other.Y2) - math32.Max(b.Y1, other.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU calculates the Intersection over Union between two boxes.
//
// Used by Non-Maximum Suppression to drop duplicate detections of one object.
//
// Arguments:
// - other: The other bounding box.
//
// Returns:
// - The IoU value between 0 and 1.
//
// @example
// box1 := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100}
// box2 := BoundingBox{X1: 50, Y1: 50, X2: 150, Y2: 150}
// iou := box1.IoU(box2) // Returns ~0.143 (2500/17500)
func (b BoundingBox) IoU(other BoundingBox) float32 {
	inter := b.Intersection(other)
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
