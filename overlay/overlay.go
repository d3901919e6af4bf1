// Package overlay - Draws detections and seat attendance onto classroom photos.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/nvr-ai/go-attendance/common"
	"github.com/nvr-ai/go-attendance/occupancy"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ColorPerson outlines persons.
	ColorPerson = color.RGBA{0, 255, 0, 255}
	// ColorTable outlines tables.
	ColorTable = color.RGBA{0, 0, 255, 255}
	// ColorPresent labels occupied seats.
	ColorPresent = color.RGBA{0, 255, 0, 255}
	// ColorAbsent labels empty seats.
	ColorAbsent = color.RGBA{255, 0, 0, 255}
)

// Box is an outlined detection with its caption.
type Box struct {
	Rect    image.Rectangle
	Caption string
	Color   color.RGBA
}

// Text is a caption anchored at a point.
type Text struct {
	Origin image.Point
	Text   string
	Color  color.RGBA
}

// Annotations is everything drawn onto one image.
type Annotations struct {
	Boxes []Box
	Texts []Text
}

// Annotate lays out the boxes of persons and tables and the status of each
// filled seat.
//
// Arguments:
//   - persons: The detected persons.
//   - tables: The detected tables.
//   - seats: The filled seats with their attendance.
//
// Returns:
//   - Annotations: What to draw, in drawing order.
func Annotate(persons, tables []common.Detection, seats []occupancy.Seat) Annotations {
	var a Annotations
	for _, p := range persons {
		a.Boxes = append(a.Boxes, box(p, "Person", ColorPerson))
	}
	for _, t := range tables {
		a.Boxes = append(a.Boxes, box(t, "Table", ColorTable))
	}
	for _, s := range seats {
		c := ColorAbsent
		if s.Status == occupancy.StatusPresent {
			c = ColorPresent
		}
		origin := s.Center.ImagePoint()
		a.Texts = append(a.Texts, Text{
			Origin: image.Pt(origin.X-50, origin.Y),
			Text:   fmt.Sprintf("(%d,%d): %s", s.Coord.Row, s.Coord.Col, s.Status),
			Color:  c,
		})
	}
	return a
}

func box(d common.Detection, name string, c color.RGBA) Box {
	return Box{
		Rect:    d.Box.ToRect(),
		Caption: fmt.Sprintf("%s %.2f", name, d.Confidence),
		Color:   c,
	}
}

// Draw renders the annotations onto mat.
func Draw(mat *gocv.Mat, a Annotations) {
	for _, b := range a.Boxes {
		gocv.Rectangle(mat, b.Rect, b.Color, 2)
		gocv.PutText(mat, b.Caption, image.Pt(b.Rect.Min.X, b.Rect.Min.Y-10), gocv.FontHersheySimplex, 0.5, b.Color, 2)
	}
	for _, t := range a.Texts {
		gocv.PutText(mat, t.Text, t.Origin, gocv.FontHersheySimplex, 0.5, t.Color, 2)
	}
}

// OutputPath returns where the annotated copy of imagePath is written.
func OutputPath(outputDir, imagePath string) string {
	return filepath.Join(outputDir, "annotated_"+filepath.Base(imagePath))
}

// Save draws the annotations onto img and writes it to path.
//
// Arguments:
//   - path: The output file; its extension selects the encoding.
//   - img: The original photo.
//   - a: The annotations.
//
// Returns:
//   - error: An error if the image cannot be converted or written.
func Save(path string, img image.Image, a Annotations) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "failed to convert image")
	}
	defer mat.Close()

	Draw(&mat, a)

	if !gocv.IMWrite(path, mat) {
		return errors.Errorf("failed to write annotated image %s", path)
	}
	return nil
}
