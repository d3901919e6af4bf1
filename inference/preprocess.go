package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// InputSize is the square side, in pixels, the YOLO model is exported with.
const InputSize = 640

// PrepareInput resizes img to InputSize x InputSize and writes it to dst as
// planar RGB floats in [0, 1].
//
// Arguments:
//   - img: The image to prepare.
//   - dst: The input tensor backing, at least 3 * InputSize * InputSize long.
//
// Returns:
//   - error: An error if dst is too small.
func PrepareInput(img image.Image, dst []float32) error {
	channelSize := InputSize * InputSize
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	img = resize.Resize(InputSize, InputSize, img, resize.Lanczos3)
	bounds := img.Bounds()

	i := 0
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}
