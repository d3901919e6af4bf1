package inference

import (
	"context"
	"image"

	"github.com/nvr-ai/go-attendance/common"
	"github.com/nvr-ai/go-attendance/util"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrModelNotLoaded is returned when a closed detector is used.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrUnsupportedImage is returned for files that are not a readable image.
	ErrUnsupportedImage = errors.New("unsupported image")
)

// Detector finds persons and tables in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]common.Detection, error)
	Close() error
}

// Config configures an ONNXDetector.
type Config struct {
	ModelPath           string
	LibraryPath         string
	Provider            Provider
	Classes             []string
	ConfidenceThreshold float32
	NMSThreshold        float32
}

// ONNXDetector runs a YOLOv8 ONNX export on ONNX Runtime.
type ONNXDetector struct {
	session *Session
	config  Config
}

// NewONNXDetector loads the model described by config.
//
// Arguments:
//   - config: The model, runtime and thresholds. Empty Classes means COCOClasses.
//
// Returns:
//   - *ONNXDetector: The detector, to be released with Close.
//   - error: An error if the session cannot be created.
func NewONNXDetector(config Config) (*ONNXDetector, error) {
	config.Classes = classesOrDefault(config.Classes)
	session, err := NewSession(SessionConfig{
		ModelPath:   config.ModelPath,
		LibraryPath: config.LibraryPath,
		Provider:    config.Provider,
		NumClasses:  len(config.Classes),
	})
	if err != nil {
		return nil, err
	}
	return &ONNXDetector{session: session, config: config}, nil
}

// Detect runs the model on img and returns persons and tables in image pixels.
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image) ([]common.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, err := d.session.Run(func(input []float32) error {
		return PrepareInput(img, input)
	})
	if err != nil {
		return nil, err
	}

	return Decode(output, DecodeConfig{
		Classes:             d.config.Classes,
		ImageWidth:          img.Bounds().Dx(),
		ImageHeight:         img.Bounds().Dy(),
		ConfidenceThreshold: d.config.ConfidenceThreshold,
		NMSThreshold:        d.config.NMSThreshold,
	})
}

// Close releases the model.
func (d *ONNXDetector) Close() error {
	return d.session.Close()
}

// LoadImage decodes the image file at path.
//
// Arguments:
//   - path: The image file.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: ErrUnsupportedImage if the file is not a readable image.
func LoadImage(path string) (image.Image, error) {
	if !util.IsImage(path) {
		return nil, errors.Wrapf(ErrUnsupportedImage, "%s", path)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.Wrapf(ErrUnsupportedImage, "failed to read %s", path)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert %s", path)
	}
	return img, nil
}
