package inference

import (
	"sort"

	"github.com/nvr-ai/go-attendance/common"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Anchors is the number of candidate boxes of a 640x640 YOLOv8 export.
const Anchors = 8400

// DecodeConfig describes how to read one raw model output.
type DecodeConfig struct {
	// Classes names the class rows, in output order.
	Classes []string
	// Anchors is the number of candidate columns; zero means Anchors.
	Anchors int
	// ImageWidth and ImageHeight are the original image size the boxes are scaled to.
	ImageWidth  int
	ImageHeight int
	// ConfidenceThreshold drops candidates whose best class score is lower.
	ConfidenceThreshold float32
	// NMSThreshold suppresses boxes overlapping a stronger one of the same label by more.
	NMSThreshold float32
}

// Decode turns a raw [4+classes, anchors] YOLOv8 output into person and table
// detections in original image pixels.
//
// Rows 0-3 hold the box center and size in model input pixels, the remaining
// rows one score per class. Classes that are neither person nor table are
// dropped before non-maximum suppression.
//
// Arguments:
//   - output: The output tensor data.
//   - config: Class names, image size and thresholds.
//
// Returns:
//   - []common.Detection: The surviving detections, strongest first per label.
//   - error: An error if the output length does not match the configuration.
func Decode(output []float32, config DecodeConfig) ([]common.Detection, error) {
	classes := classesOrDefault(config.Classes)
	anchors := config.Anchors
	if anchors == 0 {
		anchors = Anchors
	}
	features := 4 + len(classes)
	if len(output) != features*anchors {
		return nil, errors.Errorf("output holds %d floats, expected %d (%d x %d)",
			len(output), features*anchors, features, anchors)
	}

	rows, err := anchorMajor(output, features, anchors)
	if err != nil {
		return nil, err
	}

	scaleX := float32(config.ImageWidth) / InputSize
	scaleY := float32(config.ImageHeight) / InputSize

	var candidates []common.Detection
	for a := 0; a < anchors; a++ {
		row := rows[a*features : (a+1)*features]

		classID := -1
		best := float32(-1e9)
		for c, score := range row[4:] {
			if score > best {
				best = score
				classID = c
			}
		}
		if best < config.ConfidenceThreshold {
			continue
		}
		label, ok := common.ParseLabel(classes[classID])
		if !ok {
			continue
		}

		xc, yc, w, h := row[0], row[1], row[2], row[3]
		box := common.NewBoundingBox(
			clamp((xc-w/2)*scaleX, float32(config.ImageWidth)),
			clamp((yc-h/2)*scaleY, float32(config.ImageHeight)),
			clamp((xc+w/2)*scaleX, float32(config.ImageWidth)),
			clamp((yc+h/2)*scaleY, float32(config.ImageHeight)),
		)
		candidates = append(candidates, common.NewDetection(label, clamp(best, 1), box))
	}

	return NMS(candidates, config.NMSThreshold), nil
}

// anchorMajor transposes the feature-major output so each anchor's features
// are contiguous.
func anchorMajor(output []float32, features, anchors int) ([]float32, error) {
	t := tensor.New(
		tensor.WithShape(features, anchors),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(append([]float32(nil), output...)),
	)
	if err := t.T(); err != nil {
		return nil, errors.Wrap(err, "failed to transpose output")
	}
	// T only changes the view; Transpose moves the data.
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "failed to transpose output")
	}
	rows, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.New("output tensor is not float32")
	}
	return rows, nil
}

// NMS keeps, per label, the strongest detections that overlap no stronger kept
// detection by more than threshold IoU.
func NMS(detections []common.Detection, threshold float32) []common.Detection {
	sorted := append([]common.Detection(nil), detections...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]common.Detection, 0, len(sorted))
	for _, candidate := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Label == candidate.Label && k.Box.IoU(candidate.Box) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func clamp(v, hi float32) float32 {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
