// Package inference - Person and table detection with a YOLOv8 ONNX model.
package inference

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// SessionConfig describes the model file and how to run it.
type SessionConfig struct {
	// ModelPath is the YOLOv8 .onnx file.
	ModelPath string
	// LibraryPath is the onnxruntime shared library; empty uses DefaultLibraryPath.
	LibraryPath string
	// Provider selects the execution provider.
	Provider Provider
	// NumClasses is the number of class rows of the model output.
	NumClasses int
}

// Session owns an ONNX Runtime session and its bound input and output tensors.
//
// Run overwrites the shared tensors, so a Session serializes its callers.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

var envMu sync.Mutex

// initEnvironment initializes the ONNX Runtime environment once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// NewSession loads the model and preallocates its tensors.
//
// Arguments:
//   - config: The model path, runtime library and execution provider.
//
// Returns:
//   - *Session: The session, to be released with Close.
//   - error: An error if the runtime or the model cannot be loaded.
func NewSession(config SessionConfig) (*Session, error) {
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", config.ModelPath)
	}
	libPath := config.LibraryPath
	if libPath == "" {
		libPath = DefaultLibraryPath()
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, InputSize, InputSize))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+config.NumClasses), Anchors))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	// Zero lets onnxruntime pick the thread counts.
	options.SetIntraOpNumThreads(0)
	options.SetInterOpNumThreads(0)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	if err := appendProvider(options, config.Provider); err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		config.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	return &Session{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// Run fills the input tensor with fill, runs the model and returns a copy of
// the output.
func (s *Session) Run(fill func(input []float32) error) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrModelNotLoaded
	}
	if err := fill(s.input.GetData()); err != nil {
		return nil, errors.Wrap(err, "failed to prepare input")
	}
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}
	return append([]float32(nil), s.output.GetData()...), nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		return errors.Wrap(err, "failed to destroy session")
	}
	return nil
}
