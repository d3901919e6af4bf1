package inference

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Provider names the ONNX Runtime execution provider a session runs on.
type Provider string

const (
	// ProviderCPU is the default CPU execution provider.
	ProviderCPU Provider = "cpu"
	// ProviderCoreML runs on Apple silicon through CoreML.
	ProviderCoreML Provider = "coreml"
	// ProviderCUDA runs on an NVIDIA GPU.
	ProviderCUDA Provider = "cuda"
	// ProviderOpenVINO runs on Intel CPUs and GPUs through OpenVINO.
	ProviderOpenVINO Provider = "openvino"
)

// Providers lists every supported execution provider.
var Providers = []Provider{ProviderCPU, ProviderCoreML, ProviderCUDA, ProviderOpenVINO}

// ParseProvider validates a provider name. An empty name is ProviderCPU.
func ParseProvider(name string) (Provider, error) {
	if name == "" {
		return ProviderCPU, nil
	}
	for _, p := range Providers {
		if string(p) == name {
			return p, nil
		}
	}
	return "", errors.Errorf("unknown execution provider %q", name)
}

// DefaultLibraryPath returns where the onnxruntime shared library is expected
// on this platform when none is configured.
func DefaultLibraryPath() string {
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	}
	if runtime.GOARCH == "arm64" {
		return "./third_party/onnxruntime_arm64.so"
	}
	return "./third_party/onnxruntime.so"
}

// appendProvider enables the execution provider on the session options. The
// CPU provider needs nothing.
func appendProvider(options *ort.SessionOptions, provider Provider) error {
	switch provider {
	case ProviderCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case ProviderOpenVINO:
		// See https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html
		err := options.AppendExecutionProviderOpenVINO(map[string]string{
			"device_type":    "CPU",
			"precision":      "FP32",
			"num_of_threads": "4",
		})
		if err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": "0"}); err != nil {
			return errors.Wrap(err, "error configuring CUDA")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	}
	return nil
}
