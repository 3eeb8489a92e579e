package embedding

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig configures an ONNX Runtime speaker-embedding backend.
type ONNXConfig struct {
	// ModelPath is the path to the .onnx model file. Required.
	ModelPath string

	// InputName and OutputName are the model's tensor names.
	// Defaults match ERes2Net-style speaker models: "x" in, "embedding" out.
	InputName  string
	OutputName string

	// Dim is the embedding dimensionality the model emits. Default 512.
	Dim int

	// SampleRate is the audio rate the model's features are computed at.
	// Default 16000.
	SampleRate int

	// Fbank configures feature extraction. Zero value uses defaults.
	Fbank FbankConfig

	// SharedLibraryPath optionally points at the onnxruntime shared
	// library. When empty the platform default lookup is used.
	SharedLibraryPath string
}

// ONNXModel runs a speaker-embedding network via ONNX Runtime.
//
// Feature extraction (log mel filterbank) happens on the CPU in Go; the
// [1, frames, mels] feature tensor is fed to the network, which returns a
// [1, dim] embedding. The model is an explicit owned resource: construct
// it once at process start, pass it into the pipeline, and Close it on
// shutdown.
type ONNXModel struct {
	cfg ONNXConfig

	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	closed  bool
}

// NewONNXModel loads the model and creates an inference session.
// It initializes the ONNX Runtime environment on first use.
func NewONNXModel(cfg ONNXConfig) (*ONNXModel, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("embedding: ONNXConfig.ModelPath is required")
	}
	if cfg.InputName == "" {
		cfg.InputName = "x"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "embedding"
	}
	if cfg.Dim <= 0 {
		cfg.Dim = 512
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Fbank.SampleRate == 0 {
		cfg.Fbank = DefaultFbankConfig()
		cfg.Fbank.SampleRate = cfg.SampleRate
	}

	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("embedding: initialize onnxruntime: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding: load %s: %w", cfg.ModelPath, err)
	}
	return &ONNXModel{cfg: cfg, session: sess}, nil
}

// Extract computes fbank features for the samples and runs inference.
// The returned Raw carries the session's output shape, typically
// [1, dim]; ToUtteranceVector handles the collapse.
func (m *ONNXModel) Extract(samples []float32) (Raw, error) {
	features := ComputeFbank(samples, m.cfg.Fbank)
	if len(features) == 0 {
		return Raw{}, errors.New("embedding: signal too short for feature extraction")
	}

	frames := len(features)
	mels := m.cfg.Fbank.NumMels
	data := make([]float32, frames*mels)
	for f, row := range features {
		copy(data[f*mels:], row)
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(frames), int64(mels)), data)
	if err != nil {
		return Raw{}, fmt.Errorf("embedding: input tensor: %w", err)
	}
	defer input.Destroy()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Raw{}, errors.New("embedding: model is closed")
	}

	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{input}, outputs); err != nil {
		return Raw{}, fmt.Errorf("embedding: inference: %w", err)
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return Raw{}, fmt.Errorf("embedding: unexpected output type %T", outputs[0])
	}
	defer out.Destroy()

	shape64 := out.GetShape()
	shape := make([]int, len(shape64))
	for i, d := range shape64 {
		shape[i] = int(d)
	}
	vals := out.GetData()
	cp := make([]float32, len(vals))
	copy(cp, vals)

	return Raw{Shape: shape, Data: cp}, nil
}

// SampleRate returns the audio rate the model expects.
func (m *ONNXModel) SampleRate() int { return m.cfg.SampleRate }

// Dimension returns the embedding dimensionality.
func (m *ONNXModel) Dimension() int { return m.cfg.Dim }

// Close destroys the inference session. The model must not be used after
// Close.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.session.Destroy()
}
