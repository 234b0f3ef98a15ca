package model

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Output element types supported by the server.
const (
	OutputFloat32 = "float32"
	OutputUint8   = "uint8"
)

// Config locates the model assets and names its tensors.
type Config struct {
	ModelPath   string
	LabelsPath  string
	LibraryPath string // onnxruntime shared library, empty for the platform default
	InputName   string
	OutputName  string
	OutputType  string
	ImageSize   int
}

// Server owns one ONNX Runtime session with fixed input and output tensors.
// Run is serialized; the session is not reentrant.
type Server struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	Vocabulary   Vocabulary
	inputTensor  *ort.Tensor[float32]
	outputTensor ort.ArbitraryTensor
	readScores   func(dst []float32)
}

// NewServer loads the label list and the model. Any asset problem is reported
// as a *ConfigurationError.
func NewServer(cfg Config) (*Server, error) {
	vocab, err := ReadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, &ConfigurationError{Asset: cfg.ModelPath, Err: err}
	}
	if cfg.ImageSize <= 0 {
		return nil, &ConfigurationError{Asset: cfg.ModelPath, Err: fmt.Errorf("invalid image size %d", cfg.ImageSize)}
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, &ConfigurationError{Asset: "onnxruntime", Err: err}
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, &ConfigurationError{Asset: cfg.ModelPath, Err: err}
	}
	in, err := findInfo(inputs, "input", cfg.InputName)
	if err == nil {
		err = checkInputInfo(in, cfg.ImageSize)
	}
	if err != nil {
		return nil, &ConfigurationError{Asset: cfg.ModelPath, Err: err}
	}
	out, err := findInfo(outputs, "output", cfg.OutputName)
	if err == nil {
		err = checkOutputInfo(out, cfg.OutputType, len(vocab))
	}
	if err != nil {
		return nil, &ConfigurationError{Asset: cfg.ModelPath, Err: err}
	}

	metadata := Metadata{
		InputShape:  []int64{1, int64(cfg.ImageSize), int64(cfg.ImageSize), 3},
		OutputShape: []int64{1, int64(len(vocab))},
		Classes:     vocab,
		ImageSize:   cfg.ImageSize,
	}

	s := &Server{Metadata: metadata, Vocabulary: vocab}
	if err := s.allocate(cfg); err != nil {
		s.Close()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{s.inputTensor}, []ort.ArbitraryTensor{s.outputTensor},
		nil)
	if err != nil {
		s.Close()
		return nil, &ConfigurationError{Asset: cfg.ModelPath, Err: fmt.Errorf("create session: %w", err)}
	}
	s.session = session
	return s, nil
}

func (s *Server) allocate(cfg Config) error {
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(s.Metadata.InputShape...))
	if err != nil {
		return &ConfigurationError{Asset: cfg.ModelPath, Err: fmt.Errorf("create input tensor: %w", err)}
	}
	s.inputTensor = inputTensor

	outputShape := ort.NewShape(s.Metadata.OutputShape...)
	switch cfg.OutputType {
	case "", OutputFloat32:
		t, err := ort.NewEmptyTensor[float32](outputShape)
		if err != nil {
			return &ConfigurationError{Asset: cfg.ModelPath, Err: fmt.Errorf("create output tensor: %w", err)}
		}
		s.outputTensor = t
		s.readScores = func(dst []float32) { copy(dst, t.GetData()) }
	case OutputUint8:
		t, err := ort.NewEmptyTensor[uint8](outputShape)
		if err != nil {
			return &ConfigurationError{Asset: cfg.ModelPath, Err: fmt.Errorf("create output tensor: %w", err)}
		}
		s.outputTensor = t
		s.readScores = func(dst []float32) { Dequantize(dst, t.GetData()) }
	default:
		return &ConfigurationError{Asset: cfg.ModelPath, Err: fmt.Errorf("unsupported output type %q", cfg.OutputType)}
	}
	return nil
}

// Run copies the encoded input into the session's input tensor, runs
// inference and returns one row of scores, index-aligned with the vocabulary.
func (s *Server) Run(input InputTensor) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !input.matches(s.Metadata.InputShape) {
		return nil, &ExecutorError{Err: fmt.Errorf("%w: input shape %v, want %v",
			ErrShapeMismatch, input.Shape(), s.Metadata.InputShape)}
	}
	if s.session == nil {
		return nil, &ExecutorError{Err: errors.New("session closed")}
	}
	input.CopyTo(s.inputTensor.GetData())

	if err := s.session.Run(); err != nil {
		return nil, &ExecutorError{Err: err}
	}

	scores := make([]float32, len(s.Vocabulary))
	s.readScores(scores)
	return scores, nil
}

// Close releases the session and tensors. Errors are collected, never fatal.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.inputTensor != nil {
		errs = append(errs, s.inputTensor.Destroy())
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		errs = append(errs, s.outputTensor.Destroy())
		s.outputTensor = nil
	}
	if s.session != nil {
		errs = append(errs, s.session.Destroy())
		s.session = nil
	}
	if ort.IsInitialized() {
		errs = append(errs, ort.DestroyEnvironment())
	}
	return errors.Join(errs...)
}

// Dequantize maps uint8 scores onto [0,1].
func Dequantize(dst []float32, src []uint8) {
	for i := range dst {
		if i >= len(src) {
			return
		}
		dst[i] = float32(src[i]) / 255.0
	}
}

// checkOutputDims verifies the model's declared output can hold one score per
// label. Dynamic dimensions (<= 0) are accepted.
func checkOutputDims(dims []int64, labels int) error {
	if len(dims) == 0 {
		return errors.New("output has no dimensions")
	}
	last := dims[len(dims)-1]
	if last > 0 && int(last) != labels {
		return fmt.Errorf("model outputs %d scores but %d labels are loaded", last, labels)
	}
	return nil
}

func findInfo(infos []ort.InputOutputInfo, kind, name string) (ort.InputOutputInfo, error) {
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
		names = append(names, info.Name)
	}
	return ort.InputOutputInfo{}, fmt.Errorf("model has no %s named %q (have %v)", kind, name, names)
}

// checkInputInfo requires a float32 NHWC input of {1, size, size, 3}.
// Dimensions <= 0 are dynamic and accept any value.
func checkInputInfo(info ort.InputOutputInfo, size int) error {
	want := []int64{1, int64(size), int64(size), 3}
	if len(info.Dimensions) != len(want) {
		return fmt.Errorf("input %q has shape %v, want NHWC %v", info.Name, info.Dimensions, want)
	}
	for i, d := range info.Dimensions {
		if d > 0 && d != want[i] {
			return fmt.Errorf("input %q has shape %v, want NHWC %v", info.Name, info.Dimensions, want)
		}
	}
	if info.DataType != ort.TensorElementDataTypeFloat {
		return fmt.Errorf("input %q holds %s, want float32", info.Name, info.DataType)
	}
	return nil
}

func checkOutputInfo(info ort.InputOutputInfo, outputType string, labels int) error {
	if err := checkOutputDims(info.Dimensions, labels); err != nil {
		return err
	}
	var want ort.TensorElementDataType
	switch outputType {
	case "", OutputFloat32:
		want = ort.TensorElementDataTypeFloat
	case OutputUint8:
		want = ort.TensorElementDataTypeUint8
	default:
		return fmt.Errorf("unsupported output type %q", outputType)
	}
	if info.DataType != want {
		return fmt.Errorf("output %q holds %s, configured as %s", info.Name, info.DataType, outputType)
	}
	return nil
}
