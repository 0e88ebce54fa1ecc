package classify

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/jmfall/sortilege/internal/sigil"
)

// Model file names within the model directory.
const (
	modelFile  = "spellnet.onnx"
	labelsFile = "labels.txt"
)

// Config holds SpellNet model parameters.
type Config struct {
	// ModelDir contains spellnet.onnx and labels.txt.
	ModelDir string

	// InputSize is the model's square input edge in pixels.
	InputSize int

	// InputName and OutputName are the ONNX graph tensor names.
	InputName  string
	OutputName string

	// SharedLibraryPath optionally points at the onnxruntime shared
	// library when it is not on the default loader path.
	SharedLibraryPath string
}

// DefaultConfig returns model parameters for the bundled SpellNet export.
func DefaultConfig(modelDir string) Config {
	return Config{
		ModelDir:   modelDir,
		InputSize:  224,
		InputName:  "input",
		OutputName: "output",
	}
}

var ortInit sync.Once

// SpellNet classifies sigil images with an ONNX convolutional model.
// The session and its tensors are reused across calls; Classify holds a
// lock, so a SpellNet is safe for use from one in-flight classification
// at a time, which is all the controller ever issues.
type SpellNet struct {
	config  Config
	labels  []string
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
	closed  bool
}

// NewSpellNet loads the model and labels from the configured directory.
func NewSpellNet(config Config) (*SpellNet, error) {
	labels, err := loadLabels(filepath.Join(config.ModelDir, labelsFile))
	if err != nil {
		return nil, err
	}

	if config.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(config.SharedLibraryPath)
	}

	var initErr error
	ortInit.Do(func() {
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", initErr)
	}

	inputShape := ort.NewShape(1, 1, int64(config.InputSize), int64(config.InputSize))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(len(labels)))
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	modelPath := filepath.Join(config.ModelDir, modelFile)
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{config.InputName},
		[]string{config.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session for %s: %w", modelPath, err)
	}

	return &SpellNet{
		config:  config,
		labels:  labels,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Classify runs the sigil through the network and returns per-label
// scores. Only image sigils are supported: SpellNet is a convolutional
// model over the rasterized path.
func (n *SpellNet) Classify(s *sigil.Sigil) (Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, fmt.Errorf("classifier is closed")
	}
	if s == nil || s.Mode != sigil.ModeImage || s.Image.Empty() {
		return nil, fmt.Errorf("spellnet requires an image sigil")
	}

	if err := n.fillInput(s); err != nil {
		return nil, err
	}

	if err := n.session.Run(); err != nil {
		return nil, fmt.Errorf("spellnet inference: %w", err)
	}

	scores := n.output.GetData()
	result := make(Result, len(n.labels))
	for i, label := range n.labels {
		result[label] = clamp01(float64(scores[i]))
	}

	return result, nil
}

// fillInput scales the sigil to the model input size and normalizes pixel
// values to [-1, 1].
func (n *SpellNet) fillInput(s *sigil.Sigil) error {
	src := s.Image
	resized := gocv.NewMat()
	defer resized.Close()

	size := n.config.InputSize
	if src.Rows() != size || src.Cols() != size {
		gocv.Resize(src, &resized, image.Point{X: size, Y: size}, 0, 0, gocv.InterpolationLinear)
		src = resized
	}

	data := n.input.GetData()
	if len(data) != size*size {
		return fmt.Errorf("input tensor size %d does not match %dx%d", len(data), size, size)
	}

	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			v := float32(src.GetUCharAt(row, col)) / 255.0
			data[row*size+col] = v*2.0 - 1.0
		}
	}

	return nil
}

// Labels returns the label set in model output order.
func (n *SpellNet) Labels() []string {
	out := make([]string, len(n.labels))
	copy(out, n.labels)
	return out
}

// Close releases the session and tensors.
func (n *SpellNet) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true

	n.session.Destroy()
	n.input.Destroy()
	n.output.Destroy()
	return nil
}

// loadLabels reads one label per line, skipping blanks.
func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels file: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}

	return labels, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
