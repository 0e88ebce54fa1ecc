package detector

import (
	"sort"
	"sync"

	"gocv.io/x/gocv"
)

// MockFinder is a test implementation of the Finder interface.
// It returns a scripted sequence of detection sets, one per Detect call,
// repeating the last set once the script is exhausted.
type MockFinder struct {
	script [][]Blob
	index  int
	err    error
	calls  int
	mu     sync.Mutex
}

// NewMockFinder creates a MockFinder with an empty script.
func NewMockFinder() *MockFinder {
	return &MockFinder{}
}

// SetScript replaces the scripted detection sets and rewinds playback.
func (m *MockFinder) SetScript(script [][]Blob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
	m.index = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockFinder) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Detect invocations so far.
func (m *MockFinder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next scripted detection set.
func (m *MockFinder) Detect(frame *gocv.Mat) ([]Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) == 0 {
		return nil, nil
	}

	i := m.index
	if i >= len(m.script) {
		i = len(m.script) - 1
	} else {
		m.index++
	}

	blobs := make([]Blob, len(m.script[i]))
	copy(blobs, m.script[i])
	sort.SliceStable(blobs, func(a, b int) bool {
		return blobs[a].Intensity > blobs[b].Intensity
	})
	return blobs, nil
}

// Close is a no-op for the mock finder.
func (m *MockFinder) Close() error {
	return nil
}

// TipAt returns a single-blob detection set with a bright wand tip at the
// given position. Convenient for scripting tracker and controller tests.
func TipAt(x, y float64) []Blob {
	return []Blob{{X: x, Y: y, Radius: 4, Intensity: 250}}
}
