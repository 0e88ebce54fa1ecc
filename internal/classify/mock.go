package classify

import (
	"sync"

	"github.com/jmfall/sortilege/internal/sigil"
)

// MockClassifier is a test implementation of the Classifier interface.
// It returns a pre-configured result and counts invocations.
type MockClassifier struct {
	result Result
	err    error
	labels []string
	calls  int
	mu     sync.Mutex
}

// NewMockClassifier creates a MockClassifier with the given label set.
func NewMockClassifier(labels ...string) *MockClassifier {
	return &MockClassifier{labels: labels}
}

// SetResult sets the result returned by Classify.
func (m *MockClassifier) SetResult(result Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
}

// SetError sets the error returned by Classify.
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Classify invocations so far.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Classify returns the pre-configured result or error.
func (m *MockClassifier) Classify(s *sigil.Sigil) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	out := make(Result, len(m.result))
	for k, v := range m.result {
		out[k] = v
	}
	return out, nil
}

// Labels returns the configured label set.
func (m *MockClassifier) Labels() []string {
	return m.labels
}

// Close is a no-op for the mock classifier.
func (m *MockClassifier) Close() error {
	return nil
}
