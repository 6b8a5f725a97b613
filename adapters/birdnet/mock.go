package birdnet

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/avisense/birdwatch/domain/entities"
)

// MockClassifier is a Classifier for development and tests. It returns a
// fixed result and counts calls so tests can assert exactly-once dispatch.
type MockClassifier struct {
	mu     sync.Mutex
	calls  []string
	Result entities.ClassificationResult
	Err    error
	logger *zap.Logger
}

// NewMockClassifier creates a mock that answers every call with the given
// species label.
func NewMockClassifier(label string, logger *zap.Logger) *MockClassifier {
	return &MockClassifier{
		Result: entities.ClassificationResult{Label: &label},
		logger: logger,
	}
}

// Classify implements repositories.Classifier.
func (m *MockClassifier) Classify(ctx context.Context, filePath string) (entities.ClassificationResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, filePath)
	m.mu.Unlock()

	m.logger.Debug("mock classification", zap.String("filePath", filePath))
	if m.Err != nil {
		return entities.ClassificationResult{}, m.Err
	}
	return m.Result, nil
}

// Calls returns the file paths classified so far.
func (m *MockClassifier) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
