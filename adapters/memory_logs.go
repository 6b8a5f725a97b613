package adapters

import (
	"context"
	"sort"
	"sync"

	"github.com/avisense/birdwatch/domain/entities"
)

// MemoryLogRepository is an in-memory LogRepository for tests and
// MongoDB-less deployments.
type MemoryLogRepository struct {
	mu       sync.RWMutex
	messages []entities.SpanMessage
}

// NewMemoryLogRepository creates an empty in-memory log store.
func NewMemoryLogRepository() *MemoryLogRepository {
	return &MemoryLogRepository{}
}

// InsertMany implements LogRepository.
func (m *MemoryLogRepository) InsertMany(ctx context.Context, messages []entities.SpanMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, messages...)
	return nil
}

// List implements LogRepository.
func (m *MemoryLogRepository) List(ctx context.Context, page, limit int) ([]entities.SpanMessage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := append([]entities.SpanMessage(nil), m.messages...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Received > sorted[j].Received
	})

	start := (page - 1) * limit
	if start >= len(sorted) {
		return []entities.SpanMessage{}, nil
	}
	end := start + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end], nil
}
