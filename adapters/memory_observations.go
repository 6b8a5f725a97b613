package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/avisense/birdwatch/domain/entities"
)

// MemoryObservationRepository is an in-memory ObservationRepository with the
// same idempotent-upsert and no-clobber semantics as the MongoDB one.
type MemoryObservationRepository struct {
	mu           sync.RWMutex
	observations map[string]*entities.Observation
}

// NewMemoryObservationRepository creates an empty in-memory repository.
func NewMemoryObservationRepository() *MemoryObservationRepository {
	return &MemoryObservationRepository{
		observations: make(map[string]*entities.Observation),
	}
}

// CreatePending implements ObservationRepository. Creating an observation
// that already exists is a no-op, so a retransmitted first frame cannot
// duplicate or reset the record.
func (m *MemoryObservationRepository) CreatePending(ctx context.Context, observation *entities.Observation) error {
	if observation == nil {
		return errors.New("observation cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.observations[observation.ID]; exists {
		return nil
	}
	obsCopy := *observation
	m.observations[observation.ID] = &obsCopy
	return nil
}

// AttachArtifact implements ObservationRepository.
func (m *MemoryObservationRepository) AttachArtifact(ctx context.Context, fileID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obs, ok := m.observations[fileID]
	if !ok {
		return entities.ErrNotFound
	}
	obs.FilePath = &path
	return nil
}

// AttachClassification implements ObservationRepository. A result that
// carries no label is recorded as classified-with-no-match, but a non-nil
// label already present is never overwritten with nil.
func (m *MemoryObservationRepository) AttachClassification(ctx context.Context, fileID string, result entities.ClassificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obs, ok := m.observations[fileID]
	if !ok {
		return entities.ErrNotFound
	}
	if obs.Value.Classification != nil && result.Label == nil {
		return nil
	}
	now := time.Now().UTC()
	obs.Value.Classification = result.Label
	obs.Value.IsRedlisted = result.IsRedlisted
	obs.ClassifiedAt = &now
	return nil
}

// GetByID implements ObservationRepository.
func (m *MemoryObservationRepository) GetByID(ctx context.Context, fileID string) (*entities.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obs, ok := m.observations[fileID]
	if !ok {
		return nil, entities.ErrNotFound
	}
	obsCopy := *obs
	return &obsCopy, nil
}

// List implements ObservationRepository.
func (m *MemoryObservationRepository) List(ctx context.Context, from *time.Time) ([]*entities.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entities.Observation, 0, len(m.observations))
	for _, obs := range m.observations {
		if from != nil && obs.Timestamp.Before(*from) {
			continue
		}
		obsCopy := *obs
		result = append(result, &obsCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

// Create implements ObservationRepository.
func (m *MemoryObservationRepository) Create(ctx context.Context, observation *entities.Observation) error {
	if observation == nil {
		return errors.New("observation cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.observations[observation.ID]; exists {
		return errors.New("observation already exists")
	}
	obsCopy := *observation
	m.observations[observation.ID] = &obsCopy
	return nil
}
